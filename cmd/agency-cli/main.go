// cmd/agency-cli/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"agency-assistant/internal/bootstrap"
	"agency-assistant/internal/common/config"
	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/logger"
)

// veilleDefault marks --veille given without an output path.
const veilleDefault = "-"

type options struct {
	brief   string
	veille  string
	analyse string
	report  string

	output      string
	configPath  string
	verbose     bool
	sources     string
	kind        string
	corpus      string
	competitors []string
	timeout     time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one CLI invocation and returns its exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	var failure *apperrors.StandardError

	cmd := &cobra.Command{
		Use:           "agency-cli",
		Short:         "Process briefs, run veille, analyse corpora and build decks",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.veille == veilleDefault && len(args) == 1 {
				opts.veille = args[0]
			} else if len(args) == 1 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			failure = execute(ctx, opts, stdout)
			return nil
		},
	}
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVar(&opts.brief, "brief", "", "process a PDF brief")
	flags.StringVar(&opts.veille, "veille", "", "collect sources, optionally saving the report to OUT (.json or .csv)")
	flags.Lookup("veille").NoOptDefVal = veilleDefault
	flags.StringVar(&opts.analyse, "analyse", "", "analyse a saved report or corpus file")
	flags.StringVar(&opts.report, "report", "", "build the deck from a brief (PDF or brief JSON)")
	flags.StringVar(&opts.output, "output", "", "directory for generated files")
	flags.StringVar(&opts.configPath, "config", "", "config file (default: configs/config.yaml)")
	flags.BoolVar(&opts.verbose, "verbose", false, "debug logging on stderr")
	flags.StringVar(&opts.sources, "sources", "", "sources file for --veille")
	flags.StringVar(&opts.kind, "type", "comprehensive", "analysis type: sentiment, trends, content or comprehensive")
	flags.StringVar(&opts.corpus, "corpus", "", "corpus analysed before --report")
	flags.StringSliceVar(&opts.competitors, "competitor", nil, "competitor names for the analysis")
	flags.DurationVar(&opts.timeout, "timeout", 0, "operation timeout (e.g. 90s)")
	cmd.MarkFlagsMutuallyExclusive("brief", "veille", "analyse", "report")
	cmd.MarkFlagsOneRequired("brief", "veille", "analyse", "report")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %s\n", oneLine(err.Error()))
		return apperrors.ExitCode(apperrors.KindValidation)
	}
	if failure != nil {
		fmt.Fprintf(stderr, "error: %s\n", reason(failure))
		return apperrors.ExitCode(failure.Kind)
	}
	return 0
}

func execute(ctx context.Context, opts options, stdout io.Writer) *apperrors.StandardError {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return apperrors.NewInvalidRequestError(err.Error())
	}
	cfg.Logging.Level = "warn"
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}
	zapLog := logger.New(cfg.Logging.Level, "console", "stderr")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	app, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{BackendAttempts: 1, DisableMetrics: true})
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer app.Close(context.Background())

	r := &runner{ctx: ctx, orch: app.Orchestrator, opts: opts, outputDir: opts.output}
	var value interface{}
	var failure *apperrors.StandardError
	switch {
	case opts.brief != "":
		value, failure = r.brief()
	case opts.veille != "":
		value, failure = r.veille()
	case opts.analyse != "":
		value, failure = r.analyse()
	default:
		value, failure = r.report()
	}
	if failure != nil {
		return failure
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// reason is the one-line stderr summary of a failure.
func reason(e *apperrors.StandardError) string {
	msg := string(e.Kind) + ": " + e.Message
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	if paths := e.Paths(); len(paths) > 0 && e.Details == "" {
		msg += " (" + strings.Join(paths, ", ") + ")"
	}
	return oneLine(msg)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
