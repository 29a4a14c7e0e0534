// cmd/agency-server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"agency-assistant/internal/api/httpapi"
	"agency-assistant/internal/api/slackbot"
	"agency-assistant/internal/bootstrap"
	"agency-assistant/internal/common/config"
	"agency-assistant/internal/common/logger"
)

func main() {
	configPath := flag.String("config", "", "config file (default: configs/config.yaml)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting agency server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Backends, workers and orchestrator ---
	app, err := bootstrap.Build(ctx, cfg, log, bootstrap.DefaultOptions())
	if err != nil {
		zapLog.Fatal("bootstrap failed", zap.Error(err))
	}

	// --- Slack bot ---
	var routes []httpapi.Route
	var bot *slackbot.Bot
	if cfg.Slack.Enabled {
		bot, err = slackbot.New(cfg.Slack, app.Orchestrator, log)
		if err != nil {
			zapLog.Fatal("failed to create slack bot", zap.Error(err))
		}
		routes = append(routes,
			httpapi.Route{Method: http.MethodPost, Path: "/slack/commands", Handler: bot.CommandsHandler()},
			httpapi.Route{Method: http.MethodPost, Path: "/slack/events", Handler: bot.EventsHandler()},
		)
		zapLog.Info("Slack bot enabled")
	}

	// --- HTTP API, health & metrics ---
	api := httpapi.New(app.Orchestrator, httpapi.Options{
		Version:      cfg.App.Version,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		Routes:       routes,
	}, log)
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.Router(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	shutdownTimeout := config.GetDuration(cfg.Server.ShutdownTimeout)
	if err := httpapi.Listen(ctx, srv, shutdownTimeout, log); err != nil {
		zapLog.Error("HTTP server failed", zap.Error(err))
	}

	// --- Graceful Shutdown ---
	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout+5*time.Second)
	defer cancel()

	if bot != nil {
		if err := bot.Shutdown(shutdownCtx); err != nil {
			zapLog.Warn("Slack commands still running at shutdown", zap.Error(err))
		}
	}
	if err := app.Close(shutdownCtx); err != nil {
		zapLog.Error("Error closing backends", zap.Error(err))
	}

	zapLog.Info("Agency server stopped gracefully")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
