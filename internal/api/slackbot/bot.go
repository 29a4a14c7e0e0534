// Package slackbot answers Slack slash commands and app mentions by running
// orchestrator operations in the background and posting the outcome.
package slackbot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"golang.org/x/time/rate"

	"agency-assistant/internal/common/config"
	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/logger"
	"agency-assistant/internal/common/metrics"
	"agency-assistant/internal/models"
	"agency-assistant/internal/orchestrator"
)

// Service is the orchestrator surface the bot calls.
type Service interface {
	ProcessBrief(ctx context.Context, req orchestrator.BriefRequest) *models.Envelope[models.BriefResult]
	RunVeille(ctx context.Context, req orchestrator.VeilleRequest) *models.Envelope[models.VeilleReport]
	RunAnalyse(ctx context.Context, req orchestrator.AnalyseRequest) *models.Envelope[models.AnalysisResult]
	GenerateDeliverable(ctx context.Context, req orchestrator.DeliverableRequest) *models.Envelope[models.Deck]
}

// Poster is the part of the Slack web client the bot uses.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

const maxRequestBytes = 1 << 20

type Bot struct {
	svc     Service
	poster  Poster
	secret  string
	limiter *rate.Limiter
	timeout time.Duration
	logger  logger.Logger

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a bot posting through the Slack web API.
func New(cfg config.SlackConfig, svc Service, log logger.Logger) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("slack bot token is required")
	}
	api := slack.New(cfg.BotToken, slack.OptionAPIURL(cfg.APIURL))
	return NewWithPoster(cfg, svc, api, log)
}

func NewWithPoster(cfg config.SlackConfig, svc Service, poster Poster, log logger.Logger) (*Bot, error) {
	if cfg.SigningSecret == "" {
		return nil, errors.New("slack signing secret is required")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	perSecond := cfg.PostRate
	if perSecond <= 0 {
		perSecond = 1
	}
	timeout := config.GetDuration(cfg.CommandTimeout)
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	base, cancel := context.WithCancel(context.Background())
	return &Bot{
		svc:     svc,
		poster:  poster,
		secret:  cfg.SigningSecret,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "slackbot"}),
		base:    base,
		cancel:  cancel,
	}, nil
}

// Shutdown cancels running commands and waits for their replies to settle.
func (b *Bot) Shutdown(ctx context.Context) error {
	b.cancel()
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// verify checks the request signature and returns the body.
func (b *Bot) verify(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		return nil, err
	}
	sv, err := slack.NewSecretsVerifier(r.Header, b.secret)
	if err != nil {
		return nil, err
	}
	if _, err := sv.Write(body); err != nil {
		return nil, err
	}
	if err := sv.Ensure(); err != nil {
		return nil, err
	}
	return body, nil
}

// CommandsHandler serves slash commands. The command is acknowledged with an
// ephemeral message and its result is posted to the channel.
func (b *Bot) CommandsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := b.verify(r)
		if err != nil {
			b.logger.Warn("rejected slack command", map[string]interface{}{"error": err.Error()})
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		sc, err := slack.SlashCommandParse(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		cmd, err := parseCommand(sc.Command, sc.Text)
		if err != nil {
			metrics.SlackCommands.WithLabelValues("unknown", "rejected").Inc()
			writeEphemeral(w, err.Error()+"\n"+usage)
			return
		}
		if cmd.Name == cmdHelp {
			metrics.SlackCommands.WithLabelValues(cmdHelp, "ok").Inc()
			writeEphemeral(w, usage)
			return
		}

		b.dispatch(cmd, sc.ChannelID, "", sc.UserID)
		writeEphemeral(w, fmt.Sprintf("Working on `%s`...", cmd))
	})
}

// EventsHandler serves the Events API: the URL verification challenge and
// app mentions. Slack redeliveries are acknowledged and dropped.
func (b *Bot) EventsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := b.verify(r)
		if err != nil {
			b.logger.Warn("rejected slack event", map[string]interface{}{"error": err.Error()})
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch event.Type {
		case slackevents.URLVerification:
			var challenge slackevents.ChallengeResponse
			if err := json.Unmarshal(body, &challenge); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(challenge.Challenge))
			return
		case slackevents.CallbackEvent:
		default:
			w.WriteHeader(http.StatusOK)
			return
		}

		w.WriteHeader(http.StatusOK)
		if r.Header.Get("X-Slack-Retry-Num") != "" {
			return
		}
		mention, ok := event.InnerEvent.Data.(*slackevents.AppMentionEvent)
		if !ok {
			return
		}

		thread := mention.ThreadTimeStamp
		if thread == "" {
			thread = mention.TimeStamp
		}
		cmd, err := parseCommand("", mention.Text)
		switch {
		case err != nil:
			metrics.SlackCommands.WithLabelValues("unknown", "rejected").Inc()
			b.reply(mention.Channel, thread, err.Error()+"\n"+usage)
		case cmd.Name == cmdHelp:
			metrics.SlackCommands.WithLabelValues(cmdHelp, "ok").Inc()
			b.reply(mention.Channel, thread, usage)
		default:
			b.dispatch(cmd, mention.Channel, thread, mention.User)
		}
	})
}

// dispatch runs cmd in the background under the command timeout.
func (b *Bot) dispatch(cmd command, channel, thread, user string) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(b.base, b.timeout)
		defer cancel()

		log := b.logger.With(map[string]interface{}{"command": cmd.Name, "channel": channel, "user": user})
		log.Info("running slack command", map[string]interface{}{"args": cmd.Args})

		text, failure := b.execute(ctx, cmd)
		status := "ok"
		if failure != nil {
			status = string(failure.Kind)
			text = fmt.Sprintf(":x: `%s` failed (%s): %s", cmd, failure.Kind, failure.Message)
			if failure.Details != "" {
				text += "\n" + failure.Details
			}
		}
		metrics.SlackCommands.WithLabelValues(cmd.Name, status).Inc()
		b.post(ctx, channel, thread, text)
	}()
}

func (b *Bot) reply(channel, thread, text string) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(b.base, 30*time.Second)
		defer cancel()
		b.post(ctx, channel, thread, text)
	}()
}

func (b *Bot) post(ctx context.Context, channel, thread, text string) {
	// replies go out even when the command used its whole budget
	ctx = context.WithoutCancel(ctx)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := b.limiter.Wait(ctx); err != nil {
		b.logger.Warn("slack post dropped", map[string]interface{}{"channel": channel, "error": err.Error()})
		return
	}
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if thread != "" {
		opts = append(opts, slack.MsgOptionTS(thread))
	}
	if _, _, err := b.poster.PostMessageContext(ctx, channel, opts...); err != nil {
		b.logger.Error("slack post failed", map[string]interface{}{"channel": channel, "error": err.Error()})
	}
}

// execute maps a command to an orchestrator call and formats the reply.
func (b *Bot) execute(ctx context.Context, cmd command) (string, *apperrors.StandardError) {
	switch cmd.Name {
	case cmdBrief:
		env := b.svc.ProcessBrief(ctx, orchestrator.BriefRequest{Path: cmd.Args[0]})
		if !env.Success {
			return "", env.Error
		}
		return formatBrief(env), nil

	case cmdVeille:
		req := orchestrator.VeilleRequest{}
		if len(cmd.Args) == 1 {
			req.SourcesFile = cmd.Args[0]
		}
		env := b.svc.RunVeille(ctx, req)
		if !env.Success {
			return "", env.Error
		}
		return formatVeille(env), nil

	case cmdAnalyse:
		req := orchestrator.AnalyseRequest{}
		if looksLikeRef(cmd.Args[0]) {
			req.CorpusRef = cmd.Args[0]
		} else {
			req.CorpusPath = cmd.Args[0]
		}
		if len(cmd.Args) == 2 {
			req.Type = cmd.Args[1]
		}
		env := b.svc.RunAnalyse(ctx, req)
		if !env.Success {
			return "", env.Error
		}
		return formatAnalysis(env), nil

	case cmdReport:
		req := orchestrator.DeliverableRequest{BriefRef: cmd.Args[0]}
		if len(cmd.Args) == 2 {
			req.AnalysisRef = cmd.Args[1]
		}
		env := b.svc.GenerateDeliverable(ctx, req)
		if !env.Success {
			return "", env.Error
		}
		return formatDeck(env), nil
	}
	return "", apperrors.NewInvalidRequestError("unknown command " + cmd.Name)
}

// looksLikeRef matches stored report refs ("report_<uuid>").
func looksLikeRef(arg string) bool {
	return strings.HasPrefix(arg, "report_") && !strings.ContainsAny(arg, "/.\\")
}

func writeEphemeral(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"response_type": "ephemeral",
		"text":          text,
	})
}
