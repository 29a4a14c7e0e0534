// Package llm is the text-generation capability used by LLM-backed
// analysis. Providers return raw text; callers parse and validate it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agency-assistant/internal/common/config"
	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/logger"

	"golang.org/x/time/rate"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Request struct {
	System string
	Prompt string
}

type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// New builds the configured provider wrapped with a call timeout and a
// token-bucket limiter. It returns nil when generation is disabled or no
// API key is available.
func New(ctx context.Context, cfg config.LLMConfig, log logger.Logger) (Generator, error) {
	if !cfg.Enabled || cfg.APIKey == "" {
		return nil, nil
	}

	var g Generator
	var err error
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		g, err = NewOpenAI(ctx, cfg)
	case ProviderAnthropic:
		g = NewAnthropic(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewGuarded(g, config.GetDuration(cfg.Timeout), cfg.RatePerMin, log), nil
}

// Guarded bounds every call by a timeout and a per-minute rate.
type Guarded struct {
	next    Generator
	timeout time.Duration
	limiter *rate.Limiter
	log     logger.Logger
}

func NewGuarded(next Generator, timeout time.Duration, perMinute int, log logger.Logger) *Guarded {
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
		burst = max(1, perMinute/10)
	}
	return &Guarded{
		next:    next,
		timeout: timeout,
		limiter: rate.NewLimiter(limit, burst),
		log:     log.With(map[string]interface{}{"llm": next.Name()}),
	}
}

func (g *Guarded) Name() string { return g.next.Name() }

func (g *Guarded) Generate(ctx context.Context, req Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := g.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			return "", apperrors.NewRateLimitedError(g.next.Name(), err.Error())
		}
		return "", classify(ctx, g.next.Name(), err)
	}

	start := time.Now()
	text, err := g.next.Generate(ctx, req)
	if err != nil {
		err = classify(ctx, g.next.Name(), err)
		g.log.Warn("llm generation failed", map[string]interface{}{
			"error":      err.Error(),
			"durationMs": time.Since(start).Milliseconds(),
		})
		return "", err
	}

	g.log.Debug("llm generation completed", map[string]interface{}{
		"durationMs": time.Since(start).Milliseconds(),
		"chars":      len(text),
	})
	return text, nil
}

func classify(ctx context.Context, name string, err error) error {
	var se *apperrors.StandardError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("llm "+name, err)
	case ctx.Err() == context.Canceled || errors.Is(err, context.Canceled):
		return apperrors.NewCancelledError("llm " + name)
	case strings.Contains(err.Error(), "429"):
		return apperrors.NewRateLimitedError(name, err.Error())
	}
	return apperrors.NewUpstreamError(name, 0, err.Error())
}

// ExtractJSON strips markdown code fences and surrounding prose from a
// model reply, returning the outermost JSON object or array.
func ExtractJSON(reply string) string {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}
