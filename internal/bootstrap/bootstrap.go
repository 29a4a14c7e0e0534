// Package bootstrap builds the orchestrator and its backends from the
// loaded configuration. Every front end starts through Build.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"

	"agency-assistant/internal/common/aws"
	"agency-assistant/internal/common/cache"
	"agency-assistant/internal/common/config"
	"agency-assistant/internal/common/database"
	commonhttp "agency-assistant/internal/common/http"
	"agency-assistant/internal/common/llm"
	"agency-assistant/internal/common/logger"
	"agency-assistant/internal/common/metrics"
	"agency-assistant/internal/common/observability"
	"agency-assistant/internal/common/resilience"
	"agency-assistant/internal/common/validation"
	"agency-assistant/internal/common/workerpool"
	"agency-assistant/internal/models"
	"agency-assistant/internal/orchestrator"
	"agency-assistant/internal/store"
	analyzecorpus "agency-assistant/internal/workers/analysis/analyze-corpus"
	extractpdf "agency-assistant/internal/workers/brief/extract-pdf"
	extractsections "agency-assistant/internal/workers/brief/extract-sections"
	processbrief "agency-assistant/internal/workers/brief/process-brief"
	assembleslides "agency-assistant/internal/workers/deliverable/assemble-slides"
	collectsources "agency-assistant/internal/workers/veille/collect-sources"
	"agency-assistant/internal/workers/veille/sources"
	"agency-assistant/pkg/registry"
)

type Options struct {
	// BackendAttempts and BackendDelay drive the startup retry for
	// Redis, PostgreSQL and Elasticsearch.
	BackendAttempts int
	BackendDelay    time.Duration
	DisableMetrics  bool
}

func DefaultOptions() Options {
	return Options{BackendAttempts: 5, BackendDelay: 2 * time.Second}
}

// App holds the built orchestrator and the resources to release on exit.
type App struct {
	Config       *config.Config
	Logger       logger.Logger
	Orchestrator *orchestrator.Orchestrator
	Obs          *observability.Observability
	Schemas      *validation.Registry
	Templates    *registry.TemplateRegistry
	Cache        cache.Cache
	Store        store.Store
	Redis        *redis.Client
	DB           *sql.DB
	Search       *elasticsearch.Client

	closers []func(ctx context.Context) error
}

func Build(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (app *App, err error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if opts.BackendAttempts <= 0 {
		opts.BackendAttempts = 1
	}

	app = &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			app.Close(context.Background())
		}
	}()

	app.Schemas, err = validation.LoadRegistry(cfg.Schemas.Dir, validation.RequiredSchemas...)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}
	app.Templates, err = registry.Load(cfg.Templates.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("load slide templates: %w", err)
	}

	if err := app.connect(ctx, opts); err != nil {
		return nil, err
	}

	var obsEndpoint string
	if cfg.Tracing.Enabled {
		obsEndpoint = cfg.Tracing.JaegerEndpoint
	}
	app.Obs = observability.New(observability.Options{
		ServiceName:    cfg.Tracing.ServiceName,
		JaegerEndpoint: obsEndpoint,
		DisableMetrics: opts.DisableMetrics,
	}, log)
	app.closers = append(app.closers, func(ctx context.Context) error {
		app.Obs.Shutdown(ctx)
		return nil
	})

	notifier, err := aws.New(ctx, cfg.Integrations.AWS, log)
	if err != nil {
		return nil, fmt.Errorf("build notifier: %w", err)
	}

	generator, err := llm.New(ctx, cfg.LLM, log)
	if err != nil {
		return nil, fmt.Errorf("build llm: %w", err)
	}

	app.Cache = cache.NewMemory()
	if cfg.Cache.Backend == "redis" {
		app.Cache = cache.NewRedis(app.Redis, cfg.Cache.KeyPrefix)
	}
	app.Store = store.NewMemory()
	if app.DB != nil {
		app.Store = store.NewPostgres(app.DB)
	}

	pool := workerpool.New(cfg.Pipeline.WorkerPool)
	breakers := resilience.NewBreakers(
		cfg.Resilience.BreakerFailures,
		config.GetDuration(cfg.Resilience.BreakerOpenFor),
		func(endpoint, from, to string) {
			metrics.BreakerTransitions.WithLabelValues(endpoint, from, to).Inc()
			log.Warn("circuit breaker state changed", map[string]interface{}{
				"endpoint": endpoint,
				"from":     from,
				"to":       to,
			})
		},
	)
	client := commonhttp.NewClient(commonhttp.Options{
		Timeout:      config.GetDuration(cfg.Veille.SourceTimeout),
		UserAgent:    cfg.Veille.UserAgent,
		MaxBodyBytes: cfg.Resilience.MaxResponseBytes,
		Retry:        retryPolicy(cfg.Resilience),
		Breakers:     breakers,
	}, log)

	deps := orchestrator.Deps{
		Briefs:           briefProcessor(cfg, pool, app.Schemas, log),
		Collector:        collectsources.NewHandler(collectorConfig(cfg.Veille), app.sourceRegistry(client, breakers), app.limiter(cfg.Veille), app.Schemas, log),
		Analyzer:         analyzecorpus.NewHandler(analyzerConfig(cfg.Analysis), generator, pool, app.Schemas, log),
		Store:            app.Store,
		Cache:            app.Cache,
		CacheTTL:         cfg.CacheTTL(),
		Notifier:         notifier,
		Obs:              app.Obs,
		OperationTimeout: config.GetDuration(cfg.Server.OperationTimeout),
		Logger:           log,
	}
	deps.Assembler, err = assembleslides.NewHandler(assemblerConfig(cfg), app.Templates, log)
	if err != nil {
		return nil, err
	}
	deps.Sources, err = defaultSources(cfg.Veille)
	if err != nil {
		return nil, err
	}

	app.Orchestrator = orchestrator.New(deps)
	log.Info("application built", map[string]interface{}{
		"cache":     cfg.Cache.Backend,
		"postgres":  app.DB != nil,
		"osint":     app.Search != nil,
		"llm":       generator != nil,
		"sources":   len(deps.Sources),
		"templates": len(app.Templates.Templates),
	})
	return app, nil
}

// connect opens the enabled backends, retrying each with backoff.
func (a *App) connect(ctx context.Context, opts Options) error {
	cfg := a.Config
	if cfg.Database.Redis.Enabled || cfg.Cache.Backend == "redis" || cfg.Veille.SharedLimiter {
		err := retryWithBackoff(ctx, func() error {
			var err error
			a.Redis, err = database.NewRedis(ctx, cfg.Database.Redis)
			return err
		}, opts.BackendAttempts, opts.BackendDelay, a.Logger, "redis connection")
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { return a.Redis.Close() })
	}

	if cfg.Database.Postgres.Enabled {
		err := retryWithBackoff(ctx, func() error {
			var err error
			a.DB, err = database.NewPostgres(ctx, cfg.Database.Postgres)
			return err
		}, opts.BackendAttempts, opts.BackendDelay, a.Logger, "postgres connection")
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { return a.DB.Close() })
	}

	if cfg.Database.Elasticsearch.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		err = retryWithBackoff(ctx, func() error {
			return database.PingElasticsearch(ctx, es)
		}, opts.BackendAttempts, opts.BackendDelay, a.Logger, "elasticsearch ping")
		if err != nil {
			return err
		}
		a.Search = es
	}
	return nil
}

func (a *App) sourceRegistry(client *commonhttp.Client, breakers *resilience.Breakers) *sources.Registry {
	reg := sources.NewRegistry(
		sources.NewRSS(client),
		sources.NewWeb(client, 0),
	)
	social := a.Config.Integrations.Social
	if s := sources.NewSocial(client, social.BaseURL, social.Token); s != nil {
		reg.Register(s)
	}
	if a.Search != nil {
		if o := sources.NewOSINT(a.Search, a.Config.Database.Elasticsearch.Index, breakers); o != nil {
			reg.Register(o)
		}
	}
	return reg
}

// limiter shares its window across instances through Redis when asked to.
func (a *App) limiter(cfg config.VeilleConfig) resilience.Limiter {
	if cfg.SharedLimiter && a.Redis != nil {
		return resilience.NewRedisSlidingWindow(a.Redis, a.Config.Cache.KeyPrefix+"ratelimit:", cfg.RateLimitPerMinute, time.Minute)
	}
	return resilience.NewSlidingWindow(cfg.RateLimitPerMinute, time.Minute)
}

// Close releases backends in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func briefProcessor(cfg *config.Config, pool *workerpool.Pool, schemas *validation.Registry, log logger.Logger) *processbrief.Handler {
	pdf := extractpdf.NewHandler(extractpdf.LoadConfig(), extractpdf.LedongthucBackend{}, pool, log)
	sections := extractsections.NewHandler(extractsections.LoadConfig(), log)

	pc := processbrief.LoadConfig()
	pc.SchemaName = cfg.Schemas.BriefSchema
	pc.AutoDefault = cfg.Pipeline.AutoDefault
	return processbrief.NewHandler(pc, pdf, sections, schemas, log)
}

func collectorConfig(v config.VeilleConfig) *collectsources.Config {
	c := collectsources.LoadConfig()
	if v.Concurrency > 0 {
		c.Concurrency = v.Concurrency
	}
	if v.SourceTimeout > 0 {
		c.SourceTimeout = config.GetDuration(v.SourceTimeout)
	}
	if v.MaxItemsPerSource > 0 {
		c.MaxItemsPerSource = v.MaxItemsPerSource
	}
	c.OverallDeadline = config.GetDuration(v.OverallDeadline)
	return c
}

func analyzerConfig(a config.AnalysisConfig) *analyzecorpus.Config {
	c := analyzecorpus.LoadConfig()
	c.UseLLM = a.UseLLM
	if a.ParallelThreshold > 0 {
		c.ParallelThreshold = a.ParallelThreshold
	}
	return c
}

func assemblerConfig(cfg *config.Config) *assembleslides.Config {
	c := assembleslides.LoadConfig()
	if cfg.App.Tagline != "" {
		c.Tagline = cfg.App.Tagline
	}
	if cfg.Pipeline.DefaultBudget > 0 {
		c.DefaultBudget = cfg.Pipeline.DefaultBudget
	}
	if cfg.Pipeline.Currency != "" {
		c.Currency = cfg.Pipeline.Currency
	}
	return c
}

func retryPolicy(r config.ResilienceConfig) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		BaseDelay:  config.GetDuration(r.RetryBaseDelay),
		Factor:     r.RetryFactor,
		MaxRetries: r.RetryMax,
		Jitter:     r.RetryJitter,
	}
}

// defaultSources prefers inline descriptors over the sources file.
func defaultSources(v config.VeilleConfig) ([]models.SourceDescriptor, error) {
	if len(v.Sources) > 0 {
		return orchestrator.Descriptors(v.Sources), nil
	}
	if v.SourcesFile == "" {
		return nil, nil
	}
	list, err := config.LoadSources(v.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	return orchestrator.Descriptors(list), nil
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled: %w", operationName, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
