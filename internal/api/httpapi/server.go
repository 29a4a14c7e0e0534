// Package httpapi exposes the orchestrator operations over HTTP.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/logger"
	"agency-assistant/internal/models"
	"agency-assistant/internal/orchestrator"
)

// Service is the orchestrator surface the API calls.
type Service interface {
	ProcessBrief(ctx context.Context, req orchestrator.BriefRequest) *models.Envelope[models.BriefResult]
	RunVeille(ctx context.Context, req orchestrator.VeilleRequest) *models.Envelope[models.VeilleReport]
	RunAnalyse(ctx context.Context, req orchestrator.AnalyseRequest) *models.Envelope[models.AnalysisResult]
	GenerateDeliverable(ctx context.Context, req orchestrator.DeliverableRequest) *models.Envelope[models.Deck]
}

// Route mounts an extra handler, such as the Slack endpoints.
type Route struct {
	Method  string
	Path    string
	Handler http.Handler
}

type Options struct {
	Version      string
	MaxBodyBytes int64
	// RateLimit is requests per second across all operation routes; 0
	// disables the limiter.
	RateLimit float64
	RateBurst int
	Routes    []Route
}

type Server struct {
	svc     Service
	opts    Options
	limiter *rate.Limiter
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
	started time.Time
	now     func() time.Time
}

func New(svc Service, opts Options, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 20 << 20
	}
	log = log.WithFields(map[string]interface{}{"component": "http-api"})
	s := &Server{
		svc:     svc,
		opts:    opts,
		errors:  apperrors.NewErrorHandler(log),
		logger:  log,
		started: time.Now(),
		now:     time.Now,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return s
}

// Router builds the gin engine. Operation routes share the body limit and
// the rate limiter; /health and /metrics bypass both.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(s.recovery(), s.requestLog())

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ops := router.Group("/")
	ops.Use(s.rateLimit(), s.bodyLimit())
	ops.POST("/brief", s.brief)
	ops.POST("/veille", s.veille)
	ops.POST("/analyse", s.analyse)
	ops.POST("/deliverable", s.deliverable)

	for _, r := range s.opts.Routes {
		router.Handle(r.Method, r.Path, gin.WrapH(r.Handler))
	}
	return router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"uptime_s": int64(s.now().Sub(s.started).Seconds()),
		"version":  s.opts.Version,
	})
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || s.limiter.Allow() {
			c.Next()
			return
		}
		s.fail(c, s.now(), apperrors.NewRateLimitedError(c.FullPath(), "api request rate exceeded"))
		c.Abort()
	}
}

func (s *Server) bodyLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxBodyBytes)
		c.Next()
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.now()
		defer func() {
			if r := recover(); r != nil {
				stdErr := s.errors.Recover(c.FullPath(), r)
				s.write(c, envelopeFor(stdErr, s.now().Sub(start), s.now()))
				c.Abort()
			}
		}()
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.now()
		c.Next()
		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"durationMs": s.now().Sub(start).Milliseconds(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Warn("request failed", fields)
			return
		}
		s.logger.Debug("request served", fields)
	}
}

// fail writes an error envelope for failures detected before the
// orchestrator runs.
func (s *Server) fail(c *gin.Context, start time.Time, err error) {
	stdErr := apperrors.Normalize(err)
	now := s.now()
	s.write(c, envelopeFor(stdErr, now.Sub(start), now))
}

func (s *Server) write(c *gin.Context, env *models.Envelope[struct{}]) {
	c.JSON(apperrors.HTTPStatus(env.Kind()), env)
}

func envelopeFor(err *apperrors.StandardError, elapsed time.Duration, now time.Time) *models.Envelope[struct{}] {
	return &models.Envelope[struct{}]{
		Success:          false,
		Error:            err,
		ProcessingTimeMS: elapsed.Milliseconds(),
		Timestamp:        now.UTC(),
	}
}

// respond writes an orchestrator envelope with the status of its kind.
func respond[T any](c *gin.Context, env *models.Envelope[T]) {
	status := http.StatusOK
	if !env.Success {
		status = apperrors.HTTPStatus(env.Kind())
	}
	c.JSON(status, env)
}

// Listen serves the router until ctx is done, then shuts down within
// shutdownTimeout.
func Listen(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, log logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", map[string]interface{}{"address": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
