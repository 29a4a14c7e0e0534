// Package orchestrator exposes the four top-level operations used by the
// front ends and converts every component failure into an envelope.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"agency-assistant/internal/common/aws"
	"agency-assistant/internal/common/cache"
	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/logger"
	"agency-assistant/internal/common/metrics"
	"agency-assistant/internal/common/observability"
	"agency-assistant/internal/models"
	"agency-assistant/internal/store"
	analyzecorpus "agency-assistant/internal/workers/analysis/analyze-corpus"
	processbrief "agency-assistant/internal/workers/brief/process-brief"
	assembleslides "agency-assistant/internal/workers/deliverable/assemble-slides"
	collectsources "agency-assistant/internal/workers/veille/collect-sources"
)

const (
	OpProcessBrief        = "process_brief"
	OpRunVeille           = "run_veille"
	OpRunAnalyse          = "run_analyse"
	OpGenerateDeliverable = "generate_deliverable"
)

type BriefProcessor interface {
	Execute(ctx context.Context, input *processbrief.Input) (*models.BriefResult, error)
}

type Collector interface {
	Execute(ctx context.Context, input *collectsources.Input) (*models.VeilleReport, error)
}

type Analyzer interface {
	Execute(ctx context.Context, input *analyzecorpus.Input) (*models.AnalysisResult, error)
}

type Assembler interface {
	Execute(ctx context.Context, input *assembleslides.Input) (*models.Deck, error)
}

// Deps is the dependency bundle built at startup. Store, Cache, Notifier
// and Obs are optional.
type Deps struct {
	Briefs    BriefProcessor
	Collector Collector
	Analyzer  Analyzer
	Assembler Assembler

	Store    store.Store
	Cache    cache.Cache
	CacheTTL time.Duration
	Notifier aws.Notifier
	Obs      *observability.Observability

	// Sources are used by RunVeille when a request names none.
	Sources          []models.SourceDescriptor
	OperationTimeout time.Duration
	// DrainGrace bounds the wait for a component to return its partial
	// result once the operation context has ended.
	DrainGrace time.Duration
	Logger     logger.Logger
}

type Orchestrator struct {
	deps   Deps
	errors *apperrors.ErrorHandler
	logger logger.Logger
	now    func() time.Time
}

func New(deps Deps) *Orchestrator {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"component": "orchestrator"})
	if deps.DrainGrace <= 0 {
		deps.DrainGrace = time.Second
	}
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = time.Hour
	}
	return &Orchestrator{
		deps:   deps,
		errors: apperrors.NewErrorHandler(log),
		logger: log,
		now:    time.Now,
	}
}

type outcome[T any] struct {
	value *T
	ref   string
	err   error
}

// run executes fn under the operation deadline and converts its outcome.
// A partial value returned together with an error is kept in the envelope.
func run[T any](o *Orchestrator, ctx context.Context, op string, timeout time.Duration, fn func(ctx context.Context) (*T, string, error)) *models.Envelope[T] {
	start := o.now()
	metrics.OperationsActive.WithLabelValues(op).Inc()
	defer metrics.OperationsActive.WithLabelValues(op).Dec()

	if timeout <= 0 {
		timeout = o.deps.OperationTimeout
	}
	var opCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		opCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		opCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	endSpan := func(error) {}
	if o.deps.Obs != nil {
		opCtx, endSpan = o.deps.Obs.StartSpan(opCtx, op, nil)
	}

	done := make(chan outcome[T], 1)
	go func() {
		var r outcome[T]
		defer func() {
			if p := recover(); p != nil {
				r = outcome[T]{err: apperrors.NewInternalError(fmt.Errorf("%s panicked: %v", op, p))}
			}
			done <- r
		}()
		r.value, r.ref, r.err = fn(opCtx)
	}()

	var r outcome[T]
	select {
	case r = <-done:
	case <-opCtx.Done():
		grace := time.NewTimer(o.deps.DrainGrace)
		select {
		case r = <-done:
		case <-grace.C:
			r = outcome[T]{err: opCtx.Err()}
		}
		grace.Stop()
	}
	cancel()

	env := &models.Envelope[T]{Value: r.value, Ref: r.ref, Success: r.err == nil}
	status := "success"
	if r.err != nil {
		env.Error = o.errors.Handle(op, boundaryError(ctx, opCtx, op, r.err))
		status = string(env.Error.Kind)
	}
	endSpan(r.err)

	elapsed := o.now().Sub(start)
	env.ProcessingTimeMS = elapsed.Milliseconds()
	env.Timestamp = o.now().UTC()

	metrics.OperationsTotal.WithLabelValues(op, status).Inc()
	metrics.OperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if o.deps.Obs != nil {
		o.deps.Obs.RecordOperation(ctx, op, status, elapsed)
	}
	o.logger.Info("operation finished", map[string]interface{}{
		"operation":  op,
		"status":     status,
		"durationMs": env.ProcessingTimeMS,
		"ref":        env.Ref,
	})
	o.notify(ctx, op, env.Success, env.Ref, env.Error)
	return env
}

// boundaryError attributes failures that coincide with the end of the
// operation context to that end: caller cancellation or the deadline.
func boundaryError(parent, opCtx context.Context, op string, err error) error {
	kind := apperrors.KindOf(err)
	var typed *apperrors.StandardError
	isTyped := errors.As(err, &typed)
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		if kind == apperrors.KindCancelled && isTyped {
			return err
		}
		return apperrors.NewCancelledError(op)
	case errors.Is(opCtx.Err(), context.DeadlineExceeded):
		if kind == apperrors.KindTimeout && isTyped {
			return err
		}
		return apperrors.NewTimeoutError(op, err)
	}
	return err
}

func (o *Orchestrator) notify(ctx context.Context, op string, success bool, ref string, failure *apperrors.StandardError) {
	if o.deps.Notifier == nil {
		return
	}
	n := aws.Notification{Operation: op, Success: success, Ref: ref}
	if failure != nil {
		n.Body = failure.Error()
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.deps.Notifier.Notify(nctx, n); err != nil {
		o.logger.Warn("notification failed", map[string]interface{}{
			"operation": op,
			"error":     err.Error(),
		})
	}
}

func (o *Orchestrator) put(ctx context.Context, kind store.Kind, value interface{}) (string, error) {
	if o.deps.Store == nil {
		return "", nil
	}
	return o.deps.Store.Put(ctx, kind, value)
}

func (o *Orchestrator) get(ctx context.Context, kind store.Kind, ref string, dst interface{}) error {
	if o.deps.Store == nil {
		return apperrors.NewReferenceNotFoundError(string(kind), ref)
	}
	return o.deps.Store.Get(ctx, kind, ref, dst)
}

// yield is the suspension point between pipeline stages.
func yield(ctx context.Context) error {
	runtime.Gosched()
	return ctx.Err()
}
