package collectsources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/logger"
	"agency-assistant/internal/common/metrics"
	"agency-assistant/internal/common/resilience"
	"agency-assistant/internal/common/validation"
	"agency-assistant/internal/models"
	"agency-assistant/internal/workers/veille/sources"
)

const TaskType = "collect-sources"

const (
	reasonTimeout   = string(apperrors.KindTimeout)
	reasonCancelled = string(apperrors.KindCancelled)
)

type Handler struct {
	config   *Config
	registry *sources.Registry
	limiter  resilience.Limiter
	schemas  *validation.Registry
	logger   logger.Logger
	now      func() time.Time
}

// NewHandler wires the collector. limiter gates adapters with a shared
// endpoint; schemas, when set, checks every item against ItemSchema.
func NewHandler(config *Config, registry *sources.Registry, limiter resilience.Limiter, schemas *validation.Registry, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	if registry == nil {
		registry = sources.NewRegistry()
	}
	return &Handler{
		config:   config,
		registry: registry,
		limiter:  limiter,
		schemas:  schemas,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:      time.Now,
	}
}

// Execute runs one task per source under the concurrency cap and merges
// the results in declaration order.
//
// A source failure is recorded in SourcesFailed. A required source failing
// cancels the remaining tasks and returns required_source_failed. When the
// overall deadline passes, unfinished sources are recorded as timeout and
// the report is still a success. When ctx ends, unfinished sources are
// recorded as cancelled (or timeout) and the partial report is returned
// together with the error.
func (h *Handler) Execute(ctx context.Context, input *Input) (*models.VeilleReport, error) {
	if input == nil {
		return nil, apperrors.NewInvalidRequestError("input cannot be nil")
	}
	descs := input.Sources
	if err := checkSources(descs); err != nil {
		return nil, err
	}

	maxItems := h.config.MaxItemsPerSource
	if input.Limits.MaxItemsPerSource > 0 {
		maxItems = input.Limits.MaxItemsPerSource
	}
	deadline := h.config.OverallDeadline
	if input.Limits.OverallDeadline > 0 {
		deadline = input.Limits.OverallDeadline
	}

	report := &models.VeilleReport{
		ID:               uuid.NewString(),
		Items:            []models.VeilleItem{},
		SourcesSucceeded: []string{},
		SourcesFailed:    []models.SourceFailure{},
		StartedAt:        h.now().UTC(),
	}
	log := h.logger.With(map[string]interface{}{"reportId": report.ID, "sources": len(descs)})

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var expired <-chan time.Time
	if deadline > 0 {
		timer := time.NewTimer(deadline)
		defer timer.Stop()
		expired = timer.C
	}

	concurrency := h.config.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	sem := semaphore.NewWeighted(int64(concurrency))
	done := make(chan outcome, len(descs))
	for i, d := range descs {
		go h.run(runCtx, sem, i, d, maxItems, done)
	}

	results := make([]*outcome, len(descs))
	pending := len(descs)
	var requiredErr, callerErr error
	stopReason := ""

	for pending > 0 && stopReason == "" {
		select {
		case o := <-done:
			pending--
			results[o.index] = &o
			if o.err != nil && descs[o.index].Required {
				requiredErr = apperrors.NewRequiredSourceFailedError(descs[o.index].Name(), o.err)
				stopReason = reasonCancelled
			}
		case <-expired:
			stopReason = reasonTimeout
		case <-ctx.Done():
			callerErr = ctx.Err()
			stopReason = reasonCancelled
			if errors.Is(callerErr, context.DeadlineExceeded) {
				stopReason = reasonTimeout
			}
		}
	}

	if pending > 0 {
		cancelRun()
		h.drain(done, results, &pending, stopReason, descs)
		log.Warn("collection stopped early", map[string]interface{}{
			"reason":     stopReason,
			"unfinished": pending,
		})
	}
	for i := range results {
		if results[i] == nil {
			results[i] = &outcome{index: i, err: stopError(stopReason, descs[i].Name())}
		}
	}

	h.merge(report, descs, results, log)
	report.FinishedAt = h.now().UTC()

	log.Info("collection finished", map[string]interface{}{
		"items":      len(report.Items),
		"succeeded":  len(report.SourcesSucceeded),
		"failed":     len(report.SourcesFailed),
		"durationMs": report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	})

	switch {
	case callerErr != nil && errors.Is(callerErr, context.DeadlineExceeded):
		return report, apperrors.NewTimeoutError(TaskType, callerErr)
	case callerErr != nil:
		return report, apperrors.NewCancelledError(TaskType)
	case requiredErr != nil:
		return report, requiredErr
	}
	for i, d := range descs {
		if d.Required && results[i].err != nil {
			return report, apperrors.NewRequiredSourceFailedError(d.Name(), results[i].err)
		}
	}
	return report, nil
}

// drain waits up to DrainGrace for cancelled tasks. Errors seen here are
// consequences of the stop and are reported with its reason.
func (h *Handler) drain(done <-chan outcome, results []*outcome, pending *int, reason string, descs []models.SourceDescriptor) {
	grace := time.NewTimer(h.config.DrainGrace)
	defer grace.Stop()
	for *pending > 0 {
		select {
		case o := <-done:
			*pending--
			if o.err != nil {
				o.err = stopError(reason, descs[o.index].Name())
			}
			results[o.index] = &o
		case <-grace.C:
			return
		}
	}
}

func (h *Handler) run(ctx context.Context, sem *semaphore.Weighted, i int, desc models.SourceDescriptor, maxItems int, done chan<- outcome) {
	o := outcome{index: i}
	defer func() {
		if r := recover(); r != nil {
			o.items = nil
			o.err = apperrors.NewInternalError(fmt.Errorf("source %s panicked: %v", desc.Name(), r))
		}
		done <- o
	}()

	if err := sem.Acquire(ctx, 1); err != nil {
		o.err = err
		return
	}
	defer sem.Release(1)

	o.items, o.err = h.fetch(ctx, desc, maxItems)
}

func (h *Handler) fetch(ctx context.Context, desc models.SourceDescriptor, maxItems int) ([]models.VeilleItem, error) {
	adapter, err := h.registry.Get(desc.Kind)
	if err != nil {
		return nil, err
	}

	timeout := h.config.SourceTimeout
	if desc.TimeoutMS > 0 {
		timeout = time.Duration(desc.TimeoutMS) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if endpoint := adapter.Endpoint(desc); endpoint != "" && h.limiter != nil {
		if err := h.limiter.Wait(ctx, endpoint); err != nil {
			return nil, err
		}
	}

	limit := desc.Limit
	if maxItems > 0 && (limit <= 0 || limit > maxItems) {
		limit = maxItems
	}
	items, err := adapter.Fetch(ctx, desc, limit)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// merge builds the report in declaration order, dropping invalid and
// duplicate items.
func (h *Handler) merge(report *models.VeilleReport, descs []models.SourceDescriptor, results []*outcome, log logger.Logger) {
	seen := newDedupe()
	for i, d := range descs {
		name := d.Name()
		o := results[i]
		if o.err != nil {
			reason := string(apperrors.KindOf(o.err))
			report.SourcesFailed = append(report.SourcesFailed, models.SourceFailure{
				Source:  name,
				Reason:  reason,
				Message: o.err.Error(),
			})
			metrics.SourceOutcome(string(d.Kind), reason)
			log.Warn("source failed", map[string]interface{}{
				"source":   name,
				"kind":     string(d.Kind),
				"reason":   reason,
				"required": d.Required,
				"error":    o.err.Error(),
			})
			continue
		}

		report.SourcesSucceeded = append(report.SourcesSucceeded, name)
		metrics.SourceOutcome(string(d.Kind), "ok")
		kept := 0
		for _, item := range o.items {
			item.Source = name
			item.Metadata = models.NormalizeMetadata(item.Metadata)
			if !h.admit(&item, log) || seen.duplicate(&item) {
				continue
			}
			report.Items = append(report.Items, item)
			kept++
		}
		metrics.ItemsCollected.WithLabelValues(string(d.Kind)).Add(float64(kept))
	}
}

func (h *Handler) admit(item *models.VeilleItem, log logger.Logger) bool {
	if !item.Valid() {
		log.Warn("dropping item without text", map[string]interface{}{"source": item.Source, "url": item.URL})
		return false
	}
	if h.schemas == nil {
		return true
	}
	if err := h.schemas.ValidateDocument(h.config.ItemSchema, item); err != nil {
		log.Warn("dropping item failing schema", map[string]interface{}{
			"source": item.Source,
			"url":    item.URL,
			"error":  err.Error(),
		})
		return false
	}
	return true
}

func checkSources(descs []models.SourceDescriptor) error {
	seen := make(map[string]bool, len(descs))
	for i, d := range descs {
		name := d.Name()
		if name == "" {
			return apperrors.NewInvalidRequestError(fmt.Sprintf("source %d has neither id nor target", i))
		}
		if d.Target == "" {
			return apperrors.NewInvalidRequestError(fmt.Sprintf("source %q has no target", name))
		}
		if seen[name] {
			return apperrors.NewInvalidRequestError(fmt.Sprintf("duplicate source %q", name))
		}
		seen[name] = true
	}
	return nil
}

func stopError(reason, source string) error {
	if reason == reasonTimeout {
		return apperrors.NewTimeoutError("source "+source, context.DeadlineExceeded)
	}
	return apperrors.NewCancelledError("source " + source)
}
