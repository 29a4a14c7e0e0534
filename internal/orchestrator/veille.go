package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"agency-assistant/internal/common/config"
	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/models"
	"agency-assistant/internal/store"
	collectsources "agency-assistant/internal/workers/veille/collect-sources"
)

// VeilleRequest selects sources inline, from a sources file, or falls back
// to the configured defaults. OutputPath, when set, receives the report as
// JSON or CSV by extension.
type VeilleRequest struct {
	Sources           []models.SourceDescriptor
	SourcesFile       string
	Deadline          time.Duration
	MaxItemsPerSource int
	OutputPath        string
	Timeout           time.Duration
}

func (o *Orchestrator) RunVeille(ctx context.Context, req VeilleRequest) *models.Envelope[models.VeilleReport] {
	return run(o, ctx, OpRunVeille, req.Timeout, func(ctx context.Context) (*models.VeilleReport, string, error) {
		if o.deps.Collector == nil {
			return nil, "", apperrors.NewInternalError(errNotConfigured("collector"))
		}
		descs, err := o.sources(req)
		if err != nil {
			return nil, "", err
		}

		report, err := o.deps.Collector.Execute(ctx, &collectsources.Input{
			Sources: descs,
			Limits: collectsources.Limits{
				MaxItemsPerSource: req.MaxItemsPerSource,
				OverallDeadline:   req.Deadline,
			},
		})
		if err != nil {
			return report, "", err
		}
		if err := yield(ctx); err != nil {
			return report, "", err
		}

		if req.OutputPath != "" {
			if err := SaveReport(req.OutputPath, report); err != nil {
				return report, "", err
			}
		}
		ref, err := o.put(ctx, store.KindReport, report)
		return report, ref, err
	})
}

func (o *Orchestrator) sources(req VeilleRequest) ([]models.SourceDescriptor, error) {
	if len(req.Sources) > 0 {
		return req.Sources, nil
	}
	if req.SourcesFile != "" {
		list, err := config.LoadSources(req.SourcesFile)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError(req.SourcesFile)
		}
		if err != nil {
			return nil, apperrors.NewInvalidRequestError(err.Error())
		}
		return Descriptors(list), nil
	}
	if len(o.deps.Sources) > 0 {
		return o.deps.Sources, nil
	}
	return nil, apperrors.NewInvalidRequestError("no sources given and none configured")
}

// Descriptors converts configured sources to the collector's model.
func Descriptors(list []config.SourceDescriptor) []models.SourceDescriptor {
	out := make([]models.SourceDescriptor, len(list))
	for i, s := range list {
		out[i] = models.SourceDescriptor{
			ID:        s.ID,
			Kind:      models.SourceKind(s.Kind),
			Target:    s.Target,
			Limit:     s.Limit,
			TimeoutMS: s.TimeoutMS,
			Required:  s.Required,
		}
	}
	return out
}

func errNotConfigured(component string) error {
	return fmt.Errorf("%s is not configured", component)
}
