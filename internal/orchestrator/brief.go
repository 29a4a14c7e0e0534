package orchestrator

import (
	"context"
	"time"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/models"
	"agency-assistant/internal/store"
	processbrief "agency-assistant/internal/workers/brief/process-brief"
)

// BriefRequest names the brief by path, raw PDF bytes or plain text.
type BriefRequest struct {
	Path        string
	Data        []byte
	Content     string
	Schema      string
	OutputDir   string
	AutoDefault *bool
	Timeout     time.Duration
}

func (o *Orchestrator) ProcessBrief(ctx context.Context, req BriefRequest) *models.Envelope[models.BriefResult] {
	return run(o, ctx, OpProcessBrief, req.Timeout, func(ctx context.Context) (*models.BriefResult, string, error) {
		if o.deps.Briefs == nil {
			return nil, "", apperrors.NewInternalError(errNotConfigured("brief processor"))
		}
		result, err := o.deps.Briefs.Execute(ctx, &processbrief.Input{
			Path:        req.Path,
			Data:        req.Data,
			Content:     req.Content,
			SchemaName:  req.Schema,
			OutputDir:   req.OutputDir,
			AutoDefault: req.AutoDefault,
		})
		if err != nil {
			return nil, "", err
		}
		if err := yield(ctx); err != nil {
			return result, "", err
		}
		ref, err := o.put(ctx, store.KindBrief, result)
		return result, ref, err
	})
}
