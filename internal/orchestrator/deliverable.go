package orchestrator

import (
	"context"
	"time"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/models"
	"agency-assistant/internal/store"
	assembleslides "agency-assistant/internal/workers/deliverable/assemble-slides"
)

// DeliverableRequest carries the brief and, optionally, the analysis either
// inline or as stored references.
type DeliverableRequest struct {
	BriefRef    string
	Brief       *models.Brief
	AnalysisRef string
	Analysis    *models.AnalysisResult
	Style       models.Style
	Sector      string
	OutputPath  string
	Timeout     time.Duration
}

func (o *Orchestrator) GenerateDeliverable(ctx context.Context, req DeliverableRequest) *models.Envelope[models.Deck] {
	return run(o, ctx, OpGenerateDeliverable, req.Timeout, func(ctx context.Context) (*models.Deck, string, error) {
		if o.deps.Assembler == nil {
			return nil, "", apperrors.NewInternalError(errNotConfigured("slide assembler"))
		}
		brief, err := o.brief(ctx, req)
		if err != nil {
			return nil, "", err
		}
		if missing := brief.Missing(); len(missing) > 0 {
			return nil, "", apperrors.NewIncompleteBriefError(missing)
		}
		if err := yield(ctx); err != nil {
			return nil, "", err
		}

		analysis := req.Analysis
		if analysis == nil && req.AnalysisRef != "" {
			analysis = &models.AnalysisResult{}
			if err := o.get(ctx, store.KindAnalysis, req.AnalysisRef, analysis); err != nil {
				return nil, "", err
			}
		}
		if err := yield(ctx); err != nil {
			return nil, "", err
		}

		deck, err := o.deps.Assembler.Execute(ctx, &assembleslides.Input{
			Brief:    brief,
			Analysis: analysis,
			Style:    req.Style,
			Sector:   req.Sector,
		})
		if err != nil {
			return nil, "", err
		}
		if req.OutputPath != "" {
			if err := SaveJSON(req.OutputPath, deck); err != nil {
				return deck, "", err
			}
		}
		ref, err := o.put(ctx, store.KindDeck, deck)
		return deck, ref, err
	})
}

// brief resolves the request brief. A stored reference holds the full
// BriefResult produced by ProcessBrief.
func (o *Orchestrator) brief(ctx context.Context, req DeliverableRequest) (*models.Brief, error) {
	if req.Brief != nil {
		return req.Brief, nil
	}
	if req.BriefRef == "" {
		return nil, apperrors.NewInvalidRequestError("brief or brief_ref is required")
	}
	var result models.BriefResult
	if err := o.get(ctx, store.KindBrief, req.BriefRef, &result); err != nil {
		return nil, err
	}
	return &result.Brief, nil
}
