package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/models"
	"agency-assistant/internal/orchestrator"
)

type operations interface {
	ProcessBrief(ctx context.Context, req orchestrator.BriefRequest) *models.Envelope[models.BriefResult]
	RunVeille(ctx context.Context, req orchestrator.VeilleRequest) *models.Envelope[models.VeilleReport]
	RunAnalyse(ctx context.Context, req orchestrator.AnalyseRequest) *models.Envelope[models.AnalysisResult]
	GenerateDeliverable(ctx context.Context, req orchestrator.DeliverableRequest) *models.Envelope[models.Deck]
}

type runner struct {
	ctx       context.Context
	orch      operations
	opts      options
	outputDir string
}

func (r *runner) context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

func (r *runner) brief() (interface{}, *apperrors.StandardError) {
	env := r.orch.ProcessBrief(r.context(), orchestrator.BriefRequest{
		Path:      r.opts.brief,
		OutputDir: r.outputDir,
		Timeout:   r.opts.timeout,
	})
	if !env.Success {
		return nil, env.Error
	}
	return env.Value, nil
}

// veille saves the report to the given path, or to veille_report.json in
// the output directory when none was given.
func (r *runner) veille() (interface{}, *apperrors.StandardError) {
	out := r.opts.veille
	if out == veilleDefault {
		out = filepath.Join(r.dir(), "veille_report.json")
	}
	env := r.orch.RunVeille(r.context(), orchestrator.VeilleRequest{
		SourcesFile: r.opts.sources,
		OutputPath:  out,
		Timeout:     r.opts.timeout,
	})
	if !env.Success {
		return nil, env.Error
	}
	return env.Value, nil
}

func (r *runner) analyse() (interface{}, *apperrors.StandardError) {
	env := r.orch.RunAnalyse(r.context(), orchestrator.AnalyseRequest{
		CorpusPath:  r.opts.analyse,
		Type:        r.opts.kind,
		Competitors: r.opts.competitors,
		Timeout:     r.opts.timeout,
	})
	if !env.Success {
		return nil, env.Error
	}
	if r.outputDir != "" {
		if err := orchestrator.SaveJSON(filepath.Join(r.outputDir, "analysis.json"), env.Value); err != nil {
			return nil, apperrors.Normalize(err)
		}
	}
	return env.Value, nil
}

// report builds the deck from a PDF brief or a saved brief JSON, analysing
// --corpus first when given.
func (r *runner) report() (interface{}, *apperrors.StandardError) {
	brief, failure := r.loadBrief(r.opts.report)
	if failure != nil {
		return nil, failure
	}

	req := orchestrator.DeliverableRequest{Brief: brief, Timeout: r.opts.timeout}
	if r.opts.corpus != "" {
		env := r.orch.RunAnalyse(r.context(), orchestrator.AnalyseRequest{
			CorpusPath:  r.opts.corpus,
			Type:        r.opts.kind,
			Competitors: r.opts.competitors,
			Timeout:     r.opts.timeout,
		})
		if !env.Success {
			return nil, env.Error
		}
		req.Analysis = env.Value
	}
	if r.outputDir != "" {
		req.OutputPath = filepath.Join(r.outputDir, "deck.json")
	}

	env := r.orch.GenerateDeliverable(r.context(), req)
	if !env.Success {
		return nil, env.Error
	}
	return env.Value, nil
}

func (r *runner) loadBrief(path string) (*models.Brief, *apperrors.StandardError) {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		env := r.orch.ProcessBrief(r.context(), orchestrator.BriefRequest{Path: path, Timeout: r.opts.timeout})
		if !env.Success {
			return nil, env.Error
		}
		return &env.Value.Brief, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(path)
		}
		return nil, apperrors.NewInternalError(err)
	}
	var result models.BriefResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, apperrors.NewInvalidFormatError("brief JSON", err)
	}
	if result.Brief.Title != "" {
		return &result.Brief, nil
	}
	var brief models.Brief
	if err := json.Unmarshal(data, &brief); err != nil {
		return nil, apperrors.NewInvalidFormatError("brief JSON", err)
	}
	return &brief, nil
}

func (r *runner) dir() string {
	if r.outputDir == "" {
		return "."
	}
	return r.outputDir
}
