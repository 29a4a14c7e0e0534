package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"agency-assistant/internal/common/cache"
	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/metrics"
	"agency-assistant/internal/models"
	"agency-assistant/internal/store"
	analyzecorpus "agency-assistant/internal/workers/analysis/analyze-corpus"
)

// AnalyseRequest names the corpus by stored report reference, by file path
// or inline texts, in that order of precedence.
type AnalyseRequest struct {
	CorpusRef   string
	CorpusPath  string
	Texts       []string
	Type        string
	Competitors []string
	Timeout     time.Duration
}

func (o *Orchestrator) RunAnalyse(ctx context.Context, req AnalyseRequest) *models.Envelope[models.AnalysisResult] {
	return run(o, ctx, OpRunAnalyse, req.Timeout, func(ctx context.Context) (*models.AnalysisResult, string, error) {
		if o.deps.Analyzer == nil {
			return nil, "", apperrors.NewInternalError(errNotConfigured("analyzer"))
		}
		report, err := o.corpus(ctx, req)
		if err != nil {
			return nil, "", err
		}
		if err := yield(ctx); err != nil {
			return nil, "", err
		}

		analysisType := req.Type
		if analysisType == "" {
			analysisType = models.AnalysisComprehensive
		}
		input := &analyzecorpus.Input{
			Texts:       report.Texts(),
			Type:        analysisType,
			Competitors: req.Competitors,
		}
		compute := func(ctx context.Context) (interface{}, error) {
			return o.deps.Analyzer.Execute(ctx, input)
		}

		var result *models.AnalysisResult
		if o.deps.Cache == nil {
			result, err = o.deps.Analyzer.Execute(ctx, input)
		} else {
			result = &models.AnalysisResult{}
			key := AnalysisKey(report, analysisType, req.Competitors)
			var hit bool
			hit, err = cache.GetOrCompute(ctx, o.deps.Cache, key, o.deps.CacheTTL, result, compute)
			var werr *cache.WriteError
			if errors.As(err, &werr) {
				metrics.CacheWriteError()
				o.logger.Warn("analysis cache write failed", map[string]interface{}{
					"key":   key,
					"error": werr.Err.Error(),
				})
				err = nil
			}
			metrics.CacheHit(hit)
		}
		if err != nil {
			return nil, "", err
		}

		ref, err := o.put(ctx, store.KindAnalysis, result)
		return result, ref, err
	})
}

func (o *Orchestrator) corpus(ctx context.Context, req AnalyseRequest) (*models.VeilleReport, error) {
	switch {
	case req.CorpusRef != "":
		var report models.VeilleReport
		if err := o.get(ctx, store.KindReport, req.CorpusRef, &report); err != nil {
			return nil, err
		}
		return &report, nil
	case req.CorpusPath != "":
		return LoadCorpus(req.CorpusPath)
	case len(req.Texts) > 0:
		return textReport("inline", req.Texts), nil
	}
	return nil, apperrors.NewInvalidRequestError("corpus_ref, corpus_path or texts is required")
}

// AnalysisKey identifies an analysis by the fingerprint of the report items
// and the hash of the parameters, so a changed report misses the cache.
func AnalysisKey(report *models.VeilleReport, analysisType string, competitors []string) string {
	items, _ := json.Marshal(report.Items)
	params, _ := json.Marshal(struct {
		Type        string   `json:"type"`
		Competitors []string `json:"competitors"`
	}{analysisType, competitors})
	return "analysis:" + digest(items) + ":" + digest(params)
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:16])
}
