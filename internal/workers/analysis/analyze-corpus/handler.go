package analyzecorpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/llm"
	"agency-assistant/internal/common/logger"
	"agency-assistant/internal/common/metrics"
	"agency-assistant/internal/common/validation"
	"agency-assistant/internal/common/workerpool"
	"agency-assistant/internal/models"
)

const (
	TaskType    = "analyze-corpus"
	engineRules = "rules"
)

type Handler struct {
	config    *Config
	generator llm.Generator
	pool      *workerpool.Pool
	schemas   *validation.Registry
	logger    logger.Logger
}

// NewHandler builds the engine. generator may be nil, in which case every
// analysis is rule-based.
func NewHandler(config *Config, generator llm.Generator, pool *workerpool.Pool, schemas *validation.Registry, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	if pool == nil {
		pool = workerpool.New(0)
	}
	return &Handler{
		config:    config,
		generator: generator,
		pool:      pool,
		schemas:   schemas,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*models.AnalysisResult, error) {
	if input == nil {
		return nil, apperrors.NewInvalidRequestError("input cannot be nil")
	}
	kind := input.Type
	if kind == "" {
		kind = models.AnalysisComprehensive
	}
	texts := nonEmpty(input.Texts)
	if len(texts) == 0 {
		return nil, apperrors.NewEmptyDocumentError("corpus has no text to analyse")
	}
	if err := yield(ctx); err != nil {
		return nil, err
	}

	var (
		result *models.AnalysisResult
		err    error
	)
	switch kind {
	case models.AnalysisSentiment:
		result, err = h.corpusSentiment(ctx, texts)
		if err == nil {
			result.Insights = GenerateInsights(InsightInput{Sentiment: result.OverallSentiment, Confidence: result.Confidence, Competitors: input.Competitors})
		}
	case models.AnalysisTrends:
		result = h.AnalyzeTrends(texts)
		result.Insights = GenerateInsights(InsightInput{Trends: result.Trends, Competitors: input.Competitors})
	case models.AnalysisContent:
		result = h.AnalyzeContent(strings.Join(texts, "\n\n"))
		result.Metrics.ItemsAnalyzed = len(texts)
		result.Insights = GenerateInsights(InsightInput{Sentiment: result.OverallSentiment, Confidence: result.Confidence, Competitors: input.Competitors})
	case models.AnalysisComprehensive:
		result, err = h.Comprehensive(ctx, texts, input.Competitors)
	default:
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("unknown analysis type %q", input.Type))
	}
	if err != nil {
		return nil, err
	}

	if h.llmEnabled() && (kind == models.AnalysisSentiment || kind == models.AnalysisComprehensive) {
		if result, err = h.withLLM(ctx, kind, texts, input.Competitors, result); err != nil {
			return nil, err
		}
	}

	h.logger.Info("analysis complete", map[string]interface{}{
		"type":      kind,
		"items":     len(texts),
		"sentiment": result.OverallSentiment,
		"trends":    len(result.Trends),
		"engine":    result.Engine,
	})
	return result, nil
}

// AnalyzeSentiment scores one text against the polarity lexicon.
func (h *Handler) AnalyzeSentiment(text string) *models.AnalysisResult {
	p := countPolarity(text)
	return sentimentResult(p, []polarity{p}, []string{text})
}

// AnalyzeTrends ranks keywords across texts.
func (h *Handler) AnalyzeTrends(texts []string) *models.AnalysisResult {
	trends, unique := rankTrends(texts, h.config.TopTrends, h.config.MinTokenLength, h.config.TrendingRatio)
	return &models.AnalysisResult{
		Type:             models.AnalysisTrends,
		OverallSentiment: models.SentimentNeutral,
		Trends:           trends,
		Insights:         []models.Insight{},
		Metrics: models.AnalysisMetrics{
			ItemsAnalyzed:  len(texts),
			AvgTextLength:  avgLength(texts),
			UniqueKeywords: unique,
		},
		Engine: engineRules,
	}
}

// AnalyzeContent is sentiment plus word, sentence and theme counts.
func (h *Handler) AnalyzeContent(text string) *models.AnalysisResult {
	result := h.AnalyzeSentiment(text)
	result.Type = models.AnalysisContent
	result.Metrics.WordCount = len(tokenize(text))
	result.Metrics.SentenceCount = countSentences(text)
	result.Themes = scoreThemes([]string{text})
	return result
}

// Comprehensive runs every rule-based analysis over the corpus.
func (h *Handler) Comprehensive(ctx context.Context, texts []string, competitors []string) (*models.AnalysisResult, error) {
	result, err := h.corpusSentiment(ctx, texts)
	if err != nil {
		return nil, err
	}
	if err := yield(ctx); err != nil {
		return nil, err
	}

	trends := h.AnalyzeTrends(texts)
	result.Type = models.AnalysisComprehensive
	result.Trends = trends.Trends
	result.Metrics.UniqueKeywords = trends.Metrics.UniqueKeywords
	result.Themes = scoreThemes(texts)
	for _, t := range texts {
		result.Metrics.WordCount += len(tokenize(t))
		result.Metrics.SentenceCount += countSentences(t)
	}
	result.Insights = GenerateInsights(InsightInput{
		Sentiment:   result.OverallSentiment,
		Confidence:  result.Confidence,
		Trends:      result.Trends,
		Competitors: competitors,
	})
	return result, nil
}

// corpusSentiment scores each text, on the worker pool for large corpora,
// and aggregates lexicon hits over the whole corpus.
func (h *Handler) corpusSentiment(ctx context.Context, texts []string) (*models.AnalysisResult, error) {
	var (
		per []polarity
		err error
	)
	if h.config.ParallelThreshold > 0 && len(texts) >= h.config.ParallelThreshold {
		per, err = workerpool.Map(ctx, h.pool, "sentiment", texts, func(t string) (polarity, error) {
			return countPolarity(t), nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		per = make([]polarity, len(texts))
		for i, t := range texts {
			per[i] = countPolarity(t)
		}
	}

	var total polarity
	for _, p := range per {
		total = total.add(p)
	}
	return sentimentResult(total, per, texts), nil
}

func sentimentResult(total polarity, per []polarity, texts []string) *models.AnalysisResult {
	score := round4(total.score())
	overall, confidence := label(score)
	m := models.AnalysisMetrics{
		ItemsAnalyzed: len(texts),
		AvgTextLength: avgLength(texts),
		PositiveTerms: total.positive,
		NegativeTerms: total.negative,
	}
	for _, p := range per {
		switch l, _ := label(p.score()); l {
		case models.SentimentPositive:
			m.PositiveItems++
		case models.SentimentNegative:
			m.NegativeItems++
		default:
			m.NeutralItems++
		}
	}
	return &models.AnalysisResult{
		Type:             models.AnalysisSentiment,
		OverallSentiment: overall,
		Confidence:       confidence,
		Score:            score,
		Trends:           []models.Trend{},
		Insights:         []models.Insight{},
		Metrics:          m,
		Engine:           engineRules,
	}
}

func (h *Handler) llmEnabled() bool {
	return h.config.UseLLM && h.generator != nil
}

const llmSystemPrompt = `You are a marketing analyst. Read the corpus and answer with one JSON object:
{"overall_sentiment": "positive|negative|neutral", "confidence": 0..1, "score": -1..1,
 "insights": [{"type": "opportunity|risk|trend|competition", "text": "...", "confidence": 0..1, "action": "..."}]}
Answer with JSON only.`

// withLLM asks the generator for sentiment and insights and merges them
// into the rule-based result. Any failure returns the rule-based result.
func (h *Handler) withLLM(ctx context.Context, op string, texts, competitors []string, base *models.AnalysisResult) (*models.AnalysisResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, h.config.LLMTimeout)
	defer cancel()

	reply, err := h.generator.Generate(callCtx, llm.Request{System: llmSystemPrompt, Prompt: buildPrompt(texts, competitors, base)})
	if err != nil {
		if ctxErr := yield(ctx); ctxErr != nil {
			return nil, ctxErr
		}
		return h.fallback(op, string(apperrors.KindOf(err)), err, base), nil
	}

	var ans llmAnswer
	if err := decodeAnswer(reply, &ans); err != nil {
		return h.fallback(op, "invalid_json", err, base), nil
	}

	merged := *base
	merged.OverallSentiment = strings.ToLower(strings.TrimSpace(ans.OverallSentiment))
	merged.Confidence = ans.Confidence
	merged.Score = round4(ans.Score)
	if len(ans.Insights) > 0 {
		merged.Insights = make([]models.Insight, 0, len(ans.Insights))
		for _, in := range ans.Insights {
			merged.Insights = append(merged.Insights, models.Insight(in))
		}
	}
	merged.Engine = "llm:" + h.generator.Name()

	if err := h.checkResult(&merged); err != nil {
		return h.fallback(op, "schema", err, base), nil
	}
	return &merged, nil
}

func decodeAnswer(reply string, ans *llmAnswer) error {
	return json.Unmarshal([]byte(llm.ExtractJSON(reply)), ans)
}

func (h *Handler) fallback(op, reason string, err error, base *models.AnalysisResult) *models.AnalysisResult {
	metrics.LLMFallbacks.WithLabelValues(op, reason).Inc()
	h.logger.Warn("llm analysis failed, using rules", map[string]interface{}{
		"operation": op,
		"reason":    reason,
		"error":     err.Error(),
	})
	return base
}

// checkResult validates against the registered result schema, or the
// built-in bounds when the schema is not loaded.
func (h *Handler) checkResult(r *models.AnalysisResult) error {
	if h.schemas != nil {
		err := h.schemas.ValidateDocument(h.config.ResultSchema, r)
		if apperrors.KindOf(err) != apperrors.KindNotFound {
			return err
		}
	}
	switch r.OverallSentiment {
	case models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral:
	default:
		return fmt.Errorf("overall_sentiment %q", r.OverallSentiment)
	}
	if r.Confidence < 0 || r.Confidence > 1 || math.IsNaN(r.Confidence) {
		return fmt.Errorf("confidence %v out of range", r.Confidence)
	}
	if r.Score < -1 || r.Score > 1 {
		return fmt.Errorf("score %v out of range", r.Score)
	}
	for _, in := range r.Insights {
		if strings.TrimSpace(in.Text) == "" {
			return errors.New("insight without text")
		}
	}
	return nil
}

func buildPrompt(texts, competitors []string, base *models.AnalysisResult) string {
	var b strings.Builder
	if len(competitors) > 0 {
		fmt.Fprintf(&b, "Competitors: %s\n", strings.Join(competitors, ", "))
	}
	if kw := base.TrendingKeywords(); len(kw) > 0 {
		fmt.Fprintf(&b, "Trending keywords: %s\n", strings.Join(kw, ", "))
	}
	b.WriteString("Corpus:\n")
	for i, t := range texts {
		if i == 40 {
			fmt.Fprintf(&b, "(%d more texts omitted)\n", len(texts)-i)
			break
		}
		if r := []rune(t); len(r) > 400 {
			t = string(r[:400])
		}
		fmt.Fprintf(&b, "- %s\n", strings.ReplaceAll(t, "\n", " "))
	}
	return b.String()
}

func nonEmpty(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}

func avgLength(texts []string) float64 {
	if len(texts) == 0 {
		return 0
	}
	total := 0
	for _, t := range texts {
		total += utf8.RuneCountInString(t)
	}
	return math.Round(float64(total)/float64(len(texts))*100) / 100
}

func yield(ctx context.Context) error {
	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return apperrors.NewTimeoutError(TaskType, ctx.Err())
		}
		return apperrors.NewCancelledError(TaskType)
	default:
		return nil
	}
}
