package assembleslides

import (
	"context"
	"fmt"
	"strings"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/logger"
	"agency-assistant/internal/models"
	"agency-assistant/pkg/registry"
)

const TaskType = "assemble-slides"

const ideaCount = 3

// DeckTypes is the fixed slide sequence of every deck.
var DeckTypes = []models.SlideType{
	models.SlideCover,
	models.SlidePriorities,
	models.SlideSommaire,
	models.SlideBrandOverview,
	models.SlideStateOfPlay,
	models.SlideIdeaHeader, models.SlideIdeaExecution, models.SlideIdeaResults,
	models.SlideIdeaHeader, models.SlideIdeaExecution, models.SlideIdeaResults,
	models.SlideIdeaHeader, models.SlideIdeaExecution, models.SlideIdeaResults,
	models.SlideTimeline,
	models.SlideBudget,
}

var sommaire = []string{
	"Context & challenge",
	"Strategic vision",
	"Creative ideas",
	"Deployment & budget",
}

var ideaChannels = [ideaCount][]string{
	{"Social media", "Influencer partnerships", "Short-form video"},
	{"Experiential events", "Pop-up activation", "PR"},
	{"Owned content", "CRM", "Community programme"},
}

type Handler struct {
	config    *Config
	templates *registry.TemplateRegistry
	logger    logger.Logger
}

// NewHandler fails when the template catalogue lacks a slide type of the
// deck sequence.
func NewHandler(config *Config, templates *registry.TemplateRegistry, log logger.Logger) (*Handler, error) {
	if config == nil {
		config = LoadConfig()
	}
	if !knownSector(config.DefaultSector) {
		config.DefaultSector = sectorDefault
	}
	if templates == nil {
		templates = registry.Default()
	}
	types := make([]string, len(DeckTypes))
	for i, t := range DeckTypes {
		types[i] = string(t)
	}
	if err := templates.Require(types...); err != nil {
		return nil, apperrors.NewSchemaNotFoundError(err.Error())
	}
	return &Handler{
		config:    config,
		templates: templates,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

// Execute builds the deck. It is a pure function of its input.
func (h *Handler) Execute(ctx context.Context, input *Input) (*models.Deck, error) {
	if input == nil || input.Brief == nil {
		return nil, apperrors.NewInvalidRequestError("brief is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	brief := input.Brief
	analysis := input.Analysis
	if analysis == nil {
		analysis = &models.AnalysisResult{}
	}
	style := resolveStyle(input.Style)

	text := briefText(brief)
	sector := strings.ToLower(strings.TrimSpace(input.Sector))
	if !knownSector(sector) {
		sector = inferSector(text)
		if sector == sectorDefault {
			sector = h.config.DefaultSector
		}
	}
	priorities, prioritySource := h.priorities(brief, sector)

	deck := &models.Deck{Title: brief.Title, Slides: make([]models.Slide, 0, len(DeckTypes))}
	add := func(t models.SlideType, n int, content map[string]interface{}) {
		deck.Slides = append(deck.Slides, h.slide(t, n, brief.Title, style, content))
	}

	add(models.SlideCover, 0, map[string]interface{}{
		"title":   brief.Title,
		"tagline": h.tagline(),
	})
	add(models.SlidePriorities, 0, map[string]interface{}{
		"sector":     sector,
		"priorities": priorities,
		"source":     prioritySource,
	})
	add(models.SlideSommaire, 0, map[string]interface{}{
		"sections": numbered(sommaire),
	})
	add(models.SlideBrandOverview, 0, brandOverview(brief, analysis, sector, text))
	add(models.SlideStateOfPlay, 0, stateOfPlay(brief, analysis))

	trending := analysis.TrendingKeywords()
	for i := 0; i < ideaCount; i++ {
		n := i + 1
		headline := priorities[i%len(priorities)]
		theme := ""
		if i < len(trending) {
			theme = trending[i]
		}
		add(models.SlideIdeaHeader, n, ideaHeader(n, headline, theme))
		add(models.SlideIdeaExecution, n, ideaExecution(i, headline, theme))
		add(models.SlideIdeaResults, n, ideaResults(i, brief.KPIs))
	}

	add(models.SlideTimeline, 0, h.timeline(brief.Timeline))
	add(models.SlideBudget, 0, h.budget(brief.Budget))

	h.logger.Debug("deck assembled", map[string]interface{}{
		"title":  brief.Title,
		"sector": sector,
		"slides": len(deck.Slides),
	})
	return deck, nil
}

func (h *Handler) slide(t models.SlideType, n int, title string, style models.Style, content map[string]interface{}) models.Slide {
	tpl, _ := h.templates.Lookup(string(t))
	return models.Slide{
		Type:    t,
		Title:   renderTitle(tpl.Title, title, n),
		Content: content,
		Style:   slideStyle(style, t),
		Layout:  tpl.Layout,
	}
}

func renderTitle(pattern, title string, n int) string {
	switch {
	case strings.Contains(pattern, "%s"):
		return fmt.Sprintf(pattern, title)
	case strings.Contains(pattern, "%d"):
		return fmt.Sprintf(pattern, n)
	}
	return pattern
}

func (h *Handler) tagline() string {
	if h.config.Tagline != "" {
		return h.config.Tagline
	}
	return h.templates.Tagline
}

// priorities takes explicit objectives first and pads with the sector
// defaults up to four.
func (h *Handler) priorities(brief *models.Brief, sector string) ([]string, string) {
	defaults := sectorPriorities[sector]
	if len(brief.Objectives) == 0 {
		return append([]string(nil), defaults...), "sector"
	}
	out := make([]string, 0, 4)
	seen := make(map[string]bool)
	for _, candidate := range [][]string{brief.Objectives, defaults} {
		for _, p := range candidate {
			key := strings.ToLower(strings.TrimSpace(p))
			if key == "" || seen[key] || len(out) == 4 {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out, "objectives"
}

func brandOverview(brief *models.Brief, analysis *models.AnalysisResult, sector, text string) map[string]interface{} {
	values := make([]string, 0, 3)
	for _, t := range analysis.Themes {
		if len(values) == 3 {
			break
		}
		values = append(values, humanize(t.Name))
	}
	if len(values) == 0 {
		values = append(values, sectorValues[sector]...)
	}
	positioning := ""
	if len(brief.Objectives) > 0 {
		positioning = brief.Objectives[0]
	}
	return map[string]interface{}{
		"story":       brief.Problem,
		"values":      values,
		"positioning": positioning,
		"audience":    inferAudience(text),
	}
}

func stateOfPlay(brief *models.Brief, analysis *models.AnalysisResult) map[string]interface{} {
	market := []string{}
	competition := []string{}
	opportunities := []string{}
	for _, in := range analysis.Insights {
		switch in.Type {
		case models.InsightOpportunity:
			opportunities = append(opportunities, insightLine(in))
		case models.InsightRisk:
			market = append(market, insightLine(in))
		case models.InsightCompetition:
			competition = append(competition, insightLine(in))
		}
	}
	if analysis.OverallSentiment != "" {
		market = append([]string{fmt.Sprintf("Overall sentiment is %s (score %.2f, confidence %.2f)",
			analysis.OverallSentiment, analysis.Score, analysis.Confidence)}, market...)
	}
	if analysis.Metrics.ItemsAnalyzed > 0 {
		market = append(market, fmt.Sprintf("%d items analysed", analysis.Metrics.ItemsAnalyzed))
	}
	if len(market) == 0 && brief.Problem != "" {
		market = append(market, brief.Problem)
	}
	if len(competition) == 0 {
		competition = append(competition, brief.Constraints...)
	}

	consumer := []string{}
	for _, t := range analysis.Trends {
		if len(consumer) == 5 {
			break
		}
		consumer = append(consumer, t.Keyword)
	}
	if len(opportunities) == 0 {
		for _, k := range analysis.TrendingKeywords() {
			if len(opportunities) == 3 {
				break
			}
			opportunities = append(opportunities, "Own the conversation around "+k)
		}
	}

	return map[string]interface{}{
		"market_insights":       market,
		"competitive_landscape": competition,
		"consumer_trends":       consumer,
		"opportunities":         opportunities,
	}
}

func insightLine(in models.Insight) string {
	if in.Action != "" {
		return in.Text + ": " + in.Action
	}
	return in.Text
}

func ideaHeader(n int, headline, theme string) map[string]interface{} {
	concept := headline
	if theme != "" {
		concept = fmt.Sprintf("%s, built on the rising conversation around %s", headline, theme)
	}
	return map[string]interface{}{
		"number":   n,
		"headline": headline,
		"concept":  concept,
		"theme":    theme,
	}
}

func ideaExecution(i int, headline, theme string) map[string]interface{} {
	steps := []string{
		"Define the creative territory: " + headline,
		"Produce hero and declination assets",
		"Roll out on " + strings.ToLower(ideaChannels[i][0]),
	}
	if theme != "" {
		steps[1] = fmt.Sprintf("Produce hero and declination assets around %s", theme)
	}
	return map[string]interface{}{
		"channels": append([]string(nil), ideaChannels[i]...),
		"steps":    steps,
	}
}

func ideaResults(i int, kpis []string) map[string]interface{} {
	primary := ""
	if len(kpis) > 0 {
		primary = kpis[i%len(kpis)]
	}
	return map[string]interface{}{
		"primary_kpi": primary,
		"kpis":        append([]string{}, kpis...),
	}
}

func (h *Handler) timeline(raw string) map[string]interface{} {
	durations := h.config.DefaultPhases
	total, parsed := parseMonths(raw)
	if parsed {
		durations = splitMonths(total)
	}
	total = durations[0] + durations[1] + durations[2]
	out := make([]map[string]interface{}, len(phases))
	start := 1
	for i, p := range phases {
		out[i] = map[string]interface{}{
			"name":        p.Name,
			"months":      durations[i],
			"start_month": start,
			"activities":  append([]string(nil), p.Activities...),
		}
		start += durations[i]
	}
	return map[string]interface{}{
		"total_months": total,
		"parsed":       parsed,
		"phases":       out,
	}
}

func (h *Handler) budget(raw string) map[string]interface{} {
	total, currency, parsed := parseBudget(raw)
	if !parsed {
		total = h.config.DefaultBudget
	}
	if currency == "" {
		currency = h.config.Currency
	}
	return map[string]interface{}{
		"total":     total,
		"currency":  currency,
		"parsed":    parsed,
		"breakdown": apportion(total),
	}
}

func numbered(titles []string) []map[string]interface{} {
	out := make([]map[string]interface{}, len(titles))
	for i, t := range titles {
		out[i] = map[string]interface{}{"number": i + 1, "title": t}
	}
	return out
}

func briefText(b *models.Brief) string {
	parts := []string{b.Title, b.Problem}
	parts = append(parts, b.Objectives...)
	parts = append(parts, b.Constraints...)
	return strings.Join(parts, "\n")
}

func humanize(name string) string {
	name = strings.ReplaceAll(name, "_", " ")
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
