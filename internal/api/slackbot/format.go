package slackbot

import (
	"fmt"
	"strings"

	"agency-assistant/internal/models"
)

func formatBrief(env *models.Envelope[models.BriefResult]) string {
	b := env.Value.Brief
	var sb strings.Builder
	fmt.Fprintf(&sb, ":page_facing_up: Brief *%s* processed (ref `%s`)\n", b.Title, env.Ref)
	fmt.Fprintf(&sb, "Problem: %s\n", b.Problem)
	fmt.Fprintf(&sb, "Objectives: %s\n", strings.Join(b.Objectives, "; "))
	fmt.Fprintf(&sb, "KPIs: %s", strings.Join(b.KPIs, "; "))
	if d := env.Value.Metadata.AutoDefaultedSections; len(d) > 0 {
		fmt.Fprintf(&sb, "\n_Defaulted: %s_", strings.Join(d, ", "))
	}
	return sb.String()
}

func formatVeille(env *models.Envelope[models.VeilleReport]) string {
	r := env.Value
	text := fmt.Sprintf(":satellite: Veille finished: %d items from %d sources (ref `%s`)",
		len(r.Items), len(r.SourcesSucceeded), env.Ref)
	if len(r.SourcesFailed) > 0 {
		failed := make([]string, len(r.SourcesFailed))
		for i, f := range r.SourcesFailed {
			failed[i] = fmt.Sprintf("%s (%s)", f.Source, f.Reason)
		}
		text += "\nFailed: " + strings.Join(failed, ", ")
	}
	return text
}

func formatAnalysis(env *models.Envelope[models.AnalysisResult]) string {
	a := env.Value
	text := fmt.Sprintf(":bar_chart: %s analysis ready (ref `%s`)\nSentiment: %s (score %.2f, confidence %.2f)",
		a.Type, env.Ref, a.OverallSentiment, a.Score, a.Confidence)
	if trending := a.TrendingKeywords(); len(trending) > 0 {
		if len(trending) > 5 {
			trending = trending[:5]
		}
		text += "\nTrending: " + strings.Join(trending, ", ")
	}
	return text
}

func formatDeck(env *models.Envelope[models.Deck]) string {
	return fmt.Sprintf(":clapper: Deck *%s* ready: %d slides (ref `%s`)", env.Value.Title, len(env.Value.Slides), env.Ref)
}
