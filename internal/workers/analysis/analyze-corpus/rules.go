package analyzecorpus

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"agency-assistant/internal/models"
)

const (
	polarThreshold    = 0.1
	polarConfidence   = 0.8
	neutralConfidence = 0.6
)

// tokenize lowercases text and splits it on non-word characters.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

type polarity struct {
	positive int
	negative int
}

func (p polarity) add(o polarity) polarity {
	return polarity{positive: p.positive + o.positive, negative: p.negative + o.negative}
}

func (p polarity) score() float64 {
	total := p.positive + p.negative
	if total == 0 {
		return 0
	}
	return float64(p.positive-p.negative) / float64(total)
}

// countPolarity counts lexicon hits. A negator flips the next hit.
func countPolarity(text string) polarity {
	var p polarity
	flip := false
	for _, tok := range tokenize(text) {
		if negators[tok] {
			flip = true
			continue
		}
		pos, neg := positiveTerms[tok], negativeTerms[tok]
		if !pos && !neg {
			continue
		}
		if flip {
			pos, neg = neg, pos
			flip = false
		}
		if pos {
			p.positive++
		} else {
			p.negative++
		}
	}
	return p
}

func label(score float64) (string, float64) {
	switch {
	case score > polarThreshold:
		return models.SentimentPositive, polarConfidence
	case score < -polarThreshold:
		return models.SentimentNegative, polarConfidence
	default:
		return models.SentimentNeutral, neutralConfidence
	}
}

// round4 keeps scores stable across platforms in the JSON payload.
func round4(f float64) float64 {
	if f < 0 {
		return -float64(int64(-f*10000+0.5)) / 10000
	}
	return float64(int64(f*10000+0.5)) / 10000
}

// rankTrends counts tokens longer than minLen outside the stop list and
// returns the top n by descending frequency then keyword. A keyword trends
// when its frequency exceeds ratio of the input size in characters.
func rankTrends(texts []string, top, minLen int, ratio float64) ([]models.Trend, int) {
	counts := make(map[string]int)
	size := 0
	for _, text := range texts {
		size += utf8.RuneCountInString(text)
		for _, tok := range tokenize(text) {
			if utf8.RuneCountInString(tok) < minLen || stopWords[tok] {
				continue
			}
			counts[tok]++
		}
	}

	trends := make([]models.Trend, 0, len(counts))
	for k, n := range counts {
		trends = append(trends, models.Trend{Keyword: k, Frequency: n})
	}
	sort.SliceStable(trends, func(i, j int) bool {
		if trends[i].Frequency != trends[j].Frequency {
			return trends[i].Frequency > trends[j].Frequency
		}
		return trends[i].Keyword < trends[j].Keyword
	})
	if top > 0 && len(trends) > top {
		trends = trends[:top]
	}
	threshold := ratio * float64(size)
	for i := range trends {
		trends[i].Trending = float64(trends[i].Frequency) > threshold
	}
	return trends, len(counts)
}

func countSentences(text string) int {
	n := 0
	inSentence := false
	for _, r := range text {
		switch {
		case r == '.' || r == '!' || r == '?':
			if inSentence {
				n++
			}
			inSentence = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			inSentence = true
		}
	}
	if inSentence {
		n++
	}
	return n
}

func scoreThemes(texts []string) []models.Theme {
	scores := make([]int, len(themes))
	for _, text := range texts {
		for _, tok := range tokenize(text) {
			for i, th := range themes {
				if th.terms[tok] {
					scores[i]++
				}
			}
		}
	}
	out := make([]models.Theme, 0, len(themes))
	for i, th := range themes {
		if scores[i] > 0 {
			out = append(out, models.Theme{Name: th.name, Score: scores[i]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// InsightInput is the prior analysis GenerateInsights projects from.
type InsightInput struct {
	Sentiment   string
	Confidence  float64
	Trends      []models.Trend
	Competitors []string
}

// GenerateInsights applies each rule independently; each yields at most
// one insight.
func GenerateInsights(in InsightInput) []models.Insight {
	out := []models.Insight{}
	switch in.Sentiment {
	case models.SentimentPositive:
		out = append(out, models.Insight{
			Type:       models.InsightOpportunity,
			Text:       "Capitalise on positive perception",
			Confidence: in.Confidence,
			Action:     "Amplify customer advocacy and testimonials in campaign messaging",
		})
	case models.SentimentNegative:
		out = append(out, models.Insight{
			Type:       models.InsightRisk,
			Text:       "Address friction points",
			Confidence: in.Confidence,
			Action:     "Identify recurring complaints and answer them before scaling media spend",
		})
	}

	var trending []string
	for _, t := range in.Trends {
		if t.Trending {
			trending = append(trending, t.Keyword)
		}
		if len(trending) == 3 {
			break
		}
	}
	if len(trending) > 0 {
		out = append(out, models.Insight{
			Type:       models.InsightTrend,
			Text:       "Emerging trends: " + strings.Join(trending, ", "),
			Confidence: 0.7,
			Action:     "Test content angles built on these topics",
		})
	}

	if len(in.Competitors) > 0 {
		out = append(out, models.Insight{
			Type:       models.InsightCompetition,
			Text:       "Analyse differentiators against " + strings.Join(in.Competitors, ", "),
			Confidence: 0.6,
			Action:     "Map competitor positioning and claim an unoccupied territory",
		})
	}
	return out
}
