package models

// Sentiment polarity labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Analysis types accepted by run_analyse.
const (
	AnalysisSentiment     = "sentiment"
	AnalysisTrends        = "trends"
	AnalysisContent       = "content"
	AnalysisComprehensive = "comprehensive"
)

// Insight types.
const (
	InsightOpportunity = "opportunity"
	InsightRisk        = "risk"
	InsightTrend       = "trend"
	InsightCompetition = "competition"
)

type Trend struct {
	Keyword   string `json:"keyword"`
	Frequency int    `json:"frequency"`
	Trending  bool   `json:"trending"`
}

type Insight struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Action     string  `json:"action,omitempty"`
}

type Theme struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// AnalysisMetrics are the numeric summaries attached to an analysis.
type AnalysisMetrics struct {
	ItemsAnalyzed  int     `json:"items_analyzed"`
	AvgTextLength  float64 `json:"avg_text_length"`
	WordCount      int     `json:"word_count,omitempty"`
	SentenceCount  int     `json:"sentence_count,omitempty"`
	PositiveTerms  int     `json:"positive_terms,omitempty"`
	NegativeTerms  int     `json:"negative_terms,omitempty"`
	PositiveItems  int     `json:"positive_items,omitempty"`
	NegativeItems  int     `json:"negative_items,omitempty"`
	NeutralItems   int     `json:"neutral_items,omitempty"`
	UniqueKeywords int     `json:"unique_keywords,omitempty"`
}

// AnalysisResult is the output of the analysis engine.
type AnalysisResult struct {
	Type             string          `json:"type"`
	OverallSentiment string          `json:"overall_sentiment"`
	Confidence       float64         `json:"confidence"`
	Score            float64         `json:"score"`
	Trends           []Trend         `json:"trends"`
	Insights         []Insight       `json:"insights"`
	Themes           []Theme         `json:"themes,omitempty"`
	Metrics          AnalysisMetrics `json:"metrics"`
	Engine           string          `json:"engine,omitempty"`
}

// TrendingKeywords returns keywords flagged as trending, in rank order.
func (a *AnalysisResult) TrendingKeywords() []string {
	var out []string
	for _, t := range a.Trends {
		if t.Trending {
			out = append(out, t.Keyword)
		}
	}
	return out
}
