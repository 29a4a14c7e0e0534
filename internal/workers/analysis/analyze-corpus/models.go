package analyzecorpus

// Input is one analysis request over a corpus of texts.
type Input struct {
	Texts       []string
	Type        string
	Competitors []string
}

type llmAnswer struct {
	OverallSentiment string    `json:"overall_sentiment"`
	Confidence       float64   `json:"confidence"`
	Score            float64   `json:"score"`
	Insights         []insight `json:"insights"`
}

type insight struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Action     string  `json:"action"`
}
