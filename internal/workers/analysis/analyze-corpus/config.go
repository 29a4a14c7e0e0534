package analyzecorpus

import "time"

type Config struct {
	TopTrends         int
	TrendingRatio     float64
	MinTokenLength    int
	ParallelThreshold int
	UseLLM            bool
	LLMTimeout        time.Duration
	ResultSchema      string
}

func LoadConfig() *Config {
	return &Config{
		TopTrends:         20,
		TrendingRatio:     0.10,
		MinTokenLength:    4,
		ParallelThreshold: 64,
		LLMTimeout:        20 * time.Second,
		ResultSchema:      "analysis_result",
	}
}
