package collectsources

import "time"

type Config struct {
	Concurrency       int
	SourceTimeout     time.Duration
	MaxItemsPerSource int
	OverallDeadline   time.Duration
	DrainGrace        time.Duration
	ItemSchema        string
}

func LoadConfig() *Config {
	return &Config{
		Concurrency:       8,
		SourceTimeout:     10 * time.Second,
		MaxItemsPerSource: 50,
		DrainGrace:        time.Second,
		ItemSchema:        "veille_item",
	}
}
