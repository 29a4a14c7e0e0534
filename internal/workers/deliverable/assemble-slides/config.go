package assembleslides

type Config struct {
	Tagline       string
	DefaultBudget float64
	Currency      string
	// DefaultPhases are the phase durations in months when the brief
	// timeline carries no month count.
	DefaultPhases [3]int
	DefaultSector string
}

func LoadConfig() *Config {
	return &Config{
		Tagline:       "Ideas that move brands",
		DefaultBudget: 100000,
		Currency:      "EUR",
		DefaultPhases: [3]int{1, 2, 1},
		DefaultSector: sectorDefault,
	}
}
