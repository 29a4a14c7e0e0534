package extractsections

type Config struct {
	// TitleMaxLength bounds the first-line title fallback.
	TitleMaxLength int
	Placeholders   map[string]string
}

func LoadConfig() *Config {
	return &Config{
		TitleMaxLength: 120,
		Placeholders: map[string]string{
			"title":      "Title not specified",
			"problem":    "Problem not specified",
			"objectives": "Objectives not specified",
			"kpis":       "KPIs not specified",
		},
	}
}
