package processbrief

type Config struct {
	SchemaName       string
	OutputSchemaName string
	AutoDefault      bool
	// MaxErrorPaths bounds the paths quoted in a validation failure message.
	MaxErrorPaths int
}

func LoadConfig() *Config {
	return &Config{
		SchemaName:       "brief",
		OutputSchemaName: "brief_output",
		MaxErrorPaths:    5,
	}
}
