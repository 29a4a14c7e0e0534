package extractpdf

import "time"

type Config struct {
	Timeout      time.Duration
	MaxFileBytes int64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		MaxFileBytes: 50 << 20,
	}
}
