package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var validSourceKinds = map[string]bool{"rss": true, "web": true, "social": true, "osint": true}

// Load reads configs/config.yaml merged with configs/config.<APP_ENVIRONMENT>.yaml.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")
	bindEnv(v)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(configType(path))
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

// Default returns a configuration built only from defaults and the environment.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)
	return &cfg
}

func bindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if cfg.Veille.SourcesFile != "" && len(cfg.Veille.Sources) == 0 {
		sources, err := LoadSources(cfg.Veille.SourcesFile)
		if err != nil {
			return nil, err
		}
		cfg.Veille.Sources = sources
	}
	for i := range cfg.Veille.Sources {
		cfg.Veille.Sources[i].Target = os.ExpandEnv(cfg.Veille.Sources[i].Target)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills the credentials bag and the ambient knobs from
// the environment. Missing credentials leave the matching adapter disabled.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.LLM.APIKey, "LLM_API_KEY")
	setIfEmpty(&cfg.Integrations.Social.Token, "SOCIAL_API_TOKEN")
	setIfEmpty(&cfg.Slack.BotToken, "SLACK_BOT_TOKEN")
	setIfEmpty(&cfg.Slack.SigningSecret, "SLACK_SIGNING_SECRET")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
	setIfEmpty(&cfg.Database.Elasticsearch.Password, "ELASTICSEARCH_PASSWORD")

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("CACHE_TTL_SECONDS"); val != "" {
		if ttl, err := strconv.Atoi(val); err == nil && ttl > 0 {
			cfg.Cache.TTLSeconds = ttl
		}
	}
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "agency-assistant"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "0.1.0"
	}
	if cfg.App.Tagline == "" {
		cfg.App.Tagline = "Strategy, creativity, impact"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 20 << 20
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = int(cfg.Server.RateLimit) + 1
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 3600
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "agency:"
	}

	if cfg.Schemas.Dir == "" {
		cfg.Schemas.Dir = "./schemas"
	}
	if cfg.Schemas.BriefSchema == "" {
		cfg.Schemas.BriefSchema = "brief"
	}

	if cfg.Pipeline.DefaultBudget == 0 {
		cfg.Pipeline.DefaultBudget = 100000
	}
	if cfg.Pipeline.Currency == "" {
		cfg.Pipeline.Currency = "EUR"
	}
	if cfg.Pipeline.WorkerPool == 0 {
		cfg.Pipeline.WorkerPool = 4
	}

	if cfg.Veille.Concurrency == 0 {
		cfg.Veille.Concurrency = 8
	}
	if cfg.Veille.SourceTimeout == 0 {
		cfg.Veille.SourceTimeout = 10000
	}
	if cfg.Veille.MaxItemsPerSource == 0 {
		cfg.Veille.MaxItemsPerSource = 50
	}
	if cfg.Veille.RateLimitPerMinute == 0 {
		cfg.Veille.RateLimitPerMinute = 30
	}
	if cfg.Veille.UserAgent == "" {
		cfg.Veille.UserAgent = "agency-assistant/veille"
	}

	if cfg.Resilience.RetryBaseDelay == 0 {
		cfg.Resilience.RetryBaseDelay = 1000
	}
	if cfg.Resilience.RetryFactor == 0 {
		cfg.Resilience.RetryFactor = 2
	}
	if cfg.Resilience.RetryMax == 0 {
		cfg.Resilience.RetryMax = 3
	}
	if cfg.Resilience.RetryJitter == 0 {
		cfg.Resilience.RetryJitter = 0.1
	}
	if cfg.Resilience.BreakerFailures == 0 {
		cfg.Resilience.BreakerFailures = 5
	}
	if cfg.Resilience.BreakerOpenFor == 0 {
		cfg.Resilience.BreakerOpenFor = 60000
	}
	if cfg.Resilience.MaxResponseBytes == 0 {
		cfg.Resilience.MaxResponseBytes = 5 << 20
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30000
	}
	if cfg.LLM.RatePerMin == 0 {
		cfg.LLM.RatePerMin = 30
	}

	if cfg.Analysis.ParallelThreshold == 0 {
		cfg.Analysis.ParallelThreshold = 64
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "osint"
	}

	if cfg.Slack.APIURL == "" {
		cfg.Slack.APIURL = "https://slack.com/api/"
	}
	if cfg.Slack.PostRate == 0 {
		cfg.Slack.PostRate = 1
	}
	if cfg.Slack.CommandTimeout == 0 {
		cfg.Slack.CommandTimeout = 300000
	}

	if cfg.Integrations.AWS.Region == "" {
		cfg.Integrations.AWS.Region = "eu-west-1"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = cfg.App.Name
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis cache")
		}
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", cfg.Cache.Backend)
	}

	if cfg.Database.Postgres.Enabled {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
	}
	if cfg.Database.Elasticsearch.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required")
	}
	if cfg.Veille.SharedLimiter && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("veille.shared_limiter requires database.redis.address")
	}

	switch cfg.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("llm.provider must be openai or anthropic, got %q", cfg.LLM.Provider)
	}

	if cfg.Resilience.RetryJitter < 0 || cfg.Resilience.RetryJitter >= 1 {
		return fmt.Errorf("resilience.retry_jitter must be in [0,1)")
	}

	for i, s := range cfg.Veille.Sources {
		if err := ValidateSource(s); err != nil {
			return fmt.Errorf("veille.sources[%d]: %w", i, err)
		}
	}
	return nil
}

// ValidateSource checks a single source descriptor.
func ValidateSource(s SourceDescriptor) error {
	if !validSourceKinds[s.Kind] {
		return fmt.Errorf("kind must be one of rss, web, social, osint, got %q", s.Kind)
	}
	if strings.TrimSpace(s.Target) == "" {
		return fmt.Errorf("target is required")
	}
	if s.Limit < 0 || s.TimeoutMS < 0 {
		return fmt.Errorf("limit and timeout_ms must be non-negative")
	}
	return nil
}

// LoadSources reads a list of source descriptors from a YAML or JSON file.
// The file may hold a bare list or an object with a "sources" key.
func LoadSources(path string) ([]SourceDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	var wrapped struct {
		Sources []SourceDescriptor `yaml:"sources" json:"sources"`
	}
	var list []SourceDescriptor

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &list); err != nil {
			if err := json.Unmarshal(data, &wrapped); err != nil {
				return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
			}
			list = wrapped.Sources
		}
	} else {
		if err := yaml.Unmarshal(data, &list); err != nil {
			if err := yaml.Unmarshal(data, &wrapped); err != nil {
				return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
			}
			list = wrapped.Sources
		}
	}

	for i, s := range list {
		if err := ValidateSource(s); err != nil {
			return nil, fmt.Errorf("%s: source %d: %w", path, i, err)
		}
	}
	return list, nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// CacheTTL returns the configured cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
