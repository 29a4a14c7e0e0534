package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig         `mapstructure:"app"`
	Server       ServerConfig      `mapstructure:"server"`
	Logging      LoggingConfig     `mapstructure:"logging"`
	Cache        CacheConfig       `mapstructure:"cache"`
	Schemas      SchemasConfig     `mapstructure:"schemas"`
	Pipeline     PipelineConfig    `mapstructure:"pipeline"`
	Veille       VeilleConfig      `mapstructure:"veille"`
	Resilience   ResilienceConfig  `mapstructure:"resilience"`
	LLM          LLMConfig         `mapstructure:"llm"`
	Analysis     AnalysisConfig    `mapstructure:"analysis"`
	Database     DatabaseConfig    `mapstructure:"database"`
	Slack        SlackConfig       `mapstructure:"slack"`
	Integrations IntegrationConfig `mapstructure:"integrations"`
	Tracing      TracingConfig     `mapstructure:"tracing"`
	Templates    TemplatesConfig   `mapstructure:"templates"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Tagline     string `mapstructure:"tagline"`
}

type ServerConfig struct {
	Address          string `mapstructure:"address"`
	ReadTimeout      int    `mapstructure:"read_timeout"`      // milliseconds
	WriteTimeout     int    `mapstructure:"write_timeout"`     // milliseconds
	ShutdownTimeout  int    `mapstructure:"shutdown_timeout"`  // milliseconds
	MaxBodyBytes     int64  `mapstructure:"max_body_bytes"`
	OperationTimeout int    `mapstructure:"operation_timeout"` // milliseconds, 0 disables
	// RateLimit is requests per second across the API, 0 disables.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// CacheConfig selects the analysis cache backend.
type CacheConfig struct {
	Backend    string `mapstructure:"backend"` // memory | redis
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

type SchemasConfig struct {
	Dir         string `mapstructure:"dir"`
	BriefSchema string `mapstructure:"brief_schema"`
}

type PipelineConfig struct {
	AutoDefault   bool    `mapstructure:"auto_default"`
	DefaultBudget float64 `mapstructure:"default_budget"`
	Currency      string  `mapstructure:"currency"`
	OutputDir     string  `mapstructure:"output_dir"`
	WorkerPool    int     `mapstructure:"worker_pool"`
}

// VeilleConfig drives the collector and the source adapters.
type VeilleConfig struct {
	Concurrency        int                `mapstructure:"concurrency"`
	SourceTimeout      int                `mapstructure:"source_timeout"`   // milliseconds
	OverallDeadline    int                `mapstructure:"overall_deadline"` // milliseconds, 0 disables
	MaxItemsPerSource  int                `mapstructure:"max_items_per_source"`
	RateLimitPerMinute int                `mapstructure:"rate_limit_per_minute"`
	SharedLimiter      bool               `mapstructure:"shared_limiter"` // redis-backed window
	SourcesFile        string             `mapstructure:"sources_file"`
	Sources            []SourceDescriptor `mapstructure:"sources"`
	UserAgent          string             `mapstructure:"user_agent"`
}

// SourceDescriptor mirrors models.SourceDescriptor for config decoding.
type SourceDescriptor struct {
	ID        string `mapstructure:"id" yaml:"id" json:"id"`
	Kind      string `mapstructure:"kind" yaml:"kind" json:"kind"`
	Target    string `mapstructure:"target" yaml:"target" json:"target"`
	Limit     int    `mapstructure:"limit" yaml:"limit" json:"limit"`
	TimeoutMS int    `mapstructure:"timeout_ms" yaml:"timeout_ms" json:"timeout_ms"`
	Required  bool   `mapstructure:"required" yaml:"required" json:"required"`
}

type ResilienceConfig struct {
	RetryBaseDelay   int     `mapstructure:"retry_base_delay"` // milliseconds
	RetryFactor      float64 `mapstructure:"retry_factor"`
	RetryMax         int     `mapstructure:"retry_max"`
	RetryJitter      float64 `mapstructure:"retry_jitter"`
	BreakerFailures  int     `mapstructure:"breaker_failures"`
	BreakerOpenFor   int     `mapstructure:"breaker_open_for"` // milliseconds
	MaxResponseBytes int64   `mapstructure:"max_response_bytes"`
}

// LLMConfig configures the optional text-generation backend.
type LLMConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Provider    string  `mapstructure:"provider"` // openai | anthropic
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
	RatePerMin  int     `mapstructure:"rate_per_minute"`
}

type AnalysisConfig struct {
	UseLLM            bool `mapstructure:"use_llm"`
	ParallelThreshold int  `mapstructure:"parallel_threshold"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SlackConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	BotToken       string  `mapstructure:"bot_token"`
	SigningSecret  string  `mapstructure:"signing_secret"`
	APIURL         string  `mapstructure:"api_url"`
	PostRate       float64 `mapstructure:"post_rate"`       // messages per second
	CommandTimeout int     `mapstructure:"command_timeout"` // milliseconds
}

// IntegrationConfig holds settings for the social API and AWS notifications.
type IntegrationConfig struct {
	Social SocialConfig `mapstructure:"social"`
	AWS    AWSConfig    `mapstructure:"aws"`
}

type SocialConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

type AWSConfig struct {
	Region string    `mapstructure:"region"`
	SES    SESConfig `mapstructure:"ses"`
	SNS    SNSConfig `mapstructure:"sns"`
}

type SESConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	FromEmail string   `mapstructure:"from_email"`
	To        []string `mapstructure:"to"`
}

type SNSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	TopicARN string `mapstructure:"topic_arn"`
}

type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
}

type TemplatesConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
}
