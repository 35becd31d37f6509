package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Projects   ProjectsConfig   `yaml:"projects" mapstructure:"projects"`
	GitHub     GitHubConfig     `yaml:"github" mapstructure:"github"`
	Jira       JiraConfig       `yaml:"jira" mapstructure:"jira"`
	AWS        AWSConfig        `yaml:"aws" mapstructure:"aws"`
	Railway    RailwayConfig    `yaml:"railway" mapstructure:"railway"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	QA         QAConfig         `yaml:"qa" mapstructure:"qa"`
	History    HistoryConfig    `yaml:"history" mapstructure:"history"`
	Aggregate  AggregateConfig  `yaml:"aggregate" mapstructure:"aggregate"`
	Insight    InsightConfig    `yaml:"insight" mapstructure:"insight"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the conversation history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ProjectsConfig locates the project definition files.
type ProjectsConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	ArchivedDir string `yaml:"archived_dir" mapstructure:"archived_dir"`
}

// GitHubConfig holds GitHub API settings.
type GitHubConfig struct {
	Token   string  `yaml:"token" mapstructure:"token"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// JiraConfig holds Jira Cloud API settings.
type JiraConfig struct {
	URL   string `yaml:"url" mapstructure:"url"`
	Email string `yaml:"email" mapstructure:"email"`
	Token string `yaml:"token" mapstructure:"token"`
}

// AWSConfig holds AWS credentials. Empty keys fall back to the default
// credential chain.
type AWSConfig struct {
	Region          string `yaml:"region" mapstructure:"region"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	CostDays        int    `yaml:"cost_days" mapstructure:"cost_days"`
}

// RailwayConfig holds Railway GraphQL API settings.
type RailwayConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OpenAIConfig holds OpenAI usage API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int32  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// QAConfig configures question answering.
type QAConfig struct {
	Backend      string `yaml:"backend" mapstructure:"backend"`
	ContextTurns int    `yaml:"context_turns" mapstructure:"context_turns"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// HistoryConfig bounds the per-operator conversation log.
type HistoryConfig struct {
	MaxTurns int `yaml:"max_turns" mapstructure:"max_turns"`
}

// AggregateConfig bounds adapter calls.
type AggregateConfig struct {
	AdapterTimeoutSecs int            `yaml:"adapter_timeout_secs" mapstructure:"adapter_timeout_secs"`
	PlatformTimeouts   map[string]int `yaml:"platform_timeouts" mapstructure:"platform_timeouts"`
}

// InsightConfig tunes the cost analyzer.
type InsightConfig struct {
	TrendTolerancePct float64 `yaml:"trend_tolerance_pct" mapstructure:"trend_tolerance_pct"`
	TopServices       int     `yaml:"top_services" mapstructure:"top_services"`
	DNSZoneThreshold  int     `yaml:"dns_zone_threshold" mapstructure:"dns_zone_threshold"`
	LightsailHighCost float64 `yaml:"lightsail_high_cost" mapstructure:"lightsail_high_cost"`
}

// CacheConfig configures the snapshot cache. A zero TTL disables caching.
type CacheConfig struct {
	SnapshotTTLSecs int `yaml:"snapshot_ttl_secs" mapstructure:"snapshot_ttl_secs"`
	SnapshotSize    int `yaml:"snapshot_size" mapstructure:"snapshot_size"`
}

// ResilienceConfig configures retries and circuit breakers for upstream calls.
type ResilienceConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// MonitoringConfig configures snapshot alerting.
type MonitoringConfig struct {
	WebhookURL        string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CostSpikePct      float64 `yaml:"cost_spike_pct" mapstructure:"cost_spike_pct"`
	FailureAlertMin   int     `yaml:"failure_alert_min" mapstructure:"failure_alert_min"`
	CheckIntervalSecs int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OPSLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.database_url", "")
	v.SetDefault("projects.dir", "projects/active")
	v.SetDefault("projects.archived_dir", "projects/archived")
	v.SetDefault("github.token", "")
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.rps", 5.0)
	v.SetDefault("jira.url", "")
	v.SetDefault("jira.email", "")
	v.SetDefault("jira.token", "")
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")
	v.SetDefault("aws.cost_days", 30)
	v.SetDefault("railway.token", "")
	v.SetDefault("railway.base_url", "https://backboard.railway.app/graphql/v2")
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.max_tokens", 1024)
	v.SetDefault("qa.backend", "none")
	v.SetDefault("qa.context_turns", 3)
	v.SetDefault("qa.timeout_secs", 20)
	v.SetDefault("history.max_turns", 50)
	v.SetDefault("aggregate.adapter_timeout_secs", 30)
	v.SetDefault("insight.trend_tolerance_pct", 2.0)
	v.SetDefault("insight.top_services", 5)
	v.SetDefault("insight.dns_zone_threshold", 1)
	v.SetDefault("insight.lightsail_high_cost", 10.0)
	v.SetDefault("cache.snapshot_ttl_secs", 60)
	v.SetDefault("cache.snapshot_size", 128)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 5000)
	v.SetDefault("resilience.multiplier", 2.0)
	v.SetDefault("resilience.jitter_fraction", 0.25)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 60)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.cost_spike_pct", 25.0)
	v.SetDefault("monitoring.failure_alert_min", 2)
	v.SetDefault("monitoring.check_interval_secs", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
