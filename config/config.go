package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the platform.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains server-wide settings.
type GeneralConfig struct {
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
	Listen    string `mapstructure:"listen"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// ProvidersConfig groups outbound provider credentials.
type ProvidersConfig struct {
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	SerpAPI SerpAPIConfig `mapstructure:"serpapi"`
}

// OpenAIConfig configures the generative itinerary provider.
type OpenAIConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	CompletionModel string        `mapstructure:"completion_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// SerpAPIConfig configures the live hotel-pricing provider.
type SerpAPIConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DatabasesConfig groups storage backends.
type DatabasesConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig holds connection settings for the primary store.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders a postgres connection string, preferring the explicit URL.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (databases.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig holds connection settings for the cache/lock backend.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr renders host:port for the redis client.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// AgentConfig tunes the run pipeline.
type AgentConfig struct {
	MarginPercent       float64       `mapstructure:"margin_percent"`
	FallbackNightlyRate float64       `mapstructure:"fallback_nightly_rate"`
	MaxPlannerAttempts  int           `mapstructure:"max_planner_attempts"`
	MaxHotelCandidates  int           `mapstructure:"max_hotel_candidates"`
	ResearchCacheTTL    time.Duration `mapstructure:"research_cache_ttl"`
	StuckRunTTL         time.Duration `mapstructure:"stuck_run_ttl"`
	SweepCron           string        `mapstructure:"sweep_cron"`
}

// TelemetryConfig contains monitoring settings.
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	CostTracking bool `mapstructure:"cost_tracking"`
}

// Load reads configuration from an optional YAML file plus SAFAR_* env vars.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("safar")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SAFAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.listen", ":10020")

	v.SetDefault("providers.openai.completion_model", "gpt-4o-mini")
	v.SetDefault("providers.openai.temperature", 0.4)
	v.SetDefault("providers.openai.max_tokens", 4096)
	v.SetDefault("providers.openai.timeout", 60*time.Second)
	v.SetDefault("providers.serpapi.endpoint", "https://serpapi.com/search")
	v.SetDefault("providers.serpapi.timeout", 15*time.Second)

	v.SetDefault("databases.postgres.port", "5432")
	v.SetDefault("databases.postgres.sslmode", "disable")
	v.SetDefault("databases.redis.port", "6379")

	v.SetDefault("agent.margin_percent", 12)
	v.SetDefault("agent.fallback_nightly_rate", 5000)
	v.SetDefault("agent.max_planner_attempts", 2)
	v.SetDefault("agent.max_hotel_candidates", 10)
	v.SetDefault("agent.research_cache_ttl", 30*time.Minute)
	v.SetDefault("agent.stuck_run_ttl", 30*time.Minute)
	v.SetDefault("agent.sweep_cron", "@hourly")

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.cost_tracking", true)
}

func validate(cfg *Config) error {
	if cfg.Agent.MarginPercent < 0 || cfg.Agent.MarginPercent > 100 {
		return fmt.Errorf("agent.margin_percent must be within [0,100]")
	}
	if cfg.Agent.MaxPlannerAttempts < 1 {
		return fmt.Errorf("agent.max_planner_attempts must be >= 1")
	}
	if cfg.Agent.MaxHotelCandidates < 1 {
		return fmt.Errorf("agent.max_hotel_candidates must be >= 1")
	}
	return nil
}
