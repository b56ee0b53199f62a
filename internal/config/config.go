// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Source  SourceConfig  `mapstructure:"source"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Harvest HarvestConfig `mapstructure:"harvest"`
	Files   FilesConfig   `mapstructure:"files"`
	DB      DBConfig      `mapstructure:"db"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SourceConfig identifies the listing site being harvested.
type SourceConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	SurveyURLFormat string `mapstructure:"survey_url_format"`
}

// HTTPConfig configures fetch timeout and retry behavior.
type HTTPConfig struct {
	UserAgent        string  `mapstructure:"user_agent"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	MaxAttempts      int     `mapstructure:"max_attempts"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	ListingRPS       float64 `mapstructure:"listing_rps"`
}

// HarvestConfig governs the scan loop and detail fan-out.
type HarvestConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	SeenLimit   int `mapstructure:"seen_limit"`
	MaxRecords  int `mapstructure:"max_records"`
}

// FilesConfig sets the staged-file handoff paths.
type FilesConfig struct {
	StagingPath string `mapstructure:"staging_path"`
	HistoryPath string `mapstructure:"history_path"`
	StatePath   string `mapstructure:"state_path"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LLMConfig points at the external normalization capability.
type LLMConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Model          string `mapstructure:"model"`
	APIKeyEnv      string `mapstructure:"api_key_env"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// AutomaticEnv only resolves keys viper has already seen, so the two
	// keys without defaults need explicit bindings to pick up
	// HARVESTER_DB_DSN and HARVESTER_LLM_ENDPOINT.
	for _, key := range []string{"db.dsn", "llm.endpoint"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("source.base_url", "https://www.thegradcafe.com")
	v.SetDefault("source.survey_url_format", "https://www.thegradcafe.com/survey/index.php?page=%d")
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.listing_rps", 2.0)
	v.SetDefault("harvest.concurrency", 10)
	v.SetDefault("harvest.seen_limit", 3)
	v.SetDefault("harvest.max_records", 30000)
	v.SetDefault("files.staging_path", "new_applicant_data.jsonl")
	v.SetDefault("files.history_path", "llm_extend_applicant_data.jsonl")
	v.SetDefault("files.state_path", "pull_state.json")
	v.SetDefault("db.table", "grad_applications")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Source.SurveyURLFormat == "" {
		return fmt.Errorf("source.survey_url_format is required")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.Harvest.Concurrency <= 0 {
		return fmt.Errorf("harvest.concurrency must be > 0")
	}
	if c.Harvest.SeenLimit <= 0 {
		return fmt.Errorf("harvest.seen_limit must be > 0")
	}
	if c.Files.StagingPath == "" || c.Files.HistoryPath == "" {
		return fmt.Errorf("files.staging_path and files.history_path are required")
	}
	return nil
}

// FetchTimeout converts the per-attempt timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the first retry delay.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the retry delay ceiling.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}
