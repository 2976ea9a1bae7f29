package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Queue     QueueConfig
	Validator ValidatorConfig
	Sandbox   SandboxConfig
	Notify    NotifyConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// QueueConfig holds admission queue capacities. Both are fixed for the
// process lifetime; changing them requires a restart.
type QueueConfig struct {
	RunningCapacity int `envconfig:"RUNNING_CAPACITY" default:"5"`
	QueuedCapacity  int `envconfig:"QUEUED_CAPACITY" default:"10"`
}

// ValidatorConfig holds script validation limits.
type ValidatorConfig struct {
	MaxScriptLength  int    `envconfig:"MAX_SCRIPT_LENGTH" default:"51200"`
	MaxStatements    int    `envconfig:"MAX_STATEMENTS" default:"1000"`
	MaxStringLiteral int    `envconfig:"MAX_STRING_LITERAL" default:"1000"`
	RulesFile        string `envconfig:"VALIDATOR_RULES_FILE" default:""`
}

// SandboxConfig holds script executor configuration.
type SandboxConfig struct {
	TimeoutSeconds int  `envconfig:"SANDBOX_TIMEOUT_SECONDS" default:"30"`
	EnableConsole  bool `envconfig:"SANDBOX_CONSOLE" default:"true"`
}

// NotifyConfig holds outcome webhook configuration. Webhooks are
// disabled when the URL is empty.
type NotifyConfig struct {
	WebhookURL string `envconfig:"OUTCOME_WEBHOOK_URL" default:""`
	MaxRetries int    `envconfig:"OUTCOME_WEBHOOK_RETRIES" default:"3"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Queue: QueueConfig{
			RunningCapacity: 5,
			QueuedCapacity:  10,
		},
		Validator: ValidatorConfig{
			MaxScriptLength:  51200,
			MaxStatements:    1000,
			MaxStringLiteral: 1000,
		},
		Sandbox: SandboxConfig{
			TimeoutSeconds: 30,
			EnableConsole:  true,
		},
		Notify: NotifyConfig{
			MaxRetries: 3,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
