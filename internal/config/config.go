// Package config loads the adapter configuration from defaults, an
// optional YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full adapter configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Connector  ConnectorConfig  `mapstructure:"connector" yaml:"connector"`
	API        APIConfig        `mapstructure:"api" yaml:"api"`
	Queue      QueueConfig      `mapstructure:"queue" yaml:"queue"`
	Archive    ArchiveConfig    `mapstructure:"archive" yaml:"archive"`
	Webhook    WebhookConfig    `mapstructure:"webhook" yaml:"webhook"`
	DeadLetter DeadLetterConfig `mapstructure:"dead_letter" yaml:"dead_letter"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline" yaml:"pipeline"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler" yaml:"scheduler"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port" yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// ConnectorConfig holds the Web Connector account and reported versions
type ConnectorConfig struct {
	Username      string `mapstructure:"username" yaml:"username"`
	Password      string `mapstructure:"password" yaml:"-"`
	PasswordHash  string `mapstructure:"password_hash" yaml:"-"`
	ServerVersion string `mapstructure:"server_version" yaml:"server_version"`
	ClientVersion string `mapstructure:"client_version" yaml:"client_version"`
}

// APIConfig holds the write API account and rate limit
type APIConfig struct {
	Username       string  `mapstructure:"username" yaml:"username"`
	Password       string  `mapstructure:"password" yaml:"-"`
	PasswordHash   string  `mapstructure:"password_hash" yaml:"-"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

// QueueConfig selects the durable queue backend
type QueueConfig struct {
	Backend  string `mapstructure:"backend" yaml:"backend"` // "file" (default) or "redis"
	Path     string `mapstructure:"path" yaml:"path"`       // Only used for file backend
	RedisURL string `mapstructure:"redis_url" yaml:"-"`     // Only used for redis backend
	RedisKey string `mapstructure:"redis_key" yaml:"redis_key"`
}

type ArchiveConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// WebhookConfig holds the downstream endpoint
type WebhookConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Secret  string        `mapstructure:"secret" yaml:"-"`
}

type DeadLetterConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// PipelineConfig sizes the answer worker pool
type PipelineConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
	Buffer  int `mapstructure:"buffer" yaml:"buffer"`
}

type SchedulerConfig struct {
	MaxReturned int `mapstructure:"max_returned" yaml:"max_returned"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

const (
	QueueBackendFile  = "file"
	QueueBackendRedis = "redis"
)

// Load builds the configuration. Values come from defaults, then the YAML
// file at path when path is not empty, then environment variables, where
// key "a.b" is read from A_B (WEBHOOK_URL, DEAD_LETTER_DIR, SERVER_PORT).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets all default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")

	v.SetDefault("connector.username", "")
	v.SetDefault("connector.password", "")
	v.SetDefault("connector.password_hash", "")
	v.SetDefault("connector.server_version", "1.0")
	v.SetDefault("connector.client_version", "1.0")

	v.SetDefault("api.username", "")
	v.SetDefault("api.password", "")
	v.SetDefault("api.password_hash", "")
	v.SetDefault("api.rate_limit_rps", 5)
	v.SetDefault("api.rate_limit_burst", 20)

	v.SetDefault("queue.backend", QueueBackendFile)
	v.SetDefault("queue.path", "queue.json")
	v.SetDefault("queue.redis_url", "redis://localhost:6379/0")
	v.SetDefault("queue.redis_key", "qbwc:queue")

	v.SetDefault("archive.dir", "archive")

	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("webhook.secret", "")

	v.SetDefault("dead_letter.dir", "dead_letters")

	v.SetDefault("pipeline.workers", 1)
	v.SetDefault("pipeline.buffer", 64)

	v.SetDefault("scheduler.max_returned", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate rejects settings the adapter cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Queue.Backend {
	case QueueBackendFile:
		if c.Queue.Path == "" {
			errs = append(errs, errors.New("queue.path is required for the file backend"))
		}
	case QueueBackendRedis:
		if c.Queue.RedisURL == "" {
			errs = append(errs, errors.New("queue.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("queue.backend %q must be %q or %q", c.Queue.Backend, QueueBackendFile, QueueBackendRedis))
	}
	if c.Archive.Dir == "" {
		errs = append(errs, errors.New("archive.dir is required"))
	}
	if c.DeadLetter.Dir == "" {
		errs = append(errs, errors.New("dead_letter.dir is required"))
	}
	if c.Webhook.Timeout <= 0 {
		errs = append(errs, errors.New("webhook.timeout must be positive"))
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, errors.New("pipeline.workers must be at least 1"))
	}
	if c.Pipeline.Buffer < 0 {
		errs = append(errs, errors.New("pipeline.buffer must not be negative"))
	}
	if c.Scheduler.MaxReturned < 1 {
		errs = append(errs, errors.New("scheduler.max_returned must be at least 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string { return fmt.Sprintf(":%d", s.Port) }
