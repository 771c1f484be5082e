// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Evaluation    EvaluationConfig    `yaml:"evaluation"`
	Heartbeat     HeartbeatConfig     `yaml:"heartbeat"`
	Dispatch      DispatchConfig      `yaml:"dispatch"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig defines PostgreSQL connection settings.
type DatabaseConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Name         string        `yaml:"name"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	SSLMode      string        `yaml:"sslmode"`
	PoolSize     int           `yaml:"pool_size"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// KafkaConfig defines the telemetry ingestion consumer settings.
type KafkaConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	GroupID       string        `yaml:"group_id"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// EvaluationConfig defines the alert evaluation loop settings.
type EvaluationConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	ListenEnabled bool          `yaml:"listen_enabled"`
	ListenChannel string        `yaml:"listen_channel"`

	// SnapshotLookback bounds how old a device's latest telemetry row may be
	// and still count as its current state.
	SnapshotLookback  time.Duration `yaml:"snapshot_lookback"`
	DeviceConcurrency int           `yaml:"device_concurrency"`
}

// HeartbeatConfig defines the stale-device sweep settings.
type HeartbeatConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	StaleAfter    time.Duration `yaml:"stale_after"`
}

// DispatchConfig defines notification dispatch behavior.
type DispatchConfig struct {
	Interval       time.Duration `yaml:"interval"`
	BatchThreshold int           `yaml:"batch_threshold"`
	RatePerSecond  float64       `yaml:"rate_per_second"`
	RateBurst      int           `yaml:"rate_burst"`
}

// NotificationsConfig defines notification targets.
type NotificationsConfig struct {
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// DiscordConfig defines Discord webhook settings.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json, console
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyKafkaDefaults(&cfg.Kafka)
	applyEvaluationDefaults(&cfg.Evaluation)
	applyHeartbeatDefaults(&cfg.Heartbeat)
	applyDispatchDefaults(&cfg.Dispatch)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 10
	}
	if d.QueryTimeout == 0 {
		d.QueryTimeout = 5 * time.Second
	}
}

func applyKafkaDefaults(k *KafkaConfig) {
	if k.Topic == "" {
		k.Topic = "fleet.telemetry"
	}
	if k.GroupID == "" {
		k.GroupID = "fleetwatch-ingest"
	}
	if k.BatchSize == 0 {
		k.BatchSize = 200
	}
	if k.FlushInterval == 0 {
		k.FlushInterval = 2 * time.Second
	}
}

func applyEvaluationDefaults(e *EvaluationConfig) {
	if e.PollInterval == 0 {
		e.PollInterval = 5 * time.Second
	}
	if e.ListenChannel == "" {
		e.ListenChannel = "fleetwatch_telemetry"
	}
	if e.SnapshotLookback == 0 {
		e.SnapshotLookback = 15 * time.Minute
	}
	if e.DeviceConcurrency == 0 {
		e.DeviceConcurrency = 8
	}
}

func applyHeartbeatDefaults(h *HeartbeatConfig) {
	if h.SweepInterval == 0 {
		h.SweepInterval = time.Minute
	}
	if h.StaleAfter == 0 {
		h.StaleAfter = 5 * time.Minute
	}
}

func applyDispatchDefaults(d *DispatchConfig) {
	if d.Interval == 0 {
		d.Interval = 30 * time.Second
	}
	if d.BatchThreshold == 0 {
		d.BatchThreshold = 5
	}
	if d.RatePerSecond == 0 {
		d.RatePerSecond = 2.0
	}
	if d.RateBurst == 0 {
		d.RateBurst = 5
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if cfg.Database.Name == "" {
		errs = append(errs, fmt.Errorf("database.name is required"))
	}
	if cfg.Database.User == "" {
		errs = append(errs, fmt.Errorf("database.user is required"))
	}

	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		errs = append(errs, fmt.Errorf("kafka.brokers is required when kafka is enabled"))
	}

	if cfg.Evaluation.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("evaluation.poll_interval must be at least 1s"))
	}
	if cfg.Heartbeat.StaleAfter < cfg.Heartbeat.SweepInterval {
		errs = append(errs, fmt.Errorf("heartbeat.stale_after must not be shorter than heartbeat.sweep_interval"))
	}

	if cfg.Notifications.Discord.Enabled && cfg.Notifications.Discord.WebhookURL == "" {
		errs = append(errs, fmt.Errorf("notifications.discord.webhook_url is required when discord is enabled"))
	}
	if cfg.Notifications.Webhook.Enabled && cfg.Notifications.Webhook.URL == "" {
		errs = append(errs, fmt.Errorf("notifications.webhook.url is required when webhook is enabled"))
	}

	return errors.Join(errs...)
}
