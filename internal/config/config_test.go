package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		envVars   map[string]string
		wantErr   string
		checkFunc func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid minimal config",
			yaml: `
database:
  host: localhost
  name: testdb
  user: testuser
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "testdb", cfg.Database.Name)
				assert.Equal(t, "testuser", cfg.Database.User)
			},
		},
		{
			name: "defaults applied for optional fields",
			yaml: `
database:
  host: localhost
  name: testdb
  user: testuser
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, 10, cfg.Database.PoolSize)
				assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
				assert.Equal(t, "fleet.telemetry", cfg.Kafka.Topic)
				assert.Equal(t, "fleetwatch-ingest", cfg.Kafka.GroupID)
				assert.Equal(t, 200, cfg.Kafka.BatchSize)
				assert.Equal(t, 2*time.Second, cfg.Kafka.FlushInterval)
				assert.Equal(t, 5*time.Second, cfg.Evaluation.PollInterval)
				assert.Equal(t, "fleetwatch_telemetry", cfg.Evaluation.ListenChannel)
				assert.Equal(t, 15*time.Minute, cfg.Evaluation.SnapshotLookback)
				assert.Equal(t, 8, cfg.Evaluation.DeviceConcurrency)
				assert.Equal(t, time.Minute, cfg.Heartbeat.SweepInterval)
				assert.Equal(t, 5*time.Minute, cfg.Heartbeat.StaleAfter)
				assert.Equal(t, 30*time.Second, cfg.Dispatch.Interval)
				assert.Equal(t, 5, cfg.Dispatch.BatchThreshold)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "text", cfg.Logging.Format)
			},
		},
		{
			name: "env var substitution",
			yaml: `
database:
  host: localhost
  name: testdb
  user: testuser
  password: "${TEST_DB_PASSWORD}"
`,
			envVars: map[string]string{
				"TEST_DB_PASSWORD": "secret123",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "secret123", cfg.Database.Password)
			},
		},
		{
			name: "missing required database.host",
			yaml: `
database:
  name: testdb
  user: testuser
`,
			wantErr: "database.host is required",
		},
		{
			name: "missing required database.name",
			yaml: `
database:
  host: localhost
  user: testuser
`,
			wantErr: "database.name is required",
		},
		{
			name: "missing required database.user",
			yaml: `
database:
  host: localhost
  name: testdb
`,
			wantErr: "database.user is required",
		},
		{
			name: "kafka enabled without brokers",
			yaml: `
database:
  host: localhost
  name: testdb
  user: testuser
kafka:
  enabled: true
`,
			wantErr: "kafka.brokers is required when kafka is enabled",
		},
		{
			name: "poll interval too short",
			yaml: `
database:
  host: localhost
  name: testdb
  user: testuser
evaluation:
  poll_interval: 100ms
`,
			wantErr: "evaluation.poll_interval must be at least 1s",
		},
		{
			name: "stale_after shorter than sweep_interval",
			yaml: `
database:
  host: localhost
  name: testdb
  user: testuser
heartbeat:
  sweep_interval: 10m
  stale_after: 1m
`,
			wantErr: "heartbeat.stale_after must not be shorter",
		},
		{
			name: "discord enabled without webhook url",
			yaml: `
database:
  host: localhost
  name: testdb
  user: testuser
notifications:
  discord:
    enabled: true
`,
			wantErr: "notifications.discord.webhook_url is required",
		},
		{
			name:    "invalid YAML",
			yaml:    `{{{not valid yaml`,
			wantErr: "parsing config YAML",
		},
		{
			name: "full config with overrides",
			yaml: `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 60s
  write_timeout: 60s
database:
  host: db.example.com
  port: 5433
  name: fleetwatch_prod
  user: admin
  password: pass
  sslmode: require
  pool_size: 20
  query_timeout: 3s
kafka:
  enabled: true
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  topic: fleet.telemetry.prod
  group_id: fleetwatch-prod
  batch_size: 500
  flush_interval: 1s
evaluation:
  poll_interval: 10s
  listen_enabled: true
  listen_channel: telemetry_prod
  snapshot_lookback: 30m
  device_concurrency: 16
heartbeat:
  sweep_interval: 2m
  stale_after: 10m
dispatch:
  interval: 15s
  batch_threshold: 10
  rate_per_second: 5
  rate_burst: 10
notifications:
  discord:
    enabled: true
    webhook_url: https://discord.com/api/webhooks/123
  webhook:
    enabled: false
logging:
  level: debug
  format: json
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "127.0.0.1", cfg.Server.Host)
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "db.example.com", cfg.Database.Host)
				assert.Equal(t, 5433, cfg.Database.Port)
				assert.Equal(t, "require", cfg.Database.SSLMode)
				assert.Equal(t, 20, cfg.Database.PoolSize)
				assert.Equal(t, 3*time.Second, cfg.Database.QueryTimeout)
				assert.True(t, cfg.Kafka.Enabled)
				assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
				assert.Equal(t, "fleet.telemetry.prod", cfg.Kafka.Topic)
				assert.Equal(t, 500, cfg.Kafka.BatchSize)
				assert.Equal(t, 10*time.Second, cfg.Evaluation.PollInterval)
				assert.True(t, cfg.Evaluation.ListenEnabled)
				assert.Equal(t, "telemetry_prod", cfg.Evaluation.ListenChannel)
				assert.Equal(t, 16, cfg.Evaluation.DeviceConcurrency)
				assert.Equal(t, 2*time.Minute, cfg.Heartbeat.SweepInterval)
				assert.Equal(t, 10*time.Minute, cfg.Heartbeat.StaleAfter)
				assert.Equal(t, 15*time.Second, cfg.Dispatch.Interval)
				assert.Equal(t, 10, cfg.Dispatch.BatchThreshold)
				assert.Equal(t, 5.0, cfg.Dispatch.RatePerSecond)
				assert.True(t, cfg.Notifications.Discord.Enabled)
				assert.Equal(t, "https://discord.com/api/webhooks/123", cfg.Notifications.Discord.WebhookURL)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Only parallelize tests that don't modify env vars.
			if len(tt.envVars) == 0 {
				t.Parallel()
			}

			// Set env vars for this test.
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			// Write YAML to a temp file.
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			cfg, err := Load(path)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.checkFunc != nil {
				tt.checkFunc(t, cfg)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "basic DSN",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				Name:     "testdb",
				User:     "testuser",
				Password: "testpass",
				SSLMode:  "disable",
			},
			want: "host=localhost port=5432 dbname=testdb user=testuser password=testpass sslmode=disable",
		},
		{
			name: "production DSN",
			cfg: DatabaseConfig{
				Host:     "db.example.com",
				Port:     5433,
				Name:     "fleetwatch",
				User:     "admin",
				Password: "s3cret",
				SSLMode:  "require",
			},
			want: "host=db.example.com port=5433 dbname=fleetwatch user=admin password=s3cret sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}
