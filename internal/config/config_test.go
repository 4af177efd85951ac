package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "1.0", cfg.Connector.ServerVersion)
	assert.Equal(t, QueueBackendFile, cfg.Queue.Backend)
	assert.Equal(t, "queue.json", cfg.Queue.Path)
	assert.Equal(t, "dead_letters", cfg.DeadLetter.Dir)
	assert.Equal(t, 10*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 1, cfg.Pipeline.Workers)
	assert.Equal(t, 20, cfg.Scheduler.MaxReturned)
	assert.Empty(t, cfg.Webhook.URL)
	assert.Equal(t, ":8080", cfg.Server.Addr())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("WEBHOOK_URL", "https://hooks.example.test/qb")
	t.Setenv("DEAD_LETTER_DIR", "/tmp/dl")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("WEBHOOK_TIMEOUT", "3s")
	t.Setenv("QUEUE_BACKEND", "redis")
	t.Setenv("PIPELINE_WORKERS", "4")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://hooks.example.test/qb", cfg.Webhook.URL)
	assert.Equal(t, "/tmp/dl", cfg.DeadLetter.Dir)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, QueueBackendRedis, cfg.Queue.Backend)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connector:
  username: qbwc
  password: from-file
archive:
  dir: /var/lib/qbwc/archive
scheduler:
  max_returned: 50
`), 0o644))
	t.Setenv("CONNECTOR_PASSWORD", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qbwc", cfg.Connector.Username)
	assert.Equal(t, "from-env", cfg.Connector.Password, "environment wins over the file")
	assert.Equal(t, "/var/lib/qbwc/archive", cfg.Archive.Dir)
	assert.Equal(t, 50, cfg.Scheduler.MaxReturned)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return *cfg
	}

	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"backend", func(c *Config) { c.Queue.Backend = "sqlite" }},
		{"queue path", func(c *Config) { c.Queue.Path = "" }},
		{"redis url", func(c *Config) { c.Queue.Backend = QueueBackendRedis; c.Queue.RedisURL = "" }},
		{"archive dir", func(c *Config) { c.Archive.Dir = "" }},
		{"dead letter dir", func(c *Config) { c.DeadLetter.Dir = "" }},
		{"webhook timeout", func(c *Config) { c.Webhook.Timeout = 0 }},
		{"workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"buffer", func(c *Config) { c.Pipeline.Buffer = -1 }},
		{"max returned", func(c *Config) { c.Scheduler.MaxReturned = 0 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
