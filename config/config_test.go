package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "jwt:\n  secret: s\nadmin:\n  secret: a\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, 64, cfg.Feed.BufferSize)
	assert.Equal(t, 15*time.Second, cfg.Feed.HeartbeatTimeout)
	assert.Equal(t, 15, cfg.Notifications.LogSize)
	assert.Equal(t, 7*24*time.Hour, cfg.Outbox.Retention)
	assert.Equal(t, []string{"*"}, cfg.Security.AllowedOrigins)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.MQTT.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile_ReadsValues(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
store: MEMORY
feed:
  heartbeat_interval: 2s
outbox:
  poll_interval: 250ms
  max_retries: 9
mqtt:
  broker: tcp://localhost:1883
  qos: 1
`))
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 2*time.Second, cfg.Feed.ToFeedConfig().HeartbeatInterval)

	wc := cfg.Outbox.ToWorkerConfig()
	assert.Equal(t, 250*time.Millisecond, wc.PollInterval)
	assert.Equal(t, 9, wc.MaxRetries)

	assert.True(t, cfg.MQTT.Enabled())
	mc := cfg.MQTT.ToBrokerConfig()
	assert.Equal(t, "tcp://localhost:1883", mc.Broker)
	assert.Equal(t, byte(1), mc.QoS)
	assert.Equal(t, "clinic-queue", mc.TopicPrefix)
}

func TestLoadFile_EnvironmentOverrides(t *testing.T) {
	t.Setenv("QUEUE_DATABASE_HOST", "db.internal")
	t.Setenv("QUEUE_JWT_SECRET", "from-env")
	t.Setenv("QUEUE_RATE_LIMIT_BURST", "7")
	t.Setenv("QUEUE_SECURITY_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("QUEUE_REDIS_URL", "redis://cache:6379/0")

	cfg, err := LoadFile(writeConfig(t, "database:\n  host: localhost\njwt:\n  secret: file\n"))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 7, cfg.RateLimit.ToRateLimiterConfig().Burst)
	assert.Equal(t, rate.Limit(20), cfg.RateLimit.ToRateLimiterConfig().Rate)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.ToCORSConfig().AllowOrigins)
	assert.True(t, cfg.Redis.Enabled())
}

func TestValidate(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "store: sqlite\n"))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store must be")
	assert.Contains(t, err.Error(), "jwt.secret is required")
	assert.Contains(t, err.Error(), "admin.secret is required")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestAgentConfig_ToRemoteConfig(t *testing.T) {
	agent := AgentConfig{ServerURL: "http://queue:8080", ScreenID: "not-an-id", Secret: "tv"}
	_, err := agent.ToRemoteConfig()
	assert.ErrorContains(t, err, "agent.screen_id")

	agent.ScreenID = "6f1c3c8e-2f35-4f8e-9a35-7d2f0e7b1a11"
	rc, err := agent.ToRemoteConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://queue:8080", rc.BaseURL)
	assert.Equal(t, "tv", rc.Secret)

	agent.Secret = ""
	_, err = agent.ToRemoteConfig()
	assert.Error(t, err)
}
