package config_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/playsquad/realtime/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func TestLoadDefaults(t *testing.T) {
	// no config file in the test working directory: defaults apply
	cfg, err := config.Load(newTestLogger(), "config")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 8, cfg.Server.ConnectionLimit.MaxPerUser)
	assert.Equal(t, "cycle", cfg.Server.ConnectionLimit.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Transport.ReadTimeout)

	assert.Equal(t, 30*time.Second, cfg.Presence.HeartbeatInterval)
	assert.Equal(t, 5*time.Minute, cfg.Presence.IdleTimeout)
	assert.Equal(t, time.Minute, cfg.Presence.HiddenIdleTimeout)
	assert.Equal(t, 6*time.Second, cfg.Presence.TypingClearTimeout)

	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "presence", cfg.Redis.KeyPrefix)
	assert.False(t, cfg.Nats.Enabled)
}
