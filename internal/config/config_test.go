package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/serroba/annotated-docs/internal/acl"
	"github.com/serroba/annotated-docs/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(nil, env(nil))
	require.NoError(t, err)

	assert.Equal(t, config.Config{
		Addr:        ":8080",
		SavingDelay: 250 * time.Millisecond,
		ReadyLimit:  2500 * time.Millisecond,
		AdminRole:   acl.Manager,
		LogLevel:    slog.LevelInfo,
	}, cfg)
}

func TestLoad_Environment(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(nil, env(map[string]string{
		"ANNOTATED_ADDR":            ":9000",
		"REDIS_URL":                 "redis://localhost:6379/1",
		"DATABASE_URL":              "postgres://localhost/annotated",
		"ANNOTATED_SAVING_DELAY_MS": "400",
		"ANNOTATED_READY_LIMIT_MS":  "not a number",
		"ANNOTATED_ADMIN_ROLE":      "view",
		"LOG_LEVEL":                 "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
	assert.Equal(t, "postgres://localhost/annotated", cfg.DatabaseURL)
	assert.Equal(t, 400*time.Millisecond, cfg.SavingDelay)
	assert.Equal(t, 2500*time.Millisecond, cfg.ReadyLimit)
	assert.Equal(t, acl.Viewer, cfg.AdminRole)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(
		[]string{"--addr", ":7000", "--saving-delay", "1s", "--ready-limit=100ms", "--log-level", "warn"},
		env(map[string]string{"ANNOTATED_ADDR": ":9000"}),
	)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, time.Second, cfg.SavingDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.ReadyLimit)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--nope"}},
		{"bad role", []string{"--admin-role", "owner"}},
		{"bad level", []string{"--log-level", "loud"}},
		{"zero delay", []string{"--saving-delay", "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.Load(tt.args, env(nil))
			require.Error(t, err)
		})
	}

	_, err := config.Load([]string{"--help"}, env(nil))
	require.ErrorIs(t, err, config.ErrHelp)
}
