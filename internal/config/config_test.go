package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	t.Run("Defaults fill missing keys", func(t *testing.T) {
		path := writeConfig(t, "log-level: debug\nstore: memory\n")

		config, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, "debug", config.LogLevel)
		assert.Equal(t, StoreMemory, config.Store)
		assert.Equal(t, "9090", config.HTTPPort)
		assert.Equal(t, 24*time.Hour, config.SessionTTL)
		assert.Equal(t, "localhost:6379", config.Redis.GetRedisAddr())
		assert.False(t, config.OTel.Enabled)
	})

	t.Run("Environment overrides the file", func(t *testing.T) {
		path := writeConfig(t, "http-port: \"8080\"\nredis:\n  host: redis\n")
		t.Setenv("BINGO_HTTP_PORT", "7070")
		t.Setenv("BINGO_SESSION_TTL", "2h")

		config, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, "7070", config.HTTPPort)
		assert.Equal(t, 2*time.Hour, config.SessionTTL)
		assert.Equal(t, "redis:6379", config.Redis.GetRedisAddr())
	})

	t.Run("Unknown store", func(t *testing.T) {
		path := writeConfig(t, "store: postgres\n")

		_, err := Load(path)

		require.Error(t, err)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))

		require.Error(t, err)
	})

	t.Run("Environment only", func(t *testing.T) {
		t.Setenv("BINGO_STORE", "memory")

		config, err := Load("")

		require.NoError(t, err)
		assert.Equal(t, StoreMemory, config.Store)
	})

	t.Run("MustLoad panics on a bad file", func(t *testing.T) {
		assert.Panics(t, func() {
			MustLoad(filepath.Join(t.TempDir(), "absent.yml"))
		})
	})
}
