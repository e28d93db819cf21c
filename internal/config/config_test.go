package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "ORIGIN_ALLOWLIST", "STORE_DRIVER", "REDIS_URL", "DATABASE_URL",
	"SQLITE_PATH", "AUTH_SECRET", "TOKEN_TTL", "BOARD_SIZE", "RESUBSCRIBE_DELAY",
	"LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 15, cfg.BoardSize)
	assert.Equal(t, 300*time.Millisecond, cfg.ResubscribeDelay)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Empty(t, cfg.OriginAllowlist)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("ORIGIN_ALLOWLIST", "localhost:5173, example.com")
	t.Setenv("STORE_DRIVER", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("BOARD_SIZE", "19")
	t.Setenv("RESUBSCRIBE_DELAY", "1s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"localhost:5173", "example.com"}, cfg.OriginAllowlist)
	assert.Equal(t, DriverRedis, cfg.StoreDriver)
	assert.Equal(t, 19, cfg.BoardSize)
	assert.Equal(t, time.Second, cfg.ResubscribeDelay)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"even board", map[string]string{"BOARD_SIZE": "14"}},
		{"tiny board", map[string]string{"BOARD_SIZE": "3"}},
		{"bad delay", map[string]string{"RESUBSCRIBE_DELAY": "soon"}},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "etcd"}},
		{"redis without url", map[string]string{"STORE_DRIVER": "redis"}},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set, even to "".
	os.Unsetenv("PORT")
	os.Unsetenv("AUTH_SECRET")
	t.Cleanup(func() {
		os.Unsetenv("PORT")
		os.Unsetenv("AUTH_SECRET")
	})

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7070\nAUTH_SECRET=s3cret\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "s3cret", cfg.AuthSecret)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
