package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"IMPROV_RELAY_URL", "IMPROV_ROOM", "IMPROV_PLAYER_NAME", "IMPROV_LISTEN_ADDR",
	"IMPROV_DATABASE_URL", "IMPROV_LOG_LEVEL", "IMPROV_LOG_DEV", "IMPROV_SEND_QUEUE",
}

// clearEnv blanks every key for the test; godotenv only fills keys that are
// unset, so they are unset here and restored afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, Config{
		RelayURL:   "ws://localhost:8080",
		Room:       "improv",
		PlayerName: "Player",
		ListenAddr: ":8080",
		LogLevel:   "info",
		SendQueue:  32,
	}, cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env.local")
	require.NoError(t, os.WriteFile(path, []byte(
		"IMPROV_PLAYER_NAME=Grace\nIMPROV_ROOM=friday\nIMPROV_LOG_DEV=true\nIMPROV_SEND_QUEUE=8\n"), 0o600))
	t.Setenv("IMPROV_ROOM", "monday")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Grace", cfg.PlayerName)
	assert.Equal(t, "monday", cfg.Room, "environment beats the file")
	assert.True(t, cfg.LogDev)
	assert.Equal(t, 8, cfg.SendQueue)
}

func TestLoad_BadValues(t *testing.T) {
	cases := map[string]string{
		"IMPROV_LOG_DEV":    "sometimes",
		"IMPROV_SEND_QUEUE": "lots",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}

	t.Run("non-positive queue", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("IMPROV_SEND_QUEUE", "0")
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.Error(t, err)
	})
}
