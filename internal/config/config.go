package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultFiles are loaded in order when Load is called without arguments.
// Values already present in the environment win over file values.
var DefaultFiles = []string{".env.local", ".env"}

type Config struct {
	RelayURL    string
	Room        string
	PlayerName  string
	ListenAddr  string
	DatabaseURL string
	LogLevel    string
	LogDev      bool
	SendQueue   int
}

func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = DefaultFiles
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		RelayURL:    env("IMPROV_RELAY_URL", "ws://localhost:8080"),
		Room:        env("IMPROV_ROOM", "improv"),
		PlayerName:  env("IMPROV_PLAYER_NAME", "Player"),
		ListenAddr:  env("IMPROV_LISTEN_ADDR", ":8080"),
		DatabaseURL: env("IMPROV_DATABASE_URL", ""),
		LogLevel:    env("IMPROV_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.LogDev, err = envBool("IMPROV_LOG_DEV", false); err != nil {
		return Config{}, err
	}
	if cfg.SendQueue, err = envInt("IMPROV_SEND_QUEUE", 32); err != nil {
		return Config{}, err
	}
	if cfg.SendQueue <= 0 {
		return Config{}, fmt.Errorf("IMPROV_SEND_QUEUE must be positive, got %d", cfg.SendQueue)
	}
	return cfg, nil
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func envInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
