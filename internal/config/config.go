// Package config loads splitledger settings from an optional .env file and
// the environment. Command-line flags override the result in internal/cli.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvDatabase     = "SPLITLEDGER_DB"
	EnvKafkaBrokers = "SPLITLEDGER_KAFKA_BROKERS"
	EnvKafkaTopic   = "SPLITLEDGER_KAFKA_TOPIC"
	EnvLogLevel     = "SPLITLEDGER_LOG_LEVEL"
	EnvHistoryLimit = "SPLITLEDGER_HISTORY_LIMIT"
)

// Defaults.
const (
	DefaultDatabase     = "splitledger.db"
	DefaultKafkaTopic   = "splitledger.events"
	DefaultHistoryLimit = 10
)

// Config holds runtime settings.
type Config struct {
	Database     string
	KafkaBrokers []string // empty disables event publishing
	KafkaTopic   string
	LogLevel     slog.Level
	HistoryLimit int
}

// Load reads envFile (if it exists) into the process environment without
// overriding variables that are already set, then builds a Config.
//
// An empty envFile means ".env". A missing file is not an error; a file that
// exists but cannot be parsed is.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (Config, error) {
	cfg := Config{
		Database:     getenvOrDefault(EnvDatabase, DefaultDatabase),
		KafkaBrokers: splitList(os.Getenv(EnvKafkaBrokers)),
		KafkaTopic:   getenvOrDefault(EnvKafkaTopic, DefaultKafkaTopic),
		LogLevel:     slog.LevelInfo,
		HistoryLimit: DefaultHistoryLimit,
	}

	if v := getenvOrDefault(EnvLogLevel, ""); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
	}

	if v := getenvOrDefault(EnvHistoryLimit, ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("%s: must be a positive integer, got %q", EnvHistoryLimit, v)
		}
		cfg.HistoryLimit = n
	}

	return cfg, nil
}

// EventsEnabled reports whether a Kafka broker is configured.
func (c Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// getenvOrDefault returns the trimmed value of key, or def when it is unset
// or blank.
func getenvOrDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
