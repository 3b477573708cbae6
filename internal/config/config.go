// Package config loads runtime options from the environment. The server
// configuration object itself (tools, resources, prompts) is produced by
// the external schema parser; this package only covers process-level knobs.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Options holds the process-level runtime options.
type Options struct {
	ConfigPath      string
	StatePath       string
	StateDefaultTTL time.Duration
	LogLevel        string
	Debug           bool
}

// Load reads options from the environment, honoring a .env file when one
// is present in the working directory.
func Load() *Options {
	// Missing .env files are fine; explicit env vars win either way.
	_ = godotenv.Load()

	opts := &Options{
		ConfigPath: os.Getenv("PFORGE_CONFIG"),
		StatePath:  os.Getenv("PFORGE_STATE_PATH"),
		LogLevel:   os.Getenv("PFORGE_LOG_LEVEL"),
	}

	if opts.LogLevel == "" {
		opts.LogLevel = "info"
	}

	if raw := os.Getenv("PFORGE_DEBUG"); raw != "" {
		if debug, err := strconv.ParseBool(raw); err == nil {
			opts.Debug = debug
		}
	}

	if raw := os.Getenv("PFORGE_STATE_TTL_MS"); raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
			opts.StateDefaultTTL = time.Duration(ms) * time.Millisecond
		}
	}

	return opts
}
