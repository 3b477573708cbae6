package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PFORGE_CONFIG", "PFORGE_STATE_PATH", "PFORGE_LOG_LEVEL", "PFORGE_DEBUG", "PFORGE_STATE_TTL_MS"} {
		t.Setenv(key, "")
	}

	opts := Load()
	if opts.LogLevel != "info" {
		t.Errorf("default log level = %q", opts.LogLevel)
	}
	if opts.Debug {
		t.Error("debug should default off")
	}
	if opts.StateDefaultTTL != 0 {
		t.Errorf("default ttl = %s", opts.StateDefaultTTL)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PFORGE_CONFIG", "/etc/pforge/server.json")
	t.Setenv("PFORGE_STATE_PATH", "/var/lib/pforge/state.db")
	t.Setenv("PFORGE_LOG_LEVEL", "debug")
	t.Setenv("PFORGE_DEBUG", "true")
	t.Setenv("PFORGE_STATE_TTL_MS", "1500")

	opts := Load()
	if opts.ConfigPath != "/etc/pforge/server.json" {
		t.Errorf("config path = %q", opts.ConfigPath)
	}
	if opts.StatePath != "/var/lib/pforge/state.db" {
		t.Errorf("state path = %q", opts.StatePath)
	}
	if !opts.Debug {
		t.Error("debug should be on")
	}
	if opts.StateDefaultTTL != 1500*time.Millisecond {
		t.Errorf("ttl = %s", opts.StateDefaultTTL)
	}
}

func TestLoad_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("PFORGE_DEBUG", "not-a-bool")
	t.Setenv("PFORGE_STATE_TTL_MS", "-5")

	opts := Load()
	if opts.Debug {
		t.Error("malformed bool should be ignored")
	}
	if opts.StateDefaultTTL != 0 {
		t.Error("non-positive ttl should be ignored")
	}
}
