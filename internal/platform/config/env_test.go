package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port int `env:"AGI_COSMIC_TEST_PORT" envDefault:"123"`
}

type prefixedTestConfig struct {
	Timeout time.Duration `env:"TEST_TIMEOUT" envDefault:"5s"`
	Origins []string      `env:"TEST_ORIGINS" envSeparator:","`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("AGI_COSMIC_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseEnvPrefixed(t *testing.T) {
	t.Setenv("AGI_COSMIC_TEST_TIMEOUT", "2s")
	t.Setenv("AGI_COSMIC_TEST_ORIGINS", "http://a,http://b")
	t.Setenv("TEST_TIMEOUT", "9s")

	var cfg prefixedTestConfig
	if err := ParseEnvPrefixed(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Timeout != 2*time.Second {
		t.Fatalf("expected prefixed timeout 2s, got %v", cfg.Timeout)
	}
	if len(cfg.Origins) != 2 || cfg.Origins[1] != "http://b" {
		t.Fatalf("unexpected origins %v", cfg.Origins)
	}
}
