// Package config loads process configuration: defaults, an optional YAML
// file, then ARENA_-prefixed environment variables, in that order.
package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config contains the battle server's settings.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":5103".
	Addr string `koanf:"addr"`

	// DatabaseURL is the Postgres DSN. Empty selects the in-memory store
	// (development only; state does not survive a restart).
	DatabaseURL string `koanf:"database_url"`

	// BackendURL is the generation backend the arena relays to.
	BackendURL string `koanf:"backend_url"`

	// APIKey, when set, is required as a bearer token on chat completions.
	APIKey string `koanf:"api_key"`

	// ModelMapPath points at the model endpoint map JSON file.
	ModelMapPath string `koanf:"model_map_path"`

	// ArenaModelID is the only model id the chat endpoint accepts.
	ArenaModelID string `koanf:"arena_model_id"`

	// AutoMigrate applies the schema on startup.
	AutoMigrate bool `koanf:"auto_migrate"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		Addr:         ":5103",
		BackendURL:   "http://127.0.0.1:5102",
		ModelMapPath: "model_endpoint_map.json",
		ArenaModelID: "battle-arena",
		LogLevel:     "info",
	}
}

// Load layers defaults, the YAML file named by ARENA_CONFIG (if any), and
// ARENA_* environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv("ARENA_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// ARENA_DATABASE_URL -> database_url, keeping underscores to match tags.
	envProvider := env.Provider("ARENA_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "arena_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.Addr == "" {
		return nil, errors.New("addr must not be empty")
	}
	if cfg.BackendURL == "" {
		return nil, errors.New("backend_url must not be empty")
	}
	if cfg.ArenaModelID == "" {
		return nil, errors.New("arena_model_id must not be empty")
	}
	return &cfg, nil
}
