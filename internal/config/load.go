package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting StoreConfig. Unset keys retain DefaultConfig's values since
// decoding starts from a pre-populated struct rather than a zero value.
func Load(path string, logger *slog.Logger) (*StoreConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("loading config file", "path", path)

	cfg := DefaultConfig()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Debug("config file parsed successfully", "path", path)

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// StoreConfig populated with all default values. This supports a
// zero-config first run: embedders can open a LocalStore without creating a
// config file at all.
func LoadOrDefault(path string, logger *slog.Logger) (*StoreConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("config file not found, using defaults", "path", path)

		return DefaultConfig(), nil
	}

	return Load(path, logger)
}

// ResolveConfigPath determines the config file path using the priority
// CLI flag > environment variable > platform default.
func ResolveConfigPath(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}

	path := defaultPath
	source := "default"

	if env.ConfigPath != "" {
		path = env.ConfigPath
		source = "env"
	}

	if cli.ConfigPath != "" {
		path = cli.ConfigPath
		source = "cli"
	}

	logger.Debug("config path resolved", "path", path, "source", source)

	return path
}

// Resolve runs the full four-layer chain: resolve the config path, load the
// file (or defaults), then layer env and CLI overrides on top. It validates
// the fully-resolved config before returning it.
func Resolve(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) (*StoreConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}

	path := ResolveConfigPath(env, cli, logger)

	cfg, err := LoadOrDefault(path, logger)
	if err != nil {
		return nil, err
	}

	cfg = ApplyOverrides(cfg, env, cli)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed after overrides: %w", err)
	}

	logger.Debug("config resolved",
		"gc_policy", cfg.GC.Policy,
		"persistence_backend", cfg.Persistence.Backend,
	)

	return cfg, nil
}
