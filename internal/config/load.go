package config

import (
	"encoding/json"
	"os"

	"local-traffic/internal/applog"
)

// Load reads path, applies defaults and normalization, and returns the
// resulting Config. On a missing file: writes the default config to path
// when writeIfMissing is set, or returns defaults silently otherwise. On a
// parse failure: logs a warning and returns defaults (the prior config is
// never touched by Load itself — callers hold onto their last-good
// snapshot on reload failure).
func Load(path string, writeIfMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg := Default()
		if writeIfMissing {
			if writeErr := writeFile(path, cfg); writeErr != nil {
				return nil, writeErr
			}
		}
		return cfg, nil
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		applog.Warn("config: failed to parse %s, using defaults: %v", path, err)
		return Default(), nil
	}

	normalize(cfg)
	return cfg, nil
}

func writeFile(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Save persists cfg to path, used by the config:// POST handler.
func Save(path string, cfg *Config) error {
	return writeFile(path, cfg)
}
