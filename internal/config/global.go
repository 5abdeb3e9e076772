// Package config handles the refx configuration file and its environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "refx"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
	// DataDir is the directory name under XDG_DATA_HOME.
	DataDir = "refx"
	// DBFile is the default outcome store file name.
	DBFile = "refx.db"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *Config

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/refx/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// DefaultStorePath returns the default outcome store location.
// Respects XDG_DATA_HOME, defaults to ~/.local/share/refx/refx.db.
func DefaultStorePath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return DBFile
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, DataDir, DBFile)
}

// LoadGlobalConfig loads the global configuration: defaults, then the
// config file, then REFX_* environment variables. A missing file is not an
// error. The result is validated and cached.
func LoadGlobalConfig() (*Config, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}
	cfg, err := LoadFile(GlobalConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	globalConfigCache = cfg
	return cfg, nil
}

// LoadFile reads the YAML file at path over the defaults. An empty path or
// a missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}
	cfg.StorePath = ExpandPath(cfg.StorePath)
	return cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}

// HelpfulConfigMessage explains where settings come from.
func HelpfulConfigMessage() string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`Settings are read from %s when it exists.

Tip: lower the fallback threshold with
  mkdir -p %s
  echo 'fallback_min_reference_threshold: 1' > %s

Any key can also be set in the environment (or a .env file) as REFX_<KEY>,
for example REFX_FALLBACK_MIN_REFERENCE_THRESHOLD=1.`,
		configPath,
		filepath.Dir(configPath),
		configPath)
}
