package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matsen/refextract/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration after defaults, the config file and
REFX_* environment overrides are applied.

Usage:
  refx config                                    # Show all settings
  refx config fallback_min_reference_threshold   # Show one setting

Keys use the config file spelling; dashes are accepted for underscores.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfig,
}

// ConfigResponse is the JSON body of the config command.
type ConfigResponse struct {
	Path     string         `json:"path"`
	Settings map[string]any `json:"settings"`
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

	settings, err := configSettings(cfg)
	if err != nil {
		exitWithError(ExitError, "encoding config: %v", err)
	}

	if len(args) == 1 {
		key := strings.ReplaceAll(args[0], "-", "_")
		v, ok := settings[key]
		if !ok {
			exitWithError(ExitConfigError, "unknown config key %q", args[0])
		}
		if humanOutput {
			outputHuman("%v\n", v)
			return nil
		}
		return outputJSON(map[string]any{key: v})
	}

	if humanOutput {
		outputHuman("# %s (env prefix %s)\n", config.GlobalConfigPath(), config.EnvPrefix)
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			outputHuman("%s: %v\n", k, settings[k])
		}
		return nil
	}
	return outputJSON(ConfigResponse{Path: config.GlobalConfigPath(), Settings: settings})
}

// configSettings flattens cfg to its config file keys.
func configSettings(cfg *config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	settings := make(map[string]any)
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return settings, nil
}
