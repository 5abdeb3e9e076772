package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := GlobalConfigPath(), "/custom/config/refx/config.yml"; got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	if got, want := GlobalConfigPath(), filepath.Join(home, ".config", "refx", "config.yml"); got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}
}

func TestDefaultStorePath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	if got, want := DefaultStorePath(), "/data/refx/refx.db"; got != want {
		t.Errorf("DefaultStorePath() = %q, want %q", got, want)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, GlobalConfigDir), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, GlobalConfigDir, GlobalConfigFile), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadGlobalConfig_NotFound(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	if cfg.Extraction.Fallback.MinReferenceThreshold != 3 {
		t.Errorf("missing file should give defaults, got threshold %d", cfg.Extraction.Fallback.MinReferenceThreshold)
	}
}

func TestLoadGlobalConfig_Valid(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()

	dir := writeConfig(t, `
enable_bibtex_fallback: false
fallback_min_reference_threshold: 5
column_gap_fraction: 0.08
caption_keywords: [figure, plate]
store_path: ~/refs/refx.db
user_agent: custom
`)
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	fb := cfg.Extraction.Fallback
	if fb.EnableBibTeX || !fb.EnableTable || fb.MinReferenceThreshold != 5 {
		t.Errorf("fallback config = %+v", fb)
	}
	if cfg.Extraction.Layout.ColumnGapFraction != 0.08 {
		t.Errorf("ColumnGapFraction = %v, want 0.08", cfg.Extraction.Layout.ColumnGapFraction)
	}
	if cfg.Extraction.Layout.LineTolerance != 0.5 {
		t.Errorf("unset key lost its default: LineTolerance = %v", cfg.Extraction.Layout.LineTolerance)
	}
	if kw := cfg.Extraction.Validate.CaptionKeywords; len(kw) != 2 || kw[1] != "plate" {
		t.Errorf("CaptionKeywords = %v", kw)
	}
	if strings.HasPrefix(cfg.StorePath, "~") {
		t.Errorf("StorePath %q was not expanded", cfg.StorePath)
	}
	if cfg.UserAgent != "custom" {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
}

func TestLoadGlobalConfig_EnvOverridesFile(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()

	t.Setenv("XDG_CONFIG_HOME", writeConfig(t, "fallback_min_reference_threshold: 5\n"))
	t.Setenv("REFX_FALLBACK_MIN_REFERENCE_THRESHOLD", "9")

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Extraction.Fallback.MinReferenceThreshold; got != 9 {
		t.Errorf("threshold = %d, want the environment value 9", got)
	}
}

func TestLoadGlobalConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "enable_fallbacks: [unclosed"},
		{"out of range", "column_gap_fraction: 1.5\n"},
		{"negative threshold", "fallback_min_reference_threshold: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetGlobalConfigCache()
			defer ResetGlobalConfigCache()
			t.Setenv("XDG_CONFIG_HOME", writeConfig(t, tt.body))

			if _, err := LoadGlobalConfig(); err == nil {
				t.Error("LoadGlobalConfig() error = nil, want error")
			}
		})
	}
}

func TestLoadGlobalConfig_InvalidIsErrInvalid(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()
	t.Setenv("XDG_CONFIG_HOME", writeConfig(t, "tail_fraction: 2\n"))

	if _, err := LoadGlobalConfig(); !errors.Is(err, ErrInvalid) {
		t.Errorf("LoadGlobalConfig() = %v, want ErrInvalid", err)
	}
}

func TestGlobalConfigCache(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()

	dir := writeConfig(t, "user_agent: first\n")
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := filepath.Join(dir, GlobalConfigDir, GlobalConfigFile)

	cfg1, _ := LoadGlobalConfig()
	if cfg1.UserAgent != "first" {
		t.Errorf("First load: UserAgent = %q, want first", cfg1.UserAgent)
	}

	os.WriteFile(path, []byte("user_agent: second\n"), 0644)

	cfg2, _ := LoadGlobalConfig()
	if cfg2.UserAgent != "first" {
		t.Errorf("Second load: UserAgent = %q, want first (cached)", cfg2.UserAgent)
	}

	ResetGlobalConfigCache()

	cfg3, _ := LoadGlobalConfig()
	if cfg3.UserAgent != "second" {
		t.Errorf("Third load: UserAgent = %q, want second", cfg3.UserAgent)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	if got := ExpandPath("~/x/y"); got != filepath.Join(home, "x/y") {
		t.Errorf("ExpandPath(~/x/y) = %q", got)
	}
	if got := ExpandPath("/abs"); got != "/abs" {
		t.Errorf("ExpandPath(/abs) = %q", got)
	}
}

func TestHelpfulConfigMessage(t *testing.T) {
	msg := HelpfulConfigMessage()
	if !strings.Contains(msg, "REFX_") || !strings.Contains(msg, GlobalConfigFile) {
		t.Errorf("HelpfulConfigMessage() = %q", msg)
	}
}
