package config

import (
	"errors"
	"testing"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if !cfg.Extraction.Fallback.Enabled || cfg.Extraction.Fallback.MinReferenceThreshold != 3 {
		t.Errorf("fallback defaults = %+v", cfg.Extraction.Fallback)
	}
	if cfg.Extraction.Layout.ColumnGapFraction != 0.10 || cfg.Extraction.Layout.LineTolerance != 0.5 {
		t.Errorf("layout defaults = %+v", cfg.Extraction.Layout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative threshold", func(c *Config) { c.Extraction.Fallback.MinReferenceThreshold = -1 }},
		{"gap fraction zero", func(c *Config) { c.Extraction.Layout.ColumnGapFraction = 0 }},
		{"gap fraction one", func(c *Config) { c.Extraction.Layout.ColumnGapFraction = 1 }},
		{"line tolerance negative", func(c *Config) { c.Extraction.Layout.LineTolerance = -0.1 }},
		{"tail fraction", func(c *Config) { c.Extraction.Section.TailFraction = 1.5 }},
		{"no columns", func(c *Config) { c.Extraction.Layout.MaxColumns = 0 }},
		{"avg chars reversed", func(c *Config) { c.Extraction.Splitter.MaxAvgChars = 5 }},
		{"negative rate", func(c *Config) { c.RequestRate = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"REFX_FALLBACK_MIN_REFERENCE_THRESHOLD": "7",
		"REFX_ENABLE_TABLE_FALLBACK":            "false",
		"REFX_COLUMN_GAP_FRACTION":              "0.2",
		"REFX_USER_AGENT":                       "test-agent",
		"REFX_MAX_BODY_SIZE":                    "1024",
		"REFX_REQUEST_RATE":                     "  ",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Extraction.Fallback.MinReferenceThreshold != 7 {
		t.Errorf("threshold = %d, want 7", cfg.Extraction.Fallback.MinReferenceThreshold)
	}
	if cfg.Extraction.Fallback.EnableTable {
		t.Error("EnableTable should be false")
	}
	if cfg.Extraction.Layout.ColumnGapFraction != 0.2 {
		t.Errorf("ColumnGapFraction = %v, want 0.2", cfg.Extraction.Layout.ColumnGapFraction)
	}
	if cfg.UserAgent != "test-agent" || cfg.MaxBodySize != 1024 {
		t.Errorf("UserAgent/MaxBodySize = %q/%d", cfg.UserAgent, cfg.MaxBodySize)
	}
	if cfg.RequestRate != DefaultRequestRate {
		t.Errorf("blank override changed RequestRate to %v", cfg.RequestRate)
	}
}

func TestApplyEnv_BadValue(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "REFX_ENABLE_FALLBACKS" {
			return "maybe", true
		}
		return "", false
	}
	if err := Default().ApplyEnv(lookup); !errors.Is(err, ErrInvalid) {
		t.Errorf("ApplyEnv() = %v, want ErrInvalid", err)
	}
}

func TestEnvName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"line_tolerance", "REFX_LINE_TOLERANCE"},
		{"line-tolerance", "REFX_LINE_TOLERANCE"},
		{"MaxColumns", "REFX_MAXCOLUMNS"},
		{"test123", "REFX_TEST123"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := EnvName(tt.input); got != tt.want {
				t.Errorf("EnvName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
