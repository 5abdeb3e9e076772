package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/matsen/refextract/internal/extract"
)

// Config is the effective refx configuration. Pipeline settings sit at the
// top level of the YAML file next to the tool settings.
type Config struct {
	Extraction extract.Config `yaml:",inline"`

	StorePath   string  `yaml:"store_path,omitempty"`
	UserAgent   string  `yaml:"user_agent,omitempty"`
	RequestRate float64 `yaml:"request_rate"`  // requests per second
	MaxBodySize int64   `yaml:"max_body_size"` // bytes read from a fetched page
}

// Fetcher defaults.
const (
	DefaultUserAgent   = "refx/0.1 (+https://github.com/matsen/refextract)"
	DefaultRequestRate = 1.0
	DefaultMaxBodySize = 50 << 20
)

// ErrInvalid is wrapped by every Validate error.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix is prepended to the upper-snake form of a YAML key to name its
// environment override.
const EnvPrefix = "REFX_"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Extraction:  extract.DefaultConfig(),
		StorePath:   DefaultStorePath(),
		UserAgent:   DefaultUserAgent,
		RequestRate: DefaultRequestRate,
		MaxBodySize: DefaultMaxBodySize,
	}
}

// Validate rejects negative thresholds and out-of-range fractions.
func (c *Config) Validate() error {
	e := c.Extraction
	checks := []struct {
		ok  bool
		msg string
	}{
		{e.Fallback.MinReferenceThreshold >= 0, fmt.Sprintf("fallback_min_reference_threshold must not be negative, got %d", e.Fallback.MinReferenceThreshold)},
		{e.Fallback.DedupPrefix >= 0, fmt.Sprintf("dedup_prefix must not be negative, got %d", e.Fallback.DedupPrefix)},
		{e.Layout.ColumnGapFraction > 0 && e.Layout.ColumnGapFraction < 1, fmt.Sprintf("column_gap_fraction must be in (0, 1), got %v", e.Layout.ColumnGapFraction)},
		{e.Layout.LineTolerance > 0 && e.Layout.LineTolerance <= 2, fmt.Sprintf("line_tolerance must be in (0, 2], got %v", e.Layout.LineTolerance)},
		{e.Layout.NoiseFraction >= 0 && e.Layout.NoiseFraction < 1, fmt.Sprintf("noise_fraction must be in [0, 1), got %v", e.Layout.NoiseFraction)},
		{e.Layout.MaxColumns >= 1, fmt.Sprintf("max_columns must be at least 1, got %d", e.Layout.MaxColumns)},
		{e.Section.TailFraction > 0 && e.Section.TailFraction < 1, fmt.Sprintf("tail_fraction must be in (0, 1), got %v", e.Section.TailFraction)},
		{e.Validate.MinWords >= 0, fmt.Sprintf("min_words must not be negative, got %d", e.Validate.MinWords)},
		{e.Splitter.MinAvgChars >= 0 && e.Splitter.MaxAvgChars >= e.Splitter.MinAvgChars, fmt.Sprintf("min_avg_chars/max_avg_chars out of order: %d/%d", e.Splitter.MinAvgChars, e.Splitter.MaxAvgChars)},
		{c.RequestRate >= 0, fmt.Sprintf("request_rate must not be negative, got %v", c.RequestRate)},
		{c.MaxBodySize >= 0, fmt.Sprintf("max_body_size must not be negative, got %d", c.MaxBodySize)},
	}
	for _, ch := range checks {
		if !ch.ok {
			return fmt.Errorf("%w: %s", ErrInvalid, ch.msg)
		}
	}
	return nil
}

// envVar binds one YAML key to its field.
type envVar struct {
	key string
	set func(string) error
}

func boolVar(key string, p *bool) envVar {
	return envVar{key, func(s string) error {
		v, err := strconv.ParseBool(s)
		if err == nil {
			*p = v
		}
		return err
	}}
}

func intVar(key string, p *int) envVar {
	return envVar{key, func(s string) error {
		v, err := strconv.Atoi(s)
		if err == nil {
			*p = v
		}
		return err
	}}
}

func int64Var(key string, p *int64) envVar {
	return envVar{key, func(s string) error {
		v, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			*p = v
		}
		return err
	}}
}

func floatVar(key string, p *float64) envVar {
	return envVar{key, func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err == nil {
			*p = v
		}
		return err
	}}
}

func stringVar(key string, p *string) envVar {
	return envVar{key, func(s string) error {
		*p = s
		return nil
	}}
}

func (c *Config) envVars() []envVar {
	e := &c.Extraction
	return []envVar{
		boolVar("enable_fallbacks", &e.Fallback.Enabled),
		boolVar("enable_table_fallback", &e.Fallback.EnableTable),
		boolVar("enable_bibtex_fallback", &e.Fallback.EnableBibTeX),
		boolVar("enable_html_fallback", &e.Fallback.EnableHTML),
		intVar("fallback_min_reference_threshold", &e.Fallback.MinReferenceThreshold),
		intVar("dedup_prefix", &e.Fallback.DedupPrefix),
		floatVar("column_gap_fraction", &e.Layout.ColumnGapFraction),
		floatVar("line_tolerance", &e.Layout.LineTolerance),
		intVar("max_columns", &e.Layout.MaxColumns),
		floatVar("tail_fraction", &e.Section.TailFraction),
		intVar("min_words", &e.Validate.MinWords),
		stringVar("store_path", &c.StorePath),
		stringVar("user_agent", &c.UserAgent),
		floatVar("request_rate", &c.RequestRate),
		int64Var("max_body_size", &c.MaxBodySize),
	}
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + toUpperSnake(key)
}

// ApplyEnv overrides fields from REFX_* variables found by lookup. Empty
// values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, v := range c.envVars() {
		name := EnvName(v.key)
		s, ok := lookup(name)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		if err := v.set(strings.TrimSpace(s)); err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, name, s, err)
		}
	}
	c.StorePath = ExpandPath(c.StorePath)
	return nil
}

// toUpperSnake converts a key such as "line-tolerance" to LINE_TOLERANCE.
func toUpperSnake(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-' || r == '.':
			b.WriteByte('_')
		}
	}
	return b.String()
}
