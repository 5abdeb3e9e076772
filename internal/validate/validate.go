// Package validate decides whether a candidate span is a citation or
// non-citation noise such as a figure or table caption.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/matsen/refextract/internal/ident"
)

// Reasons reported by Check.
const (
	ReasonTooShort      = "too-short"
	ReasonCaption       = "caption"
	ReasonCaptionNoCite = "caption-without-citation-signal"
	ReasonSignal        = "citation-signal"
	ReasonDefault       = "accepted-by-default"
)

// Config holds the validator thresholds.
type Config struct {
	MinWords         int      `yaml:"min_words"`
	CaptionMaxWords  int      `yaml:"caption_max_words"`
	SubstantialWords int      `yaml:"substantial_words"`
	CaptionKeywords  []string `yaml:"caption_keywords"`
	// RejectRunAlert is the length of a run of consecutive rejections that
	// gets reported as an extraction error.
	RejectRunAlert int `yaml:"reject_run_alert"`
}

// DefaultConfig returns the standard validator thresholds.
func DefaultConfig() Config {
	return Config{
		MinWords:         3,
		CaptionMaxWords:  6,
		SubstantialWords: 8,
		CaptionKeywords:  []string{"figure", "fig.", "fig", "table", "scheme", "supplementary", "supplement", "appendix"},
		RejectRunAlert:   5,
	}
}

// Decision is the validator verdict for one candidate.
type Decision struct {
	Accept bool
	Reason string
}

// authorPattern matches a capitalized surname followed by a comma.
var authorPattern = regexp.MustCompile(`\b\p{Lu}[\p{L}'\-]+,\s`)

// Validator applies the caption and length rules.
type Validator struct {
	cfg      Config
	keywords []string
}

// New returns a Validator; zero fields in cfg take their defaults.
func New(cfg Config) *Validator {
	def := DefaultConfig()
	if cfg.MinWords <= 0 {
		cfg.MinWords = def.MinWords
	}
	if cfg.CaptionMaxWords <= 0 {
		cfg.CaptionMaxWords = def.CaptionMaxWords
	}
	if cfg.SubstantialWords <= 0 {
		cfg.SubstantialWords = def.SubstantialWords
	}
	if len(cfg.CaptionKeywords) == 0 {
		cfg.CaptionKeywords = def.CaptionKeywords
	}
	if cfg.RejectRunAlert <= 0 {
		cfg.RejectRunAlert = def.RejectRunAlert
	}
	kw := make([]string, len(cfg.CaptionKeywords))
	for i, k := range cfg.CaptionKeywords {
		kw[i] = strings.ToLower(k)
	}
	// Longest first so "fig." wins over "fig".
	sort.SliceStable(kw, func(i, j int) bool { return len(kw[i]) > len(kw[j]) })
	return &Validator{cfg: cfg, keywords: kw}
}

// Check applies the rules in order: too few words rejects; a citation signal
// on a substantial span accepts even when it opens with a caption word; a
// short caption-led span rejects, as does a caption-led span with no
// citation signal at all; anything else is accepted.
func (v *Validator) Check(text string) Decision {
	words := len(strings.Fields(text))
	if words < v.cfg.MinWords {
		return Decision{Reason: ReasonTooShort}
	}

	signal := HasCitationSignal(text)
	if signal && words > v.cfg.SubstantialWords {
		return Decision{Accept: true, Reason: ReasonSignal}
	}

	if v.CaptionLed(text) {
		if words < v.cfg.CaptionMaxWords {
			return Decision{Reason: ReasonCaption}
		}
		if !signal {
			return Decision{Reason: ReasonCaptionNoCite}
		}
	}
	return Decision{Accept: true, Reason: ReasonDefault}
}

// CaptionLed reports whether text opens with a caption keyword as a whole
// word, e.g. "Figure 3:", "Fig. 2", "Table S1".
func (v *Validator) CaptionLed(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range v.keywords {
		if !strings.HasPrefix(lower, kw) {
			continue
		}
		rest := lower[len(kw):]
		if rest == "" || strings.HasSuffix(kw, ".") {
			return true
		}
		switch c := rest[0]; {
		case c == ' ' || c == '.' || c == ':' || c == '\t':
			return true
		case c >= '0' && c <= '9':
			return true
		case c == 's' && len(rest) > 1 && rest[1] >= '0' && rest[1] <= '9':
			return true // "Table S1"
		}
	}
	return false
}

// captionLabel matches the number that follows a caption keyword: "3:",
// " 4.", " S1".
var captionLabel = regexp.MustCompile(`^\s?s?\d+[a-z]?(?:[.:|)]|\s|$)`)

// CaptionLine reports whether a line opens a numbered caption such as
// "Figure 3:" or "Table S1.". It is stricter than CaptionLed so that a
// wrapped citation line beginning "Table of ..." is left alone.
func (v *Validator) CaptionLine(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	for _, kw := range v.keywords {
		if strings.HasPrefix(lower, kw) && captionLabel.MatchString(lower[len(kw):]) {
			return true
		}
	}
	return false
}

// HasCitationSignal reports whether text carries a plausible year, a DOI or
// an author-shaped "Surname," token.
func HasCitationSignal(text string) bool {
	return ident.HasYear(text) || ident.DOIPattern.MatchString(text) || authorPattern.MatchString(text)
}

// Tally accumulates decisions for one section so that long runs of
// rejections can be surfaced as extraction errors.
type Tally struct {
	alert     int
	run       int
	runStart  int
	seen      int
	accepted  int
	ByReason  map[string]int
	Summaries []string
}

// NewTally returns an empty tally using the validator's alert threshold.
func (v *Validator) NewTally() *Tally {
	return &Tally{alert: v.cfg.RejectRunAlert, ByReason: make(map[string]int)}
}

// Add records the decision for the next candidate in order.
func (t *Tally) Add(d Decision) {
	t.ByReason[d.Reason]++
	if d.Accept {
		t.accepted++
		t.flush()
	} else {
		if t.run == 0 {
			t.runStart = t.seen
		}
		t.run++
	}
	t.seen++
}

// Close ends the sequence and returns the rejection-run summaries.
func (t *Tally) Close() []string {
	t.flush()
	return t.Summaries
}

// Accepted returns the number of accepted candidates.
func (t *Tally) Accepted() int { return t.accepted }

// Rejected returns the number of rejected candidates.
func (t *Tally) Rejected() int { return t.seen - t.accepted }

func (t *Tally) flush() {
	if t.run >= t.alert {
		t.Summaries = append(t.Summaries, fmt.Sprintf(
			"candidate-rejected: %d consecutive candidates rejected (candidates %d-%d)",
			t.run, t.runStart+1, t.runStart+t.run))
	}
	t.run = 0
}
