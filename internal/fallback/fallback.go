// Package fallback runs secondary extraction strategies when the primary
// pipeline finds too few citations, and merges their output with the
// primary result.
package fallback

import (
	"fmt"
	"log/slog"

	"github.com/matsen/refextract/internal/document"
	"github.com/matsen/refextract/internal/parser"
	"github.com/matsen/refextract/internal/reference"
	"github.com/matsen/refextract/internal/validate"
)

// Kind names a fallback strategy. It is also the provenance value recorded
// under reference.MetadataExtractionMethod.
type Kind string

const (
	KindTable         Kind = "table"
	KindBibTeX        Kind = "bibtex"
	KindHTMLStructure Kind = "html_structure"
)

// Kinds lists the strategies in the order they run and merge.
var Kinds = []Kind{KindTable, KindBibTeX, KindHTMLStructure}

// label is the prefix used in diagnostics.
func (k Kind) label() string {
	switch k {
	case KindTable:
		return "Table fallback"
	case KindBibTeX:
		return "BibTeX fallback"
	case KindHTMLStructure:
		return "HTML structure fallback"
	}
	return string(k) + " fallback"
}

// notTriggered is the diagnostic for a strategy that found nothing to work on.
func (k Kind) notTriggered() string {
	switch k {
	case KindTable:
		return "No reference tables detected"
	case KindBibTeX:
		return "No BibTeX blocks detected"
	default:
		return "No structured citation elements found"
	}
}

// Diagnostics recorded in the outcome's error list.
const (
	MsgNoNewReferences = "No new unique references found"
	MsgAllFailed       = "All fallback strategies failed to extract new references"
)

// Config controls which strategies may run and when.
type Config struct {
	Enabled               bool `yaml:"enable_fallbacks"`
	EnableTable           bool `yaml:"enable_table_fallback"`
	EnableBibTeX          bool `yaml:"enable_bibtex_fallback"`
	EnableHTML            bool `yaml:"enable_html_fallback"`
	MinReferenceThreshold int  `yaml:"fallback_min_reference_threshold"`
	// DedupPrefix is how many normalized runes of raw text are compared
	// when merging.
	DedupPrefix int `yaml:"dedup_prefix"`
}

// DefaultConfig enables every strategy with a threshold of three.
func DefaultConfig() Config {
	return Config{
		Enabled:               true,
		EnableTable:           true,
		EnableBibTeX:          true,
		EnableHTML:            true,
		MinReferenceThreshold: 3,
		DedupPrefix:           100,
	}
}

func (c Config) enabled(k Kind) bool {
	switch k {
	case KindTable:
		return c.EnableTable
	case KindBibTeX:
		return c.EnableBibTeX
	case KindHTMLStructure:
		return c.EnableHTML
	}
	return false
}

// Result is the merged citation list plus diagnostics.
type Result struct {
	Citations []reference.Citation
	Errors    []string
	Ran       []Kind // strategies that were invoked, in order
	Added     int    // fallback citations that survived the merge
}

// Manager decides whether to augment a primary result and runs the
// strategies. It holds no per-call state.
type Manager struct {
	cfg       Config
	validator *validate.Validator
	parser    *parser.Parser
	logger    *slog.Logger

	// strategies overrides the built-in strategy for a kind; used by tests.
	strategies map[Kind]strategyFunc
}

type strategyFunc func(*document.Document) ([]reference.Citation, error)

// NewManager returns a Manager. A nil logger uses slog.Default().
func NewManager(cfg Config, v *validate.Validator, p *parser.Parser, logger *slog.Logger) *Manager {
	if cfg.DedupPrefix <= 0 {
		cfg.DedupPrefix = DefaultConfig().DedupPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, validator: v, parser: p, logger: logger}
}

// ShouldRun reports whether fallbacks apply to a primary result of the
// given size.
func (m *Manager) ShouldRun(primaryCount int, force bool) bool {
	if !m.cfg.Enabled {
		return false
	}
	return force || primaryCount < m.cfg.MinReferenceThreshold
}

// Apply returns the primary citations, augmented with the output of each
// triggered strategy when ShouldRun holds. Primary citations always come
// first and are never replaced; each fallback citation that duplicates an
// earlier one is dropped.
func (m *Manager) Apply(doc *document.Document, primary []reference.Citation, force bool) Result {
	res := Result{Citations: append([]reference.Citation(nil), primary...)}
	if !m.ShouldRun(len(primary), force) {
		return res
	}
	m.logger.Debug("running fallbacks", "source", doc.Source, "primary", len(primary), "force", force)

	seen := newFingerprints(m.cfg.DedupPrefix)
	for _, c := range primary {
		seen.add(c)
	}

	for _, kind := range Kinds {
		if !m.cfg.enabled(kind) || !applies(kind, doc) {
			continue
		}
		res.Ran = append(res.Ran, kind)

		found, err := m.run(kind, doc)
		if err != nil {
			m.logger.Warn("fallback strategy failed", "strategy", kind, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s failed: %v", kind.label(), err))
			continue
		}
		if len(found) == 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", kind.label(), kind.notTriggered()))
			continue
		}

		added := 0
		for _, c := range found {
			if !seen.add(c) {
				continue
			}
			res.Citations = append(res.Citations, c.WithMethod(string(kind)))
			added++
		}
		if added == 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", kind.label(), MsgNoNewReferences))
			continue
		}
		res.Added += added
		m.logger.Info("fallback added citations", "strategy", kind, "added", added)
	}

	if res.Added == 0 {
		res.Errors = append(res.Errors, MsgAllFailed)
	}
	return res
}

// applies reports whether a strategy can run on this kind of source.
func applies(k Kind, doc *document.Document) bool {
	return k != KindHTMLStructure || doc.Kind == document.KindHTML
}

// run invokes one strategy, converting a panic into an error so the
// remaining strategies still run.
func (m *Manager) run(kind Kind, doc *document.Document) (cs []reference.Citation, err error) {
	defer func() {
		if p := recover(); p != nil {
			cs = nil
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if fn, ok := m.strategies[kind]; ok {
		return fn(doc)
	}
	switch kind {
	case KindTable:
		return m.fromTables(doc), nil
	case KindBibTeX:
		return fromBibTeX(doc), nil
	case KindHTMLStructure:
		return m.fromHTMLStructure(doc)
	}
	return nil, fmt.Errorf("unknown strategy %q", kind)
}
