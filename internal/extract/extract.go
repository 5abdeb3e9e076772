// Package extract sequences the pipeline stages for one PDF or HTML source
// and assembles the resulting reference.Outcome.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/matsen/refextract/internal/document"
	"github.com/matsen/refextract/internal/fallback"
	"github.com/matsen/refextract/internal/htmldoc"
	"github.com/matsen/refextract/internal/layout"
	"github.com/matsen/refextract/internal/parser"
	"github.com/matsen/refextract/internal/pdf"
	"github.com/matsen/refextract/internal/reference"
	"github.com/matsen/refextract/internal/section"
	"github.com/matsen/refextract/internal/splitter"
	"github.com/matsen/refextract/internal/validate"
)

// ErrSourceUnreadable is matched (via errors.Is) by every error returned for
// a source that could not be opened or parsed at all.
var ErrSourceUnreadable = errors.New("source unreadable")

// SourceError wraps the backend failure for one source.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source unreadable: %s: %v", e.Source, e.Err)
}

// Unwrap exposes both ErrSourceUnreadable and the underlying cause.
func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnreadable, e.Err}
}

// MsgSectionNotFound is recorded when no bibliography heading is confirmed
// and the tail of the document is used instead.
const MsgSectionNotFound = "section-not-found: no bibliography heading detected; using the end of the document"

// Config gathers the per-stage settings.
type Config struct {
	Layout   layout.Config   `yaml:",inline"`
	Section  section.Config  `yaml:",inline"`
	Splitter splitter.Config `yaml:",inline"`
	Validate validate.Config `yaml:",inline"`
	Fallback fallback.Config `yaml:",inline"`

	// Logger receives stage diagnostics. Nil means slog.Default().
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the standard settings for every stage.
func DefaultConfig() Config {
	return Config{
		Layout:   layout.DefaultConfig(),
		Section:  section.DefaultConfig(),
		Splitter: splitter.DefaultConfig(),
		Validate: validate.DefaultConfig(),
		Fallback: fallback.DefaultConfig(),
	}
}

// Extractor runs the pipeline. It keeps no per-call state, so one value may
// be reused for any number of sequential extractions; concurrent callers
// should each hold their own.
type Extractor struct {
	analyzer  *layout.Analyzer
	locator   *section.Locator
	splitter  *splitter.Splitter
	validator *validate.Validator
	parser    *parser.Parser
	fallbacks *fallback.Manager
	logger    *slog.Logger
	force     bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithForceFallbacks evaluates the fallback strategies even when the primary
// path meets the threshold.
func WithForceFallbacks() Option {
	return func(e *Extractor) {
		e.force = true
	}
}

// New returns an Extractor for cfg.
func New(cfg Config, opts ...Option) *Extractor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	v := validate.New(cfg.Validate)
	p := parser.New()
	e := &Extractor{
		analyzer:  layout.NewAnalyzer(cfg.Layout),
		locator:   section.NewLocator(cfg.Section),
		splitter:  splitter.New(cfg.Splitter, splitter.WithDetach(v.CaptionLed), splitter.WithDetachLines(v.CaptionLine)),
		validator: v,
		parser:    p,
		fallbacks: fallback.NewManager(cfg.Fallback, v, p, logger),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractPDF extracts citations from the PDF at path.
func (e *Extractor) ExtractPDF(path string) (*reference.Outcome, error) {
	doc, err := pdf.Open(path)
	if err != nil {
		return e.unreadable(path, err)
	}
	return e.ExtractDocument(doc)
}

// ExtractPDFReader extracts citations from an in-memory PDF.
func (e *Extractor) ExtractPDFReader(r io.ReaderAt, size int64, source string) (*reference.Outcome, error) {
	doc, err := pdf.Read(r, size, source)
	if err != nil {
		return e.unreadable(source, err)
	}
	return e.ExtractDocument(doc)
}

// ExtractPDFBytes is ExtractPDFReader over a byte slice.
func (e *Extractor) ExtractPDFBytes(data []byte, source string) (*reference.Outcome, error) {
	return e.ExtractPDFReader(bytes.NewReader(data), int64(len(data)), source)
}

// ExtractHTML extracts citations from an HTML page read from r. The charset
// is sniffed from the markup.
func (e *Extractor) ExtractHTML(source string, r io.Reader) (*reference.Outcome, error) {
	return e.ExtractHTMLTyped(source, r, "")
}

// ExtractHTMLTyped is ExtractHTML with the Content-Type the page was served
// with, used to pick the charset.
func (e *Extractor) ExtractHTMLTyped(source string, r io.Reader, contentType string) (*reference.Outcome, error) {
	doc, err := htmldoc.Read(r, contentType, source)
	if err != nil {
		return e.unreadable(source, err)
	}
	return e.ExtractDocument(doc)
}

// ExtractDocument runs the pipeline on a document a backend already built.
// The error is non-nil only for a nil document.
func (e *Extractor) ExtractDocument(doc *document.Document) (*reference.Outcome, error) {
	if doc == nil {
		return e.unreadable("", errors.New("no document"))
	}
	return e.run(doc), nil
}

func (e *Extractor) unreadable(source string, err error) (*reference.Outcome, error) {
	serr := &SourceError{Source: source, Err: err}
	out := reference.NewOutcome(source)
	out.AddError(serr.Error())
	e.logger.Warn("source unreadable", "source", source, "error", err)
	return out, serr
}

func (e *Extractor) run(src *document.Document) *reference.Outcome {
	// Work on a shallow copy so the caller's document is never changed.
	doc := *src
	out := reference.NewOutcome(doc.Source)

	lines := e.analyzer.ReadingOrder(doc.Pages)
	if doc.Text == "" {
		doc.Text = layout.Text(lines)
	}
	e.logger.Debug("layout", "source", doc.Source, "pages", len(doc.Pages), "tokens", doc.TokenCount(), "lines", len(lines))

	loc := e.locator.Locate(lines)
	if !loc.Found {
		out.AddError(MsgSectionNotFound)
	}
	e.logger.Debug("section", "found", loc.Found, "heading", loc.Heading, "start", loc.Start, "end", loc.End)

	var primary []reference.Citation
	if loc.Start < loc.End {
		primary = e.primary(layout.Text(lines[loc.Start:loc.End]), out)
	}

	res := e.fallbacks.Apply(&doc, primary, e.force)
	for _, msg := range res.Errors {
		out.AddError(msg)
	}
	out.SetCitations(res.Citations)

	e.logger.Info("extracted citations",
		"source", doc.Source,
		"kind", doc.Kind,
		"primary", len(primary),
		"fallback", res.Added,
		"total", out.TotalCitations,
		"errors", len(out.Errors))
	return out
}

// primary splits, validates and parses the bibliography text.
func (e *Extractor) primary(text string, out *reference.Outcome) []reference.Citation {
	split := e.splitter.Split(text)
	tally := e.validator.NewTally()

	var cs []reference.Citation
	for _, cand := range split.Candidates {
		d := e.validator.Check(cand.Text)
		tally.Add(d)
		if !d.Accept {
			e.logger.Debug("candidate rejected", "reason", d.Reason, "offset", cand.Offset)
			continue
		}
		cs = append(cs, e.parser.Parse(cand.Text))
	}
	for _, s := range tally.Close() {
		out.AddError(s)
	}
	e.logger.Debug("primary path",
		"strategy", split.Strategy,
		"candidates", len(split.Candidates),
		"accepted", tally.Accepted(),
		"rejected", tally.Rejected(),
		"reasons", tally.ByReason)
	return cs
}
