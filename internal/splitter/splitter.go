// Package splitter cuts a bibliography section into individual citation
// candidates.
package splitter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/matsen/refextract/internal/ident"
)

// Strategy names the rule that produced a split.
type Strategy string

const (
	StrategyBracketed Strategy = "bracketed"
	StrategyNumbered  Strategy = "numbered"
	StrategyDOI       Strategy = "doi"
	StrategyYear      Strategy = "year"
	StrategyBlankLine Strategy = "blank_line"
	StrategyNone      Strategy = "none"
)

// Config holds the splitter heuristics.
type Config struct {
	// MinAvgChars and MaxAvgChars bound the mean candidate length for a
	// split to count as consistent with the text.
	MinAvgChars int `yaml:"min_avg_chars"`
	MaxAvgChars int `yaml:"max_avg_chars"`
	// OversizeChars is the length above which an unsplit section is
	// re-tried with year anchors.
	OversizeChars int `yaml:"oversize_chars"`
	// YearWindow is how far into a line a year may appear and still mark
	// the start of a citation.
	YearWindow int `yaml:"year_window"`
}

// DefaultConfig returns the standard splitter settings.
func DefaultConfig() Config {
	return Config{
		MinAvgChars:   20,
		MaxAvgChars:   1500,
		OversizeChars: 600,
		YearWindow:    120,
	}
}

// Candidate is a contiguous span believed to hold one citation.
type Candidate struct {
	Text   string // cleaned text, never empty
	Offset int    // byte offset of the span in the section text
}

// Result is the outcome of splitting a section.
type Result struct {
	Candidates []Candidate
	Strategy   Strategy
}

var (
	bracketMarker  = regexp.MustCompile(`(?m)^[ \t]*\[(\d{1,4})\][ \t]*`)
	numberedMarker = regexp.MustCompile(`(?m)^[ \t]*(\d{1,4})\.[ \t]+`)
	blankLine      = regexp.MustCompile(`\n[ \t]*\n`)
	lineYear       = regexp.MustCompile(`\((?:1[89]|20)\d{2}[a-z]?\)|\b(?:1[89]|20)\d{2}[a-z]?\.`)
)

// Splitter splits section text into candidates.
type Splitter struct {
	cfg        Config
	detach     func(paragraph string) bool
	detachLine func(line string) bool
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithDetach makes the splitter cut out any paragraph inside a candidate for
// which fn returns true and emit it as a candidate of its own. The
// orchestrator uses it to lift figure and table captions that float between
// citations out of the citation they interrupt.
func WithDetach(fn func(paragraph string) bool) Option {
	return func(s *Splitter) {
		s.detach = fn
	}
}

// WithDetachLines makes the splitter cut a candidate at the first line after
// its opening line for which fn returns true. That line and the rest of its
// paragraph become a candidate of their own. This catches captions set
// with ordinary line spacing between two citations.
func WithDetachLines(fn func(line string) bool) Option {
	return func(s *Splitter) {
		s.detachLine = fn
	}
}

// New returns a Splitter; zero fields in cfg take their defaults.
func New(cfg Config, opts ...Option) *Splitter {
	def := DefaultConfig()
	if cfg.MinAvgChars <= 0 {
		cfg.MinAvgChars = def.MinAvgChars
	}
	if cfg.MaxAvgChars <= 0 {
		cfg.MaxAvgChars = def.MaxAvgChars
	}
	if cfg.OversizeChars <= 0 {
		cfg.OversizeChars = def.OversizeChars
	}
	if cfg.YearWindow <= 0 {
		cfg.YearWindow = def.YearWindow
	}
	s := &Splitter{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Split tries the strategies in priority order and returns the first split
// that yields at least two candidates with a plausible mean length. When
// none does, the blank-line split (or the whole text) is returned with
// StrategyNone.
func (s *Splitter) Split(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Strategy: StrategyNone}
	}

	if c := s.markerSplit(text, bracketMarker); s.consistent(c) {
		return Result{Candidates: c, Strategy: StrategyBracketed}
	}
	if c := s.markerSplit(text, numberedMarker); s.consistent(c) {
		return Result{Candidates: c, Strategy: StrategyNumbered}
	}
	if c := s.doiSplit(text); s.consistent(c) {
		return Result{Candidates: c, Strategy: StrategyDOI}
	}

	blank := blankSplit(text)
	if len(blank) <= 1 && len(strings.TrimSpace(text)) > s.cfg.OversizeChars {
		if c := s.yearSplit(text); s.consistent(c) {
			return Result{Candidates: c, Strategy: StrategyYear}
		}
	}
	if s.consistent(blank) {
		return Result{Candidates: blank, Strategy: StrategyBlankLine}
	}
	return Result{Candidates: blank, Strategy: StrategyNone}
}

func (s *Splitter) consistent(cands []Candidate) bool {
	if len(cands) < 2 {
		return false
	}
	total := 0
	for _, c := range cands {
		total += len(c.Text)
	}
	avg := total / len(cands)
	return avg >= s.cfg.MinAvgChars && avg <= s.cfg.MaxAvgChars
}

// markerSplit cuts at enumerator markers. Only markers that form the longest
// run of consecutive numbers are used, so a year or page number that
// happens to open a line does not start a new candidate. The marker itself
// is dropped from the candidate text.
func (s *Splitter) markerSplit(text string, marker *regexp.Regexp) []Candidate {
	matches := marker.FindAllStringSubmatchIndex(text, -1)
	if len(matches) < 2 {
		return nil
	}
	nums := make([]int, len(matches))
	for i, m := range matches {
		nums[i], _ = strconv.Atoi(text[m[2]:m[3]])
	}

	var best []int
	for start := range matches {
		chain := []int{start}
		want := nums[start] + 1
		for j := start + 1; j < len(matches); j++ {
			if nums[j] == want {
				chain = append(chain, j)
				want++
			}
		}
		if len(chain) > len(best) {
			best = chain
		}
	}
	if len(best) < 2 {
		return nil
	}

	var cands []Candidate
	for k, idx := range best {
		from := matches[idx][1]
		to := len(text)
		if k+1 < len(best) {
			to = matches[best[k+1]][0]
		}
		cands = s.emit(cands, text, from, to)
	}
	return cands
}

// doiSplit treats each DOI as the end of a citation: the cut falls at the
// end of the line holding the DOI, so trailing identifiers on that line stay
// with their citation. Text after the last DOI becomes a final candidate.
// Cutting immediately before each DOI would instead glue every DOI to the
// following citation, since reference styles print the DOI last; this pass
// deliberately cuts after it.
func (s *Splitter) doiSplit(text string) []Candidate {
	locs := ident.DOIPattern.FindAllStringIndex(text, -1)
	if len(locs) < 2 {
		return nil
	}
	var cands []Candidate
	from := 0
	for _, loc := range locs {
		if loc[0] < from {
			continue
		}
		to := len(text)
		if nl := strings.IndexByte(text[loc[1]:], '\n'); nl >= 0 {
			to = loc[1] + nl
		}
		cands = s.emit(cands, text, from, to)
		from = to
	}
	return s.emit(cands, text, from, len(text))
}

// yearSplit starts a new candidate at every line whose opening characters
// carry a "(YYYY)" or "YYYY." year, the usual author-date shape.
func (s *Splitter) yearSplit(text string) []Candidate {
	var starts []int
	off := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		head := line
		if len(head) > s.cfg.YearWindow {
			head = head[:s.cfg.YearWindow]
		}
		if strings.TrimSpace(line) != "" && lineYear.MatchString(head) {
			starts = append(starts, off)
		}
		off += len(line)
	}
	if len(starts) < 2 {
		return nil
	}
	var cands []Candidate
	if starts[0] > 0 {
		cands = s.emit(cands, text, 0, starts[0])
	}
	for i, from := range starts {
		to := len(text)
		if i+1 < len(starts) {
			to = starts[i+1]
		}
		cands = s.emit(cands, text, from, to)
	}
	return cands
}

func blankSplit(text string) []Candidate {
	var cands []Candidate
	from := 0
	for _, loc := range blankLine.FindAllStringIndex(text, -1) {
		cands = appendCandidate(cands, text, from, loc[0])
		from = loc[1]
	}
	return appendCandidate(cands, text, from, len(text))
}

// emit appends the candidate for text[from:to], first lifting out any
// detachable paragraphs after the first one and any detachable line after
// the opening line. The remaining text is joined into one citation,
// followed by the detached pieces in order.
func (s *Splitter) emit(cands []Candidate, text string, from, to int) []Candidate {
	if s.detach == nil && s.detachLine == nil {
		return appendCandidate(cands, text, from, to)
	}

	var kept strings.Builder
	keptOffset := -1
	var detached []Candidate
	for i, p := range paragraphs(text, from, to) {
		if i > 0 && s.detach != nil && s.detach(Clean(text[p[0]:p[1]])) {
			detached = appendCandidate(detached, text, p[0], p[1])
			continue
		}
		end := p[1]
		if cut := s.detachedLine(text, p[0], p[1], i == 0); cut >= 0 {
			detached = appendCandidate(detached, text, cut, p[1])
			end = cut
		}
		para := text[p[0]:end]
		if strings.TrimSpace(para) == "" {
			continue
		}
		if keptOffset < 0 {
			keptOffset = p[0] + len(para) - len(strings.TrimLeft(para, " \t\r\n"))
		}
		kept.WriteString(para)
		kept.WriteString("\n")
	}
	if cleaned := Clean(kept.String()); cleaned != "" {
		cands = append(cands, Candidate{Text: cleaned, Offset: keptOffset})
	}
	return append(cands, detached...)
}

// paragraphs returns the blank-line separated spans of text[from:to].
func paragraphs(text string, from, to int) [][2]int {
	var out [][2]int
	pFrom := from
	for _, br := range blankLine.FindAllStringIndex(text[from:to], -1) {
		out = append(out, [2]int{pFrom, from + br[0]})
		pFrom = from + br[1]
	}
	return append(out, [2]int{pFrom, to})
}

// detachedLine returns the offset of the first line in text[from:to] that
// detachLine accepts, or -1. With skipFirst the first non-blank line is
// never a cut point.
func (s *Splitter) detachedLine(text string, from, to int, skipFirst bool) int {
	if s.detachLine == nil {
		return -1
	}
	off := from
	for _, line := range strings.SplitAfter(text[from:to], "\n") {
		start := off
		off += len(line)
		if strings.TrimSpace(line) == "" {
			continue
		}
		if skipFirst {
			skipFirst = false
			continue
		}
		if s.detachLine(strings.TrimSpace(line)) {
			return start
		}
	}
	return -1
}

func appendCandidate(cands []Candidate, text string, from, to int) []Candidate {
	span := text[from:to]
	trimmed := strings.TrimLeft(span, " \t\r\n")
	cleaned := Clean(trimmed)
	if cleaned == "" {
		return cands
	}
	return append(cands, Candidate{Text: cleaned, Offset: from + len(span) - len(trimmed)})
}

var (
	hyphenBreak = regexp.MustCompile(`(\p{Ll})-[ \t]*\r?\n[ \t]*(\p{Ll})`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Clean joins soft line wraps, repairs end-of-line hyphenation of lower-case
// words and collapses runs of whitespace.
func Clean(s string) string {
	s = hyphenBreak.ReplaceAllString(s, "$1$2")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
