package layout

import (
	"math"
	"sort"

	"github.com/matsen/refextract/internal/document"
)

// Config holds the layout heuristics.
type Config struct {
	// LineTolerance is the fraction of the median token height within which
	// two token centres count as the same line.
	LineTolerance float64 `yaml:"line_tolerance"`
	// ColumnGapFraction is the minimum gutter width as a fraction of the
	// page width.
	ColumnGapFraction float64 `yaml:"column_gap_fraction"`
	// MaxColumns caps the number of columns per page.
	MaxColumns int `yaml:"max_columns"`
	// ParagraphGapRatio marks a paragraph start when the distance to the
	// previous line exceeds this multiple of the median line spacing.
	ParagraphGapRatio float64 `yaml:"paragraph_gap_ratio"`
	// NoiseFraction is the share of lines allowed to cross a gutter bin
	// (full-width titles, footers) before the bin stops counting as empty.
	NoiseFraction float64 `yaml:"noise_fraction"`
}

// DefaultConfig returns the standard layout heuristics.
func DefaultConfig() Config {
	return Config{
		LineTolerance:     0.5,
		ColumnGapFraction: 0.10,
		MaxColumns:        3,
		ParagraphGapRatio: 1.5,
		NoiseFraction:     0.05,
	}
}

// Column is a vertical band of lines, ordered top to bottom.
type Column struct {
	Index int
	Left  float64
	Right float64
	Lines []Line
}

// Analyzer turns pages of tokens into columns of lines.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer returns an Analyzer; zero fields in cfg take their defaults.
func NewAnalyzer(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.LineTolerance <= 0 {
		cfg.LineTolerance = def.LineTolerance
	}
	if cfg.ColumnGapFraction <= 0 {
		cfg.ColumnGapFraction = def.ColumnGapFraction
	}
	if cfg.MaxColumns <= 0 {
		cfg.MaxColumns = def.MaxColumns
	}
	if cfg.ParagraphGapRatio <= 0 {
		cfg.ParagraphGapRatio = def.ParagraphGapRatio
	}
	if cfg.NoiseFraction < 0 {
		cfg.NoiseFraction = def.NoiseFraction
	}
	return &Analyzer{cfg: cfg}
}

// ReadingOrder analyses every page and returns all lines in reading order:
// page by page, column by column, top to bottom.
func (a *Analyzer) ReadingOrder(pages []document.Page) []Line {
	var lines []Line
	for _, p := range pages {
		for _, col := range a.AnalyzePage(p) {
			lines = append(lines, col.Lines...)
		}
	}
	return lines
}

// AnalyzePage returns the page's columns sorted left to right. A page with
// no gutter yields a single column; a page with two tokens or fewer yields a
// single column holding a single line.
func (a *Analyzer) AnalyzePage(p document.Page) []Column {
	tokens := make([]document.Token, 0, len(p.Tokens))
	for _, t := range p.Tokens {
		if t.Text != "" {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) <= 2 {
		bands := groupLines(tokens, math.Inf(1))
		line := Line{Page: p.Number, Tokens: bands[0], ParagraphStart: bands[0][0].BlockStart}
		return []Column{newColumn(0, []Line{line})}
	}

	bands := groupLines(tokens, a.cfg.LineTolerance*medianHeight(tokens))
	gutters := a.findGutters(bands, pageWidth(p, tokens))

	perColumn := make([][]Line, len(gutters)+1)
	for _, band := range bands {
		for _, seg := range splitAtGutters(band, gutters) {
			idx := columnOf(seg, gutters)
			perColumn[idx] = append(perColumn[idx], Line{Page: p.Number, Tokens: seg})
		}
	}

	var cols []Column
	for _, lines := range perColumn {
		if len(lines) == 0 {
			continue
		}
		sort.SliceStable(lines, func(i, j int) bool {
			ci, cj := lines[i].CenterY(), lines[j].CenterY()
			if ci != cj {
				return ci < cj
			}
			return lines[i].Left() < lines[j].Left()
		})
		a.markParagraphs(lines)
		cols = append(cols, newColumn(len(cols), lines))
	}
	return cols
}

func newColumn(idx int, lines []Line) Column {
	col := Column{Index: idx, Left: math.Inf(1), Right: math.Inf(-1), Lines: lines}
	for _, l := range lines {
		col.Left = math.Min(col.Left, l.Left())
		col.Right = math.Max(col.Right, l.Right())
	}
	return col
}

// markParagraphs flags lines preceded by an unusually large vertical gap.
func (a *Analyzer) markParagraphs(lines []Line) {
	var spacings []float64
	for i := 1; i < len(lines); i++ {
		if d := lines[i].CenterY() - lines[i-1].CenterY(); d > 0 {
			spacings = append(spacings, d)
		}
	}
	typical := median(spacings)
	for i := range lines {
		if lines[i].Tokens[0].BlockStart {
			lines[i].ParagraphStart = true
			continue
		}
		if i == 0 || typical == 0 {
			continue
		}
		if lines[i].CenterY()-lines[i-1].CenterY() > a.cfg.ParagraphGapRatio*typical {
			lines[i].ParagraphStart = true
		}
	}
}

func medianHeight(tokens []document.Token) float64 {
	heights := make([]float64, 0, len(tokens))
	for _, t := range tokens {
		h := t.Height()
		if h <= 0 {
			h = t.FontSize
		}
		if h > 0 {
			heights = append(heights, h)
		}
	}
	if m := median(heights); m > 0 {
		return m
	}
	return 10
}

func pageWidth(p document.Page, tokens []document.Token) float64 {
	if p.Width > 0 {
		return p.Width
	}
	right := 0.0
	for _, t := range tokens {
		right = math.Max(right, t.Right)
	}
	return right
}
