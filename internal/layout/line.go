// Package layout reconstructs reading order from positioned tokens: it groups
// tokens into lines, detects column gutters and emits lines column by column.
package layout

import (
	"math"
	"sort"
	"strings"

	"github.com/matsen/refextract/internal/document"
)

// Line is a run of tokens sharing a vertical band, ordered left to right.
type Line struct {
	Page   int
	Tokens []document.Token

	// ParagraphStart is set when the line opens a new block: a vertical gap
	// noticeably larger than the column's usual line spacing, or a
	// structural block boundary reported by the backend.
	ParagraphStart bool
}

// Text returns the line's tokens joined by single spaces.
func (l Line) Text() string {
	parts := make([]string, 0, len(l.Tokens))
	for _, t := range l.Tokens {
		parts = append(parts, t.Text)
	}
	return strings.Join(parts, " ")
}

// Left returns the smallest token left edge.
func (l Line) Left() float64 {
	v := math.Inf(1)
	for _, t := range l.Tokens {
		v = math.Min(v, t.Left)
	}
	return v
}

// Right returns the largest token right edge.
func (l Line) Right() float64 {
	v := math.Inf(-1)
	for _, t := range l.Tokens {
		v = math.Max(v, t.Right)
	}
	return v
}

// Top returns the smallest token top.
func (l Line) Top() float64 {
	v := math.Inf(1)
	for _, t := range l.Tokens {
		v = math.Min(v, t.Top)
	}
	return v
}

// CenterY returns the mean vertical centre of the line's tokens.
func (l Line) CenterY() float64 {
	if len(l.Tokens) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range l.Tokens {
		sum += t.CenterY()
	}
	return sum / float64(len(l.Tokens))
}

// MaxFontSize returns the largest font size on the line.
func (l Line) MaxFontSize() float64 {
	size := 0.0
	for _, t := range l.Tokens {
		size = math.Max(size, t.FontSize)
	}
	return size
}

// IsBold reports whether most of the line's characters are set in bold.
func (l Line) IsBold() bool {
	bold, total := 0, 0
	for _, t := range l.Tokens {
		n := len([]rune(t.Text))
		total += n
		if t.Bold {
			bold += n
		}
	}
	return total > 0 && bold*2 > total
}

// Text joins lines into one string: one line per row, with a blank line
// before every paragraph start.
func Text(lines []Line) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteString("\n")
			if l.ParagraphStart {
				b.WriteString("\n")
			}
		}
		b.WriteString(l.Text())
	}
	return b.String()
}

// groupLines clusters tokens into lines by vertical centre. Tokens whose
// centres lie within tol of the running band centre share a line.
func groupLines(tokens []document.Token, tol float64) [][]document.Token {
	sorted := make([]document.Token, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		return tokenLess(sorted[i], sorted[j])
	})

	var bands [][]document.Token
	var center float64
	for _, t := range sorted {
		n := len(bands)
		if n > 0 && math.Abs(t.CenterY()-center) <= tol {
			bands[n-1] = append(bands[n-1], t)
			k := float64(len(bands[n-1]))
			center += (t.CenterY() - center) / k
			continue
		}
		bands = append(bands, []document.Token{t})
		center = t.CenterY()
	}

	for _, band := range bands {
		sort.SliceStable(band, func(i, j int) bool {
			a, b := band[i], band[j]
			if a.Left != b.Left {
				return a.Left < b.Left
			}
			if a.Top != b.Top {
				return a.Top < b.Top
			}
			return a.Text < b.Text
		})
	}
	return bands
}

// tokenLess orders tokens top-to-bottom, then left-to-right, with the text
// as a final tie-break so the result never depends on input order.
func tokenLess(a, b document.Token) bool {
	if ca, cb := a.CenterY(), b.CenterY(); ca != cb {
		return ca < cb
	}
	if a.Left != b.Left {
		return a.Left < b.Left
	}
	if a.Right != b.Right {
		return a.Right < b.Right
	}
	return a.Text < b.Text
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
