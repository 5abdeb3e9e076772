// Package doctest builds synthetic token pages for tests.
package doctest

import (
	"math/rand"
	"strings"

	"github.com/matsen/refextract/internal/document"
)

const (
	// FontSize is the body font size of synthetic pages.
	FontSize = 10.0
	// CharWidth is the advance of one character at FontSize.
	CharWidth = 5.0
	// LineHeight is the baseline-to-baseline distance used by Column.
	LineHeight = 12.0
)

// PageBuilder accumulates words on a page.
type PageBuilder struct {
	page document.Page
}

// NewPage starts a US-letter page.
func NewPage(number int) *PageBuilder {
	return &PageBuilder{page: document.Page{Number: number, Width: 612, Height: 792}}
}

// Text places text starting at (x, y) in body style. Words are separated by
// one character of space.
func (b *PageBuilder) Text(x, y float64, text string) *PageBuilder {
	return b.Styled(x, y, text, FontSize, false)
}

// Styled places text with an explicit font size and weight.
func (b *PageBuilder) Styled(x, y float64, text string, size float64, bold bool) *PageBuilder {
	cw := CharWidth * size / FontSize
	for _, w := range strings.Fields(text) {
		width := float64(len([]rune(w))) * cw
		b.page.Tokens = append(b.page.Tokens, document.Token{
			Text:     w,
			Left:     x,
			Right:    x + width,
			Top:      y,
			Bottom:   y + size,
			FontSize: size,
			Bold:     bold,
		})
		x += width + cw
	}
	return b
}

// Column lays out paragraphs in a column starting at (x, y), wrapping each
// paragraph at maxChars characters. Paragraphs are separated by one blank
// line. It returns the y coordinate below the last line.
func (b *PageBuilder) Column(x, y float64, maxChars int, paragraphs []string) float64 {
	for i, p := range paragraphs {
		if i > 0 {
			y += LineHeight
		}
		for _, line := range Wrap(p, maxChars) {
			b.Text(x, y, line)
			y += LineHeight
		}
	}
	return y
}

// Tight lays out paragraphs like Column but without blank lines between
// them, as in a bibliography set with uniform line spacing.
func (b *PageBuilder) Tight(x, y float64, maxChars int, paragraphs []string) float64 {
	for _, p := range paragraphs {
		for _, line := range Wrap(p, maxChars) {
			b.Text(x, y, line)
			y += LineHeight
		}
	}
	return y
}

// Page returns the built page.
func (b *PageBuilder) Page() document.Page {
	return b.page
}

// Wrap breaks text into lines of at most maxChars characters on word
// boundaries. A single word longer than maxChars gets its own line.
func Wrap(text string, maxChars int) []string {
	var lines []string
	var cur strings.Builder
	for _, w := range strings.Fields(text) {
		if cur.Len() > 0 && cur.Len()+1+len(w) > maxChars {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// Shuffle returns a copy of p with its tokens in a seeded random order.
func Shuffle(p document.Page, seed int64) document.Page {
	out := p
	out.Tokens = make([]document.Token, len(p.Tokens))
	copy(out.Tokens, p.Tokens)
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(out.Tokens), func(i, j int) {
		out.Tokens[i], out.Tokens[j] = out.Tokens[j], out.Tokens[i]
	})
	return out
}
