// Package pdf reads PDF files into positioned-token documents.
package pdf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/matsen/refextract/internal/document"
)

// ErrNoPages is returned for a PDF whose page tree is empty.
var ErrNoPages = errors.New("pdf has no pages")

// Default page size (US letter) used when a page carries no MediaBox.
const (
	defaultWidth  = 612.0
	defaultHeight = 792.0
)

// Open reads the PDF at path.
func Open(path string) (*document.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat pdf: %w", err)
	}
	return Read(f, info.Size(), path)
}

// Read parses a PDF from r. The parser panics on some malformed inputs;
// those panics are returned as errors.
func Read(r io.ReaderAt, size int64, source string) (doc *document.Document, err error) {
	defer func() {
		if p := recover(); p != nil {
			doc = nil
			err = fmt.Errorf("malformed pdf: %v", p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("parsing pdf: %w", err)
	}
	n := reader.NumPage()
	if n == 0 {
		return nil, ErrNoPages
	}

	doc = &document.Document{Source: source, Kind: document.KindPDF}
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		width, height := mediaBox(page)
		content := page.Content()
		words := Words(content.Text, height)
		doc.Pages = append(doc.Pages, document.Page{
			Number: i,
			Width:  width,
			Height: height,
			Tokens: words,
		})
		doc.Tables = append(doc.Tables, detectTables(i, words, rulings(content.Rect, height))...)
	}
	return doc, nil
}

// mediaBox returns the page size, following the Parent chain for inherited
// boxes.
func mediaBox(page pdf.Page) (float64, float64) {
	v := page.V
	box := v.Key("MediaBox")
	for box.IsNull() {
		v = v.Key("Parent")
		if v.IsNull() {
			return defaultWidth, defaultHeight
		}
		box = v.Key("MediaBox")
	}
	if box.Kind() != pdf.Array || box.Len() != 4 {
		return defaultWidth, defaultHeight
	}
	var c [4]float64
	for i := range c {
		c[i] = box.Index(i).Float64()
	}
	w, h := c[2]-c[0], c[3]-c[1]
	if w <= 0 || h <= 0 {
		return defaultWidth, defaultHeight
	}
	return w, h
}

// wordGapRatio is the horizontal gap, as a fraction of font size, above
// which two glyphs belong to different words.
const wordGapRatio = 0.25

// Words groups glyphs into word tokens in top-down coordinates for a page
// of the given height. Glyphs sharing a baseline (within a fraction of the
// font size) form a row; a whitespace glyph or a gap wider than a quarter of
// the font size ends a word.
func Words(glyphs []pdf.Text, pageHeight float64) []document.Token {
	var gs []pdf.Text
	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		if g.FontSize <= 0 {
			g.FontSize = 10
		}
		gs = append(gs, g)
	}
	sort.SliceStable(gs, func(i, j int) bool {
		if gs[i].Y != gs[j].Y {
			return gs[i].Y > gs[j].Y
		}
		return gs[i].X < gs[j].X
	})

	var tokens []document.Token
	for start := 0; start < len(gs); {
		baseline := gs[start].Y
		tol := gs[start].FontSize * 0.3
		end := start + 1
		for end < len(gs) && baseline-gs[end].Y <= tol {
			end++
		}
		row := append([]pdf.Text(nil), gs[start:end]...)
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
		tokens = append(tokens, rowWords(row, pageHeight-baseline)...)
		start = end
	}
	return tokens
}

func rowWords(row []pdf.Text, baseline float64) []document.Token {
	var tokens []document.Token
	var b strings.Builder
	var cur document.Token
	var boldChars, chars int

	flush := func() {
		if text := strings.TrimSpace(b.String()); text != "" {
			cur.Text = text
			cur.Bold = boldChars*2 > chars
			tokens = append(tokens, cur)
		}
		b.Reset()
		boldChars, chars = 0, 0
	}

	for _, g := range row {
		if strings.TrimFunc(g.S, unicode.IsSpace) == "" {
			flush()
			continue
		}
		if b.Len() > 0 && g.X-cur.Right > wordGapRatio*g.FontSize {
			flush()
		}
		if b.Len() == 0 {
			cur = document.Token{
				Left:     g.X,
				Top:      baseline - g.FontSize*0.8,
				Bottom:   baseline + g.FontSize*0.2,
				FontName: g.Font,
				FontSize: g.FontSize,
			}
		}
		b.WriteString(g.S)
		cur.Right = g.X + g.W
		if g.FontSize > cur.FontSize {
			cur.FontSize = g.FontSize
			cur.Top = baseline - g.FontSize*0.8
		}
		n := len([]rune(g.S))
		chars += n
		if isBoldFont(g.Font) {
			boldChars += n
		}
	}
	flush()
	return tokens
}

// isBoldFont reads the weight from a PostScript font name such as
// "Times-Bold" or "ABCDEF+Arial,BoldItalic".
func isBoldFont(name string) bool {
	lower := strings.ToLower(name)
	for _, w := range []string{"bold", "black", "heavy", "semibold", "demi"} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
