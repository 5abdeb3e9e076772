// Package htmldoc turns an HTML page into a positioned-token document: each
// block element becomes a line of tokens on a single virtual page, or one
// line per segment when <br> breaks it up, so the same layout and section
// heuristics run on web and PDF sources.
package htmldoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/matsen/refextract/internal/document"
)

// ErrNotText is returned when the input is empty or is not character data.
var ErrNotText = errors.New("input is not an HTML text document")

// Virtual page geometry.
const (
	PageWidth  = 612.0
	Margin     = 40.0
	BodySize   = 10.0
	charWidth  = 0.5 // advance per character as a fraction of font size
	lineFactor = 1.5 // baseline step between blocks as a multiple of font size
)

// noiseSelectors are elements removed before reading; they never hold
// bibliography text.
var noiseSelectors = []string{
	"script", "style", "noscript", "template",
	"nav", "iframe", "svg", "canvas",
	"img", "picture", "video", "audio",
	"form", "button", "input", "select", "textarea",
}

var headingSizes = map[string]float64{
	"h1": 20, "h2": 16, "h3": 14, "h4": 12, "h5": 11, "h6": 10,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "dt": true, "dd": true,
	"blockquote": true, "pre": true, "section": true, "article": true,
	"main": true, "header": true, "footer": true, "aside": true,
	"ol": true, "ul": true, "dl": true, "table": true, "tr": true,
	"td": true, "th": true, "caption": true, "figure": true, "figcaption": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"hr": true, "address": true, "body": true,
}

// Read decodes r using the declared content type (or a sniffed charset when
// contentType is empty) and parses it.
func Read(r io.Reader, contentType, source string) (*document.Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading html: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.IndexByte(raw, 0) >= 0 {
		return nil, ErrNotText
	}
	decoded, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, fmt.Errorf("decoding html: %w", err)
	}
	text, err := io.ReadAll(decoded)
	if err != nil {
		return nil, fmt.Errorf("decoding html: %w", err)
	}
	return Parse(string(text), source)
}

// Parse builds a Document from markup.
func Parse(markup, source string) (*document.Document, error) {
	if strings.TrimSpace(markup) == "" || !utf8.ValidString(markup) {
		return nil, ErrNotText
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	w := &walker{}
	for _, n := range root.Nodes {
		w.walk(n, false, false)
	}
	w.flush()

	out := &document.Document{
		Source: source,
		Kind:   document.KindHTML,
		Markup: markup,
		Tables: tables(doc),
	}
	page := document.Page{Number: 1, Width: PageWidth}
	y := Margin
	var text []string
	for _, b := range w.blocks {
		tokens, lines := b.tokens(y)
		if len(tokens) == 0 {
			continue
		}
		page.Tokens = append(page.Tokens, tokens...)
		y += b.size * lineFactor * float64(lines)
		text = append(text, b.raw)
	}
	page.Height = y + Margin
	out.Pages = []document.Page{page}
	out.Text = strings.Join(text, "\n\n")
	return out, nil
}

// block is the text of one block element with per-byte bold flags. breaks
// holds the buffer offsets of <br> line breaks.
type block struct {
	buf     strings.Builder
	bold    []bool
	breaks  []int
	size    float64
	heading bool
	pre     bool
	raw     string
}

func (b *block) write(s string, bold bool) {
	b.buf.WriteString(s)
	for range len(s) {
		b.bold = append(b.bold, bold)
	}
}

func (b *block) lineBreak() {
	b.breaks = append(b.breaks, b.buf.Len())
}

// segments splits the buffer at its line breaks as [start, end) offsets.
func (b *block) segments() [][2]int {
	var out [][2]int
	start := 0
	for _, br := range b.breaks {
		out = append(out, [2]int{start, br})
		start = br
	}
	return append(out, [2]int{start, b.buf.Len()})
}

// tokens lays the block's words out left to right, one line per segment,
// starting at y. It also returns the number of lines used.
func (b *block) tokens(y float64) ([]document.Token, int) {
	text := b.buf.String()
	var tokens []document.Token
	lines := 0
	for _, seg := range b.segments() {
		x := Margin
		advance := b.size * charWidth
		start := -1
		n := len(tokens)
		for i, r := range text[seg[0]:seg[1]] + " " {
			i += seg[0]
			if !unicode.IsSpace(r) {
				if start < 0 {
					start = i
				}
				continue
			}
			if start < 0 {
				continue
			}
			word := text[start:i]
			width := float64(utf8.RuneCountInString(word)) * advance
			tokens = append(tokens, document.Token{
				Text:       word,
				Left:       x,
				Right:      x + width,
				Top:        y,
				Bottom:     y + b.size,
				FontSize:   b.size,
				Bold:       b.heading || b.bold[start],
				BlockStart: len(tokens) == 0,
			})
			x += width + advance
			start = -1
		}
		if len(tokens) > n {
			lines++
			y += b.size * lineFactor
		}
	}
	return tokens, lines
}

type walker struct {
	blocks []*block
	cur    *block
}

func (w *walker) flush() {
	if w.cur == nil {
		return
	}
	if w.cur.pre {
		w.cur.raw = strings.TrimSpace(w.cur.buf.String())
	} else {
		text := w.cur.buf.String()
		var lines []string
		for _, seg := range w.cur.segments() {
			if line := strings.Join(strings.Fields(text[seg[0]:seg[1]]), " "); line != "" {
				lines = append(lines, line)
			}
		}
		w.cur.raw = strings.Join(lines, "\n")
	}
	if w.cur.raw != "" {
		w.blocks = append(w.blocks, w.cur)
	}
	w.cur = nil
}

func (w *walker) current() *block {
	if w.cur == nil {
		w.cur = &block{size: BodySize}
	}
	return w.cur
}

func (w *walker) walk(n *html.Node, bold, pre bool) {
	switch n.Type {
	case html.TextNode:
		cur := w.current()
		cur.pre = cur.pre || pre
		cur.write(n.Data, bold)
		return
	case html.ElementNode:
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c, bold, pre)
		}
		return
	default:
		return
	}

	tag := n.Data
	if tag == "br" {
		cur := w.current()
		if cur.pre || pre {
			cur.write("\n", bold)
		} else {
			cur.lineBreak()
		}
		return
	}
	if !blockElements[tag] {
		if tag == "b" || tag == "strong" {
			bold = true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c, bold, pre)
		}
		return
	}

	w.flush()
	if size, ok := headingSizes[tag]; ok {
		w.cur = &block{size: size, heading: true}
	}
	if tag == "pre" {
		pre = true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, bold, pre)
	}
	w.flush()
}

// tables returns every <table> as a cell grid. Nested tables are read as
// part of their parent cell.
func tables(doc *goquery.Document) []document.Table {
	var out []document.Table
	doc.Find("table").Each(func(_ int, t *goquery.Selection) {
		if t.ParentsFiltered("table").Length() > 0 {
			return
		}
		var rows [][]string
		t.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			if tr.ParentsFiltered("table").First().Get(0) != t.Get(0) {
				return
			}
			var row []string
			tr.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
				row = append(row, strings.Join(strings.Fields(cell.Text()), " "))
			})
			if len(row) > 0 {
				rows = append(rows, row)
			}
		})
		if len(rows) > 0 {
			out = append(out, document.Table{Page: 1, Rows: rows})
		}
	})
	return out
}
