// Package document holds the backend-neutral view of a source document that
// the extraction pipeline consumes: positioned tokens per page plus any
// tables the backend detected.
package document

import "strings"

// Kind identifies the backend that produced a Document.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindHTML Kind = "html"
)

// Token is one word with its bounding box in top-down page coordinates
// (y grows downward).
type Token struct {
	Text     string  `json:"text"`
	Left     float64 `json:"left"`
	Right    float64 `json:"right"`
	Top      float64 `json:"top"`
	Bottom   float64 `json:"bottom"`
	FontName string  `json:"font_name,omitempty"`
	FontSize float64 `json:"font_size"`
	Bold     bool    `json:"bold,omitempty"`

	// BlockStart marks the first token of a structural block (HTML block
	// elements). Geometry-only backends leave it unset.
	BlockStart bool `json:"block_start,omitempty"`
}

// Width returns the horizontal extent of the token.
func (t Token) Width() float64 { return t.Right - t.Left }

// Height returns the vertical extent of the token.
func (t Token) Height() float64 { return t.Bottom - t.Top }

// CenterX returns the horizontal centre.
func (t Token) CenterX() float64 { return (t.Left + t.Right) / 2 }

// CenterY returns the vertical centre.
func (t Token) CenterY() float64 { return (t.Top + t.Bottom) / 2 }

// Page is a single page of positioned tokens in arbitrary order.
type Page struct {
	Number int     `json:"number"` // 1-based
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Tokens []Token `json:"tokens"`
}

// Table is a row-major cell grid detected by a backend.
type Table struct {
	Page int        `json:"page"`
	Rows [][]string `json:"rows"`
}

// RowText joins the non-empty cells of row i with single spaces.
func (t Table) RowText(i int) string {
	var cells []string
	for _, c := range t.Rows[i] {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	return strings.Join(cells, " ")
}

// Document is the backend output the extraction pipeline runs on.
type Document struct {
	Source string
	Kind   Kind
	Pages  []Page
	Tables []Table

	// Markup is the raw HTML for KindHTML documents.
	Markup string
	// Text is the full plain text when the backend can supply it cheaply.
	// Fallback strategies scan it for embedded bibliography records.
	Text string
}

// HasTables reports whether the backend detected at least one table.
func (d *Document) HasTables() bool {
	return len(d.Tables) > 0
}

// TokenCount returns the number of tokens across all pages.
func (d *Document) TokenCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Tokens)
	}
	return n
}
