package fallback

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/matsen/refextract/internal/document"
	"github.com/matsen/refextract/internal/export"
	"github.com/matsen/refextract/internal/reference"
	"github.com/matsen/refextract/internal/section"
)

// minTableText is the shortest joined table text worth inspecting.
const minTableText = 50

// tableSignals are the cues of which a bibliography table shows at least two.
var tableSignals = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:1[89]|20)\d{2}\b`),
	regexp.MustCompile(`(?i)\bdoi:?\s*10\.|\b10\.\d{4,9}/`),
	regexp.MustCompile(`(?i)\bvol\.?\s*\d+|\b\d+\(\d+\)`),
	regexp.MustCompile(`(?i)\bpp?\.\s*\d+|\b\d+\s*[-–]\s*\d+\b`),
	regexp.MustCompile(`\p{Lu}[\p{L}'\-]+,\s`),
}

func looksLikeReferenceTable(text string) bool {
	if len(strings.TrimSpace(text)) < minTableText {
		return false
	}
	n := 0
	for _, re := range tableSignals {
		if re.MatchString(text) {
			n++
		}
	}
	return n >= 2
}

// fromTables takes one candidate per row of each citation-shaped table.
// Rows are accepted through the validator, so header rows such as
// "No. Citation" drop out as too short.
func (m *Manager) fromTables(doc *document.Document) []reference.Citation {
	var out []reference.Citation
	for _, t := range doc.Tables {
		rows := make([]string, len(t.Rows))
		for i := range t.Rows {
			rows[i] = t.RowText(i)
		}
		if !looksLikeReferenceTable(strings.Join(rows, "\n")) {
			continue
		}
		for _, row := range rows {
			if c, ok := m.accept(row); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// fromBibTeX maps embedded "@type{...}" blocks and "type=" records straight
// onto citations.
func fromBibTeX(doc *document.Document) []reference.Citation {
	text := doc.Text
	if text == "" {
		text = doc.Markup
	}
	if !export.HasEntries(text) {
		return nil
	}
	var out []reference.Citation
	for _, e := range export.ParseEntries(text) {
		out = append(out, e.Citation())
	}
	return out
}

// containerSelectors locate a bibliography container by id, class or ARIA
// role, most specific first.
var containerSelectors = []string{
	`[role="doc-bibliography"]`,
	"#references", "#bibliography", "#refs", "#ref-list", "#citations",
	".references", ".bibliography", ".refs", ".ref-list", ".citations",
}

// fromHTMLStructure finds the reference container and takes one candidate
// per list item, or per child block when the container has no list.
func (m *Manager) fromHTMLStructure(doc *document.Document) ([]reference.Citation, error) {
	if strings.TrimSpace(doc.Markup) == "" {
		return nil, nil
	}
	page, err := goquery.NewDocumentFromReader(strings.NewReader(doc.Markup))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	container := findContainer(page)
	if container == nil {
		return nil, nil
	}

	var texts []string
	items := container.Find("li")
	if items.Length() > 0 {
		items.Each(func(_ int, li *goquery.Selection) {
			// Nested lists are read through their outermost item.
			if isNestedIn(li, container) {
				return
			}
			texts = append(texts, li.Text())
		})
	} else {
		container.Children().Not("h1, h2, h3, h4, h5, h6").Each(func(_ int, child *goquery.Selection) {
			texts = append(texts, child.Text())
		})
	}

	var out []reference.Citation
	for _, t := range texts {
		if c, ok := m.accept(t); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// isNestedIn reports whether li sits inside another li that is itself
// within container.
func isNestedIn(li, container *goquery.Selection) bool {
	for p := li.Parent(); p.Length() > 0; p = p.Parent() {
		if p.IsSelection(container) {
			return false
		}
		if goquery.NodeName(p) == "li" {
			return true
		}
	}
	return false
}

func findContainer(page *goquery.Document) *goquery.Selection {
	for _, sel := range containerSelectors {
		if s := page.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}

	var found *goquery.Selection
	page.Find("h1, h2, h3, h4, h5, h6").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if !section.IsHeading(collapse(h.Text())) {
			return true
		}
		if next := h.NextAllFiltered("ol, ul, dl, div, section").First(); next.Length() > 0 {
			found = next
		} else if parent := h.Parent(); parent.Length() > 0 && goquery.NodeName(parent) != "body" {
			found = parent
		}
		return found == nil
	})
	return found
}

// accept validates and parses one raw candidate.
func (m *Manager) accept(raw string) (reference.Citation, bool) {
	text := collapse(raw)
	if d := m.validator.Check(text); !d.Accept {
		return reference.Citation{}, false
	}
	return m.parser.Parse(text), true
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
