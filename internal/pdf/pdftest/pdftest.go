// Package pdftest writes small text-only PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Run is one string drawn at baseline (X, Y) in PDF user space.
type Run struct {
	X, Y float64
	Size float64
	Bold bool
	Text string
}

// Rule is a filled rectangle, used to draw table rulings.
type Rule struct {
	X, Y, W, H float64
}

// Page holds the content of one page.
type Page struct {
	Runs  []Run
	Rules []Rule
}

// Build returns a PDF with one US-letter page per element of pages. Both
// fonts are Type1 base fonts with a flat 500-unit glyph width, so a glyph
// at size s advances s/2.
func Build(pages ...Page) []byte {
	var objs []string
	// 1: catalog, 2: pages, 3: regular font, 4: bold font, then page/content pairs.
	widths := "[" + strings.TrimSpace(strings.Repeat("500 ", 95)) + "]"
	font := func(name string) string {
		return fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /%s /FirstChar 32 /LastChar 126 /Widths %s >>", name, widths)
	}
	var kids []string
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", 5+2*i))
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] >>", strings.Join(kids, " "), len(pages)),
		font("Helvetica"),
		font("Helvetica-Bold"),
	)
	for i, p := range pages {
		stream := content(p)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 3 0 R /F2 4 0 R >> >> /Contents %d 0 R >>", 6+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objs)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

func content(p Page) string {
	var b strings.Builder
	for _, r := range p.Rules {
		fmt.Fprintf(&b, "%.2f %.2f %.2f %.2f re f\n", r.X, r.Y, r.W, r.H)
	}
	for _, r := range p.Runs {
		font := "F1"
		if r.Bold {
			font = "F2"
		}
		size := r.Size
		if size == 0 {
			size = 10
		}
		fmt.Fprintf(&b, "BT /%s %.1f Tf %.2f %.2f Td (%s) Tj ET\n", font, size, r.X, r.Y, escape(r.Text))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(s)
}
