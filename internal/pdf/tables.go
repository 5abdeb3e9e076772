package pdf

import (
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/tsawler/tabula/graphicsstate"
	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/tables"

	"github.com/matsen/refextract/internal/document"
)

// box is an axis-aligned rectangle in top-down page coordinates.
type box struct {
	left, top, right, bottom float64
}

func (b box) width() float64  { return b.right - b.left }
func (b box) height() float64 { return b.bottom - b.top }

const (
	ruleThickness = 2.0 // max thickness of a drawn rule
	minRuleLength = 40.0
	edgeTolerance = 5.0 // how far rule endpoints may disagree within a table
	minTableRules = 3   // top rule, one separator, bottom rule
)

// rulings converts filled rectangles from the content stream into
// top-down boxes, keeping only thin ones that can act as table rules.
func rulings(rects []pdf.Rect, pageHeight float64) []box {
	var out []box
	for _, r := range rects {
		b := box{
			left:   math.Min(r.Min.X, r.Max.X),
			right:  math.Max(r.Min.X, r.Max.X),
			top:    pageHeight - math.Max(r.Min.Y, r.Max.Y),
			bottom: pageHeight - math.Min(r.Min.Y, r.Max.Y),
		}
		if b.height() <= ruleThickness || b.width() <= ruleThickness {
			out = append(out, b)
		}
	}
	return out
}

// detectTables finds ruled tables. Fully boxed grids go through tabula's
// grid detector; what remains is scanned for stacks of at least three
// horizontal rules with matching ends, the booktabs layout that has no
// vertical rules for a grid detector to lock onto. Bands between
// consecutive rules are rows; vertical rules inside the stack split rows
// into cells.
func detectTables(page int, words []document.Token, rules []box) []document.Table {
	var hRules, vRules []box
	for _, r := range rules {
		switch {
		case r.height() <= ruleThickness && r.width() >= minRuleLength:
			hRules = append(hRules, r)
		case r.width() <= ruleThickness && r.height() >= ruleThickness*4:
			vRules = append(vRules, r)
		}
	}
	sort.SliceStable(hRules, func(i, j int) bool { return hRules[i].top < hRules[j].top })

	found, grids := gridTables(page, words, hRules, vRules)
	used := make([]bool, len(hRules))
	for i := range hRules {
		if used[i] {
			continue
		}
		stack := []box{hRules[i]}
		used[i] = true
		for j := i + 1; j < len(hRules); j++ {
			if used[j] {
				continue
			}
			if math.Abs(hRules[j].left-hRules[i].left) <= edgeTolerance &&
				math.Abs(hRules[j].right-hRules[i].right) <= edgeTolerance {
				if math.Abs(hRules[j].top-stack[len(stack)-1].top) > ruleThickness {
					stack = append(stack, hRules[j])
				}
				used[j] = true
			}
		}
		if len(stack) < minTableRules {
			continue
		}
		span := box{left: stack[0].left, right: stack[0].right, top: stack[0].top, bottom: stack[len(stack)-1].bottom}
		if overlapsAny(span, grids) {
			continue
		}
		if t, ok := buildTable(page, words, stack, vRules); ok {
			found = append(found, t)
		}
	}
	return found
}

// gridTables runs tabula's grid detector over the page rules and fills
// each grid's cells with the words whose centres fall inside them. It
// also returns the grid regions so the stack scan can skip them.
// tabula expects y to grow upward, so rule positions are negated on the
// way in and back out.
func gridTables(page int, words []document.Token, hRules, vRules []box) ([]document.Table, []box) {
	toLines := func(rs []box, horizontal bool) []graphicsstate.ExtractedLine {
		out := make([]graphicsstate.ExtractedLine, len(rs))
		for i, r := range rs {
			l := graphicsstate.ExtractedLine{IsHorizontal: horizontal, IsVertical: !horizontal}
			if horizontal {
				y := -(r.top + r.bottom) / 2
				l.Start, l.End = model.Point{X: r.left, Y: y}, model.Point{X: r.right, Y: y}
				l.Width = r.height()
			} else {
				x := (r.left + r.right) / 2
				l.Start, l.End = model.Point{X: x, Y: -r.top}, model.Point{X: x, Y: -r.bottom}
				l.Width = r.width()
			}
			out[i] = l
		}
		return out
	}

	var found []document.Table
	var regions []box
	detector := tables.NewGridDetector()
	for _, h := range detector.DetectFromLines(toLines(hRules, true), toLines(vRules, false)) {
		grid := h.ToTableGrid()
		if grid.RowCount() < 1 || grid.ColCount() < 1 {
			continue
		}
		tops := make([]float64, len(grid.Rows))
		for i, y := range grid.Rows {
			tops[i] = -y
		}
		cols := grid.Cols
		region := box{left: cols[0], right: cols[len(cols)-1], top: tops[0], bottom: tops[len(tops)-1]}

		cells := make([][][]document.Token, grid.RowCount())
		for r := range cells {
			cells[r] = make([][]document.Token, grid.ColCount())
		}
		for _, w := range words {
			cx, cy := w.CenterX(), w.CenterY()
			if cx < region.left || cx > region.right || cy < region.top || cy > region.bottom {
				continue
			}
			r := min(max(sort.SearchFloat64s(tops, cy)-1, 0), grid.RowCount()-1)
			c := min(max(sort.SearchFloat64s(cols, cx)-1, 0), grid.ColCount()-1)
			cells[r][c] = append(cells[r][c], w)
		}

		t := document.Table{Page: page}
		for _, rowCells := range cells {
			row := make([]string, len(rowCells))
			empty := true
			for c, cell := range rowCells {
				row[c] = cellText(cell)
				if row[c] != "" {
					empty = false
				}
			}
			if !empty {
				t.Rows = append(t.Rows, row)
			}
		}
		regions = append(regions, region)
		if len(t.Rows) >= 2 {
			found = append(found, t)
		}
	}
	return found, regions
}

func overlapsAny(b box, regions []box) bool {
	for _, r := range regions {
		if b.left < r.right && r.left < b.right && b.top < r.bottom && r.top < b.bottom {
			return true
		}
	}
	return false
}

func buildTable(page int, words []document.Token, stack, vRules []box) (document.Table, bool) {
	left, right := stack[0].left, stack[0].right
	top, bottom := stack[0].top, stack[len(stack)-1].bottom

	var cuts []float64
	for _, v := range vRules {
		x := (v.left + v.right) / 2
		if x <= left+edgeTolerance || x >= right-edgeTolerance {
			continue
		}
		if v.bottom < top || v.top > bottom {
			continue
		}
		cuts = append(cuts, x)
	}
	sort.Float64s(cuts)
	cuts = dedupe(cuts, edgeTolerance)

	t := document.Table{Page: page}
	for r := 0; r+1 < len(stack); r++ {
		bandTop, bandBottom := stack[r].bottom, stack[r+1].top
		cells := make([][]document.Token, len(cuts)+1)
		for _, w := range words {
			cx, cy := w.CenterX(), w.CenterY()
			if cx < left || cx > right || cy < bandTop || cy > bandBottom {
				continue
			}
			col := sort.SearchFloat64s(cuts, cx)
			cells[col] = append(cells[col], w)
		}
		row := make([]string, len(cells))
		empty := true
		for c, cell := range cells {
			row[c] = cellText(cell)
			if row[c] != "" {
				empty = false
			}
		}
		if !empty {
			t.Rows = append(t.Rows, row)
		}
	}
	return t, len(t.Rows) >= 2
}

func dedupe(xs []float64, tol float64) []float64 {
	var out []float64
	for _, x := range xs {
		if len(out) == 0 || x-out[len(out)-1] > tol {
			out = append(out, x)
		}
	}
	return out
}

// cellText joins a cell's words in reading order.
func cellText(words []document.Token) string {
	sort.SliceStable(words, func(i, j int) bool {
		if words[i].Top != words[j].Top {
			return words[i].Top < words[j].Top
		}
		return words[i].Left < words[j].Left
	})
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}
