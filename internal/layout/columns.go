package layout

import (
	"math"
	"sort"

	"github.com/matsen/refextract/internal/document"
)

// gutter is an empty vertical strip between two columns.
type gutter struct {
	start, end float64
}

func (g gutter) width() float64 { return g.end - g.start }
func (g gutter) mid() float64   { return (g.start + g.end) / 2 }

// findGutters builds a horizontal occupancy histogram with 1pt bins, counting
// each line at most once per bin, and returns the widest interior runs of
// near-empty bins that exceed the gap threshold. At most MaxColumns-1
// gutters are returned, sorted left to right.
func (a *Analyzer) findGutters(bands [][]document.Token, width float64) []gutter {
	minX, maxX := math.Inf(1), math.Inf(-1)
	for _, band := range bands {
		for _, t := range band {
			minX = math.Min(minX, t.Left)
			maxX = math.Max(maxX, t.Right)
		}
	}
	origin := math.Floor(minX)
	n := int(math.Ceil(maxX)-origin) + 1
	if n <= 2 {
		return nil
	}

	counts := make([]int, n)
	seen := make([]int, n) // last band index that touched the bin, plus one
	for bi, band := range bands {
		for _, t := range band {
			lo := int(math.Floor(t.Left - origin))
			hi := int(math.Ceil(t.Right - origin))
			for x := max(lo, 0); x < hi && x < n; x++ {
				if seen[x] != bi+1 {
					seen[x] = bi + 1
					counts[x]++
				}
			}
		}
	}

	noise := int(math.Floor(a.cfg.NoiseFraction * float64(len(bands))))
	minGap := a.cfg.ColumnGapFraction * width

	var candidates []gutter
	for x := 0; x < n; {
		if counts[x] > noise {
			x++
			continue
		}
		start := x
		for x < n && counts[x] <= noise {
			x++
		}
		// Runs touching the content edges are margins, not gutters.
		if start == 0 || x >= n {
			continue
		}
		g := gutter{start: origin + float64(start), end: origin + float64(x)}
		if g.width() > minGap && supported(bands, g, noise) {
			candidates = append(candidates, g)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].width() != candidates[j].width() {
			return candidates[i].width() > candidates[j].width()
		}
		return candidates[i].start < candidates[j].start
	})
	if limit := a.cfg.MaxColumns - 1; len(candidates) > limit {
		candidates = candidates[:limit]
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].start < candidates[j].start })
	return candidates
}

// supported reports whether enough lines have text on each side of g for it
// to separate two real columns.
func supported(bands [][]document.Token, g gutter, noise int) bool {
	need := max(2, noise+1)
	left, right := 0, 0
	for _, band := range bands {
		hasLeft, hasRight := false, false
		for _, t := range band {
			if t.Right <= g.start {
				hasLeft = true
			}
			if t.Left >= g.end {
				hasRight = true
			}
		}
		if hasLeft {
			left++
		}
		if hasRight {
			right++
		}
	}
	return left >= need && right >= need
}

// splitAtGutters cuts a left-to-right token band wherever the space between
// two neighbouring tokens covers at least half of a gutter. Ordinary word
// spacing inside a full-width line never does.
func splitAtGutters(band []document.Token, gutters []gutter) [][]document.Token {
	if len(gutters) == 0 {
		return [][]document.Token{band}
	}
	var segs [][]document.Token
	cur := []document.Token{band[0]}
	for i := 1; i < len(band); i++ {
		prev, t := band[i-1], band[i]
		cut := false
		for _, g := range gutters {
			overlap := math.Min(t.Left, g.end) - math.Max(prev.Right, g.start)
			if overlap >= g.width()/2 {
				cut = true
				break
			}
		}
		if cut {
			segs = append(segs, cur)
			cur = nil
		}
		cur = append(cur, t)
	}
	return append(segs, cur)
}

// columnOf returns the column index for a segment. A segment whose tokens
// all sit in one band between gutters belongs to that column; a segment
// straddling a gutter belongs to the column of its leftmost token.
func columnOf(seg []document.Token, gutters []gutter) int {
	return bandIndex(seg[0].CenterX(), gutters)
}

func bandIndex(x float64, gutters []gutter) int {
	idx := 0
	for _, g := range gutters {
		if x >= g.mid() {
			idx++
		}
	}
	return idx
}
