// Package section finds the bibliography inside a document's reading-order
// lines.
package section

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/matsen/refextract/internal/layout"
)

// numbering matches "7 ", "7.", "7.1 ", "VII. " and "A. " heading prefixes.
const numbering = `(?:(?:\d+(?:\.\d+)*\.?|[ivxlc]+\.|[a-z]\.)\s+)?`

var (
	headingPattern = regexp.MustCompile(`(?i)^\s*` + numbering +
		`(references?(?:\s+list)?|bibliography|works\s+cited|literature\s+cited|cited\s+works|further\s+reading)\s*:?\s*$`)

	// Headings that follow the bibliography and end it.
	postMatterPattern = regexp.MustCompile(`(?i)^\s*` + numbering +
		`(appendix|appendices|supplementary|supporting\s+information|acknowledge?ments?|author\s+contributions|funding|conflicts?\s+of\s+interest|competing\s+interests|about\s+the\s+authors?)\b`)
)

// IsHeading reports whether text is a bibliography heading such as
// "References" or "7. Bibliography", ignoring typography.
func IsHeading(text string) bool {
	return headingPattern.MatchString(text)
}

// MaxHeadingWords bounds how long a post-matter heading line may be.
const MaxHeadingWords = 8

// Config holds the locator heuristics.
type Config struct {
	// TailFraction is where the section is assumed to start, as a fraction
	// of the line count, when no heading is found.
	TailFraction float64 `yaml:"tail_fraction"`
}

// DefaultConfig returns the standard locator settings.
func DefaultConfig() Config {
	return Config{TailFraction: 0.70}
}

// Location is the half-open line range [Start, End) of the bibliography.
type Location struct {
	Start   int
	End     int
	Found   bool   // false when the tail fallback was used
	Heading string // matched heading text, empty when not found
}

// Locator finds bibliography sections.
type Locator struct {
	cfg Config
}

// NewLocator returns a Locator; an out-of-range TailFraction takes the
// default.
func NewLocator(cfg Config) *Locator {
	if cfg.TailFraction <= 0 || cfg.TailFraction >= 1 {
		cfg.TailFraction = DefaultConfig().TailFraction
	}
	return &Locator{cfg: cfg}
}

// Locate returns the bibliography range. A heading only counts when it is
// typographically distinct: a font size above the document's median body
// size, or bold. When several headings qualify the last one wins, since
// bibliographies sit at the end and earlier matches are usually a table of
// contents or running text.
func (l *Locator) Locate(lines []layout.Line) Location {
	body := MedianFontSize(lines)

	heading := -1
	for i, line := range lines {
		if headingPattern.MatchString(line.Text()) && distinct(line, body) {
			heading = i
		}
	}

	if heading < 0 {
		start := int(math.Floor(l.cfg.TailFraction * float64(len(lines))))
		return Location{Start: start, End: len(lines)}
	}

	loc := Location{
		Start:   heading + 1,
		End:     len(lines),
		Found:   true,
		Heading: strings.TrimSpace(lines[heading].Text()),
	}
	for i := heading + 1; i < len(lines); i++ {
		text := lines[i].Text()
		if len(strings.Fields(text)) <= MaxHeadingWords && postMatterPattern.MatchString(text) && distinct(lines[i], body) {
			loc.End = i
			break
		}
	}
	return loc
}

func distinct(line layout.Line, body float64) bool {
	return line.IsBold() || (body > 0 && line.MaxFontSize() > body)
}

// MedianFontSize returns the median font size over all tokens, which is the
// body text size for any real document.
func MedianFontSize(lines []layout.Line) float64 {
	var sizes []float64
	for _, l := range lines {
		for _, t := range l.Tokens {
			if t.FontSize > 0 {
				sizes = append(sizes, t.FontSize)
			}
		}
	}
	if len(sizes) == 0 {
		return 0
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}
