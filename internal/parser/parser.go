// Package parser turns a citation candidate into a structured Citation on a
// best-effort basis. Parsing never fails: fields that cannot be recognized
// stay empty and the raw text is always kept.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/matsen/refextract/internal/ident"
	"github.com/matsen/refextract/internal/reference"
)

// Publication types assigned by the parser and the fallback strategies.
const (
	TypeJournal    = "journal"
	TypeConference = "conference"
	TypeBook       = "book"
	TypeThesis     = "thesis"
	TypePreprint   = "preprint"
	TypeOther      = "other"
)

var (
	enumeratorPattern = regexp.MustCompile(`^\s*(?:\[\d{1,4}\]|\(\d{1,4}\)|\d{1,3}\.)\s+`)

	// Where trailing identifiers begin; everything before is the
	// bibliographic core.
	identifierStart = regexp.MustCompile(`(?i)(?:\bdoi\b\s*:?\s*|https?://|\bpmid\b\s*:?\s*\d|\barxiv\s*:|\bavailable\s+(?:at|from)\b|\bretrieved\s+from\b|\bisbn\b)`)

	parenYearPattern = regexp.MustCompile(`\(((?:1[89]|20)\d{2})[a-z]?(?:[,;][^)]*)?\)`)
	leadingBareYear  = regexp.MustCompile(`^((?:1[89]|20)\d{2})[a-z]?[.,]`)
	quotedTitle      = regexp.MustCompile(`[“"‘]([^”"’]{10,})[”"’]`)
	sentenceEnd      = regexp.MustCompile(`[.?!](?:\s+|$)`)
	bareYear         = regexp.MustCompile(`\b(?:1[89]|20)\d{2}\b`)

	pageRange = `[A-Za-z]?\d+(?:\s*[-–—]+\s*[A-Za-z]?\d+)?`

	// "Journal, 10(5), 1-20" and "Journal, vol. 10, no. 5, pp. 1-20"
	apaVenue = regexp.MustCompile(`^([^,\d][^,]*?[^,\d\s])\s*,\s*(?:vol\.?\s*|volume\s+)?(\d+[A-Za-z]?)\s*(?:\(([^)]{1,20})\)|,\s*(?:no\.?|issue)\s*(\w+))?(?:\s*[,:]\s*(?:pp?\.\s*|pages\s+)?(` + pageRange + `))?`)
	// "J Biol. 2020;1(2):2-3" and "Journal 5:1-2"
	vancouverVenue = regexp.MustCompile(`^([^,\d;:][^;:]*?)\.?\s+(?:(?:1[89]|20)\d{2}[^;:]*;\s*)?(\d+[A-Za-z]?)\s*(?:\(([^)]{1,20})\))?\s*:\s*(` + pageRange + `)`)
	// "Nature 521, 436–444 (2015)"
	natureVenue = regexp.MustCompile(`^([^,\d][^,\d]*?)\s+(\d+[A-Za-z]?),\s*(` + pageRange + `)`)

	anyPages = regexp.MustCompile(`(?:\bpp?\.\s*|\bpages\s+)(` + pageRange + `)|\b(\d+\s*[-–—]+\s*\d+)\b`)

	publisherPattern = regexp.MustCompile(`\b((?:\p{Lu}[\p{L}&'\-]*\s+){0,4}(?:University\s+Press|Press|Publishers?|Publishing(?:\s+Group)?|Verlag)|Springer(?:-Verlag)?|Elsevier|Wiley(?:-Blackwell)?|Routledge|O'Reilly(?:\s+Media)?)\b`)
	publishedBy      = regexp.MustCompile(`(?i)\bpublished\s+by\s+([^.,;]+)`)

	conferencePattern = regexp.MustCompile(`(?i)\b(?:proceedings|proc\.|conference|workshop|symposium|in\s+proc)`)
	thesisPattern     = regexp.MustCompile(`(?i)\b(?:ph\.?\s?d\.?|master'?s|doctoral)?\s*(?:thesis|dissertation)\b`)
	preprintPattern   = regexp.MustCompile(`(?i)\b(?:arxiv|biorxiv|medrxiv|chemrxiv|ssrn|preprint)\b`)
	editedBookPattern = regexp.MustCompile(`(?i)\(eds?\.?\)|\beds?\.\s|\beditors?\b`)
	dashes            = regexp.MustCompile(`\s*[-–—]+\s*`)
)

// Parser extracts fields from citation text.
type Parser struct{}

// New returns a Parser.
func New() *Parser {
	return &Parser{}
}

// Parse extracts whatever structure it can from raw.
func (p *Parser) Parse(raw string) reference.Citation {
	c := reference.Citation{RawText: raw}

	body := strings.TrimSpace(raw)
	body = enumeratorPattern.ReplaceAllString(body, "")

	c.DOI = ident.FindDOI(body)
	c.PMID = ident.FindPMID(body)
	c.ArXivID = ident.FindArXivID(body)
	c.URL = ident.FindURL(body)

	core := body
	if loc := identifierStart.FindStringIndex(core); loc != nil {
		core = core[:loc[0]]
	}
	if loc := ident.DOIPattern.FindStringIndex(core); loc != nil {
		core = core[:loc[0]]
	}
	core = strings.TrimRight(core, " ,;:([")

	yearStart, yearEnd := -1, -1
	if m := parenYearPattern.FindStringSubmatchIndex(core); m != nil {
		if y, _ := strconv.Atoi(core[m[2]:m[3]]); ident.ValidYear(y) {
			c.Year = y
			yearStart, yearEnd = m[0], m[1]
		}
	}
	if c.Year == 0 {
		if spans := ident.YearSpans(ident.Mask(body)); len(spans) > 0 {
			c.Year = spans[0][0]
		}
	}

	rest := p.parseAuthors(&c, core, yearStart, yearEnd)
	rest = skipLeadingYear(&c, rest)

	venue := p.parseTitle(&c, core, rest)
	c.Publisher = findPublisher(venue)
	parseVenue(&c, venue)

	c.PublicationType = classify(c, body)
	return c
}

// parseAuthors fills Authors and FirstAuthorLastName and returns the text
// that follows the author list.
func (p *Parser) parseAuthors(c *reference.Citation, core string, yearStart, yearEnd int) string {
	names, end := scanAuthors(core)
	rest := core[end:]

	if len(names) == 0 && yearStart > 0 {
		names = splitAuthorSegment(core[:yearStart])
		rest = core[yearEnd:]
	}
	if len(names) == 0 {
		if loc := sentenceEnd.FindStringIndex(core); loc != nil && looksLikeNames(core[:loc[0]]) {
			names = splitAuthorSegment(core[:loc[0]])
			rest = core[loc[1]:]
		}
	}

	if len(names) > 0 {
		c.Authors = names
		c.FirstAuthorLastName = reference.LastName(names[0])
	}
	return rest
}

// skipLeadingYear consumes a "(2020)." or "2020." directly after the
// authors.
func skipLeadingYear(c *reference.Citation, rest string) string {
	rest = strings.TrimLeft(rest, " .,;:")
	if m := parenYearPattern.FindStringSubmatchIndex(rest); m != nil && m[0] == 0 {
		if c.Year == 0 {
			c.Year, _ = strconv.Atoi(rest[m[2]:m[3]])
		}
		rest = rest[m[1]:]
	} else if m := leadingBareYear.FindStringSubmatchIndex(rest); m != nil {
		if y, _ := strconv.Atoi(rest[m[2]:m[3]]); ident.ValidYear(y) {
			if c.Year == 0 {
				c.Year = y
			}
			rest = rest[m[1]:]
		}
	}
	return strings.TrimLeft(rest, " .,;:")
}

// parseTitle sets Title and returns the text after it, which is where the
// venue lives. A quoted span anywhere in the core wins; otherwise the title
// runs to the first sentence end or year, whichever comes first.
func (p *Parser) parseTitle(c *reference.Citation, core, rest string) string {
	if m := quotedTitle.FindStringSubmatchIndex(core); m != nil {
		c.Title = cleanTitle(core[m[2]:m[3]])
		return strings.TrimLeft(core[m[1]:], " .,;:")
	}
	if rest == "" {
		return ""
	}

	end, next := len(rest), len(rest)
	if loc := sentenceEnd.FindStringIndex(rest); loc != nil {
		end, next = loc[0], loc[1]
		if rest[loc[0]] == '?' || rest[loc[0]] == '!' {
			end = loc[0] + 1
		}
	}
	if loc := bareYear.FindStringIndex(rest); loc != nil && loc[0] < end && loc[0] > 0 {
		end, next = loc[0], loc[0]
	}
	c.Title = cleanTitle(rest[:end])
	return strings.TrimLeft(rest[next:], " .,;:")
}

func cleanTitle(s string) string {
	s = normalizeName(s)
	s = strings.TrimRight(s, " ,;:(")
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSpace(s)
}

// parseVenue reads "Journal, Volume(Issue), pages" shaped tails.
func parseVenue(c *reference.Citation, venue string) {
	if venue == "" {
		return
	}
	venue = strings.TrimPrefix(strings.TrimPrefix(venue, "In: "), "In ")

	if m := apaVenue.FindStringSubmatch(venue); m != nil {
		c.Journal = cleanJournal(m[1])
		c.Volume = m[2]
		c.Issue = firstNonEmpty(m[3], m[4])
		c.Pages = normalizePages(m[5])
	} else if m := vancouverVenue.FindStringSubmatch(venue); m != nil {
		c.Journal = cleanJournal(m[1])
		c.Volume = m[2]
		c.Issue = m[3]
		c.Pages = normalizePages(m[4])
	} else if m := natureVenue.FindStringSubmatch(venue); m != nil {
		c.Journal = cleanJournal(m[1])
		c.Volume = m[2]
		c.Pages = normalizePages(m[3])
	} else {
		head := venue
		if i := strings.IndexAny(head, ",.("); i >= 0 {
			head = head[:i]
		}
		if j := cleanJournal(head); len(j) > 2 && !bareYear.MatchString(j) && !publisherPattern.MatchString(j) {
			c.Journal = j
		}
	}

	if c.Pages == "" {
		if m := anyPages.FindStringSubmatch(venue); m != nil {
			c.Pages = normalizePages(firstNonEmpty(m[1], m[2]))
		}
	}
	if c.Issue != "" && c.Issue == strconv.Itoa(c.Year) {
		c.Issue = ""
	}
}

func cleanJournal(s string) string {
	s = normalizeName(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "In: "), "In ")
	return strings.Trim(s, " .,;:")
}

func normalizePages(s string) string {
	return dashes.ReplaceAllString(strings.TrimSpace(s), "-")
}

func findPublisher(venue string) string {
	if m := publishedBy.FindStringSubmatch(venue); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := publisherPattern.FindStringSubmatch(venue); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// classify guesses the publication type from identifiers and venue words.
func classify(c reference.Citation, body string) string {
	venue := c.Journal + " " + body
	switch {
	case c.ArXivID != "" || preprintPattern.MatchString(c.Journal):
		return TypePreprint
	case thesisPattern.MatchString(venue):
		return TypeThesis
	case conferencePattern.MatchString(venue):
		return TypeConference
	case c.Publisher != "" && c.Volume == "", editedBookPattern.MatchString(body):
		return TypeBook
	case c.Journal != "":
		return TypeJournal
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
