// Package ident recognizes bibliographic identifiers and years in free text.
package ident

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DOIPattern matches 10.XXXX/... where XXXX is 4-9 digits.
var DOIPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

var (
	pmidPattern = regexp.MustCompile(`(?i)\bPMID:?\s*(\d{1,9})\b`)

	arxivPrefixPattern = regexp.MustCompile(`(?i)\barXiv\s*:\s*((?:\d{4}\.\d{4,5}|[a-z\-]+(?:\.[A-Z]{2})?/\d{7})(?:v\d+)?)`)
	arxivURLPattern    = regexp.MustCompile(`(?i)arxiv\.org/(?:abs|pdf)/((?:\d{4}\.\d{4,5}|[a-z\-]+(?:\.[A-Z]{2})?/\d{7})(?:v\d+)?)`)
	arxivBarePattern   = regexp.MustCompile(`\b(\d{2})(\d{2})\.(\d{4,5})(v\d+)?\b`)

	urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

	yearPattern = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})\b`)
)

// MinYear is the earliest plausible publication year.
const MinYear = 1800

// MaxYear returns the latest plausible publication year (next year, to
// admit in-press work).
func MaxYear() int {
	return time.Now().Year() + 1
}

// ValidYear reports whether y is a plausible publication year.
func ValidYear(y int) bool {
	return y >= MinYear && y <= MaxYear()
}

// FindDOI returns the first valid DOI in text, or "".
func FindDOI(text string) string {
	for _, match := range DOIPattern.FindAllString(text, -1) {
		match = TrimDOI(match)
		if IsValidDOI(match) {
			return match
		}
	}
	return ""
}

// TrimDOI removes sentence punctuation the pattern swallows at the end of a
// DOI. A closing parenthesis is kept when the DOI itself opened one.
func TrimDOI(doi string) string {
	for {
		trimmed := strings.TrimRight(doi, ".,;:")
		if strings.HasSuffix(trimmed, ")") && strings.Count(trimmed, "(") < strings.Count(trimmed, ")") {
			trimmed = trimmed[:len(trimmed)-1]
		}
		if trimmed == doi {
			return doi
		}
		doi = trimmed
	}
}

// IsValidDOI performs basic validation on a DOI.
func IsValidDOI(doi string) bool {
	if len(doi) < 10 {
		return false
	}
	if !strings.HasPrefix(doi, "10.") {
		return false
	}
	slashIdx := strings.Index(doi, "/")
	return slashIdx != -1 && slashIdx < len(doi)-1
}

// NormalizeDOI strips resolver prefixes and lowercases a DOI for comparison.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi.org/", "DOI:", "doi:"} {
		if len(doi) >= len(prefix) && strings.EqualFold(doi[:len(prefix)], prefix) {
			doi = doi[len(prefix):]
			break
		}
	}
	return strings.ToLower(strings.TrimSpace(doi))
}

// FindPMID returns the digits following an explicit PMID label.
func FindPMID(text string) string {
	if m := pmidPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// FindArXivID returns an arXiv identifier marked by an "arXiv:" prefix or an
// arxiv.org URL, or else a bare YYMM.NNNNN token that is not part of a DOI
// or URL and has a valid month.
func FindArXivID(text string) string {
	if m := arxivPrefixPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := arxivURLPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}

	masked := Mask(text)
	for _, m := range arxivBarePattern.FindAllStringSubmatchIndex(masked, -1) {
		month, _ := strconv.Atoi(masked[m[4]:m[5]])
		if month < 1 || month > 12 {
			continue
		}
		// Glued to a '.' or '/', the token is part of a longer identifier.
		if m[0] > 0 && (masked[m[0]-1] == '.' || masked[m[0]-1] == '/') {
			continue
		}
		return masked[m[0]:m[1]]
	}
	return ""
}

// FindURLs returns all http(s) URLs with trailing punctuation trimmed.
func FindURLs(text string) []string {
	var urls []string
	for _, u := range urlPattern.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,;:)]")
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// FindURL returns the first URL in text, or "".
func FindURL(text string) string {
	if urls := FindURLs(text); len(urls) > 0 {
		return urls[0]
	}
	return ""
}

// YearSpans returns every plausible 4-digit year with its byte span.
func YearSpans(text string) [][3]int {
	var out [][3]int
	for _, m := range yearPattern.FindAllStringIndex(text, -1) {
		y, _ := strconv.Atoi(text[m[0]:m[1]])
		if ValidYear(y) {
			out = append(out, [3]int{y, m[0], m[1]})
		}
	}
	return out
}

// HasYear reports whether text contains a plausible 4-digit year.
func HasYear(text string) bool {
	return len(YearSpans(text)) > 0
}

// IdentifierSpans returns the byte spans of DOIs and URLs in text, so that
// callers can ignore digits inside them.
func IdentifierSpans(text string) [][]int {
	spans := DOIPattern.FindAllStringIndex(text, -1)
	return append(spans, urlPattern.FindAllStringIndex(text, -1)...)
}

// maskSpans replaces the bytes in spans with spaces.
func maskSpans(text string, spans [][]int) string {
	if len(spans) == 0 {
		return text
	}
	b := []byte(text)
	for _, sp := range spans {
		for i := sp[0]; i < sp[1]; i++ {
			b[i] = ' '
		}
	}
	return string(b)
}

// Mask blanks out DOIs and URLs in text, preserving byte offsets.
func Mask(text string) string {
	return maskSpans(text, IdentifierSpans(text))
}
