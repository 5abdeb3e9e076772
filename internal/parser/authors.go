package parser

import (
	"regexp"
	"strings"
)

const (
	particle = `(?:(?:van|von|de|der|den|da|di|del|della|du|dos|la|le|ter)\s+)*`
	surname  = particle + `\p{Lu}[\p{L}'’\-]+(?:[ \-]\p{Lu}[\p{L}'’\-]+)?`
	initials = `\p{Lu}\.(?:\s?-?\s?\p{Lu}\.)*`
	forename = `\p{Lu}\p{Ll}+(?:\s+\p{Lu}\.)*`
)

// authorStyle is one way of writing a list of names.
type authorStyle struct {
	name   string
	item   *regexp.Regexp // anchored; group 1 is the name
	follow *regexp.Regexp // what must come right after an item
}

var (
	// "Smith JK, Doe A." (Vancouver)
	vancouverStyle = authorStyle{
		name:   "vancouver",
		item:   regexp.MustCompile(`^(` + surname + `\s+\p{Lu}{1,3})\b`),
		follow: regexp.MustCompile(`^(?:[,.;:]|\s+(?:and|&)\s|\s*$)`),
	}
	// "Smith, J. K., Doe, A." (APA, Harvard, Chicago)
	invertedStyle = authorStyle{
		name:   "inverted",
		item:   regexp.MustCompile(`^(` + surname + `,\s*(?:` + initials + `|` + forename + `))`),
		follow: regexp.MustCompile(`^(?:[,.;:]|\s+(?:and|&)\s|\s*\(|\s*$|\s+\p{Lu})`),
	}
	// "J. K. Smith, A. Doe" (IEEE, ACM)
	forenameFirstStyle = authorStyle{
		name:   "forename-first",
		item:   regexp.MustCompile(`^(` + initials + `\s*` + surname + `)`),
		follow: regexp.MustCompile(`^(?:[,.;:]|\s+(?:and|&)\s|\s*\(|\s*$)`),
	}

	authorStyles = []authorStyle{vancouverStyle, invertedStyle, forenameFirstStyle}

	separatorPattern = regexp.MustCompile(`^(?:\s*,\s*(?:&\s*|and\s+)?|\s*;\s*|\s+(?:&|and)\s+)`)
	etAlPattern      = regexp.MustCompile(`^\s*,?\s*(?:et\s+al\.?|and\s+others)`)
)

// scanAuthors reads a leading author list in one of the known styles. It
// returns the names and the byte offset where the list ends, or nil and 0
// when the text does not open with a recognizable name.
func scanAuthors(text string) ([]string, int) {
	for _, style := range authorStyles {
		if names, end := scanList(text, style); len(names) > 0 {
			return names, end
		}
	}
	return nil, 0
}

func scanList(text string, style authorStyle) ([]string, int) {
	var names []string
	pos := 0
	for {
		rest := text[pos:]
		skip := 0
		if len(names) > 0 {
			if loc := etAlPattern.FindStringIndex(rest); loc != nil {
				pos += loc[1]
				break
			}
			loc := separatorPattern.FindStringIndex(rest)
			if loc == nil {
				break
			}
			skip = loc[1]
		}
		m := style.item.FindStringSubmatchIndex(rest[skip:])
		if m == nil {
			break
		}
		after := rest[skip+m[1]:]
		if !style.follow.MatchString(after) {
			break
		}
		names = append(names, normalizeName(rest[skip+m[2]:skip+m[3]]))
		pos += skip + m[1]
	}
	return names, pos
}

var spaces = regexp.MustCompile(`\s+`)

func normalizeName(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

var (
	listSplitPattern = regexp.MustCompile(`\s*;\s*|\s+and\s+|\s*&\s*`)
	etAlWord         = regexp.MustCompile(`(?i),?\s*\bet\s+al\.?`)
	initialsOnly     = regexp.MustCompile(`^(?:\p{Lu}\.?[\s\-]*){1,4}$`)
)

// splitAuthorSegment splits a free-form author segment such as
// "Smith, J., Doe, A. and Roe, B." on the usual list separators and pairs
// "Surname, Initials" pieces back together.
func splitAuthorSegment(seg string) []string {
	seg = etAlWord.ReplaceAllString(seg, "")
	seg = strings.Trim(strings.TrimSpace(seg), ",;:")
	if seg == "" {
		return nil
	}

	var names []string
	for _, part := range listSplitPattern.Split(seg, -1) {
		pieces := strings.Split(part, ",")
		for i := 0; i < len(pieces); i++ {
			p := strings.TrimSpace(pieces[i])
			if p == "" {
				continue
			}
			if i+1 < len(pieces) && initialsOnly.MatchString(strings.TrimSpace(pieces[i+1])) {
				p = p + ", " + strings.TrimSpace(pieces[i+1])
				i++
			}
			names = append(names, normalizeName(p))
		}
	}
	return names
}

var nameWord = regexp.MustCompile(`^(?:\p{Lu}[\p{L}'’.\-]*,?|and|&|et|al\.?|van|von|de|der|den|da|di|del|du|la|le)$`)

// looksLikeNames reports whether seg reads like a short list of personal
// names: no digits, a handful of words, each capitalized or a connector.
func looksLikeNames(seg string) bool {
	words := strings.Fields(seg)
	if len(words) == 0 || len(words) > 12 || strings.ContainsAny(seg, "0123456789") {
		return false
	}
	for _, w := range words {
		if !nameWord.MatchString(w) {
			return false
		}
	}
	return true
}
