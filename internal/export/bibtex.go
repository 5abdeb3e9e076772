// Package export provides functions to export citations to various formats.
package export

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/matsen/refextract/internal/reference"
)

// ToBibTeX converts a citation to a BibTeX entry under the given key.
func ToBibTeX(c reference.Citation, key string) string {
	entryType := determineEntryType(c)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", entryType, key))

	// Authors
	if len(c.Authors) > 0 {
		b.WriteString(fmt.Sprintf("  author = {%s},\n", formatAuthors(c.Authors)))
	}

	// Title
	if c.Title != "" {
		b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(c.Title)))
	}

	// Venue
	if c.Journal != "" {
		fieldName := "journal"
		if entryType == "inproceedings" || entryType == "incollection" {
			fieldName = "booktitle"
		}
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", fieldName, escapeLatex(c.Journal)))
	}

	if c.Year > 0 {
		b.WriteString(fmt.Sprintf("  year = {%d},\n", c.Year))
	}
	if c.Volume != "" {
		b.WriteString(fmt.Sprintf("  volume = {%s},\n", escapeLatex(c.Volume)))
	}
	if c.Issue != "" {
		b.WriteString(fmt.Sprintf("  number = {%s},\n", escapeLatex(c.Issue)))
	}
	if c.Pages != "" {
		b.WriteString(fmt.Sprintf("  pages = {%s},\n", strings.ReplaceAll(c.Pages, "-", "--")))
	}
	if c.Publisher != "" {
		b.WriteString(fmt.Sprintf("  publisher = {%s},\n", escapeLatex(c.Publisher)))
	}

	// Identifiers (optional)
	if c.DOI != "" {
		b.WriteString(fmt.Sprintf("  doi = {%s},\n", c.DOI))
	}
	if c.ArXivID != "" {
		b.WriteString(fmt.Sprintf("  eprint = {%s},\n  archiveprefix = {arXiv},\n", c.ArXivID))
	}
	if c.PMID != "" {
		b.WriteString(fmt.Sprintf("  pmid = {%s},\n", c.PMID))
	}
	if c.URL != "" {
		b.WriteString(fmt.Sprintf("  url = {%s},\n", c.URL))
	}

	// Citations with nothing parsed still carry their source text.
	if c.Title == "" && len(c.Authors) == 0 {
		b.WriteString(fmt.Sprintf("  note = {%s},\n", escapeLatex(c.RawText)))
	}

	b.WriteString("}\n")

	return b.String()
}

// ToBibTeXList converts multiple citations to BibTeX format, assigning each
// a unique citation key.
func ToBibTeXList(cs []reference.Citation) string {
	seen := make(map[string]int)
	var entries []string
	for _, c := range cs {
		entries = append(entries, ToBibTeX(c, uniqueKey(CitationKey(c), seen)))
	}
	return strings.Join(entries, "\n")
}

// CitationKey builds a "SurnameYear" key, or "SurnameYearWord" when a title
// is available. Non-letters are dropped from the surname.
func CitationKey(c reference.Citation) string {
	var b strings.Builder
	for _, r := range c.FirstAuthorLastName {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		b.WriteString("ref")
	}
	if c.Year > 0 {
		b.WriteString(fmt.Sprint(c.Year))
	}
	for _, w := range strings.Fields(c.Title) {
		w = strings.ToLower(strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) }))
		if len(w) > 3 && isASCII(w) {
			b.WriteString(w)
			break
		}
	}
	return b.String()
}

func uniqueKey(key string, seen map[string]int) string {
	n := seen[key]
	seen[key] = n + 1
	if n == 0 {
		return key
	}
	return fmt.Sprintf("%s%c", key, 'a'+rune(n-1)%26)
}

func isASCII(s string) bool {
	for _, r := range s {
		if r >= unicode.MaxASCII {
			return false
		}
	}
	return true
}

// determineEntryType returns the BibTeX entry type for a citation.
func determineEntryType(c reference.Citation) string {
	switch c.PublicationType {
	case "conference":
		return "inproceedings"
	case "book":
		if c.Journal != "" {
			return "incollection"
		}
		return "book"
	case "thesis":
		return "phdthesis"
	case "preprint":
		return "misc"
	case "journal":
		return "article"
	}

	venue := strings.ToLower(c.Journal)

	// Conference proceedings
	if strings.Contains(venue, "proceedings") ||
		strings.Contains(venue, "conference") ||
		strings.Contains(venue, "workshop") ||
		strings.Contains(venue, "symposium") {
		return "inproceedings"
	}

	if venue == "" {
		return "misc"
	}
	return "article"
}

// formatAuthors formats authors in BibTeX style: "Last, First and Last, First"
func formatAuthors(authors []string) string {
	var formatted []string
	for _, name := range authors {
		a := reference.ParseAuthor(name)
		if a.Last == "" {
			continue
		}
		formatted = append(formatted, escapeLatex(a.String()))
	}
	return strings.Join(formatted, " and ")
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	// Order matters: & must be first (before other escapes that might produce &)
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
