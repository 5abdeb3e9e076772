package export

import (
	"bufio"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/matsen/refextract/internal/ident"
	"github.com/matsen/refextract/internal/reference"
)

// Entry is one bibliography record found in free text, either an
// "@type{key, field = {value}, ...}" block or a "type=...; field=value"
// record.
type Entry struct {
	Type   string            // lower-cased entry type, e.g. "article"
	Key    string            // citation key; empty for records
	Fields map[string]string // lower-cased field names
	Raw    string            // source text of the entry
}

var (
	entryStartRegex = regexp.MustCompile(`@(\w+)\s*\{`)
	entryKeyRegex   = regexp.MustCompile(`^@\w+\s*\{\s*([^,\s]+)\s*,`)
	fieldRegex      = regexp.MustCompile(`(\w+)\s*=\s*(?:\{((?:[^{}]|\{[^{}]*\})*)\}|"([^"]*)"|(\d+))`)
	recordStart     = regexp.MustCompile(`(?im)^[ \t]*type\s*=\s*(\w+)`)
	recordField     = regexp.MustCompile(`^\s*(\w+)\s*=\s*(.*?)\s*$`)
	yearDigits      = regexp.MustCompile(`\b(1[89]|20)\d{2}\b`)
	innerBraces     = strings.NewReplacer("{", "", "}", "")
	spaceRun        = regexp.MustCompile(`\s+`)
)

// HasEntries reports whether text contains an "@type{" block or a
// "type=" record.
func HasEntries(text string) bool {
	return entryStartRegex.MatchString(text) || recordStart.MatchString(text)
}

// ParseEntries returns every well-formed block in text, followed by every
// record, each group in source order. Blocks are delimited by brace matching, so nested
// braces in values are allowed; an unterminated block is skipped.
func ParseEntries(text string) []Entry {
	var entries []Entry
	var spans [][2]int
	end := 0
	for _, m := range entryStartRegex.FindAllStringSubmatchIndex(text, -1) {
		if m[0] < end {
			continue
		}
		closing := matchBrace(text, m[1]-1)
		if closing < 0 {
			continue
		}
		raw := text[m[0] : closing+1]
		end = closing + 1
		spans = append(spans, [2]int{m[0], end})
		e := Entry{
			Type:   strings.ToLower(text[m[2]:m[3]]),
			Fields: parseFields(raw[m[1]-m[0] : len(raw)-1]),
			Raw:    raw,
		}
		if km := entryKeyRegex.FindStringSubmatch(raw); km != nil {
			e.Key = strings.TrimSpace(km[1])
		}
		if len(e.Fields) > 0 {
			entries = append(entries, e)
		}
	}
	return append(entries, parseRecords(text, spans)...)
}

// matchBrace returns the index of the brace closing the one at open, or -1.
func matchBrace(text string, open int) int {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parseFields(body string) map[string]string {
	fields := make(map[string]string)
	for _, m := range fieldRegex.FindAllStringSubmatch(body, -1) {
		value := m[2]
		if value == "" {
			value = m[3]
		}
		if value == "" {
			value = m[4]
		}
		value = strings.TrimSpace(spaceRun.ReplaceAllString(innerBraces.Replace(value), " "))
		if value != "" {
			fields[strings.ToLower(m[1])] = value
		}
	}
	return fields
}

// parseRecords reads "type=article; author=...; title=..." records. A
// record starts at a line opening with "type=" and runs to the next blank
// line; fields are separated by semicolons or line breaks. Lines inside the
// given block spans are not records.
func parseRecords(text string, blocks [][2]int) []Entry {
	var entries []Entry
	var locs [][]int
	for _, loc := range recordStart.FindAllStringSubmatchIndex(text, -1) {
		if !inSpans(loc[0], blocks) {
			locs = append(locs, loc)
		}
	}
	for i, loc := range locs {
		stop := len(text)
		if i+1 < len(locs) {
			stop = locs[i+1][0]
		}
		if blank := strings.Index(text[loc[0]:stop], "\n\n"); blank >= 0 {
			stop = loc[0] + blank
		}
		for _, b := range blocks {
			if b[0] > loc[0] && b[0] < stop {
				stop = b[0]
			}
		}
		raw := strings.TrimSpace(text[loc[0]:stop])
		e := Entry{Type: strings.ToLower(text[loc[2]:loc[3]]), Fields: make(map[string]string), Raw: raw}
		for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == '\n' }) {
			m := recordField.FindStringSubmatch(part)
			if m == nil {
				continue
			}
			name := strings.ToLower(m[1])
			if name == "type" {
				continue
			}
			if v := strings.Trim(m[2], `"{} `); v != "" {
				e.Fields[name] = v
			}
		}
		if len(e.Fields) > 0 {
			entries = append(entries, e)
		}
	}
	return entries
}

func inSpans(pos int, spans [][2]int) bool {
	for _, s := range spans {
		if pos >= s[0] && pos < s[1] {
			return true
		}
	}
	return false
}

var entryTypes = map[string]string{
	"article":       "journal",
	"inproceedings": "conference",
	"conference":    "conference",
	"incollection":  "book",
	"inbook":        "book",
	"book":          "book",
	"phdthesis":     "thesis",
	"mastersthesis": "thesis",
	"misc":          "other",
}

// Citation maps the entry's fields straight onto a Citation. The citation
// key and entry type are kept in the metadata map.
func (e Entry) Citation() reference.Citation {
	f := e.Fields
	c := reference.Citation{
		RawText:   spaceRun.ReplaceAllString(strings.TrimSpace(e.Raw), " "),
		Title:     f["title"],
		Journal:   firstField(f, "journal", "booktitle"),
		Volume:    f["volume"],
		Issue:     firstField(f, "number", "issue"),
		Pages:     strings.ReplaceAll(f["pages"], "--", "-"),
		Publisher: firstField(f, "publisher", "school", "institution"),
		PMID:      f["pmid"],
		URL:       f["url"],
	}
	if doi := f["doi"]; doi != "" {
		c.DOI = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(doi, "doi:"), "https://doi.org/"))
	}
	if strings.EqualFold(f["archiveprefix"], "arxiv") || strings.EqualFold(f["eprinttype"], "arxiv") {
		c.ArXivID = f["eprint"]
	}
	if m := yearDigits.FindString(f["year"]); m != "" {
		if y, err := strconv.Atoi(m); err == nil && ident.ValidYear(y) {
			c.Year = y
		}
	}
	for _, name := range strings.Split(f["author"], " and ") {
		if name = strings.TrimSpace(name); name != "" {
			c.Authors = append(c.Authors, name)
		}
	}
	if len(c.Authors) > 0 {
		c.FirstAuthorLastName = reference.LastName(c.Authors[0])
	}
	if t, ok := entryTypes[e.Type]; ok {
		c.PublicationType = t
	} else {
		c.PublicationType = "other"
	}
	if e.Key != "" {
		c = c.WithMetadata("citation_key", e.Key)
	}
	return c.WithMetadata("entry_type", e.Type)
}

func firstField(fields map[string]string, names ...string) string {
	for _, n := range names {
		if v := fields[n]; v != "" {
			return v
		}
	}
	return ""
}

// BibTeXIndex indexes existing BibTeX entries for deduplication.
type BibTeXIndex struct {
	// Keys maps citation keys to true for existence check
	Keys map[string]bool
	// DOIs maps DOI values to citation keys
	DOIs map[string]string
}

// NewBibTeXIndex creates an empty BibTeX index.
func NewBibTeXIndex() *BibTeXIndex {
	return &BibTeXIndex{
		Keys: make(map[string]bool),
		DOIs: make(map[string]string),
	}
}

// HasEntry returns true if the entry already exists (by DOI or key).
// DOI is the primary match; citation key is the fallback if no DOI.
func (idx *BibTeXIndex) HasEntry(key, doi string) bool {
	if doi != "" {
		if _, exists := idx.DOIs[ident.NormalizeDOI(doi)]; exists {
			return true
		}
	}
	return idx.Keys[key]
}

// Add records an entry in the index.
func (idx *BibTeXIndex) Add(key, doi string) {
	idx.Keys[key] = true
	if doi != "" {
		idx.DOIs[ident.NormalizeDOI(doi)] = key
	}
}

// ParseBibTeXFile builds an index from an existing .bib file.
// Returns an empty index if the file doesn't exist or is empty.
func ParseBibTeXFile(path string) (*BibTeXIndex, error) {
	idx := NewBibTeXIndex()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, err
	}
	defer file.Close()

	var b strings.Builder
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		b.WriteString(scanner.Text())
		b.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, e := range ParseEntries(b.String()) {
		if e.Key != "" {
			idx.Add(e.Key, e.Fields["doi"])
		}
	}
	return idx, nil
}

// AppendToBibFile appends BibTeX content to a file.
func AppendToBibFile(path, content string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	// Ensure we start on a new line
	_, err = file.WriteString("\n" + content)
	return err
}
