package fallback

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/matsen/refextract/internal/reference"
)

// fingerprints remembers which citations the merged list already holds.
// Two citations match when their normalized raw-text prefixes are equal, or
// when both carry the same normalized title and year.
type fingerprints struct {
	prefix int
	keys   map[string]bool
}

func newFingerprints(prefix int) *fingerprints {
	return &fingerprints{prefix: prefix, keys: make(map[string]bool)}
}

// add records c and reports whether it was new.
func (f *fingerprints) add(c reference.Citation) bool {
	var keys []string
	if raw := normalize(c.RawText, f.prefix); raw != "" {
		keys = append(keys, "raw:"+raw)
	}
	if title := normalize(c.Title, f.prefix); title != "" && c.Year > 0 {
		keys = append(keys, "title:"+title+"|"+strconv.Itoa(c.Year))
	}
	if len(keys) == 0 {
		return false
	}
	dup := false
	for _, k := range keys {
		if f.keys[k] {
			dup = true
		}
	}
	for _, k := range keys {
		f.keys[k] = true
	}
	return !dup
}

// normalize folds text to NFKC lowercase letters and digits separated by
// single spaces, truncated to limit runes.
func normalize(s string, limit int) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	space := false
	n := 0
	for _, r := range strings.ToLower(s) {
		if n >= limit {
			break
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
				n++
				if n >= limit {
					return b.String()
				}
			}
			space = false
			b.WriteRune(r)
			n++
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}
