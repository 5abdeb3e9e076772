package reference

import (
	"strings"
	"unicode"
)

// Author is a citation author split into given and family parts.
type Author struct {
	First string `json:"first"` // Given name(s) or initials
	Last  string `json:"last"`  // Family name
}

// ParseAuthor splits a free-text author name. It understands
// "Surname, J. K." and "J. K. Surname"; a single token is taken as the
// surname.
func ParseAuthor(name string) Author {
	name = strings.TrimSpace(strings.Trim(name, " ,;"))
	if name == "" {
		return Author{}
	}
	if i := strings.Index(name, ","); i >= 0 {
		last := strings.TrimSpace(name[:i])
		first := strings.TrimSpace(name[i+1:])
		return Author{First: first, Last: last}
	}
	fields := strings.Fields(name)
	if len(fields) == 1 {
		return Author{Last: fields[0]}
	}
	// "Smith J" / "Smith JK" (Vancouver style): trailing run of initials.
	if tail := fields[len(fields)-1]; isInitials(tail) && !isInitials(fields[0]) {
		return Author{First: tail, Last: strings.Join(fields[:len(fields)-1], " ")}
	}
	last := fields[len(fields)-1]
	first := strings.Join(fields[:len(fields)-1], " ")
	// Keep particles such as "van", "de", "von" with the surname.
	for len(fields) > 2 && isParticle(fields[len(fields)-2]) {
		last = fields[len(fields)-2] + " " + last
		fields = fields[:len(fields)-1]
		first = strings.Join(fields[:len(fields)-1], " ")
	}
	return Author{First: first, Last: last}
}

// LastName returns the family name of a free-text author.
func LastName(name string) string {
	return ParseAuthor(name).Last
}

// String renders the author as "Last, First" (or "Last").
func (a Author) String() string {
	if a.First != "" {
		return a.Last + ", " + a.First
	}
	return a.Last
}

// isInitials reports whether s looks like "J.", "JK", "J.-P." or "J.K.".
func isInitials(s string) bool {
	s = strings.TrimRight(s, ".,")
	if s == "" || len([]rune(s)) > 4 {
		return false
	}
	for _, r := range s {
		if r == '.' || r == '-' {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

var particles = map[string]bool{
	"van": true, "von": true, "de": true, "der": true, "den": true,
	"da": true, "di": true, "del": true, "della": true, "le": true, "la": true,
}

func isParticle(s string) bool {
	return particles[strings.ToLower(s)]
}
