package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/matsen/refextract/internal/reference"
)

// Constants for output formatting.
const (
	DefaultListLimit = 50 // Default limit for list/search commands

	RawTextMaxLen = 90 // Raw text shown when a citation has no title
	TitleMaxLen   = 70 // Title truncation in citation summaries
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is the JSON body written for a failed command.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ExtractResponse is an outcome plus its store id when it was saved.
type ExtractResponse struct {
	ID int64 `json:"id,omitempty"`
	*reference.Outcome
}

func truncateString(s string, maxLen int) string {
	if len([]rune(s)) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}

// citationLine is a one-line summary: authors, year, title and provenance.
func citationLine(c reference.Citation) string {
	var b strings.Builder
	if c.FirstAuthorLastName != "" {
		b.WriteString(c.FirstAuthorLastName)
		if len(c.Authors) > 1 {
			b.WriteString(" et al.")
		}
		b.WriteString(" ")
	}
	if c.Year > 0 {
		fmt.Fprintf(&b, "(%d) ", c.Year)
	}
	if c.Title != "" {
		b.WriteString(truncateString(c.Title, TitleMaxLen))
	} else {
		b.WriteString(truncateString(c.RawText, RawTextMaxLen))
	}
	if m := c.Method(); m != "" {
		fmt.Fprintf(&b, " [%s]", m)
	}
	return b.String()
}

func printOutcomeHuman(id int64, o *reference.Outcome) {
	if id > 0 {
		outputHuman("Outcome %d: ", id)
	}
	outputHuman("%s: %d citations\n", o.Source, o.TotalCitations)
	for i, c := range o.Citations {
		outputHuman("%3d. %s\n", i+1, citationLine(c))
		if c.DOI != "" {
			outputHuman("     doi:%s\n", c.DOI)
		}
	}
	if len(o.Errors) > 0 {
		outputHuman("\nNotes:\n")
		for _, e := range o.Errors {
			outputHuman("  - %s\n", e)
		}
	}
}
