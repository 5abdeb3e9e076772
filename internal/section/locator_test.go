package section

import (
	"testing"

	"github.com/matsen/refextract/internal/document"
	"github.com/matsen/refextract/internal/layout"
)

func line(text string, size float64, bold bool) layout.Line {
	return layout.Line{Tokens: []document.Token{{Text: text, FontSize: size, Bold: bold}}}
}

func body(n int) []layout.Line {
	lines := make([]layout.Line, n)
	for i := range lines {
		lines[i] = line("ordinary body text", 10, false)
	}
	return lines
}

func TestLocate_Heading(t *testing.T) {
	tests := []struct {
		name    string
		heading layout.Line
		found   bool
	}{
		{"large", line("References", 14, false), true},
		{"bold", line("Bibliography", 10, true), true},
		{"numbered", line("7. References", 12, false), true},
		{"roman", line("VII. Works Cited", 12, false), true},
		{"colon", line("Literature Cited:", 12, false), true},
		{"plain body size", line("References", 10, false), false},
		{"sentence", line("References to prior work are below", 14, false), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := append(body(20), tt.heading)
			lines = append(lines, body(5)...)

			loc := NewLocator(DefaultConfig()).Locate(lines)
			if loc.Found != tt.found {
				t.Fatalf("Found = %v, want %v", loc.Found, tt.found)
			}
			if tt.found && (loc.Start != 21 || loc.End != 26) {
				t.Errorf("range = [%d,%d), want [21,26)", loc.Start, loc.End)
			}
		})
	}
}

func TestLocate_LastHeadingWins(t *testing.T) {
	lines := append(body(3), line("References", 14, false))
	lines = append(lines, body(10)...)
	lines = append(lines, line("References", 14, false))
	lines = append(lines, body(4)...)

	loc := NewLocator(DefaultConfig()).Locate(lines)
	if !loc.Found || loc.Start != 15 {
		t.Errorf("Start = %d (found %v), want 15", loc.Start, loc.Found)
	}
}

func TestLocate_EndsAtPostMatter(t *testing.T) {
	lines := append(body(10), line("References", 14, true))
	lines = append(lines, body(6)...)
	lines = append(lines, line("Appendix A: Proofs", 14, true))
	lines = append(lines, body(3)...)

	loc := NewLocator(DefaultConfig()).Locate(lines)
	if loc.Start != 11 || loc.End != 17 {
		t.Errorf("range = [%d,%d), want [11,17)", loc.Start, loc.End)
	}
	if loc.Heading != "References" {
		t.Errorf("Heading = %q, want References", loc.Heading)
	}
}

func TestLocate_TailFallback(t *testing.T) {
	loc := NewLocator(DefaultConfig()).Locate(body(100))
	if loc.Found {
		t.Error("Found = true, want false")
	}
	if loc.Start != 70 || loc.End != 100 {
		t.Errorf("range = [%d,%d), want [70,100)", loc.Start, loc.End)
	}

	if loc := NewLocator(DefaultConfig()).Locate(nil); loc.Start != 0 || loc.End != 0 {
		t.Errorf("empty: range = [%d,%d), want [0,0)", loc.Start, loc.End)
	}
}

func TestIsHeading(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"References", true},
		{"REFERENCES:", true},
		{"  7.1 References ", true},
		{"A. Bibliography", true},
		{"Reference List", true},
		{"Further Reading", true},
		{"Cited Works", true},
		{"Preferences", false},
		{"References to prior work", false},
		{"Acknowledgements", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsHeading(tt.text); got != tt.want {
			t.Errorf("IsHeading(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestMedianFontSize(t *testing.T) {
	lines := append(body(3), line("Heading", 14, false), line("x", 0, false))
	if got := MedianFontSize(lines); got != 10 {
		t.Errorf("MedianFontSize() = %v, want 10", got)
	}
	if got := MedianFontSize(nil); got != 0 {
		t.Errorf("MedianFontSize(nil) = %v, want 0", got)
	}
}
