package reference

import (
	"encoding/json"
	"testing"
)

func TestCitation_WithMethodDoesNotMutate(t *testing.T) {
	orig := Citation{RawText: "x", Metadata: map[string]string{"citation_key": "k"}}
	tagged := orig.WithMethod("bibtex")

	if orig.Method() != "" {
		t.Errorf("original Method() = %q, want empty", orig.Method())
	}
	if tagged.Method() != "bibtex" {
		t.Errorf("tagged Method() = %q, want bibtex", tagged.Method())
	}
	if tagged.Metadata["citation_key"] != "k" {
		t.Error("tagged citation lost existing metadata")
	}
}

func TestCitation_JSONOmitsAbsentFields(t *testing.T) {
	data, err := json.Marshal(Citation{RawText: "Smith 2020"})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), `{"raw_text":"Smith 2020"}`; got != want {
		t.Errorf("json = %s, want %s", got, want)
	}
}

func TestOutcome_SetCitations(t *testing.T) {
	o := NewOutcome("paper.pdf")
	o.SetCitations([]Citation{{RawText: "a"}, {RawText: "b"}})
	if o.TotalCitations != 2 {
		t.Errorf("TotalCitations = %d, want 2", o.TotalCitations)
	}
	o.SetCitations(nil)
	if o.Citations == nil || o.TotalCitations != 0 {
		t.Errorf("SetCitations(nil) = %v/%d, want empty non-nil", o.Citations, o.TotalCitations)
	}
}

func TestParseAuthor(t *testing.T) {
	tests := []struct {
		in   string
		want Author
	}{
		{"Smith, J.", Author{First: "J.", Last: "Smith"}},
		{"J. K. Rowling", Author{First: "J. K.", Last: "Rowling"}},
		{"Smith JK", Author{First: "JK", Last: "Smith"}},
		{"Ludwig van Beethoven", Author{First: "Ludwig", Last: "van Beethoven"}},
		{"Plato", Author{Last: "Plato"}},
		{"  ", Author{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseAuthor(tt.in); got != tt.want {
				t.Errorf("ParseAuthor(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}
