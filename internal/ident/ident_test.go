package ident

import (
	"reflect"
	"testing"
)

func TestFindDOI(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "Nature 1, 2. doi:10.1038/nature12373.", "10.1038/nature12373"},
		{"resolver", "https://doi.org/10.1101/2020.01.01.123456", "10.1101/2020.01.01.123456"},
		{"parenthesized", "(DOI 10.1002/(SICI)1097-0258)", "10.1002/(SICI)1097-0258"},
		{"trailing paren", "(see 10.1234/abcdef)", "10.1234/abcdef"},
		{"too short registrant", "10.12/abc", ""},
		{"none", "no identifier here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindDOI(tt.text); got != tt.want {
				t.Errorf("FindDOI(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestNormalizeDOI(t *testing.T) {
	tests := map[string]string{
		"https://doi.org/10.1234/ABC": "10.1234/abc",
		"DOI:10.1234/Abc":             "10.1234/abc",
		"doi: 10.1234/abc":            "10.1234/abc",
		"  10.1234/abc ":              "10.1234/abc",
	}
	for in, want := range tests {
		if got := NormalizeDOI(in); got != want {
			t.Errorf("NormalizeDOI(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFindPMID(t *testing.T) {
	if got := FindPMID("Cell 5, 1-2. PMID: 31234567."); got != "31234567" {
		t.Errorf("FindPMID() = %q, want 31234567", got)
	}
	if got := FindPMID("pages 31234567"); got != "" {
		t.Errorf("FindPMID() = %q, want empty", got)
	}
}

func TestFindArXivID(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"prefix", "Preprint, arXiv:2301.01234v2 (2023).", "2301.01234v2"},
		{"old style", "arXiv: hep-th/9901001", "hep-th/9901001"},
		{"url", "https://arxiv.org/abs/1706.03762", "1706.03762"},
		{"bare", "Attention. CoRR 1706.03762, 2017.", "1706.03762"},
		{"bare bad month", "Report 1799.12345", ""},
		{"inside doi", "doi:10.48550/2301.01234x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindArXivID(tt.text); got != tt.want {
				t.Errorf("FindArXivID(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestFindURLs(t *testing.T) {
	got := FindURLs("See https://example.org/a, and (http://x.y/z).")
	want := []string{"https://example.org/a", "http://x.y/z"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FindURLs() = %v, want %v", got, want)
	}
}

func TestYearSpans(t *testing.T) {
	got := YearSpans("In 1650 and 1999, then 2021; also 9999.")
	if len(got) != 2 || got[0][0] != 1999 || got[1][0] != 2021 {
		t.Errorf("YearSpans() = %v, want years 1999 and 2021", got)
	}
	if !ValidYear(MaxYear()) || ValidYear(MaxYear()+1) {
		t.Error("ValidYear does not admit exactly next year")
	}
}
