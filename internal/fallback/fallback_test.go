package fallback

import (
	"slices"
	"strings"
	"testing"

	"github.com/matsen/refextract/internal/document"
	"github.com/matsen/refextract/internal/parser"
	"github.com/matsen/refextract/internal/reference"
	"github.com/matsen/refextract/internal/validate"
)

func newTestManager(cfg Config) *Manager {
	return NewManager(cfg, validate.New(validate.DefaultConfig()), parser.New(), nil)
}

func primaryCitations(n int) []reference.Citation {
	out := make([]reference.Citation, n)
	for i := range out {
		out[i] = reference.Citation{RawText: "Primary citation number " + string(rune('A'+i)) + " (2001)."}
	}
	return out
}

const twoArticles = `Some body text.

@article{lecun2015,
  author = {LeCun, Yann and Bengio, Yoshua},
  title = {Deep Learning},
  journal = {Nature},
  year = {2015}
}

@inproceedings{he2016,
  author = {He, Kaiming},
  title = {Deep Residual Learning},
  booktitle = {CVPR},
  year = 2016
}
`

func TestShouldRun(t *testing.T) {
	disabled := DefaultConfig()
	disabled.Enabled = false

	tests := []struct {
		name  string
		cfg   Config
		count int
		force bool
		want  bool
	}{
		{"below threshold", DefaultConfig(), 2, false, true},
		{"at threshold", DefaultConfig(), 3, false, false},
		{"above threshold forced", DefaultConfig(), 10, true, true},
		{"zero citations", DefaultConfig(), 0, false, true},
		{"master switch off", disabled, 0, false, false},
		{"master switch off forced", disabled, 0, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newTestManager(tt.cfg).ShouldRun(tt.count, tt.force); got != tt.want {
				t.Errorf("ShouldRun(%d, %v) = %v, want %v", tt.count, tt.force, got, tt.want)
			}
		})
	}
}

func TestApply_ThresholdMetRunsNothing(t *testing.T) {
	doc := &document.Document{Kind: document.KindPDF, Text: twoArticles}
	primary := primaryCitations(3)

	res := newTestManager(DefaultConfig()).Apply(doc, primary, false)
	if len(res.Ran) != 0 {
		t.Errorf("Ran = %v, want none", res.Ran)
	}
	if len(res.Citations) != 3 || len(res.Errors) != 0 {
		t.Errorf("got %d citations and errors %v, want primary only", len(res.Citations), res.Errors)
	}
}

func TestApply_BibTeXAddsTaggedCitations(t *testing.T) {
	doc := &document.Document{Kind: document.KindPDF, Text: twoArticles}
	primary := primaryCitations(1)

	res := newTestManager(DefaultConfig()).Apply(doc, primary, false)

	if want := []Kind{KindTable, KindBibTeX}; !slices.Equal(res.Ran, want) {
		t.Errorf("Ran = %v, want %v", res.Ran, want)
	}
	if len(res.Citations) != 3 {
		t.Fatalf("Citations = %d, want 3", len(res.Citations))
	}
	if res.Citations[0].Method() != "" {
		t.Errorf("primary citation tagged %q", res.Citations[0].Method())
	}
	if primary[0].Metadata != nil {
		t.Error("Apply mutated the primary slice")
	}
	for _, c := range res.Citations[1:] {
		if c.Method() != string(KindBibTeX) {
			t.Errorf("fallback citation %q tagged %q, want bibtex", c.Title, c.Method())
		}
	}
	if res.Citations[1].Title != "Deep Learning" || res.Citations[1].Year != 2015 {
		t.Errorf("first bibtex citation = %+v", res.Citations[1])
	}
	if res.Added != 2 {
		t.Errorf("Added = %d, want 2", res.Added)
	}
	if !slices.Contains(res.Errors, "Table fallback: No reference tables detected") {
		t.Errorf("Errors = %v, want table diagnostic", res.Errors)
	}
	if slices.Contains(res.Errors, MsgAllFailed) {
		t.Errorf("Errors = %v, should not report total failure", res.Errors)
	}
}

func TestApply_DuplicateKeepsPrimary(t *testing.T) {
	doc := &document.Document{Kind: document.KindPDF, Text: `@article{k, title = {Deep Learning}, year = {2015}}`}
	primary := []reference.Citation{{
		RawText: "LeCun, Y., Bengio, Y., Hinton, G. (2015). Deep learning. Nature, 521, 436-444.",
		Title:   "Deep learning",
		Year:    2015,
	}}

	res := newTestManager(DefaultConfig()).Apply(doc, primary, false)

	if len(res.Citations) != 1 {
		t.Fatalf("Citations = %d, want the primary one only", len(res.Citations))
	}
	if res.Citations[0].Method() != "" || res.Citations[0].RawText != primary[0].RawText {
		t.Errorf("primary citation was replaced: %+v", res.Citations[0])
	}
	for _, want := range []string{"BibTeX fallback: " + MsgNoNewReferences, MsgAllFailed} {
		if !slices.Contains(res.Errors, want) {
			t.Errorf("Errors = %v, missing %q", res.Errors, want)
		}
	}
}

func TestApply_DuplicatesWithinFallbacks(t *testing.T) {
	twice := twoArticles + "\n" + twoArticles
	doc := &document.Document{Kind: document.KindPDF, Text: twice}

	res := newTestManager(DefaultConfig()).Apply(doc, nil, false)
	if len(res.Citations) != 2 {
		t.Errorf("Citations = %d, want 2 after dedup", len(res.Citations))
	}
}

func TestApply_Tables(t *testing.T) {
	doc := &document.Document{
		Kind: document.KindPDF,
		Tables: []document.Table{
			{Page: 2, Rows: [][]string{{"Compound", "IC50"}, {"A", "12"}}},
			{Page: 5, Rows: [][]string{
				{"No.", "Citation"},
				{"1", "Smith, J. (2020). Learning things fast. Journal of Stuff, 12(3), 45-67."},
				{"2", "Doe, A., Roe, B. (2018). Another study of things. Science, 3, 1-9."},
			}},
		},
	}

	res := newTestManager(DefaultConfig()).Apply(doc, nil, false)

	var tabled []reference.Citation
	for _, c := range res.Citations {
		if c.Method() == string(KindTable) {
			tabled = append(tabled, c)
		}
	}
	if len(tabled) != 2 {
		t.Fatalf("table citations = %d, want 2 (got %+v)", len(tabled), res.Citations)
	}
	if !strings.Contains(tabled[0].RawText, "Smith, J. (2020)") || tabled[0].Year != 2020 {
		t.Errorf("first table citation = %+v", tabled[0])
	}
	if !slices.Contains(res.Errors, "BibTeX fallback: No BibTeX blocks detected") {
		t.Errorf("Errors = %v, want bibtex diagnostic", res.Errors)
	}
}

func TestApply_HTMLStructure(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   int
	}{
		{
			name: "id container",
			markup: `<html><body><p>Intro.</p><div id="references"><ol>
<li>Smith, J. (2020). Learning things fast. Journal of Stuff, 12(3), 45-67.</li>
<li>Doe, A., Roe, B. (2018). Another study of things. Science, 3, 1-9.</li>
</ol></div></body></html>`,
			want: 2,
		},
		{
			name: "heading then list",
			markup: `<html><body><h2>Bibliography</h2><ul>
<li>Smith, J. (2020). Learning things fast. Journal of Stuff, 12(3), 45-67.</li>
<li>Doe, A., Roe, B. (2018). Another study of things. Science, 3, 1-9.</li>
<li>Figure 3</li>
</ul></body></html>`,
			want: 2,
		},
		{
			name: "paragraph entries",
			markup: `<html><body><section class="bibliography"><h3>References</h3>
<p>Smith, J. (2020). Learning things fast. Journal of Stuff, 12(3), 45-67.</p>
<p>Doe, A., Roe, B. (2018). Another study of things. Science, 3, 1-9.</p>
</section></body></html>`,
			want: 2,
		},
		{
			name:   "no container",
			markup: `<html><body><p>Nothing to see here at all, really.</p></body></html>`,
			want:   0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &document.Document{Kind: document.KindHTML, Markup: tt.markup}
			res := newTestManager(DefaultConfig()).Apply(doc, nil, false)

			n := 0
			for _, c := range res.Citations {
				if c.Method() == string(KindHTMLStructure) {
					n++
				}
			}
			if n != tt.want {
				t.Errorf("html_structure citations = %d, want %d (errors %v)", n, tt.want, res.Errors)
			}
			if tt.want == 0 && !slices.Contains(res.Errors, "HTML structure fallback: No structured citation elements found") {
				t.Errorf("Errors = %v, want html diagnostic", res.Errors)
			}
		})
	}
}

func TestApply_HTMLStructureOnlyForHTML(t *testing.T) {
	doc := &document.Document{Kind: document.KindPDF, Markup: "<ol id=\"references\"><li>x</li></ol>"}
	res := newTestManager(DefaultConfig()).Apply(doc, nil, true)
	if slices.Contains(res.Ran, KindHTMLStructure) {
		t.Errorf("Ran = %v, html_structure should not run on a PDF", res.Ran)
	}
}

func TestApply_DisabledStrategies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableBibTeX = false
	doc := &document.Document{Kind: document.KindPDF, Text: twoArticles}

	res := newTestManager(cfg).Apply(doc, nil, false)
	if slices.Contains(res.Ran, KindBibTeX) {
		t.Errorf("Ran = %v, bibtex is disabled", res.Ran)
	}
	if len(res.Citations) != 0 {
		t.Errorf("Citations = %d, want 0", len(res.Citations))
	}
}

func TestApply_PanickingStrategyIsContained(t *testing.T) {
	m := newTestManager(DefaultConfig())
	m.strategies = map[Kind]strategyFunc{
		KindBibTeX: func(*document.Document) ([]reference.Citation, error) {
			panic("boom")
		},
	}
	doc := &document.Document{Kind: document.KindHTML, Markup: `<ol class="references">
<li>Smith, J. (2020). Learning things fast. Journal of Stuff, 12(3), 45-67.</li></ol>`}

	res := m.Apply(doc, nil, false)

	if !slices.Contains(res.Errors, "BibTeX fallback failed: panic: boom") {
		t.Errorf("Errors = %v, want recovered panic", res.Errors)
	}
	if res.Added != 1 || res.Citations[0].Method() != string(KindHTMLStructure) {
		t.Errorf("later strategy should still run, got %+v", res.Citations)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"Smith, J.  (2020). Title!", 100, "smith j 2020 title"},
		{"ＦＵＬＬ width", 100, "full width"},
		{"  ...  ", 100, ""},
		{"abcdef ghi", 4, "abcd"},
		{"ab cd", 3, "ab "},
	}
	for _, tt := range tests {
		if got := normalize(tt.in, tt.limit); got != tt.want {
			t.Errorf("normalize(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestFingerprints(t *testing.T) {
	f := newFingerprints(100)
	if !f.add(reference.Citation{RawText: "Smith, J. (2020). Title."}) {
		t.Error("first citation should be new")
	}
	if f.add(reference.Citation{RawText: "smith j 2020 title"}) {
		t.Error("punctuation and case variants should match")
	}
	if !f.add(reference.Citation{RawText: "Doe (2019)", Title: "A paper", Year: 2019}) {
		t.Error("different citation should be new")
	}
	if f.add(reference.Citation{RawText: "@article{x, title={A Paper}}", Title: "A Paper", Year: 2019}) {
		t.Error("same title and year should match")
	}
	if f.add(reference.Citation{}) {
		t.Error("empty citation should never be added")
	}
}
