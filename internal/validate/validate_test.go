package validate

import (
	"strings"
	"testing"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		accept bool
		reason string
	}{
		{"two words", "Smith 2020", false, ReasonTooShort},
		{"short caption", "Figure 3: Results overview", false, ReasonCaption},
		{"fig abbreviation", "Fig. 2 Sample", false, ReasonCaption},
		{"table supplement", "Table S1 Primer sequences", false, ReasonCaption},
		{"long caption without signal", "Figure 3: Distribution of scores across the whole cohort of patients", false, ReasonCaptionNoCite},
		{"citation with caption-like title", "Figure, A. (2019). Figure eight knots in rope theory. Knot Journal, 3, 1-9.", true, ReasonSignal},
		{"citation", "Smith, J. (2023). Title Here. Journal, 10(5), 1-20. DOI: 10.1234/example", true, ReasonSignal},
		{"citation with doi", "Smith J, Doe A. Title of the work. J Biol. doi:10.1234/xyz", true, ReasonSignal},
		{"ambiguous kept", "Some text without any signal whatsoever here", true, ReasonDefault},
		{"caption word inside", "Tablet computing in classrooms, a review", true, ReasonDefault},
	}
	v := New(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := v.Check(tt.text)
			if d.Accept != tt.accept || d.Reason != tt.reason {
				t.Errorf("Check(%q) = %+v, want accept=%v reason=%s", tt.text, d, tt.accept, tt.reason)
			}
		})
	}
}

func TestCheck_ConfigurableThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinWords = 5
	v := New(cfg)
	if d := v.Check("Smith, J. 2020 Title"); d.Accept {
		t.Errorf("Check() accepted a 4-word span with MinWords=5")
	}
}

func TestTally_ReportsLongRejectionRuns(t *testing.T) {
	v := New(DefaultConfig())
	tally := v.NewTally()

	for i := 0; i < 2; i++ {
		tally.Add(Decision{Accept: true, Reason: ReasonSignal})
	}
	for i := 0; i < 6; i++ {
		tally.Add(Decision{Reason: ReasonCaption})
	}
	tally.Add(Decision{Accept: true, Reason: ReasonSignal})
	for i := 0; i < 2; i++ {
		tally.Add(Decision{Reason: ReasonTooShort})
	}

	summaries := tally.Close()
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1: %q", len(summaries), summaries)
	}
	if !strings.Contains(summaries[0], "6 consecutive") || !strings.Contains(summaries[0], "candidates 3-8") {
		t.Errorf("summary = %q", summaries[0])
	}
	if tally.Accepted() != 3 || tally.Rejected() != 8 {
		t.Errorf("accepted/rejected = %d/%d, want 3/8", tally.Accepted(), tally.Rejected())
	}
	if tally.ByReason[ReasonCaption] != 6 {
		t.Errorf("ByReason[caption] = %d, want 6", tally.ByReason[ReasonCaption])
	}
}

func TestCaptionLine(t *testing.T) {
	v := New(DefaultConfig())
	tests := []struct {
		line string
		want bool
	}{
		{"Figure 3: Distribution of values across samples.", true},
		{"Fig. 4. Overview of the sampling design.", true},
		{"Table S1 Primer sequences", true},
		{"table 2", true},
		{"Table of contents for the volume. Journal, 3, 1-9.", false},
		{"Figures of speech in scientific writing.", false},
		{"Smith, J. (2020). Figure 3 revisited.", false},
	}
	for _, tt := range tests {
		if got := v.CaptionLine(tt.line); got != tt.want {
			t.Errorf("CaptionLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
