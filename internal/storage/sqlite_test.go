package storage

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/matsen/refextract/internal/reference"
)

func testOutcome(source string) *reference.Outcome {
	o := reference.NewOutcome(source)
	o.SetCitations([]reference.Citation{
		{
			RawText:             "Smith, J. (2023). Machine learning in biology. Nature, 10(5), 1-20.",
			Authors:             []string{"Smith, J."},
			FirstAuthorLastName: "Smith",
			Title:               "Machine learning in biology",
			Year:                2023,
			Journal:             "Nature",
			Volume:              "10",
			Issue:               "5",
			Pages:               "1-20",
			DOI:                 "10.1234/smith",
			PublicationType:     "journal",
		},
		{
			RawText: "@article{jones, title = {Protein structure}}",
			Title:   "Protein structure",
			Metadata: map[string]string{
				reference.MetadataExtractionMethod: "bibtex",
				"citation_key":                     "jones",
			},
		},
		{RawText: "An unparsed entry with no fields at all"},
	})
	o.AddError("Table fallback: No reference tables detected")
	return o
}

// setupTestDB creates an empty database in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveOutcome_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	o := testOutcome("paper.pdf")

	id, err := db.SaveOutcome(o, Digest([]byte("paper bytes")))
	if err != nil {
		t.Fatalf("SaveOutcome() error = %v", err)
	}

	got, err := db.GetCitations(id)
	if err != nil {
		t.Fatalf("GetCitations() error = %v", err)
	}
	if !reflect.DeepEqual(got, o.Citations) {
		t.Errorf("GetCitations() =\n%+v\nwant\n%+v", got, o.Citations)
	}

	loaded, err := db.LoadOutcome(id)
	if err != nil {
		t.Fatalf("LoadOutcome() error = %v", err)
	}
	if loaded.Source != "paper.pdf" || loaded.TotalCitations != 3 {
		t.Errorf("LoadOutcome() = %+v", loaded)
	}
	if len(loaded.Errors) != 1 || loaded.Errors[0] != o.Errors[0] {
		t.Errorf("Errors = %v, want %v", loaded.Errors, o.Errors)
	}
}

func TestSaveOutcome_SameDigestReplaces(t *testing.T) {
	db := setupTestDB(t)
	digest := Digest([]byte("same bytes"))

	first, err := db.SaveOutcome(testOutcome("a.pdf"), digest)
	if err != nil {
		t.Fatal(err)
	}
	second := testOutcome("a.pdf")
	second.SetCitations(second.Citations[:1])
	id, err := db.SaveOutcome(second, digest)
	if err != nil {
		t.Fatal(err)
	}

	if n, _ := db.Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
	if _, err := db.GetOutcome(first); !errors.Is(err, ErrOutcomeNotFound) {
		t.Errorf("old outcome still present: %v", err)
	}
	cs, _ := db.GetCitations(id)
	if len(cs) != 1 {
		t.Errorf("citations = %d, want 1", len(cs))
	}
	hits, _ := db.Search("Protein", 10)
	if len(hits) != 0 {
		t.Errorf("search still finds replaced citations: %+v", hits)
	}
}

func TestSaveOutcome_EmptyDigest(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.SaveOutcome(testOutcome("x"), ""); err == nil {
		t.Error("SaveOutcome() with empty digest should fail")
	}
}

func TestListOutcomes(t *testing.T) {
	db := setupTestDB(t)
	for _, src := range []string{"a.pdf", "b.html", "c.pdf"} {
		if _, err := db.SaveOutcome(testOutcome(src), Digest([]byte(src))); err != nil {
			t.Fatal(err)
		}
	}

	all, err := db.ListOutcomes(0)
	if err != nil {
		t.Fatalf("ListOutcomes() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListOutcomes() = %d, want 3", len(all))
	}
	if all[0].Source != "c.pdf" {
		t.Errorf("most recent first: got %q", all[0].Source)
	}
	if all[0].Total != 3 || len(all[0].Digest) != 64 {
		t.Errorf("summary = %+v", all[0])
	}

	limited, _ := db.ListOutcomes(2)
	if len(limited) != 2 {
		t.Errorf("ListOutcomes(2) = %d, want 2", len(limited))
	}
}

func TestGetOutcome_NotFound(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.GetOutcome(42); !errors.Is(err, ErrOutcomeNotFound) {
		t.Errorf("GetOutcome(42) error = %v, want ErrOutcomeNotFound", err)
	}
	if _, err := db.LoadOutcome(42); !errors.Is(err, ErrOutcomeNotFound) {
		t.Errorf("LoadOutcome(42) error = %v, want ErrOutcomeNotFound", err)
	}
}

func TestSearch(t *testing.T) {
	db := setupTestDB(t)
	id, err := db.SaveOutcome(testOutcome("paper.pdf"), Digest([]byte("p")))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"biology", 1},
		{"Smith", 1},
		{"protein", 1},
		{"nonexistent", 0},
		{"", 0},
		{"1-20", 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			hits, err := db.Search(tt.query, 10)
			if err != nil {
				t.Fatalf("Search(%q) error = %v", tt.query, err)
			}
			if len(hits) != tt.want {
				t.Errorf("Search(%q) = %d hits, want %d", tt.query, len(hits), tt.want)
			}
			for _, h := range hits {
				if h.OutcomeID != id || h.Source != "paper.pdf" {
					t.Errorf("hit = %+v", h)
				}
			}
		})
	}

	hits, _ := db.Search("biology", 10)
	if len(hits) == 1 && hits[0].Citation.DOI != "10.1234/smith" {
		t.Errorf("hit citation = %+v", hits[0].Citation)
	}
}

func TestPrepareFTSQuery(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"simple", "simple"},
		{"  spaced  ", "spaced"},
		{`with "quotes"`, `"with ""quotes"""`},
		{"a-b", `"a-b"`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := prepareFTSQuery(tt.input); got != tt.want {
			t.Errorf("prepareFTSQuery(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDigest(t *testing.T) {
	a := Digest([]byte("abc"))
	if len(a) != 64 {
		t.Errorf("Digest length = %d, want 64 hex chars", len(a))
	}
	if a == Digest([]byte("abd")) {
		t.Error("different inputs gave the same digest")
	}
	if Digest([]byte("abc")) != a {
		t.Error("digest is not deterministic")
	}
}
