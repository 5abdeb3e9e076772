package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matsen/refextract/internal/reference"
	_ "modernc.org/sqlite"
)

// ErrOutcomeNotFound is returned when no outcome has the requested id.
var ErrOutcomeNotFound = errors.New("outcome not found")

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// selectCitationFields contains the standard field list for citation queries.
const selectCitationFields = `raw_text, authors_json, first_author, title, year,
	journal, volume, issue, pages,
	doi, pmid, arxiv_id, url,
	publisher, publication_type, metadata_json`

// OpenDB opens or creates a SQLite database at the given path, creating
// the parent directory when needed.
func OpenDB(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		-- One row per extraction; the digest identifies the source bytes
		CREATE TABLE IF NOT EXISTS outcomes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			digest TEXT NOT NULL UNIQUE,
			total INTEGER NOT NULL,
			errors_json TEXT NOT NULL,
			extracted_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS citations (
			outcome_id INTEGER NOT NULL REFERENCES outcomes(id),
			position INTEGER NOT NULL,
			raw_text TEXT NOT NULL,
			authors_json TEXT,
			first_author TEXT,
			title TEXT,
			year INTEGER,
			journal TEXT,
			volume TEXT,
			issue TEXT,
			pages TEXT,
			doi TEXT,
			pmid TEXT,
			arxiv_id TEXT,
			url TEXT,
			publisher TEXT,
			publication_type TEXT,
			metadata_json TEXT,
			PRIMARY KEY (outcome_id, position)
		);

		CREATE INDEX IF NOT EXISTS idx_citations_doi ON citations(doi) WHERE doi IS NOT NULL AND doi != '';

		-- Full-text search virtual table (standalone, not external content)
		CREATE VIRTUAL TABLE IF NOT EXISTS citations_fts USING fts5(
			outcome_id UNINDEXED,
			position UNINDEXED,
			raw_text,
			title,
			authors_text
		);
	`

	_, err := db.Exec(schema)
	return err
}

// OutcomeSummary describes one stored extraction.
type OutcomeSummary struct {
	ID          int64     `json:"id"`
	Source      string    `json:"source"`
	Digest      string    `json:"digest"`
	Total       int       `json:"total_citations"`
	Errors      []string  `json:"errors"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// SaveOutcome stores o under digest and returns its id. An outcome already
// stored for the same digest is replaced.
func (d *DB) SaveOutcome(o *reference.Outcome, digest string) (int64, error) {
	if digest == "" {
		return 0, fmt.Errorf("saving outcome: empty digest")
	}
	errorsJSON, err := json.Marshal(nonNil(o.Errors))
	if err != nil {
		return 0, fmt.Errorf("encoding errors: %w", err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var old int64
	switch err := tx.QueryRow(`SELECT id FROM outcomes WHERE digest = ?`, digest).Scan(&old); {
	case err == nil:
		if err := deleteOutcome(tx, old); err != nil {
			return 0, err
		}
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("looking up digest: %w", err)
	}

	res, err := tx.Exec(`
		INSERT INTO outcomes (source, digest, total, errors_json, extracted_at)
		VALUES (?, ?, ?, ?, ?)
	`, o.Source, digest, len(o.Citations), string(errorsJSON), time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("inserting outcome: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading outcome id: %w", err)
	}

	citeStmt, err := tx.Prepare(`
		INSERT INTO citations (
			outcome_id, position, ` + selectCitationFields + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing citation insert: %w", err)
	}
	defer citeStmt.Close()

	ftsStmt, err := tx.Prepare(`
		INSERT INTO citations_fts (outcome_id, position, raw_text, title, authors_text)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing fts insert: %w", err)
	}
	defer ftsStmt.Close()

	for i, c := range o.Citations {
		authorsJSON, err := json.Marshal(nonNil(c.Authors))
		if err != nil {
			return 0, fmt.Errorf("encoding authors for citation %d: %w", i, err)
		}
		var metadataJSON []byte
		if len(c.Metadata) > 0 {
			if metadataJSON, err = json.Marshal(c.Metadata); err != nil {
				return 0, fmt.Errorf("encoding metadata for citation %d: %w", i, err)
			}
		}

		_, err = citeStmt.Exec(
			id, i, c.RawText, string(authorsJSON), nullableString(c.FirstAuthorLastName), nullableString(c.Title), nullableInt(c.Year),
			nullableString(c.Journal), nullableString(c.Volume), nullableString(c.Issue), nullableString(c.Pages),
			nullableString(c.DOI), nullableString(c.PMID), nullableString(c.ArXivID), nullableString(c.URL),
			nullableString(c.Publisher), nullableString(c.PublicationType), nullableString(string(metadataJSON)),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting citation %d: %w", i, err)
		}

		if _, err := ftsStmt.Exec(id, i, c.RawText, c.Title, strings.Join(c.Authors, "; ")); err != nil {
			return 0, fmt.Errorf("inserting fts for citation %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing outcome: %w", err)
	}
	return id, nil
}

func deleteOutcome(tx *sql.Tx, id int64) error {
	for _, q := range []string{
		`DELETE FROM citations_fts WHERE CAST(outcome_id AS INTEGER) = ?`,
		`DELETE FROM citations WHERE outcome_id = ?`,
		`DELETE FROM outcomes WHERE id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("replacing outcome %d: %w", id, err)
		}
	}
	return nil
}

// ListOutcomes returns stored outcomes, most recent first. A limit of zero
// or less means no limit.
func (d *DB) ListOutcomes(limit int) ([]OutcomeSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.Query(`
		SELECT id, source, digest, total, errors_json, extracted_at
		FROM outcomes
		ORDER BY extracted_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetOutcome returns the summary of one outcome.
func (d *DB) GetOutcome(id int64) (*OutcomeSummary, error) {
	row := d.db.QueryRow(`
		SELECT id, source, digest, total, errors_json, extracted_at
		FROM outcomes WHERE id = ?
	`, id)
	s, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrOutcomeNotFound, id)
	}
	return s, err
}

// LoadOutcome rebuilds the full outcome for id.
func (d *DB) LoadOutcome(id int64) (*reference.Outcome, error) {
	s, err := d.GetOutcome(id)
	if err != nil {
		return nil, err
	}
	cs, err := d.GetCitations(id)
	if err != nil {
		return nil, err
	}
	o := reference.NewOutcome(s.Source)
	o.SetCitations(cs)
	o.Errors = s.Errors
	return o, nil
}

// GetCitations returns the citations of an outcome in their original order.
func (d *DB) GetCitations(outcomeID int64) ([]reference.Citation, error) {
	rows, err := d.db.Query(`
		SELECT `+selectCitationFields+`
		FROM citations WHERE outcome_id = ?
		ORDER BY position
	`, outcomeID)
	if err != nil {
		return nil, fmt.Errorf("querying citations: %w", err)
	}
	defer rows.Close()

	var out []reference.Citation
	for rows.Next() {
		c, err := scanCitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// SearchHit is one citation matched by Search.
type SearchHit struct {
	OutcomeID int64              `json:"outcome_id"`
	Source    string             `json:"source"`
	Citation  reference.Citation `json:"citation"`
}

// Search performs a full-text search over stored citations.
func (d *DB) Search(query string, limit int) ([]SearchHit, error) {
	ftsQuery := prepareFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := d.db.Query(`
		SELECT c.outcome_id, o.source, `+prefixed("c.", selectCitationFields)+`
		FROM citations c
		JOIN outcomes o ON o.id = c.outcome_id
		WHERE (c.outcome_id, c.position) IN (
			SELECT CAST(outcome_id AS INTEGER), CAST(position AS INTEGER)
			FROM citations_fts WHERE citations_fts MATCH ?
		)
		ORDER BY c.outcome_id DESC, c.position
		LIMIT ?
	`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("searching citations: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		c, err := scanCitation(rows, &h.OutcomeID, &h.Source)
		if err != nil {
			return nil, err
		}
		h.Citation = *c
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Count returns the number of stored outcomes.
func (d *DB) Count() (int, error) {
	var n int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM outcomes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting outcomes: %w", err)
	}
	return n, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(s scanner) (*OutcomeSummary, error) {
	var out OutcomeSummary
	var errorsJSON string
	var at int64
	if err := s.Scan(&out.ID, &out.Source, &out.Digest, &out.Total, &errorsJSON, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning outcome: %w", err)
	}
	if err := json.Unmarshal([]byte(errorsJSON), &out.Errors); err != nil {
		return nil, fmt.Errorf("decoding errors of outcome %d: %w", out.ID, err)
	}
	out.ExtractedAt = time.Unix(at, 0).UTC()
	return &out, nil
}

// scanCitation scans a row of selectCitationFields, preceded by any extra
// destinations.
func scanCitation(s scanner, extra ...any) (*reference.Citation, error) {
	var c reference.Citation
	var authorsJSON, first, title, journal, volume, issue, pages sql.NullString
	var doi, pmid, arxiv, url, publisher, pubType, metadataJSON sql.NullString
	var year sql.NullInt64

	dest := append(extra,
		&c.RawText, &authorsJSON, &first, &title, &year,
		&journal, &volume, &issue, &pages,
		&doi, &pmid, &arxiv, &url,
		&publisher, &pubType, &metadataJSON,
	)
	if err := s.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scanning citation: %w", err)
	}

	if authorsJSON.Valid && authorsJSON.String != "" {
		if err := json.Unmarshal([]byte(authorsJSON.String), &c.Authors); err != nil {
			return nil, fmt.Errorf("decoding authors: %w", err)
		}
		if len(c.Authors) == 0 {
			c.Authors = nil
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &c.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
	}
	c.FirstAuthorLastName = first.String
	c.Title = title.String
	c.Year = int(year.Int64)
	c.Journal = journal.String
	c.Volume = volume.String
	c.Issue = issue.String
	c.Pages = pages.String
	c.DOI = doi.String
	c.PMID = pmid.String
	c.ArXivID = arxiv.String
	c.URL = url.String
	c.Publisher = publisher.String
	c.PublicationType = pubType.String
	return &c, nil
}

func prefixed(prefix, fields string) string {
	parts := strings.Split(fields, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// prepareFTSQuery escapes special characters for FTS5 queries.
func prepareFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	// FTS5 uses double quotes for phrase matching
	if strings.ContainsAny(query, "\"*+-:(){}[]^~.,") {
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}

	return query
}
