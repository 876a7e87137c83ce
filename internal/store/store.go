// Package store persists papers and background jobs in a SQLite database
// inside the vault.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gsekeres/marginalia/internal/paper"
	_ "modernc.org/sqlite"
)

// ErrNotFound indicates a lookup matched no row.
var ErrNotFound = errors.New("not found")

// Store wraps the vault's SQLite database.
type Store struct {
	db *sql.DB
}

const selectPaperFields = `citekey, title, authors_json, pub_year, journal,
	volume, number, pages, doi, url, abstract, status,
	pdf_path, summary_path, added_at, downloaded_at, summarized_at,
	search_attempts, last_search_error, manual_links_json, related_json`

// Open opens or creates the database at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS papers (
			citekey TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			authors_json TEXT NOT NULL,
			pub_year INTEGER,
			journal TEXT,
			volume TEXT,
			number TEXT,
			pages TEXT,
			doi TEXT,
			url TEXT,
			abstract TEXT,
			status TEXT NOT NULL,
			pdf_path TEXT,
			summary_path TEXT,
			added_at TEXT NOT NULL,
			downloaded_at TEXT,
			summarized_at TEXT,
			search_attempts INTEGER NOT NULL DEFAULT 0,
			last_search_error TEXT,
			manual_links_json TEXT,
			related_json TEXT,
			norm_title TEXT NOT NULL,
			first_author TEXT
		);

		-- Reconciliation lookups
		CREATE INDEX IF NOT EXISTS idx_papers_norm_title ON papers(norm_title);
		CREATE INDEX IF NOT EXISTS idx_papers_author_year ON papers(first_author, pub_year);
		CREATE INDEX IF NOT EXISTS idx_papers_doi ON papers(doi) WHERE doi IS NOT NULL AND doi != '';

		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			citekey TEXT,
			status TEXT NOT NULL,
			progress REAL NOT NULL DEFAULT 0,
			message TEXT,
			error TEXT,
			created_at TEXT NOT NULL,
			started_at TEXT,
			finished_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	`

	_, err := db.Exec(schema)
	return err
}

// PutPaper inserts or replaces a paper.
func (s *Store) PutPaper(p *paper.Paper) error {
	authorsJSON, err := json.Marshal(p.Authors)
	if err != nil {
		return fmt.Errorf("marshaling authors: %w", err)
	}
	linksJSON, err := json.Marshal(p.ManualLinks)
	if err != nil {
		return fmt.Errorf("marshaling manual links: %w", err)
	}
	relatedJSON, err := json.Marshal(p.Related)
	if err != nil {
		return fmt.Errorf("marshaling related papers: %w", err)
	}

	firstAuthor := ""
	if len(p.Authors) > 0 {
		firstAuthor = paper.AuthorSurname(p.Authors[0])
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO papers (`+selectPaperFields+`, norm_title, first_author)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.Citekey, p.Title, string(authorsJSON), p.Year, p.Journal,
		p.Volume, p.Number, p.Pages, p.DOI, p.URL, p.Abstract, string(p.Status),
		p.PDFPath, p.SummaryPath, formatTime(p.AddedAt), formatTimePtr(p.DownloadedAt), formatTimePtr(p.SummarizedAt),
		p.SearchAttempts, p.LastSearchError, string(linksJSON), string(relatedJSON),
		paper.NormalizeTitle(p.Title), firstAuthor,
	)
	if err != nil {
		return fmt.Errorf("storing paper %s: %w", p.Citekey, err)
	}
	return nil
}

// GetPaper fetches one paper by citekey.
func (s *Store) GetPaper(citekey string) (*paper.Paper, error) {
	row := s.db.QueryRow(`SELECT `+selectPaperFields+` FROM papers WHERE citekey = ?`, citekey)
	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("paper %s: %w", citekey, ErrNotFound)
	}
	return p, err
}

// ListPapers returns all papers ordered by citekey.
func (s *Store) ListPapers() ([]*paper.Paper, error) {
	return s.queryPapers(`SELECT ` + selectPaperFields + ` FROM papers ORDER BY citekey`)
}

// ListByStatus returns papers with the given status.
func (s *Store) ListByStatus(status paper.Status) ([]*paper.Paper, error) {
	return s.queryPapers(
		`SELECT `+selectPaperFields+` FROM papers WHERE status = ? ORDER BY citekey`,
		string(status))
}

// UpdateStatus sets a paper's pipeline status.
func (s *Store) UpdateStatus(citekey string, status paper.Status) error {
	return s.execOne(`UPDATE papers SET status = ? WHERE citekey = ?`, string(status), citekey)
}

// SetPDFPath records a successful download.
func (s *Store) SetPDFPath(citekey, pdfPath string) error {
	now := formatTime(time.Now().UTC())
	return s.execOne(`
		UPDATE papers SET pdf_path = ?, status = ?, downloaded_at = ?, last_search_error = ''
		WHERE citekey = ?`,
		pdfPath, string(paper.StatusDownloaded), now, citekey)
}

// RecordSearchFailure increments the attempt counter and stores the failure
// reason plus manual fallback links.
func (s *Store) RecordSearchFailure(citekey, reason string, manualLinks []string) error {
	linksJSON, err := json.Marshal(manualLinks)
	if err != nil {
		return err
	}
	return s.execOne(`
		UPDATE papers SET search_attempts = search_attempts + 1,
			last_search_error = ?, manual_links_json = ?, status = ?
		WHERE citekey = ?`,
		reason, string(linksJSON), string(paper.StatusFailed), citekey)
}

// AttachSummary records a completed summary and its reconciled related work.
func (s *Store) AttachSummary(citekey, summaryPath string, related []paper.RelatedPaper) error {
	relatedJSON, err := json.Marshal(related)
	if err != nil {
		return err
	}
	now := formatTime(time.Now().UTC())
	return s.execOne(`
		UPDATE papers SET summary_path = ?, related_json = ?, status = ?, summarized_at = ?
		WHERE citekey = ?`,
		summaryPath, string(relatedJSON), string(paper.StatusSummarized), now, citekey)
}

// FindByNormTitle returns papers whose normalized title matches exactly.
func (s *Store) FindByNormTitle(normTitle string) ([]*paper.Paper, error) {
	return s.queryPapers(`SELECT `+selectPaperFields+` FROM papers WHERE norm_title = ?`, normTitle)
}

// FindByTitlePrefix returns papers whose normalized title starts with the
// given normalized prefix.
func (s *Store) FindByTitlePrefix(normPrefix string) ([]*paper.Paper, error) {
	return s.queryPapers(
		`SELECT `+selectPaperFields+` FROM papers WHERE norm_title LIKE ? ESCAPE '\'`,
		escapeLike(normPrefix)+"%")
}

// FindByAuthorYear returns papers by first-author surname and year.
func (s *Store) FindByAuthorYear(surname string, year int) ([]*paper.Paper, error) {
	return s.queryPapers(
		`SELECT `+selectPaperFields+` FROM papers WHERE first_author = ? AND pub_year = ?`,
		surname, year)
}

func (s *Store) queryPapers(query string, args ...any) ([]*paper.Paper, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var papers []*paper.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// execOne runs an UPDATE that must affect at least one row.
func (s *Store) execOne(query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPaper(row scanner) (*paper.Paper, error) {
	var p paper.Paper
	var authorsJSON, linksJSON, relatedJSON sql.NullString
	var year sql.NullInt64
	var journal, volume, number, pages, doi, url, abstract sql.NullString
	var status string
	var pdfPath, summaryPath, lastErr sql.NullString
	var addedAt string
	var downloadedAt, summarizedAt sql.NullString

	err := row.Scan(
		&p.Citekey, &p.Title, &authorsJSON, &year, &journal,
		&volume, &number, &pages, &doi, &url, &abstract, &status,
		&pdfPath, &summaryPath, &addedAt, &downloadedAt, &summarizedAt,
		&p.SearchAttempts, &lastErr, &linksJSON, &relatedJSON,
	)
	if err != nil {
		return nil, err
	}

	p.Year = int(year.Int64)
	p.Journal = journal.String
	p.Volume = volume.String
	p.Number = number.String
	p.Pages = pages.String
	p.DOI = doi.String
	p.URL = url.String
	p.Abstract = abstract.String
	p.PDFPath = pdfPath.String
	p.SummaryPath = summaryPath.String
	p.LastSearchError = lastErr.String

	st, err := paper.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	p.Status = st

	if authorsJSON.Valid && authorsJSON.String != "" {
		if err := json.Unmarshal([]byte(authorsJSON.String), &p.Authors); err != nil {
			return nil, fmt.Errorf("paper %s authors: %w", p.Citekey, err)
		}
	}
	if linksJSON.Valid && linksJSON.String != "" {
		if err := json.Unmarshal([]byte(linksJSON.String), &p.ManualLinks); err != nil {
			return nil, fmt.Errorf("paper %s manual links: %w", p.Citekey, err)
		}
	}
	if relatedJSON.Valid && relatedJSON.String != "" {
		if err := json.Unmarshal([]byte(relatedJSON.String), &p.Related); err != nil {
			return nil, fmt.Errorf("paper %s related: %w", p.Citekey, err)
		}
	}

	if p.AddedAt, err = parseTime(addedAt); err != nil {
		return nil, err
	}
	if p.DownloadedAt, err = parseTimePtr(downloadedAt); err != nil {
		return nil, err
	}
	if p.SummarizedAt, err = parseTimePtr(summarizedAt); err != nil {
		return nil, err
	}

	return &p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// escapeLike escapes LIKE wildcards in user-derived prefixes.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
