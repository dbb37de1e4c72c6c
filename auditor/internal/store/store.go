// Package store is the SQLite audit history: one row per audit request
// (including cache hits) and the issues of every completed audit.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/a11yaudit/report"
)

// ErrNotFound is returned for an unknown audit id.
var ErrNotFound = errors.New("store: not found")

// DefaultListLimit applies when ListAudits gets a non-positive limit.
const DefaultListLimit = 50

// Store is the history database handle.
type Store struct {
	DB *sql.DB
}

// New wraps an open database. The schema must already exist.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Audit is one audit request.
type Audit struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	URL         string `json:"url"`
	DOMHash     string `json:"dom_hash"`
	Status      string `json:"status"`
	TotalIssues int    `json:"total_issues"`
	Cached      bool   `json:"cached"`
	CreatedAt   int64  `json:"created_at"` // unix ms
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CreateAudit inserts a. ID, Status and CreatedAt are filled when empty.
func (s *Store) CreateAudit(ctx context.Context, a *Audit) error {
	if a.ID == "" {
		a.ID = newID()
	}
	if a.Status == "" {
		a.Status = "completed"
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO audits (id, user_id, url, dom_hash, status, total_issues, cached, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.UserID, a.URL, a.DOMHash, a.Status, a.TotalIssues, boolInt(a.Cached), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: create audit: %w", err)
	}
	return nil
}

// BulkCreateIssues stores issues under auditID in one transaction.
func (s *Store) BulkCreateIssues(ctx context.Context, auditID string, issues []report.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	for _, is := range issues {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO issues
				(id, audit_id, rule, category, priority, wcag_sc, gigw_checkpoint, description,
				 selector, html_snippet, ai_explanation, ai_fixed_code, occurrences)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			newID(), auditID, is.Rule, string(is.Category), string(is.FixPriority), is.WCAGSC, is.GIGWCheckpoint,
			is.Description, is.Selector, is.HTMLSnippet, is.AIExplanation, is.AIFixedCode, is.Occurrences,
		)
		if err != nil {
			return fmt.Errorf("store: insert issue %s: %w", is.Rule, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// ListAudits returns userID's audits, newest first. urlFilter is a
// substring match on the URL. Cached rows are skipped unless includeCached.
func (s *Store) ListAudits(ctx context.Context, userID string, limit int, urlFilter string, includeCached bool) ([]*Audit, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `SELECT id, user_id, url, dom_hash, status, total_issues, cached, created_at
	          FROM audits WHERE user_id = ?`
	args := []any{userID}
	if urlFilter != "" {
		query += ` AND url LIKE '%' || ? || '%'`
		args = append(args, urlFilter)
	}
	if !includeCached {
		query += ` AND cached = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list audits: %w", err)
	}
	defer rows.Close()

	var out []*Audit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAudit returns the audit with id, or ErrNotFound.
func (s *Store) GetAudit(ctx context.Context, id string) (*Audit, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, user_id, url, dom_hash, status, total_issues, cached, created_at
		FROM audits WHERE id = ?`, id)
	a, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListIssues returns the issues stored for auditID in insertion order.
func (s *Store) ListIssues(ctx context.Context, auditID string) ([]report.Issue, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT rule, category, priority, wcag_sc, gigw_checkpoint, description,
		       selector, html_snippet, ai_explanation, ai_fixed_code, occurrences
		FROM issues WHERE audit_id = ? ORDER BY rowid`, auditID)
	if err != nil {
		return nil, fmt.Errorf("store: list issues: %w", err)
	}
	defer rows.Close()

	out := []report.Issue{}
	for rows.Next() {
		var is report.Issue
		var category, priority string
		if err := rows.Scan(&is.Rule, &category, &priority, &is.WCAGSC, &is.GIGWCheckpoint, &is.Description,
			&is.Selector, &is.HTMLSnippet, &is.AIExplanation, &is.AIFixedCode, &is.Occurrences); err != nil {
			return nil, err
		}
		is.Category = report.Category(category)
		is.FixPriority = report.Priority(priority)
		out = append(out, is)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAudit(r scanner) (*Audit, error) {
	a := &Audit{}
	var cached int
	if err := r.Scan(&a.ID, &a.UserID, &a.URL, &a.DOMHash, &a.Status, &a.TotalIssues, &cached, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Cached = cached != 0
	return a, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
