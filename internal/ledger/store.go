// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records conversion job outcomes in SQLite so past batches
// can be listed and exported. Only metadata is stored, never document
// contents.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/docswap/pkg/types"
)

const (
	defaultMaxResults = 50

	// timeLayout is fixed-width so created_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Entry is one recorded job.
type Entry struct {
	ID          string         `json:"id" yaml:"id"`
	BatchID     string         `json:"batch_id" yaml:"batch_id"`
	Filename    string         `json:"filename" yaml:"filename"`
	InputKind   types.Kind     `json:"input_kind" yaml:"input_kind"`
	OutputKind  types.Kind     `json:"output_kind,omitempty" yaml:"output_kind,omitempty"`
	OutputName  string         `json:"output_name,omitempty" yaml:"output_name,omitempty"`
	Status      types.JobState `json:"status" yaml:"status"`
	Reason      string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	Empty       bool           `json:"empty" yaml:"empty"`
	InputBytes  int            `json:"input_bytes" yaml:"input_bytes"`
	OutputBytes int            `json:"output_bytes" yaml:"output_bytes"`
	Pages       int            `json:"pages" yaml:"pages"`
	CreatedAt   time.Time      `json:"created_at" yaml:"created_at"`
}

// EntryFromJob flattens a finished job into a ledger row.
func EntryFromJob(batchID string, job *types.ConversionJob, at time.Time) Entry {
	e := Entry{
		ID:         job.ID,
		BatchID:    batchID,
		Filename:   job.Input.Name,
		InputKind:  job.Input.Kind,
		Status:     job.State,
		Reason:     job.Reason,
		Empty:      job.Empty,
		InputBytes: len(job.Input.Data),
		Pages:      job.Pages,
		CreatedAt:  at.UTC(),
	}
	if job.State == types.JobDone {
		e.OutputKind = job.Output.Kind
		e.OutputName = job.Output.Name
		e.OutputBytes = len(job.Output.Data)
	}
	return e
}

// Store manages the ledger database.
type Store struct {
	db         *sql.DB
	maxResults int
	now        func() time.Time
}

// NewStore opens or creates the ledger at cfg.Path and creates the schema
// if it does not exist.
func NewStore(cfg types.LedgerConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("ledger path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, maxResults: maxResults, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			batch_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			input_kind TEXT NOT NULL,
			output_kind TEXT,
			output_name TEXT,
			status TEXT NOT NULL,
			reason TEXT,
			empty INTEGER NOT NULL DEFAULT 0,
			input_bytes INTEGER NOT NULL DEFAULT 0,
			output_bytes INTEGER NOT NULL DEFAULT 0,
			pages INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_batch_id ON jobs(batch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores every job of a batch in one transaction.
func (s *Store) Record(ctx context.Context, batchID string, jobs []*types.ConversionJob) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO jobs (id, batch_id, filename, input_kind, output_kind, output_name,
			status, reason, empty, input_bytes, output_bytes, pages, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	at := s.now()
	for _, job := range jobs {
		e := EntryFromJob(batchID, job, at)
		_, err := stmt.ExecContext(ctx,
			e.ID, e.BatchID, e.Filename, string(e.InputKind), string(e.OutputKind), e.OutputName,
			string(e.Status), e.Reason, e.Empty, e.InputBytes, e.OutputBytes, e.Pages,
			e.CreatedAt.Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("inserting job %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// QueryOptions holds filters for List.
type QueryOptions struct {
	// Status filters by final job state (done or failed).
	Status types.JobState

	// BatchID filters by batch.
	BatchID string

	// Since keeps jobs recorded at or after this time.
	Since time.Time

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// List returns recorded jobs, newest first.
func (s *Store) List(ctx context.Context, opts QueryOptions) ([]Entry, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT id, batch_id, filename, input_kind, output_kind, output_name, status, reason,
			empty, input_bytes, output_bytes, pages, created_at
		FROM jobs
		WHERE 1=1`)

	if opts.Status != "" {
		qb.WriteString(` AND status = ?`)
		args = append(args, string(opts.Status))
	}
	if opts.BatchID != "" {
		qb.WriteString(` AND batch_id = ?`)
		args = append(args, opts.BatchID)
	}
	if !opts.Since.IsZero() {
		qb.WriteString(` AND created_at >= ?`)
		args = append(args, opts.Since.UTC().Format(timeLayout))
	}

	qb.WriteString(` ORDER BY created_at DESC, rowid DESC LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                          Entry
			inKind, outKind, status    string
			outName, reason, createdAt sql.NullString
		)
		if err := rows.Scan(
			&e.ID, &e.BatchID, &e.Filename, &inKind, &outKind, &outName, &status, &reason,
			&e.Empty, &e.InputBytes, &e.OutputBytes, &e.Pages, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		e.InputKind = types.Kind(inKind)
		e.OutputKind = types.Kind(outKind)
		e.Status = types.JobState(status)
		e.OutputName = outName.String
		e.Reason = reason.String
		if createdAt.Valid {
			e.CreatedAt, _ = time.Parse(timeLayout, createdAt.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
