// Package jobs tracks long-running background work (reflection
// passes, source reindexing, bulk imports) as upsert-by-id rows.
// Grounded on the teacher's EnsureSession upsert idiom and
// benchmark.RunStatus's status vocabulary.
package jobs

import (
	"database/sql"
	"time"

	"github.com/sporenet/sporenet/internal/clock"
	"github.com/sporenet/sporenet/internal/corerr"
	"github.com/sporenet/sporenet/internal/storage"
)

// PluginName identifies this store's migrations in storage's
// _migrations table.
const PluginName = "jobs"

const schemaV1 = `
CREATE TABLE IF NOT EXISTS background_jobs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending' CHECK (
		status IN ('pending', 'running', 'completed', 'failed')
	),
	detail      TEXT,
	error       TEXT,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_background_jobs_status ON background_jobs(status);
CREATE INDEX IF NOT EXISTS idx_background_jobs_kind ON background_jobs(kind);
`

// Migrations returns the jobs store's migration set for
// storage.Store.Migrate.
func Migrations() []storage.Migration {
	return []storage.Migration{{Version: 1, SQL: schemaV1}}
}

// Job is one tracked unit of background work.
type Job struct {
	ID        string
	Kind      string
	Status    string
	Detail    string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the background job tracker.
type Store struct {
	db    *storage.Store
	clock clock.Clock
}

// New wraps db, running jobs-store migrations first.
func New(db *storage.Store, clk clock.Clock) (*Store, error) {
	if err := db.Migrate(PluginName, Migrations()); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Store{db: db, clock: clk}, nil
}

// Upsert creates or updates a job row by id: an existing id's status
// and detail are overwritten in place, matching the teacher's
// EnsureSession upsert-by-id pattern rather than append-only history.
func (s *Store) Upsert(id, kind, status, detail string) (*Job, error) {
	now := s.clock.Now()
	_, err := s.db.DB().Exec(`
		INSERT INTO background_jobs (id, kind, status, detail, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			detail = excluded.detail,
			updated_at = excluded.updated_at
	`, id, kind, status, detail, now, now)
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "upsert job", err)
	}
	return s.Get(id)
}

// UpdateStatus transitions a job's status, recording an error message
// when moving to failed.
func (s *Store) UpdateStatus(id, status, errMsg string) error {
	_, err := s.db.DB().Exec(
		`UPDATE background_jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, nullableString(errMsg), s.clock.Now(), id,
	)
	if err != nil {
		return corerr.Wrap(corerr.StorageFailure, "update job status", err)
	}
	return nil
}

// Get loads a single job by id.
func (s *Store) Get(id string) (*Job, error) {
	row := s.db.DB().QueryRow(`
		SELECT id, kind, status, detail, error, created_at, updated_at
		FROM background_jobs WHERE id = ?
	`, id)
	return scanJob(row)
}

// List returns every job, newest first, optionally filtered by status.
func (s *Store) List(status string) ([]*Job, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.DB().Query(`
			SELECT id, kind, status, detail, error, created_at, updated_at
			FROM background_jobs ORDER BY created_at DESC
		`)
	} else {
		rows, err = s.db.DB().Query(`
			SELECT id, kind, status, detail, error, created_at, updated_at
			FROM background_jobs WHERE status = ? ORDER BY created_at DESC
		`, status)
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "list jobs", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

// ClearCompleted deletes completed and failed jobs older than
// olderThan (zero clears all completed/failed jobs regardless of age).
func (s *Store) ClearCompleted(olderThan time.Duration) (int64, error) {
	var result sql.Result
	var err error
	if olderThan <= 0 {
		result, err = s.db.DB().Exec(`DELETE FROM background_jobs WHERE status IN ('completed', 'failed')`)
	} else {
		cutoff := s.clock.Now().Add(-olderThan)
		result, err = s.db.DB().Exec(
			`DELETE FROM background_jobs WHERE status IN ('completed', 'failed') AND updated_at < ?`, cutoff,
		)
	}
	if err != nil {
		return 0, corerr.Wrap(corerr.StorageFailure, "clear completed jobs", err)
	}
	return result.RowsAffected()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var detail, errMsg sql.NullString
	err := row.Scan(&j.ID, &j.Kind, &j.Status, &detail, &errMsg, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, corerr.NotFoundf("job %q not found", j.ID)
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "scan job", err)
	}
	j.Detail = detail.String
	j.Error = errMsg.String
	return &j, nil
}

func scanJobRows(rows *sql.Rows) (*Job, error) {
	return scanJob(rows)
}
