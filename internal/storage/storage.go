// Package storage owns the single SQLite file shared by every store
// (beliefs, knowledge, jobs): opening it with the right pragmas,
// running per-plugin migrations with a backup-before-write safety net,
// and resolving short-id prefixes against a table. Adapted from the
// teacher's internal/database.Database connection wrapper.
package storage

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sporenet/sporenet/internal/corerr"
	"github.com/sporenet/sporenet/internal/logging"
)

var log = logging.GetLogger("storage")

// Store wraps the shared SQLite connection.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens (creating if needed) the SQLite file at dataDir/sporenet.db
// with WAL journaling and foreign keys enabled.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "create data directory", err)
	}

	path := filepath.Join(dataDir, "sporenet.db")
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, corerr.Wrap(corerr.StorageFailure, "open database", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, corerr.Wrap(corerr.StorageFailure, "ping database", err)
	}

	log.Info("opened store", "path", path)
	return &Store{db: db, path: path}, nil
}

// DB returns the underlying connection for package-specific schema and
// query code.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migration is a single forward-only schema step for one plugin.
type Migration struct {
	Version int
	SQL     string
}

// Migrate applies any migrations for plugin not yet recorded in
// _migrations, backing up the database file before the first write of
// the run. Migrations within a plugin run in a single transaction per
// version, in ascending version order.
func (s *Store) Migrate(plugin string, migrations []Migration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS _migrations (
			plugin     TEXT NOT NULL,
			version    INTEGER NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (plugin, version)
		)
	`); err != nil {
		return corerr.Wrap(corerr.MigrationFailure, "create _migrations table", err)
	}

	applied := map[int]bool{}
	rows, err := s.db.Query(`SELECT version FROM _migrations WHERE plugin = ?`, plugin)
	if err != nil {
		return corerr.Wrap(corerr.MigrationFailure, "read applied migrations", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return corerr.Wrap(corerr.MigrationFailure, "scan applied migration", err)
		}
		applied[v] = true
	}
	rows.Close()

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	var pending []Migration
	for _, m := range migrations {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	if err := s.backup(); err != nil {
		log.Warn("pre-migration backup failed, continuing", "plugin", plugin, "error", err)
	}

	for _, m := range pending {
		if err := s.applyMigration(plugin, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(plugin string, m Migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return corerr.Wrap(corerr.MigrationFailure, "begin migration transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return corerr.Wrapf(corerr.MigrationFailure, err, "apply %s migration v%d", plugin, m.Version)
	}

	if _, err := tx.Exec(`INSERT INTO _migrations (plugin, version) VALUES (?, ?)`, plugin, m.Version); err != nil {
		return corerr.Wrap(corerr.MigrationFailure, "record migration", err)
	}

	if err := tx.Commit(); err != nil {
		return corerr.Wrap(corerr.MigrationFailure, "commit migration", err)
	}

	log.Info("applied migration", "plugin", plugin, "version", m.Version)
	return nil
}

// backup checkpoints the WAL and copies the database file into a
// dated backups/ directory next to it, then prunes anything older
// than 7 days and keeps at most the 5 most recent. Best-effort: a
// failure here is logged and never blocks a migration.
func (s *Store) backup() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint before backup: %w", err)
	}

	backupDir := filepath.Join(filepath.Dir(s.path), "backups")
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	dest := filepath.Join(backupDir, fmt.Sprintf("sporenet-%s.db", stamp))
	if err := copyFile(s.path, dest); err != nil {
		return fmt.Errorf("copy database to backup: %w", err)
	}

	return pruneBackups(backupDir)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func pruneBackups(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "sporenet-") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // timestamp-named, lexical order == chronological

	cutoff := time.Now().UTC().Add(-7 * 24 * time.Hour)
	for _, name := range names {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(dir, name))
		}
	}

	entries, err = os.ReadDir(dir)
	if err != nil {
		return err
	}
	names = names[:0]
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "sporenet-") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	const keep = 5
	if len(names) > keep {
		for _, name := range names[:len(names)-keep] {
			os.Remove(filepath.Join(dir, name))
		}
	}
	return nil
}

// ResolveIDPrefix resolves a possibly-truncated id against table's id
// column, optionally narrowed by whereClause (a raw SQL fragment with
// no placeholders of its own, ANDed in). An exact match wins outright;
// otherwise a unique prefix match is required.
func (s *Store) ResolveIDPrefix(table, prefix, whereClause string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	and := ""
	if whereClause != "" {
		and = " AND " + whereClause
	}

	var exact string
	err := s.db.QueryRow(fmt.Sprintf(`SELECT id FROM %s WHERE id = ?%s`, table, and), prefix).Scan(&exact)
	if err == nil {
		return exact, nil
	} else if err != sql.ErrNoRows {
		return "", corerr.Wrap(corerr.StorageFailure, "resolve exact id", err)
	}

	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT id FROM %s WHERE id LIKE ?%s ORDER BY created_at DESC LIMIT 2`, table, and),
		prefix+"%",
	)
	if err != nil {
		return "", corerr.Wrap(corerr.StorageFailure, "resolve id prefix", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", corerr.Wrap(corerr.StorageFailure, "scan id prefix match", err)
		}
		matches = append(matches, id)
	}

	switch len(matches) {
	case 0:
		return "", corerr.NotFoundf("no %s found matching id %q", table, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", corerr.Ambiguousf("id %q matches more than one %s", prefix, table)
	}
}
