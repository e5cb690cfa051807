package storage

import (
	"path/filepath"
	"testing"

	"github.com/sporenet/sporenet/internal/corerr"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.Path() != filepath.Join(dir, "sporenet.db") {
		t.Errorf("unexpected path: %s", s.Path())
	}
	if s.DB() == nil {
		t.Error("expected non-nil DB handle")
	}
}

func TestMigrate(t *testing.T) {
	s := openTestStore(t)

	migrations := []Migration{
		{Version: 1, SQL: `CREATE TABLE widgets (id TEXT PRIMARY KEY, name TEXT)`},
	}
	if err := s.Migrate("widgets", migrations); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	if _, err := s.DB().Exec(`INSERT INTO widgets (id, name) VALUES (?, ?)`, "w1", "gear"); err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}

	// Re-running Migrate with the same version must not reapply (no
	// "table already exists" failure) and must not duplicate rows.
	if err := s.Migrate("widgets", migrations); err != nil {
		t.Fatalf("re-Migrate: %v", err)
	}

	var count int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM widgets`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row after re-migrate, got %d", count)
	}
}

func TestMigrateAddsLaterVersionOnly(t *testing.T) {
	s := openTestStore(t)

	if err := s.Migrate("widgets", []Migration{
		{Version: 1, SQL: `CREATE TABLE widgets (id TEXT PRIMARY KEY)`},
	}); err != nil {
		t.Fatalf("v1 migrate: %v", err)
	}

	if err := s.Migrate("widgets", []Migration{
		{Version: 1, SQL: `CREATE TABLE widgets (id TEXT PRIMARY KEY)`},
		{Version: 2, SQL: `ALTER TABLE widgets ADD COLUMN name TEXT`},
	}); err != nil {
		t.Fatalf("v2 migrate: %v", err)
	}

	if _, err := s.DB().Exec(`INSERT INTO widgets (id, name) VALUES (?, ?)`, "w1", "gear"); err != nil {
		t.Fatalf("insert using v2 column: %v", err)
	}

	var version int
	if err := s.DB().QueryRow(`SELECT MAX(version) FROM _migrations WHERE plugin = 'widgets'`).Scan(&version); err != nil {
		t.Fatalf("query applied version: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2 recorded, got %d", version)
	}
}

func TestResolveIDPrefix(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.DB().Exec(`CREATE TABLE things (id TEXT PRIMARY KEY, status TEXT, created_at DATETIME DEFAULT CURRENT_TIMESTAMP)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := s.DB().Exec(`INSERT INTO things (id, status) VALUES (?, ?), (?, ?)`,
		"abc123", "active", "abc456", "active"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	t.Run("exact match", func(t *testing.T) {
		id, err := s.ResolveIDPrefix("things", "abc123", "")
		if err != nil {
			t.Fatalf("ResolveIDPrefix: %v", err)
		}
		if id != "abc123" {
			t.Errorf("expected abc123, got %s", id)
		}
	})

	t.Run("ambiguous prefix", func(t *testing.T) {
		_, err := s.ResolveIDPrefix("things", "abc", "")
		if err == nil {
			t.Fatal("expected an error for an ambiguous prefix")
		}
		if !corerr.Is(err, corerr.Ambiguous) {
			t.Errorf("expected Ambiguous kind, got %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.ResolveIDPrefix("things", "zzz", "")
		if err == nil {
			t.Fatal("expected an error for a missing prefix")
		}
		if !corerr.Is(err, corerr.NotFound) {
			t.Errorf("expected NotFound kind, got %v", err)
		}
	})

	t.Run("where clause narrows match", func(t *testing.T) {
		if _, err := s.DB().Exec(`UPDATE things SET status = 'gone' WHERE id = ?`, "abc456"); err != nil {
			t.Fatalf("update: %v", err)
		}
		id, err := s.ResolveIDPrefix("things", "abc", "status = 'active'")
		if err != nil {
			t.Fatalf("ResolveIDPrefix with where clause: %v", err)
		}
		if id != "abc123" {
			t.Errorf("expected abc123, got %s", id)
		}
	})
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
