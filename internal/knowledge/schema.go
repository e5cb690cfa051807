package knowledge

import "github.com/sporenet/sporenet/internal/storage"

// PluginName identifies this store's migrations in storage's
// _migrations table.
const PluginName = "knowledge"

const schemaV1 = `
CREATE TABLE IF NOT EXISTS knowledge_sources (
	id            TEXT PRIMARY KEY,
	url           TEXT NOT NULL UNIQUE,
	title         TEXT,
	hostname      TEXT,
	tags          TEXT DEFAULT '[]',
	last_fetched_at DATETIME,
	error         TEXT,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_knowledge_sources_hostname ON knowledge_sources(hostname);

CREATE TABLE IF NOT EXISTS knowledge_chunks (
	id          TEXT PRIMARY KEY,
	source_id   TEXT NOT NULL REFERENCES knowledge_sources(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	content     TEXT NOT NULL,
	vector      TEXT,
	model       TEXT,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_source ON knowledge_chunks(source_id);
CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_source_index ON knowledge_chunks(source_id, chunk_index);
`

const schemaV1FTS = `
CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_chunks_fts USING fts5(
	id UNINDEXED,
	content
);

CREATE TRIGGER IF NOT EXISTS knowledge_chunks_fts_insert AFTER INSERT ON knowledge_chunks BEGIN
	INSERT INTO knowledge_chunks_fts(id, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS knowledge_chunks_fts_delete AFTER DELETE ON knowledge_chunks BEGIN
	DELETE FROM knowledge_chunks_fts WHERE id = old.id;
END;

CREATE TRIGGER IF NOT EXISTS knowledge_chunks_fts_update AFTER UPDATE ON knowledge_chunks BEGIN
	UPDATE knowledge_chunks_fts SET content = new.content WHERE id = old.id;
END;
`

// Migrations returns the knowledge store's migration set for
// storage.Store.Migrate.
func Migrations() []storage.Migration {
	return []storage.Migration{
		{Version: 1, SQL: schemaV1},
		{Version: 2, SQL: schemaV1FTS},
	}
}
