package beliefs

import "github.com/sporenet/sporenet/internal/storage"

// schemaV1 creates every table owned by the belief store: beliefs and
// their embeddings, episodes and their embeddings, the episode/belief
// join table, the change and link history tables, plus the FTS5
// mirror of beliefs.statement. Grounded on the teacher's CoreSchema /
// FTS5Schema split in internal/database/schema.go.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS beliefs (
	id                TEXT PRIMARY KEY,
	statement         TEXT NOT NULL,
	subject           TEXT NOT NULL,
	fact_type         TEXT NOT NULL DEFAULT 'factual' CHECK (
		fact_type IN ('factual', 'preference', 'procedural', 'architectural', 'insight', 'meta')
	),
	confidence        REAL NOT NULL DEFAULT 0.6 CHECK (confidence >= 0.0 AND confidence <= 1.0),
	stability         REAL NOT NULL DEFAULT 1.0 CHECK (stability > 0.0),
	importance        INTEGER NOT NULL DEFAULT 5 CHECK (importance >= 1 AND importance <= 10),
	status            TEXT NOT NULL DEFAULT 'active' CHECK (
		status IN ('active', 'invalidated', 'forgotten', 'pruned')
	),
	superseded_by     TEXT REFERENCES beliefs(id) ON DELETE SET NULL,
	source_episode_id TEXT,
	access_count      INTEGER NOT NULL DEFAULT 0,
	last_accessed_at  DATETIME,
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_beliefs_status ON beliefs(status);
CREATE INDEX IF NOT EXISTS idx_beliefs_subject ON beliefs(subject);
CREATE INDEX IF NOT EXISTS idx_beliefs_fact_type ON beliefs(fact_type);
CREATE INDEX IF NOT EXISTS idx_beliefs_created_at ON beliefs(created_at);
CREATE INDEX IF NOT EXISTS idx_beliefs_status_created ON beliefs(status, created_at);

CREATE TABLE IF NOT EXISTS belief_embeddings (
	belief_id TEXT PRIMARY KEY REFERENCES beliefs(id) ON DELETE CASCADE,
	vector    TEXT NOT NULL,
	model     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS episodes (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	source     TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_episodes_created_at ON episodes(created_at);

CREATE TABLE IF NOT EXISTS episode_embeddings (
	episode_id TEXT PRIMARY KEY REFERENCES episodes(id) ON DELETE CASCADE,
	vector     TEXT NOT NULL,
	model      TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS episode_beliefs (
	episode_id TEXT NOT NULL REFERENCES episodes(id) ON DELETE CASCADE,
	belief_id  TEXT NOT NULL REFERENCES beliefs(id) ON DELETE CASCADE,
	role       TEXT NOT NULL DEFAULT 'created' CHECK (role IN ('created', 'reinforced', 'contradicted', 'weakened')),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (episode_id, belief_id, role)
);

CREATE INDEX IF NOT EXISTS idx_episode_beliefs_belief ON episode_beliefs(belief_id);

CREATE TABLE IF NOT EXISTS belief_changes (
	id          TEXT PRIMARY KEY,
	belief_id   TEXT NOT NULL REFERENCES beliefs(id) ON DELETE CASCADE,
	change_type TEXT NOT NULL CHECK (
		change_type IN ('created', 'reinforced', 'weakened', 'invalidated', 'forgotten', 'pruned', 'synthesized')
	),
	previous_confidence REAL,
	new_confidence      REAL,
	reason              TEXT,
	episode_id          TEXT,
	created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_belief_changes_belief ON belief_changes(belief_id);
CREATE INDEX IF NOT EXISTS idx_belief_changes_created_at ON belief_changes(created_at);

CREATE TABLE IF NOT EXISTS belief_links (
	id              TEXT PRIMARY KEY,
	source_belief_id TEXT NOT NULL REFERENCES beliefs(id) ON DELETE CASCADE,
	target_belief_id TEXT NOT NULL REFERENCES beliefs(id) ON DELETE CASCADE,
	link_type       TEXT NOT NULL DEFAULT 'related' CHECK (
		link_type IN ('related', 'synthesized', 'supersedes')
	),
	strength        REAL NOT NULL CHECK (strength >= 0.0 AND strength <= 1.0),
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_belief_links_source ON belief_links(source_belief_id);
CREATE INDEX IF NOT EXISTS idx_belief_links_target ON belief_links(target_belief_id);
`

// schemaV1FTS mirrors beliefs.statement into an FTS5 virtual table via
// sync triggers, matching the teacher's standalone-table-plus-triggers
// approach (not an external-content table) for reliable trigger
// behavior across updates and deletes.
const schemaV1FTS = `
CREATE VIRTUAL TABLE IF NOT EXISTS beliefs_fts USING fts5(
	id UNINDEXED,
	statement,
	subject
);

CREATE TRIGGER IF NOT EXISTS beliefs_fts_insert AFTER INSERT ON beliefs BEGIN
	INSERT INTO beliefs_fts(id, statement, subject) VALUES (new.id, new.statement, new.subject);
END;

CREATE TRIGGER IF NOT EXISTS beliefs_fts_delete AFTER DELETE ON beliefs BEGIN
	DELETE FROM beliefs_fts WHERE id = old.id;
END;

CREATE TRIGGER IF NOT EXISTS beliefs_fts_update AFTER UPDATE ON beliefs BEGIN
	UPDATE beliefs_fts SET statement = new.statement, subject = new.subject WHERE id = old.id;
END;
`

// Migrations returns the belief store's migration set for
// storage.Store.Migrate.
func Migrations() []storage.Migration {
	return []storage.Migration{
		{Version: 1, SQL: schemaV1},
		{Version: 2, SQL: schemaV1FTS},
	}
}
