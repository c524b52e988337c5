package sqlite

// Schema is the embedded SQLite schema for the Recall engine. All statements
// are idempotent (IF NOT EXISTS) so opening an existing database is safe.
const Schema = `
CREATE TABLE IF NOT EXISTS entities (
    id                TEXT PRIMARY KEY,
    canonical_name    TEXT NOT NULL,
    type              TEXT NOT NULL,
    domain_reference  TEXT NOT NULL DEFAULT '',
    mention_count     INTEGER NOT NULL DEFAULT 0,
    last_mentioned_at TIMESTAMP,
    has_active_work   INTEGER NOT NULL DEFAULT 0,
    created_at        TIMESTAMP NOT NULL,
    updated_at        TIMESTAMP NOT NULL,
    version           INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(canonical_name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);

CREATE TABLE IF NOT EXISTS entity_aliases (
    id             TEXT PRIMARY KEY,
    alias_text     TEXT NOT NULL,
    entity_id      TEXT NOT NULL REFERENCES entities(id),
    confidence     REAL NOT NULL,
    usage_count    INTEGER NOT NULL DEFAULT 0,
    user_confirmed INTEGER NOT NULL DEFAULT 0,
    last_used_at   TIMESTAMP NOT NULL,
    created_at     TIMESTAMP NOT NULL,
    UNIQUE(entity_id, alias_text)
);

CREATE INDEX IF NOT EXISTS idx_aliases_text ON entity_aliases(alias_text);

CREATE TABLE IF NOT EXISTS memories (
    id                  TEXT PRIMARY KEY,
    user_id             TEXT NOT NULL DEFAULT '',
    kind                TEXT NOT NULL,
    text                TEXT NOT NULL,
    content_hash        TEXT NOT NULL DEFAULT '',
    embedding           TEXT,              -- JSON array of float32
    entity_links        TEXT,              -- JSON array of entity ids
    importance          REAL NOT NULL DEFAULT 0,
    confidence          REAL NOT NULL,
    base_confidence     REAL NOT NULL,
    reinforcement_count INTEGER NOT NULL DEFAULT 0,
    deprecated          INTEGER NOT NULL DEFAULT 0,
    deprecated_at       TIMESTAMP,
    superseded_by       TEXT NOT NULL DEFAULT '',
    ttl_days            INTEGER NOT NULL DEFAULT 180,
    validated_at        TIMESTAMP,
    created_at          TIMESTAMP NOT NULL,
    last_accessed_at    TIMESTAMP,
    version             INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id);
CREATE INDEX IF NOT EXISTS idx_memories_deprecated ON memories(deprecated);
CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at);

CREATE TABLE IF NOT EXISTS memory_summaries (
    id                TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL DEFAULT '',
    entity_id         TEXT NOT NULL DEFAULT '',
    structured_facts  TEXT NOT NULL,       -- JSON array of facts
    prose_summary     TEXT NOT NULL DEFAULT '',
    embedding         TEXT,                -- JSON array of float32
    source_memory_ids TEXT NOT NULL,       -- JSON array of memory ids
    is_meta_summary   INTEGER NOT NULL DEFAULT 0,
    deprecated        INTEGER NOT NULL DEFAULT 0,
    created_at        TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_summaries_entity ON memory_summaries(entity_id);
`
