package postgres

// Schema is the embedded PostgreSQL schema for the Recall engine. All
// statements are idempotent so applying it to an existing database is safe.
// The embedding_vec columns are added separately once the pgvector extension
// is confirmed available.
const Schema = `
CREATE TABLE IF NOT EXISTS entities (
    id                TEXT PRIMARY KEY,
    canonical_name    TEXT NOT NULL,
    type              TEXT NOT NULL,
    domain_reference  TEXT NOT NULL DEFAULT '',
    mention_count     INTEGER NOT NULL DEFAULT 0,
    last_mentioned_at TIMESTAMPTZ,
    has_active_work   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL,
    version           BIGINT NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(LOWER(canonical_name));
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);

CREATE TABLE IF NOT EXISTS entity_aliases (
    id             TEXT PRIMARY KEY,
    alias_text     TEXT NOT NULL,
    entity_id      TEXT NOT NULL REFERENCES entities(id),
    confidence     DOUBLE PRECISION NOT NULL,
    usage_count    INTEGER NOT NULL DEFAULT 0,
    user_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
    last_used_at   TIMESTAMPTZ NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL,
    UNIQUE(entity_id, alias_text)
);

CREATE INDEX IF NOT EXISTS idx_aliases_text ON entity_aliases(alias_text);

CREATE TABLE IF NOT EXISTS memories (
    id                  TEXT PRIMARY KEY,
    user_id             TEXT NOT NULL DEFAULT '',
    kind                TEXT NOT NULL,
    text                TEXT NOT NULL,
    content_hash        TEXT NOT NULL DEFAULT '',
    embedding           JSONB,
    entity_links        JSONB,
    importance          DOUBLE PRECISION NOT NULL DEFAULT 0,
    confidence          DOUBLE PRECISION NOT NULL,
    base_confidence     DOUBLE PRECISION NOT NULL,
    reinforcement_count INTEGER NOT NULL DEFAULT 0,
    deprecated          BOOLEAN NOT NULL DEFAULT FALSE,
    deprecated_at       TIMESTAMPTZ,
    superseded_by       TEXT NOT NULL DEFAULT '',
    ttl_days            INTEGER NOT NULL DEFAULT 180,
    validated_at        TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL,
    last_accessed_at    TIMESTAMPTZ,
    version             BIGINT NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id);
CREATE INDEX IF NOT EXISTS idx_memories_deprecated ON memories(deprecated);
CREATE INDEX IF NOT EXISTS idx_memories_links ON memories USING GIN (entity_links);

CREATE TABLE IF NOT EXISTS memory_summaries (
    id                TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL DEFAULT '',
    entity_id         TEXT NOT NULL DEFAULT '',
    structured_facts  JSONB NOT NULL,
    prose_summary     TEXT NOT NULL DEFAULT '',
    embedding         JSONB,
    source_memory_ids JSONB NOT NULL,
    is_meta_summary   BOOLEAN NOT NULL DEFAULT FALSE,
    deprecated        BOOLEAN NOT NULL DEFAULT FALSE,
    created_at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_summaries_entity ON memory_summaries(entity_id);
`

// VectorSchema adds pgvector-backed columns for nearest-neighbour search.
// Applied only when the pgvector extension is available.
const VectorSchema = `
ALTER TABLE memories ADD COLUMN IF NOT EXISTS embedding_vec vector(1536);
ALTER TABLE memory_summaries ADD COLUMN IF NOT EXISTS embedding_vec vector(1536);
`
