// Package sqlite implements the Recall storage interfaces on SQLite using
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens a SQLite database, configures WAL mode, and creates the schema.
// Use ":memory:" as the DSN for an ephemeral database in tests.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Using a single open
	// connection serialises writes and avoids SQLITE_BUSY errors under
	// concurrent load. WAL mode allows concurrent readers to proceed
	// without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s failed: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// EntityStore
// ---------------------------------------------------------------------------

func (s *Store) CreateEntity(ctx context.Context, e *types.Entity) error {
	if e.ID == "" || e.CanonicalName == "" {
		return storage.ErrInvalidInput
	}
	if e.Version == 0 {
		e.Version = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entities (id, canonical_name, type, domain_reference,
			mention_count, last_mentioned_at, has_active_work,
			created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CanonicalName, string(e.Type), e.DomainReference,
		e.MentionCount, nullableTime(e.LastMentionedAt), boolInt(e.HasActiveWork),
		e.CreatedAt, e.UpdatedAt, e.Version)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create entity: %w", err)
	}
	return nil
}

const entityColumns = `id, canonical_name, type, domain_reference,
	mention_count, last_mentioned_at, has_active_work,
	created_at, updated_at, version`

func (s *Store) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	return scanEntity(row)
}

func (s *Store) FindEntityByName(ctx context.Context, name string) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE canonical_name = ? COLLATE NOCASE LIMIT 1`,
		strings.TrimSpace(name))
	return scanEntity(row)
}

func (s *Store) ListEntities(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Entity], error) {
	opts.Normalize()

	where := "1=1"
	args := []any{}
	if opts.Type != "" {
		where = "type = ?"
		args = append(args, string(opts.Type))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entities WHERE `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: failed to count entities: %w", err)
	}

	offset := (opts.Page - 1) * opts.Limit
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE `+where+`
		 ORDER BY created_at ASC LIMIT ? OFFSET ?`,
		append(args, opts.Limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list entities: %w", err)
	}
	defer rows.Close()

	var items []types.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: entity row iteration failed: %w", err)
	}

	return &storage.PaginatedResult[types.Entity]{
		Items:    items,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  offset+len(items) < total,
	}, nil
}

func (s *Store) UpdateEntity(ctx context.Context, e *types.Entity) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entities SET canonical_name = ?, type = ?, domain_reference = ?,
			mention_count = ?, last_mentioned_at = ?, has_active_work = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		e.CanonicalName, string(e.Type), e.DomainReference,
		e.MentionCount, nullableTime(e.LastMentionedAt), boolInt(e.HasActiveWork),
		time.Now().UTC(), e.ID, e.Version)
	if err != nil {
		return fmt.Errorf("sqlite: failed to update entity: %w", err)
	}
	return versionedResult(ctx, s.db, res, "entities", e.ID, func() { e.Version++ })
}

func (s *Store) RecordMention(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entities SET mention_count = mention_count + 1,
			last_mentioned_at = ?, updated_at = ?, version = version + 1
		WHERE id = ?`, at, at, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to record mention: %w", err)
	}
	return requireRow(res)
}

func (s *Store) CreateAlias(ctx context.Context, a *types.EntityAlias) error {
	if a.ID == "" || a.AliasText == "" || a.EntityID == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_aliases (id, alias_text, entity_id, confidence,
			usage_count, user_confirmed, last_used_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, strings.ToLower(a.AliasText), a.EntityID, a.Confidence,
		a.UsageCount, boolInt(a.UserConfirmed), a.LastUsedAt, a.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return storage.ErrDuplicateAlias
		}
		return fmt.Errorf("sqlite: failed to create alias: %w", err)
	}
	return nil
}

const aliasColumns = `id, alias_text, entity_id, confidence, usage_count,
	user_confirmed, last_used_at, created_at`

func (s *Store) FindAlias(ctx context.Context, aliasText string) (*types.EntityAlias, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+aliasColumns+` FROM entity_aliases WHERE alias_text = ? LIMIT 1`,
		strings.ToLower(strings.TrimSpace(aliasText)))
	return scanAlias(row)
}

func (s *Store) ListAliases(ctx context.Context, entityID string) ([]*types.EntityAlias, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+aliasColumns+` FROM entity_aliases
		 WHERE entity_id = ? ORDER BY created_at ASC`, entityID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list aliases: %w", err)
	}
	defer rows.Close()

	var out []*types.EntityAlias
	for rows.Next() {
		a, err := scanAlias(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ReinforceAlias(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entity_aliases SET usage_count = usage_count + 1, last_used_at = ?
		WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to reinforce alias: %w", err)
	}
	return requireRow(res)
}

func (s *Store) ConfirmAlias(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entity_aliases SET user_confirmed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to confirm alias: %w", err)
	}
	return requireRow(res)
}

// ---------------------------------------------------------------------------
// MemoryStore
// ---------------------------------------------------------------------------

const memoryColumns = `id, user_id, kind, text, content_hash, embedding,
	entity_links, importance, confidence, base_confidence,
	reinforcement_count, deprecated, deprecated_at, superseded_by,
	ttl_days, validated_at, created_at, last_accessed_at, version`

func (s *Store) CreateMemory(ctx context.Context, m *types.Memory) error {
	if m.ID == "" || m.Text == "" {
		return storage.ErrInvalidInput
	}
	if m.Version == 0 {
		m.Version = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (`+memoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, string(m.Kind), m.Text, m.ContentHash,
		jsonString(m.Embedding), jsonString(m.EntityLinks),
		m.Importance, m.Confidence, m.BaseConfidence,
		m.ReinforcementCount, boolInt(m.Deprecated), nullableTime(m.DeprecatedAt),
		m.SupersededBy, m.TTLDays, nullableTime(m.ValidatedAt),
		m.CreatedAt, nullableTime(m.LastAccessedAt), m.Version)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create memory: %w", err)
	}
	return nil
}

func (s *Store) GetMemory(ctx context.Context, id string) (*types.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	return scanMemory(row)
}

func (s *Store) UpdateMemory(ctx context.Context, m *types.Memory) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET text = ?, content_hash = ?, embedding = ?,
			entity_links = ?, importance = ?, confidence = ?,
			reinforcement_count = ?, deprecated = ?, deprecated_at = ?,
			superseded_by = ?, ttl_days = ?, validated_at = ?,
			last_accessed_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		m.Text, m.ContentHash, jsonString(m.Embedding),
		jsonString(m.EntityLinks), m.Importance, m.Confidence,
		m.ReinforcementCount, boolInt(m.Deprecated), nullableTime(m.DeprecatedAt),
		m.SupersededBy, m.TTLDays, nullableTime(m.ValidatedAt),
		nullableTime(m.LastAccessedAt), m.ID, m.Version)
	if err != nil {
		return fmt.Errorf("sqlite: failed to update memory: %w", err)
	}
	return versionedResult(ctx, s.db, res, "memories", m.ID, func() { m.Version++ })
}

func (s *Store) ListMemories(ctx context.Context, filter storage.MemoryFilter) ([]*types.Memory, error) {
	var conds []string
	var args []any

	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.EntityID != "" {
		// entity_links is a JSON array of quoted ids.
		conds = append(conds, "entity_links LIKE ?")
		args = append(args, `%"`+filter.EntityID+`"%`)
	}
	if len(filter.Kinds) > 0 {
		ph := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			ph[i] = "?"
			args = append(args, string(k))
		}
		conds = append(conds, "kind IN ("+strings.Join(ph, ",")+")")
	}
	if filter.OnlyDeprecated {
		conds = append(conds, "deprecated = 1")
	} else if !filter.IncludeDeprecated {
		conds = append(conds, "deprecated = 0")
	}
	if !filter.DeprecatedBefore.IsZero() {
		conds = append(conds, "deprecated_at IS NOT NULL AND deprecated_at < ?")
		args = append(args, filter.DeprecatedBefore)
	}
	if !filter.CreatedBefore.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, filter.CreatedBefore)
	}

	query := `SELECT ` + memoryColumns + ` FROM memories`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if filter.OldestFirst {
		query += " ORDER BY created_at ASC"
	} else {
		query += " ORDER BY created_at DESC"
	}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list memories: %w", err)
	}
	defer rows.Close()

	var out []*types.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) DeprecateMemories(ctx context.Context, ids []string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	changed := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `
			UPDATE memories SET deprecated = 1, deprecated_at = ?,
				version = version + 1
			WHERE id = ? AND deprecated = 0`, at, id)
		if err != nil {
			return 0, fmt.Errorf("sqlite: failed to deprecate memory %s: %w", id, err)
		}
		n, _ := res.RowsAffected()
		changed += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: failed to commit deprecation: %w", err)
	}
	return changed, nil
}

func (s *Store) PurgeMemories(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	removed := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
		if err != nil {
			return 0, fmt.Errorf("sqlite: failed to purge memory %s: %w", id, err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: failed to commit purge: %w", err)
	}
	return removed, nil
}

// ---------------------------------------------------------------------------
// SummaryStore
// ---------------------------------------------------------------------------

func (s *Store) CreateSummary(ctx context.Context, sum *types.MemorySummary) error {
	if sum.ID == "" || len(sum.SourceMemoryIDs) == 0 {
		return storage.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// superseded_by is immutable: refuse to consume a memory already
	// claimed by another summary.
	for _, id := range sum.SourceMemoryIDs {
		var existing string
		err := tx.QueryRowContext(ctx,
			`SELECT superseded_by FROM memories WHERE id = ?`, id).Scan(&existing)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("sqlite: failed to check source memory %s: %w", id, err)
		}
		if existing != "" && existing != sum.ID {
			return storage.ErrInvalidInput
		}
	}

	facts, err := json.Marshal(sum.StructuredFacts)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal facts: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory_summaries (id, user_id, entity_id, structured_facts,
			prose_summary, embedding, source_memory_ids, is_meta_summary,
			deprecated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.UserID, sum.EntityID, string(facts),
		sum.ProseSummary, jsonString(sum.Embedding),
		jsonString(sum.SourceMemoryIDs), boolInt(sum.IsMetaSummary),
		boolInt(sum.Deprecated), sum.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create summary: %w", err)
	}

	for _, id := range sum.SourceMemoryIDs {
		_, err := tx.ExecContext(ctx, `
			UPDATE memories SET deprecated = 1,
				deprecated_at = COALESCE(deprecated_at, ?),
				superseded_by = ?, version = version + 1
			WHERE id = ?`, sum.CreatedAt, sum.ID, id)
		if err != nil {
			return fmt.Errorf("sqlite: failed to supersede memory %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit summary: %w", err)
	}
	return nil
}

const summaryColumns = `id, user_id, entity_id, structured_facts, prose_summary,
	embedding, source_memory_ids, is_meta_summary, deprecated, created_at`

func (s *Store) GetSummary(ctx context.Context, id string) (*types.MemorySummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+summaryColumns+` FROM memory_summaries WHERE id = ?`, id)
	return scanSummary(row)
}

func (s *Store) ListSummaries(ctx context.Context, entityID string, includeDeprecated bool) ([]*types.MemorySummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM memory_summaries WHERE 1=1`
	var args []any
	if entityID != "" {
		query += " AND entity_id = ?"
		args = append(args, entityID)
	}
	if !includeDeprecated {
		query += " AND deprecated = 0"
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list summaries: %w", err)
	}
	defer rows.Close()

	var out []*types.MemorySummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *Store) DeprecateSummary(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memory_summaries SET deprecated = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to deprecate summary: %w", err)
	}
	return requireRow(res)
}

// ---------------------------------------------------------------------------
// Scan and marshal helpers
// ---------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*types.Entity, error) {
	var e types.Entity
	var entityType string
	var lastMentioned sql.NullTime
	var hasActiveWork int

	err := row.Scan(&e.ID, &e.CanonicalName, &entityType, &e.DomainReference,
		&e.MentionCount, &lastMentioned, &hasActiveWork,
		&e.CreatedAt, &e.UpdatedAt, &e.Version)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to scan entity: %w", err)
	}

	e.Type = types.EntityType(entityType)
	e.HasActiveWork = hasActiveWork != 0
	if lastMentioned.Valid {
		e.LastMentionedAt = &lastMentioned.Time
	}
	return &e, nil
}

func scanAlias(row rowScanner) (*types.EntityAlias, error) {
	var a types.EntityAlias
	var confirmed int

	err := row.Scan(&a.ID, &a.AliasText, &a.EntityID, &a.Confidence,
		&a.UsageCount, &confirmed, &a.LastUsedAt, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to scan alias: %w", err)
	}

	a.UserConfirmed = confirmed != 0
	return &a, nil
}

func scanMemory(row rowScanner) (*types.Memory, error) {
	var m types.Memory
	var kind string
	var embedding, links sql.NullString
	var deprecated int
	var deprecatedAt, validatedAt, lastAccessed sql.NullTime

	err := row.Scan(&m.ID, &m.UserID, &kind, &m.Text, &m.ContentHash,
		&embedding, &links, &m.Importance, &m.Confidence, &m.BaseConfidence,
		&m.ReinforcementCount, &deprecated, &deprecatedAt, &m.SupersededBy,
		&m.TTLDays, &validatedAt, &m.CreatedAt, &lastAccessed, &m.Version)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to scan memory: %w", err)
	}

	m.Kind = types.MemoryKind(kind)
	m.Deprecated = deprecated != 0
	if deprecatedAt.Valid {
		m.DeprecatedAt = &deprecatedAt.Time
	}
	if validatedAt.Valid {
		m.ValidatedAt = &validatedAt.Time
	}
	if lastAccessed.Valid {
		m.LastAccessedAt = &lastAccessed.Time
	}
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &m.Embedding); err != nil {
			return nil, fmt.Errorf("sqlite: failed to decode embedding: %w", err)
		}
	}
	if links.Valid && links.String != "" {
		if err := json.Unmarshal([]byte(links.String), &m.EntityLinks); err != nil {
			return nil, fmt.Errorf("sqlite: failed to decode entity links: %w", err)
		}
	}
	return &m, nil
}

func scanSummary(row rowScanner) (*types.MemorySummary, error) {
	var s types.MemorySummary
	var facts, sources string
	var embedding sql.NullString
	var isMeta, deprecated int

	err := row.Scan(&s.ID, &s.UserID, &s.EntityID, &facts, &s.ProseSummary,
		&embedding, &sources, &isMeta, &deprecated, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to scan summary: %w", err)
	}

	s.IsMetaSummary = isMeta != 0
	s.Deprecated = deprecated != 0
	if err := json.Unmarshal([]byte(facts), &s.StructuredFacts); err != nil {
		return nil, fmt.Errorf("sqlite: failed to decode facts: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &s.SourceMemoryIDs); err != nil {
		return nil, fmt.Errorf("sqlite: failed to decode source ids: %w", err)
	}
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &s.Embedding); err != nil {
			return nil, fmt.Errorf("sqlite: failed to decode embedding: %w", err)
		}
	}
	return &s, nil
}

// jsonString marshals v to a JSON string, or returns empty for nil slices.
func jsonString[T any](v []T) string {
	if len(v) == 0 {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// requireRow converts a zero-rows-affected result into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// versionedResult distinguishes "record missing" from "version mismatch"
// after an optimistic-concurrency UPDATE affected zero rows.
func versionedResult(ctx context.Context, db *sql.DB, res sql.Result, table, id string, bump func()) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		bump()
		return nil
	}
	var exists int
	err = db.QueryRowContext(ctx,
		`SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	return storage.ErrVersionConflict
}
