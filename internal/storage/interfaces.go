// Package storage provides composable storage interfaces for the Recall
// memory engine.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed. The engine only ever
// talks to these interfaces; SQLite, Postgres, and in-memory backends
// implement them.
package storage

import (
	"context"
	"time"

	"github.com/scrypster/recall/pkg/types"
)

// EntityStore holds the canonical entity directory and its learned aliases.
type EntityStore interface {
	// CreateEntity inserts a new entity.
	CreateEntity(ctx context.Context, entity *types.Entity) error

	// GetEntity retrieves an entity by ID.
	// Returns ErrNotFound if the entity doesn't exist.
	GetEntity(ctx context.Context, id string) (*types.Entity, error)

	// FindEntityByName looks up an entity by case-insensitive exact match
	// on the canonical name. Returns ErrNotFound when no entity matches.
	FindEntityByName(ctx context.Context, name string) (*types.Entity, error)

	// ListEntities retrieves entities with pagination, used by the
	// resolver's fuzzy scan.
	ListEntities(ctx context.Context, opts ListOptions) (*PaginatedResult[types.Entity], error)

	// UpdateEntity modifies an existing entity with an optimistic version
	// check. Returns ErrVersionConflict when the stored version differs.
	UpdateEntity(ctx context.Context, entity *types.Entity) error

	// RecordMention atomically increments mention_count and updates
	// last_mentioned_at for the given entity.
	RecordMention(ctx context.Context, id string, at time.Time) error

	// CreateAlias persists a learned alias.
	// Returns ErrDuplicateAlias when the surface form is already known
	// for the entity.
	CreateAlias(ctx context.Context, alias *types.EntityAlias) error

	// FindAlias looks up an alias by case-insensitive surface form.
	// Returns ErrNotFound when the alias is unknown.
	FindAlias(ctx context.Context, aliasText string) (*types.EntityAlias, error)

	// ListAliases returns all aliases learned for an entity.
	ListAliases(ctx context.Context, entityID string) ([]*types.EntityAlias, error)

	// ReinforceAlias atomically increments usage_count and updates
	// last_used_at for the given alias.
	ReinforceAlias(ctx context.Context, id string, at time.Time) error

	// ConfirmAlias marks an alias as user-confirmed. Confirmation is an
	// explicit event; nothing else ever sets the flag.
	ConfirmAlias(ctx context.Context, id string) error
}

// MemoryStore provides CRUD and batch lifecycle operations for memories.
type MemoryStore interface {
	// CreateMemory inserts a new memory.
	CreateMemory(ctx context.Context, memory *types.Memory) error

	// GetMemory retrieves a memory by ID regardless of deprecation state
	// (deprecated memories stay retrievable by id for audit).
	// Returns ErrNotFound if the memory doesn't exist.
	GetMemory(ctx context.Context, id string) (*types.Memory, error)

	// UpdateMemory modifies an existing memory with an optimistic version
	// check. Returns ErrVersionConflict when the stored version differs.
	UpdateMemory(ctx context.Context, memory *types.Memory) error

	// ListMemories retrieves memories matching the filter.
	ListMemories(ctx context.Context, filter MemoryFilter) ([]*types.Memory, error)

	// DeprecateMemories marks the given memories deprecated in one
	// transaction, skipping any that are already deprecated. Returns the
	// number of rows actually changed, which makes the soft-delete phase
	// of garbage collection idempotent.
	DeprecateMemories(ctx context.Context, ids []string, at time.Time) (int, error)

	// PurgeMemories permanently removes the given memories in one
	// transaction. Returns the number of rows removed.
	PurgeMemories(ctx context.Context, ids []string) (int, error)
}

// SummaryStore persists consolidation summaries.
type SummaryStore interface {
	// CreateSummary persists a summary and, in the same transaction,
	// marks every source memory deprecated with superseded_by pointing at
	// the new summary. All-or-nothing: a crash mid-consolidation leaves
	// either no summary or a complete one.
	CreateSummary(ctx context.Context, summary *types.MemorySummary) error

	// GetSummary retrieves a summary by ID.
	// Returns ErrNotFound if the summary doesn't exist.
	GetSummary(ctx context.Context, id string) (*types.MemorySummary, error)

	// ListSummaries returns summaries for an entity, active only unless
	// includeDeprecated is set.
	ListSummaries(ctx context.Context, entityID string, includeDeprecated bool) ([]*types.MemorySummary, error)

	// DeprecateSummary marks a summary deprecated. Only meta-consolidation
	// calls this; summaries never expire via the memory TTL path.
	DeprecateSummary(ctx context.Context, id string) error
}

// Store combines the three stores behind one handle. Backends implement the
// whole thing; the engine takes this and nothing wider.
type Store interface {
	EntityStore
	MemoryStore
	SummaryStore

	// Close releases any resources held by the store.
	Close() error
}
