// Package memstore provides an in-memory implementation of the storage
// interfaces. It backs engine unit tests and serves as a zero-dependency
// default when no database is configured. All operations are safe for
// concurrent use.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// Store is an in-memory storage.Store. Records are deep-copied on the way in
// and out so callers never share mutable state with the store.
type Store struct {
	mu        sync.RWMutex
	entities  map[string]*types.Entity
	aliases   map[string]*types.EntityAlias // keyed by alias id
	memories  map[string]*types.Memory
	summaries map[string]*types.MemorySummary
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		entities:  make(map[string]*types.Entity),
		aliases:   make(map[string]*types.EntityAlias),
		memories:  make(map[string]*types.Memory),
		summaries: make(map[string]*types.MemorySummary),
	}
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// ---------------------------------------------------------------------------
// EntityStore
// ---------------------------------------------------------------------------

func (s *Store) CreateEntity(_ context.Context, entity *types.Entity) error {
	if entity.ID == "" || entity.CanonicalName == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entity.Version == 0 {
		entity.Version = 1
	}
	s.entities[entity.ID] = copyEntity(entity)
	return nil
}

func (s *Store) GetEntity(_ context.Context, id string) (*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyEntity(e), nil
}

func (s *Store) FindEntityByName(_ context.Context, name string) (*types.Entity, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entities {
		if strings.ToLower(e.CanonicalName) == needle {
			return copyEntity(e), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListEntities(_ context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Entity], error) {
	opts.Normalize()
	s.mu.RLock()
	var all []types.Entity
	for _, e := range s.entities {
		if opts.Type != "" && e.Type != opts.Type {
			continue
		}
		all = append(all, *copyEntity(e))
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	start := (opts.Page - 1) * opts.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + opts.Limit
	if end > len(all) {
		end = len(all)
	}

	return &storage.PaginatedResult[types.Entity]{
		Items:    all[start:end],
		Total:    len(all),
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  end < len(all),
	}, nil
}

func (s *Store) UpdateEntity(_ context.Context, entity *types.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entities[entity.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if cur.Version != entity.Version {
		return storage.ErrVersionConflict
	}
	next := copyEntity(entity)
	next.Version++
	s.entities[entity.ID] = next
	entity.Version = next.Version
	return nil
}

func (s *Store) RecordMention(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return storage.ErrNotFound
	}
	e.MentionCount++
	t := at
	e.LastMentionedAt = &t
	e.UpdatedAt = at
	e.Version++
	return nil
}

func (s *Store) CreateAlias(_ context.Context, alias *types.EntityAlias) error {
	if alias.ID == "" || alias.AliasText == "" || alias.EntityID == "" {
		return storage.ErrInvalidInput
	}
	needle := strings.ToLower(alias.AliasText)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.aliases {
		if a.EntityID == alias.EntityID && strings.ToLower(a.AliasText) == needle {
			return storage.ErrDuplicateAlias
		}
	}
	stored := *alias
	stored.AliasText = needle
	s.aliases[alias.ID] = &stored
	return nil
}

func (s *Store) FindAlias(_ context.Context, aliasText string) (*types.EntityAlias, error) {
	needle := strings.ToLower(strings.TrimSpace(aliasText))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.aliases {
		if a.AliasText == needle {
			out := *a
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListAliases(_ context.Context, entityID string) ([]*types.EntityAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.EntityAlias
	for _, a := range s.aliases {
		if a.EntityID == entityID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ReinforceAlias(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.aliases[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.UsageCount++
	a.LastUsedAt = at
	return nil
}

func (s *Store) ConfirmAlias(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.aliases[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.UserConfirmed = true
	return nil
}

// ---------------------------------------------------------------------------
// MemoryStore
// ---------------------------------------------------------------------------

func (s *Store) CreateMemory(_ context.Context, memory *types.Memory) error {
	if memory.ID == "" || memory.Text == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if memory.Version == 0 {
		memory.Version = 1
	}
	s.memories[memory.ID] = copyMemory(memory)
	return nil
}

func (s *Store) GetMemory(_ context.Context, id string) (*types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memories[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyMemory(m), nil
}

func (s *Store) UpdateMemory(_ context.Context, memory *types.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.memories[memory.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if cur.Version != memory.Version {
		return storage.ErrVersionConflict
	}
	next := copyMemory(memory)
	next.Version++
	s.memories[memory.ID] = next
	memory.Version = next.Version
	return nil
}

func (s *Store) ListMemories(_ context.Context, filter storage.MemoryFilter) ([]*types.Memory, error) {
	s.mu.RLock()
	var out []*types.Memory
	for _, m := range s.memories {
		if !matchesFilter(m, filter) {
			continue
		}
		out = append(out, copyMemory(m))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if filter.OldestFirst {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesFilter(m *types.Memory, f storage.MemoryFilter) bool {
	if f.UserID != "" && m.UserID != f.UserID {
		return false
	}
	if f.EntityID != "" && !m.LinksEntity(f.EntityID) {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if m.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.OnlyDeprecated {
		if !m.Deprecated {
			return false
		}
	} else if !f.IncludeDeprecated && m.Deprecated {
		return false
	}
	if !f.DeprecatedBefore.IsZero() {
		if m.DeprecatedAt == nil || !m.DeprecatedAt.Before(f.DeprecatedBefore) {
			return false
		}
	}
	if !f.CreatedBefore.IsZero() && !m.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}

func (s *Store) DeprecateMemories(_ context.Context, ids []string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for _, id := range ids {
		m, ok := s.memories[id]
		if !ok || m.Deprecated {
			continue
		}
		m.Deprecated = true
		t := at
		m.DeprecatedAt = &t
		m.Version++
		changed++
	}
	return changed, nil
}

func (s *Store) PurgeMemories(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, id := range ids {
		if _, ok := s.memories[id]; ok {
			delete(s.memories, id)
			removed++
		}
	}
	return removed, nil
}

// ---------------------------------------------------------------------------
// SummaryStore
// ---------------------------------------------------------------------------

func (s *Store) CreateSummary(_ context.Context, summary *types.MemorySummary) error {
	if summary.ID == "" || len(summary.SourceMemoryIDs) == 0 {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reject when a source memory was already consumed by another summary;
	// superseded_by is immutable once set.
	for _, id := range summary.SourceMemoryIDs {
		if m, ok := s.memories[id]; ok && m.SupersededBy != "" && m.SupersededBy != summary.ID {
			return storage.ErrInvalidInput
		}
	}

	s.summaries[summary.ID] = copySummary(summary)
	now := summary.CreatedAt
	for _, id := range summary.SourceMemoryIDs {
		m, ok := s.memories[id]
		if !ok {
			continue
		}
		if !m.Deprecated {
			m.Deprecated = true
			t := now
			m.DeprecatedAt = &t
		}
		m.SupersededBy = summary.ID
		m.Version++
	}
	return nil
}

func (s *Store) GetSummary(_ context.Context, id string) (*types.MemorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copySummary(sum), nil
}

func (s *Store) ListSummaries(_ context.Context, entityID string, includeDeprecated bool) ([]*types.MemorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.MemorySummary
	for _, sum := range s.summaries {
		if entityID != "" && sum.EntityID != entityID {
			continue
		}
		if !includeDeprecated && sum.Deprecated {
			continue
		}
		out = append(out, copySummary(sum))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeprecateSummary(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.summaries[id]
	if !ok {
		return storage.ErrNotFound
	}
	sum.Deprecated = true
	return nil
}

// ---------------------------------------------------------------------------
// Copy helpers
// ---------------------------------------------------------------------------

func copyEntity(e *types.Entity) *types.Entity {
	cp := *e
	if e.LastMentionedAt != nil {
		t := *e.LastMentionedAt
		cp.LastMentionedAt = &t
	}
	return &cp
}

func copyMemory(m *types.Memory) *types.Memory {
	cp := *m
	cp.Embedding = append([]float32(nil), m.Embedding...)
	cp.EntityLinks = append([]string(nil), m.EntityLinks...)
	if m.LastAccessedAt != nil {
		t := *m.LastAccessedAt
		cp.LastAccessedAt = &t
	}
	if m.DeprecatedAt != nil {
		t := *m.DeprecatedAt
		cp.DeprecatedAt = &t
	}
	if m.ValidatedAt != nil {
		t := *m.ValidatedAt
		cp.ValidatedAt = &t
	}
	return &cp
}

func copySummary(s *types.MemorySummary) *types.MemorySummary {
	cp := *s
	cp.Embedding = append([]float32(nil), s.Embedding...)
	cp.SourceMemoryIDs = append([]string(nil), s.SourceMemoryIDs...)
	cp.StructuredFacts = make([]types.Fact, len(s.StructuredFacts))
	for i, f := range s.StructuredFacts {
		cp.StructuredFacts[i] = f
		cp.StructuredFacts[i].SourceMemoryIDs = append([]string(nil), f.SourceMemoryIDs...)
	}
	return &cp
}
