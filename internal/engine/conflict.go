package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// ConflictState tracks a conflict through its lifecycle. Detected conflicts
// have been found but not yet shown to the user; surfaced conflicts await a
// user decision; resolved conflicts are terminal.
type ConflictState string

// Conflict lifecycle states.
const (
	ConflictDetected ConflictState = "detected"
	ConflictSurfaced ConflictState = "surfaced"
	ConflictResolved ConflictState = "resolved"
)

const (
	// resolutionWinnerBoost is added to the winning memory's confidence
	// when a conflict resolves, capped at 1.0.
	resolutionWinnerBoost = 0.18

	// resolutionLoserConfidence is the confidence a deprecated loser is
	// left with, preserved for audit.
	resolutionLoserConfidence = 0.20
)

// Conflict is a detected contradiction: two active memories assert
// different values for the same attribute of the same entity. Both
// memories stay active until the conflict resolves.
type Conflict struct {
	ID       string                  `json:"id"`
	UserID   string                  `json:"user_id"`
	EntityID string                  `json:"entity_id"`
	Category types.AttributeCategory `json:"category"`

	// ExistingMemoryID/NewMemoryID identify the two sides; the existing
	// side is the older assertion.
	ExistingMemoryID string `json:"existing_memory_id"`
	NewMemoryID      string `json:"new_memory_id"`
	ExistingValue    string `json:"existing_value"`
	NewValue         string `json:"new_value"`

	State ConflictState `json:"state"`

	// Provisional marks a resolution the engine made on its own (most
	// recent assertion wins) rather than by user decision. A provisional
	// winner can still be overturned by ReportConflictResolution.
	Provisional bool `json:"provisional,omitempty"`

	WinnerMemoryID string     `json:"winner_memory_id,omitempty"`
	DetectedAt     time.Time  `json:"detected_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// conflictKey identifies the attribute slot a conflict occupies. At most
// one unresolved conflict may exist per slot.
type conflictKey struct {
	entityID string
	category types.AttributeCategory
}

// conflictRegistry is the in-memory index of conflicts. Conflicts are
// session-scoped working state, not durable records; the durable outcome
// is the confidence and deprecation changes applied to the memories.
type conflictRegistry struct {
	mu     sync.Mutex
	byID   map[string]*Conflict
	byKey  map[conflictKey]*Conflict // unresolved conflicts only
	closed []*Conflict
}

func newConflictRegistry() *conflictRegistry {
	return &conflictRegistry{
		byID:  make(map[string]*Conflict),
		byKey: make(map[conflictKey]*Conflict),
	}
}

// pending returns the unresolved conflict occupying the given slot, if any.
func (r *conflictRegistry) pending(entityID string, category types.AttributeCategory) *Conflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byKey[conflictKey{entityID, category}]; ok {
		copied := *c
		return &copied
	}
	return nil
}

func (r *conflictRegistry) add(c *Conflict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = c
	r.byKey[conflictKey{c.EntityID, c.Category}] = c
}

func (r *conflictRegistry) get(id string) (*Conflict, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	copied := *c
	return &copied, true
}

// transition mutates the conflict under the registry lock and releases the
// slot when the conflict reaches the resolved state.
func (r *conflictRegistry) transition(id string, fn func(*Conflict) error) (*Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if c.State == ConflictResolved && !c.Provisional {
		delete(r.byKey, conflictKey{c.EntityID, c.Category})
	}
	copied := *c
	return &copied, nil
}

// PendingConflicts lists unresolved and provisionally resolved conflicts
// for an entity, oldest first.
func (e *Engine) PendingConflicts(entityID string) []*Conflict {
	e.conflicts.mu.Lock()
	defer e.conflicts.mu.Unlock()
	var out []*Conflict
	for _, c := range e.conflicts.byKey {
		if c.EntityID == entityID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out
}

// SurfaceConflict marks a detected conflict as shown to the user. The
// transition is one-way; surfacing an already surfaced or resolved
// conflict is a no-op on state but not an error.
func (e *Engine) SurfaceConflict(conflictID string) (*Conflict, error) {
	const op = "SurfaceConflict"
	c, err := e.conflicts.transition(conflictID, func(c *Conflict) error {
		if c.State == ConflictDetected {
			c.State = ConflictSurfaced
		}
		return nil
	})
	if err != nil {
		return nil, opErr(op, err)
	}
	return c, nil
}

// ReportConflictResolution records the user's decision on a surfaced
// conflict. The winning memory is reinforced with a confidence boost; the
// losing memory is deprecated with a low residual confidence and kept for
// audit. A user decision finalizes provisional resolutions too, including
// overturning them.
func (e *Engine) ReportConflictResolution(ctx context.Context, conflictID, winnerMemoryID string) (*Conflict, error) {
	const op = "ReportConflictResolution"

	current, ok := e.conflicts.get(conflictID)
	if !ok {
		return nil, opErr(op, ErrNotFound)
	}
	if winnerMemoryID != current.ExistingMemoryID && winnerMemoryID != current.NewMemoryID {
		return nil, opErr(op, fmt.Errorf("%w: memory %s is not a side of conflict %s", ErrValidation, winnerMemoryID, conflictID))
	}
	if current.State == ConflictResolved && !current.Provisional {
		return nil, opErr(op, fmt.Errorf("%w: conflict already resolved", ErrValidation))
	}

	unlock := e.locks.lock(current.EntityID)
	defer unlock()

	loserID := current.ExistingMemoryID
	if winnerMemoryID == loserID {
		loserID = current.NewMemoryID
	}
	if err := e.applyResolution(ctx, winnerMemoryID, loserID); err != nil {
		return nil, opErr(op, err)
	}

	now := e.now()
	c, err := e.conflicts.transition(conflictID, func(c *Conflict) error {
		c.State = ConflictResolved
		c.Provisional = false
		c.WinnerMemoryID = winnerMemoryID
		c.ResolvedAt = &now
		return nil
	})
	if err != nil {
		return nil, opErr(op, err)
	}
	return c, nil
}

// ResolveConflictProvisionally resolves a conflict without a user decision:
// the most recent assertion wins, with stored confidence as the tie-break.
// The resolution is marked provisional and the slot stays occupied so a
// later user decision can confirm or overturn it.
func (e *Engine) ResolveConflictProvisionally(ctx context.Context, conflictID string) (*Conflict, error) {
	const op = "ResolveConflictProvisionally"

	current, ok := e.conflicts.get(conflictID)
	if !ok {
		return nil, opErr(op, ErrNotFound)
	}
	if current.State == ConflictResolved {
		return nil, opErr(op, fmt.Errorf("%w: conflict already resolved", ErrValidation))
	}

	unlock := e.locks.lock(current.EntityID)
	defer unlock()

	existing, err := e.store.GetMemory(ctx, current.ExistingMemoryID)
	if err != nil {
		return nil, opErr(op, err)
	}
	fresh, err := e.store.GetMemory(ctx, current.NewMemoryID)
	if err != nil {
		return nil, opErr(op, err)
	}

	winner, loser := fresh, existing
	if existing.CreatedAt.After(fresh.CreatedAt) ||
		(existing.CreatedAt.Equal(fresh.CreatedAt) && existing.Confidence > fresh.Confidence) {
		winner, loser = existing, fresh
	}
	if err := e.applyResolution(ctx, winner.ID, loser.ID); err != nil {
		return nil, opErr(op, err)
	}

	now := e.now()
	c, err := e.conflicts.transition(conflictID, func(c *Conflict) error {
		c.State = ConflictResolved
		c.Provisional = true
		c.WinnerMemoryID = winner.ID
		c.ResolvedAt = &now
		return nil
	})
	if err != nil {
		return nil, opErr(op, err)
	}
	return c, nil
}

// applyResolution boosts the winner and deprecates the loser. Runs under
// the entity lock; version conflicts here mean concurrent mutation outside
// the lock and are returned as-is.
func (e *Engine) applyResolution(ctx context.Context, winnerID, loserID string) error {
	now := e.now()

	winner, err := e.store.GetMemory(ctx, winnerID)
	if err != nil {
		return err
	}
	winner.Confidence = math.Min(1.0, winner.Confidence+resolutionWinnerBoost)
	winner.ReinforcementCount++
	t := now
	winner.LastAccessedAt = &t
	// Overturning a provisional outcome reinstates the earlier loser.
	winner.Deprecated = false
	winner.DeprecatedAt = nil
	if err := e.store.UpdateMemory(ctx, winner); err != nil {
		return err
	}

	loser, err := e.store.GetMemory(ctx, loserID)
	if err != nil {
		return err
	}
	if loser.Deprecated {
		// Already deprecated (e.g. confirming a provisional outcome).
		return nil
	}
	loser.Confidence = resolutionLoserConfidence
	loser.Deprecated = true
	loser.DeprecatedAt = &now
	if err := e.store.UpdateMemory(ctx, loser); err != nil {
		return err
	}
	return nil
}

// detectConflict checks a classified incoming memory against the entity's
// active memories. Called under the entity lock by CreateMemory.
//
// Returns the registered conflict when the incoming assertion contradicts
// an existing one, the agreeing memory when the values match, or neither.
func (e *Engine) detectConflict(ctx context.Context, mem *types.Memory, entityID string, cls Classification) (*Conflict, *types.Memory, error) {
	if cls.Category == types.CategoryUncategorized {
		return nil, nil, nil
	}

	existing, err := e.store.ListMemories(ctx, storage.MemoryFilter{
		UserID:   mem.UserID,
		EntityID: entityID,
	})
	if err != nil {
		return nil, nil, err
	}

	for _, prior := range existing {
		if prior.ID == mem.ID {
			continue
		}
		priorCls := classify(prior.Text)
		if priorCls.Category != cls.Category {
			continue
		}
		if priorCls.Value == cls.Value {
			return nil, prior, nil
		}
		conflict := &Conflict{
			ID:               "conf:" + uuid.NewString(),
			UserID:           mem.UserID,
			EntityID:         entityID,
			Category:         cls.Category,
			ExistingMemoryID: prior.ID,
			NewMemoryID:      mem.ID,
			ExistingValue:    priorCls.Value,
			NewValue:         cls.Value,
			State:            ConflictDetected,
			DetectedAt:       e.now(),
		}
		e.conflicts.add(conflict)
		return conflict, nil, nil
	}
	return nil, nil, nil
}

// blockedByConflict reports whether an unresolved conflict occupies the
// attribute slot the incoming memory writes to.
func (e *Engine) blockedByConflict(entityID string, cls Classification) error {
	if cls.Category == types.CategoryUncategorized {
		return nil
	}
	if c := e.conflicts.pending(entityID, cls.Category); c != nil && c.State != ConflictResolved {
		return fmt.Errorf("%w: conflict %s on %s/%s", ErrConflictPending, c.ID, entityID, cls.Category)
	}
	return nil
}
