package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// CreateMemoryInput carries the caller-supplied fields for a new memory.
// Confidence zero means "use the kind default".
type CreateMemoryInput struct {
	UserID      string
	Kind        types.MemoryKind
	Text        string
	EntityLinks []string
	Importance  float64
	TTLDays     int
	Confidence  float64
}

// WriteResult is the outcome of CreateMemory. Exactly one of the extra
// signals may fire: Deduplicated when the text was already known and the
// existing memory was reinforced instead, Conflict when the new assertion
// contradicts an active one.
type WriteResult struct {
	Memory       *types.Memory
	Conflict     *Conflict
	Deduplicated bool
}

// CreateMemory stores a new memory. The write path runs under per-entity
// locks: it checks for an unresolved conflict on the same attribute slot
// (which blocks the write), deduplicates identical text, detects
// contradictions against the entity's active memories, and reinforces
// agreeing assertions. Embedding failures degrade the memory to text-only
// retrieval rather than failing the write.
func (e *Engine) CreateMemory(ctx context.Context, input CreateMemoryInput) (*WriteResult, error) {
	const op = "CreateMemory"

	if err := validateCreateInput(&input); err != nil {
		return nil, opErr(op, err)
	}
	for _, id := range input.EntityLinks {
		if _, err := e.store.GetEntity(ctx, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, opErr(op, fmt.Errorf("%w: unknown entity %s", ErrValidation, id))
			}
			return nil, opErr(op, err)
		}
	}

	// Locks in sorted order so concurrent multi-entity writes cannot
	// deadlock.
	links := append([]string(nil), input.EntityLinks...)
	sort.Strings(links)
	for _, id := range links {
		unlock := e.locks.lock(id)
		defer unlock()
	}

	cls := classify(input.Text)
	for _, id := range links {
		if err := e.blockedByConflict(id, cls); err != nil {
			return nil, opErr(op, err)
		}
	}

	hash := contentHash(input.Text)
	if existing, err := e.findDuplicate(ctx, input, hash); err != nil {
		return nil, opErr(op, err)
	} else if existing != nil {
		if err := e.reinforceStored(ctx, existing); err != nil {
			return nil, opErr(op, err)
		}
		return &WriteResult{Memory: existing, Deduplicated: true}, nil
	}

	now := e.now()
	confidence := input.Confidence
	if confidence == 0 {
		confidence = kindBaseConfidence[input.Kind]
	}
	mem := &types.Memory{
		ID:             "mem:" + uuid.NewString(),
		UserID:         input.UserID,
		Kind:           input.Kind,
		Text:           input.Text,
		ContentHash:    hash,
		EntityLinks:    input.EntityLinks,
		Importance:     input.Importance,
		Confidence:     confidence,
		BaseConfidence: confidence,
		TTLDays:        input.TTLDays,
		CreatedAt:      now,
		Version:        1,
	}
	if mem.TTLDays <= 0 {
		mem.TTLDays = defaultTTLDays
	}
	// Embedding is best effort: a failed provider degrades the memory to
	// text-only retrieval, it never blocks the write.
	if e.embedder != nil {
		if vec, err := e.embedder.Embed(ctx, input.Text); err == nil {
			mem.Embedding = vec
		}
	}

	if err := e.store.CreateMemory(ctx, mem); err != nil {
		return nil, opErr(op, err)
	}

	result := &WriteResult{Memory: mem}
	for _, id := range links {
		conflict, agreeing, err := e.detectConflict(ctx, mem, id, cls)
		if err != nil {
			return nil, opErr(op, err)
		}
		if agreeing != nil {
			if err := e.reinforceStored(ctx, agreeing); err != nil {
				return nil, opErr(op, err)
			}
		}
		if conflict != nil {
			result.Conflict = conflict
			break
		}
	}
	return result, nil
}

// GetMemory returns a memory by id, including deprecated ones, with its
// decayed confidence projection.
func (e *Engine) GetMemory(ctx context.Context, id string) (*types.RetrievedMemory, error) {
	const op = "GetMemory"
	mem, err := e.store.GetMemory(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, opErr(op, ErrNotFound)
		}
		return nil, opErr(op, err)
	}
	return &types.RetrievedMemory{
		Memory:              mem,
		EffectiveConfidence: EffectiveConfidence(mem, e.now()),
	}, nil
}

// ListEntityMemories returns the active memories linked to an entity,
// newest first, each with its decayed confidence.
func (e *Engine) ListEntityMemories(ctx context.Context, userID, entityID string) ([]*types.RetrievedMemory, error) {
	const op = "ListEntityMemories"
	memories, err := e.store.ListMemories(ctx, storage.MemoryFilter{UserID: userID, EntityID: entityID})
	if err != nil {
		return nil, opErr(op, err)
	}
	now := e.now()
	out := make([]*types.RetrievedMemory, len(memories))
	for i, m := range memories {
		out[i] = &types.RetrievedMemory{Memory: m, EffectiveConfidence: EffectiveConfidence(m, now)}
	}
	return out, nil
}

// ReinforceMemory records an explicit confirmation of a memory: confidence
// rises by the reinforcement step and the access counters move. At three
// reinforcements the memory stops decaying.
func (e *Engine) ReinforceMemory(ctx context.Context, id string) (*types.Memory, error) {
	const op = "ReinforceMemory"
	mem, err := e.store.GetMemory(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, opErr(op, ErrNotFound)
		}
		return nil, opErr(op, err)
	}
	if err := e.reinforceStored(ctx, mem); err != nil {
		return nil, opErr(op, err)
	}
	return mem, nil
}

// ValidateMemory records that the user re-confirmed the memory is still
// true: confidence snaps to the validation value and the decay clock
// restarts from now.
func (e *Engine) ValidateMemory(ctx context.Context, id string) (*types.Memory, error) {
	const op = "ValidateMemory"
	mem, err := e.store.GetMemory(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, opErr(op, ErrNotFound)
		}
		return nil, opErr(op, err)
	}
	validate(mem, e.now())
	if err := e.store.UpdateMemory(ctx, mem); err != nil {
		return nil, opErr(op, err)
	}
	return mem, nil
}

// DeprecateMemory soft-deletes a memory. The record stays retrievable by
// id for the audit window; garbage collection removes it later.
func (e *Engine) DeprecateMemory(ctx context.Context, id string) error {
	const op = "DeprecateMemory"
	n, err := e.store.DeprecateMemories(ctx, []string{id}, e.now())
	if err != nil {
		return opErr(op, err)
	}
	if n == 0 {
		// Already deprecated, or missing. Distinguish for the caller.
		if _, err := e.store.GetMemory(ctx, id); errors.Is(err, storage.ErrNotFound) {
			return opErr(op, ErrNotFound)
		} else if err != nil {
			return opErr(op, err)
		}
	}
	return nil
}

// reinforceStored applies one reinforcement with a single optimistic
// retry. Reinforcement is commutative, so losing a version race once and
// replaying on a fresh read is safe.
func (e *Engine) reinforceStored(ctx context.Context, mem *types.Memory) error {
	reinforce(mem, e.now())
	err := e.store.UpdateMemory(ctx, mem)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrVersionConflict) {
		return err
	}
	fresh, err := e.store.GetMemory(ctx, mem.ID)
	if err != nil {
		return err
	}
	reinforce(fresh, e.now())
	if err := e.store.UpdateMemory(ctx, fresh); err != nil {
		return err
	}
	*mem = *fresh
	return nil
}

// findDuplicate looks for an active memory with identical text for the
// same user and entity set.
func (e *Engine) findDuplicate(ctx context.Context, input CreateMemoryInput, hash string) (*types.Memory, error) {
	filter := storage.MemoryFilter{UserID: input.UserID}
	if len(input.EntityLinks) > 0 {
		filter.EntityID = input.EntityLinks[0]
	}
	memories, err := e.store.ListMemories(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, m := range memories {
		if m.ContentHash == hash && sameLinks(m.EntityLinks, input.EntityLinks) {
			return m, nil
		}
	}
	return nil, nil
}

func validateCreateInput(input *CreateMemoryInput) error {
	input.Text = strings.TrimSpace(input.Text)
	if input.UserID == "" {
		return fmt.Errorf("%w: user id required", ErrValidation)
	}
	if input.Text == "" {
		return fmt.Errorf("%w: empty text", ErrValidation)
	}
	if !types.IsValidMemoryKind(input.Kind) {
		return fmt.Errorf("%w: unknown memory kind %q", ErrValidation, input.Kind)
	}
	if input.Importance < 0 || input.Importance > 1 {
		return fmt.Errorf("%w: importance %v out of range", ErrValidation, input.Importance)
	}
	if input.Confidence < 0 || input.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range", ErrValidation, input.Confidence)
	}
	return nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	return hex.EncodeToString(sum[:])
}

func sameLinks(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			return false
		}
	}
	return true
}
