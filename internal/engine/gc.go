package engine

import (
	"context"
	"errors"

	"github.com/scrypster/recall/internal/storage"
)

// GCReport summarizes one garbage-collection pass.
type GCReport struct {
	// SoftDeleted is how many fully decayed memories were newly
	// deprecated in this pass.
	SoftDeleted int `json:"soft_deleted"`

	// Purged is how many deprecated memories past the grace period were
	// permanently removed.
	Purged int `json:"purged"`

	// SkippedUnsafe counts superseded memories held back because their
	// summary could not be confirmed durable.
	SkippedUnsafe int `json:"skipped_unsafe,omitempty"`
}

// CollectGarbage runs the two-phase memory lifecycle sweep for one user.
//
// Phase one soft-deletes memories whose decay projection has reached zero:
// past their TTL, never reinforced to protection, not high-importance
// semantic facts, and past the no-decay grace period. Deprecation is a
// batch update that skips already deprecated rows, so overlapping sweeps
// converge on the same state.
//
// Phase two permanently removes memories deprecated more than the audit
// grace period ago. A memory superseded by consolidation is only purged
// after its summary is confirmed to still exist; losing both the memory
// and its summary would silently lose the claim.
func (e *Engine) CollectGarbage(ctx context.Context, userID string) (*GCReport, error) {
	const op = "CollectGarbage"
	now := e.now()
	report := &GCReport{}

	// Phase one: soft-delete decayed memories.
	active, err := e.store.ListMemories(ctx, storage.MemoryFilter{UserID: userID})
	if err != nil {
		return nil, opErr(op, err)
	}
	var expired []string
	for _, m := range active {
		if m.Protected() || m.SupersededBy != "" {
			continue
		}
		if now.Sub(m.CreatedAt).Hours()/24 <= decayGraceDays {
			continue
		}
		if EffectiveConfidence(m, now) > 0 {
			continue
		}
		expired = append(expired, m.ID)
	}
	if len(expired) > 0 {
		n, err := e.store.DeprecateMemories(ctx, expired, now)
		if err != nil {
			return nil, opErr(op, err)
		}
		report.SoftDeleted = n
	}

	// Phase two: purge deprecated memories past the audit window.
	cutoff := now.AddDate(0, 0, -hardDeleteGraceDays)
	stale, err := e.store.ListMemories(ctx, storage.MemoryFilter{
		UserID:           userID,
		OnlyDeprecated:   true,
		DeprecatedBefore: cutoff,
	})
	if err != nil {
		return nil, opErr(op, err)
	}
	var purgeable []string
	for _, m := range stale {
		if m.SupersededBy != "" {
			if _, err := e.store.GetSummary(ctx, m.SupersededBy); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					report.SkippedUnsafe++
					continue
				}
				return nil, opErr(op, err)
			}
		}
		purgeable = append(purgeable, m.ID)
	}
	if len(purgeable) > 0 {
		n, err := e.store.PurgeMemories(ctx, purgeable)
		if err != nil {
			return nil, opErr(op, err)
		}
		report.Purged = n
	}
	return report, nil
}
