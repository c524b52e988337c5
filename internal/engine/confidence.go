package engine

import (
	"math"
	"time"

	"github.com/scrypster/recall/pkg/types"
)

const (
	// reinforcementBoost is added to stored confidence on each access,
	// capped at 1.0.
	reinforcementBoost = 0.02

	// protectedReinforcements is the access count at which a memory
	// becomes exempt from decay.
	protectedReinforcements = 3

	// validationConfidence is the value confidence snaps to when a
	// memory is explicitly re-validated; the decay clock restarts.
	validationConfidence = 0.90

	// decayGraceDays is the age below which no decay applies.
	decayGraceDays = 7

	// hardDeleteGraceDays is how long a deprecated memory is retained
	// before garbage collection may remove it permanently.
	hardDeleteGraceDays = 30

	// defaultTTLDays bounds the decay window when a memory carries none.
	defaultTTLDays = 180
)

// Default creation confidence per memory kind. Semantic memories come from
// explicit user statements; the other kinds are inferred.
var kindBaseConfidence = map[types.MemoryKind]float64{
	types.KindSemantic:   0.95,
	types.KindProcedural: 0.80,
	types.KindEpisodic:   0.75,
	types.KindPattern:    0.70,
}

// EffectiveConfidence is the single authoritative decay computation: the
// confidence a memory carries at read time. The stored confidence is a
// ceiling; for unprotected memories older than the grace period the linear
// TTL projection applies:
//
//	effective = anchor_confidence × max(0, 1 − days_since_anchor/ttl_days)
//
// where the anchor is creation (base confidence) or the last validation
// event (validation confidence), whichever is later. Protected memories
// (3+ reinforcements) do not decay.
func EffectiveConfidence(m *types.Memory, now time.Time) float64 {
	stored := clamp01(m.Confidence)
	if m.ReinforcementCount >= protectedReinforcements {
		return stored
	}

	anchor := m.CreatedAt
	base := clamp01(m.BaseConfidence)
	if m.ValidatedAt != nil && m.ValidatedAt.After(anchor) {
		anchor = *m.ValidatedAt
		base = validationConfidence
	}

	days := now.Sub(anchor).Hours() / 24
	if days <= decayGraceDays {
		return stored
	}

	ttl := float64(m.TTLDays)
	if ttl <= 0 {
		ttl = defaultTTLDays
	}

	factor := math.Max(0, 1-days/ttl)
	return math.Min(stored, base*factor)
}

// reinforce applies one access event to the memory in place.
func reinforce(m *types.Memory, now time.Time) {
	m.Confidence = math.Min(1.0, m.Confidence+reinforcementBoost)
	m.ReinforcementCount++
	t := now
	m.LastAccessedAt = &t
}

// validate snaps confidence back to the validation value and restarts the
// decay clock.
func validate(m *types.Memory, now time.Time) {
	m.Confidence = validationConfidence
	t := now
	m.ValidatedAt = &t
}

func clamp01(v float64) float64 {
	return math.Min(1.0, math.Max(0.0, v))
}
