package types

import "time"

// Memory is the atomic unit of stored knowledge: a text fragment with an
// embedding, entity links, and calibrated confidence that decays over time
// unless reinforced.
//
// Lifecycle: born active (confidence = BaseConfidence, no reinforcement) →
// reinforced by access → optionally deprecated by conflict loss or
// consolidation → soft-deleted with a 30-day grace period → hard-deleted.
type Memory struct {
	// Core identification fields
	ID     string     `json:"id"` // Unique identifier (format: mem:uuid)
	UserID string     `json:"user_id"`
	Kind   MemoryKind `json:"kind"`
	Text   string     `json:"text"`

	// ContentHash is the SHA-256 hash of Text, used to detect duplicate
	// writes for the same entity set.
	ContentHash string `json:"content_hash,omitempty"`

	// Embedding is the dense vector for semantic retrieval.
	Embedding []float32 `json:"embedding,omitempty"`

	// EntityLinks are the ids of entities this memory is about.
	EntityLinks []string `json:"entity_links,omitempty"`

	// Importance is a caller-supplied salience score in [0,1].
	Importance float64 `json:"importance"`

	// Confidence is the current stored confidence in [0,1]. It moves with
	// reinforcement, validation, and conflict resolution. Read paths report
	// the decayed projection (see engine.EffectiveConfidence), not this
	// raw value.
	Confidence float64 `json:"confidence"`

	// BaseConfidence is an immutable snapshot of the confidence at
	// creation time. The decay projection is computed from it.
	BaseConfidence float64 `json:"base_confidence"`

	// ReinforcementCount is how many times this memory has been accessed
	// or confirmed. At 3 or more the memory is protected from decay-based
	// deprecation.
	ReinforcementCount int `json:"reinforcement_count"`

	// Deprecated memories are excluded from ranking but retained for
	// audit until the hard-delete grace period elapses.
	Deprecated   bool       `json:"deprecated"`
	DeprecatedAt *time.Time `json:"deprecated_at,omitempty"`

	// SupersededBy names the consolidation summary that replaced this
	// memory. Once set it is immutable; re-pointing is a defect.
	SupersededBy string `json:"superseded_by,omitempty"`

	// TTLDays bounds the decay window: effective confidence reaches the
	// floor TTLDays after creation absent reinforcement.
	TTLDays int `json:"ttl_days"`

	// ValidatedAt resets the decay clock: when set, decay is computed
	// from this instant instead of CreatedAt and confidence snaps to a
	// high fixed value.
	ValidatedAt *time.Time `json:"validated_at,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	// Version supports optimistic concurrency on updates.
	Version int64 `json:"version"`
}

// LinksEntity reports whether the memory references the given entity id.
func (m *Memory) LinksEntity(entityID string) bool {
	for _, id := range m.EntityLinks {
		if id == entityID {
			return true
		}
	}
	return false
}

// Protected reports whether the memory is exempt from decay-based
// deprecation: reinforced at least three times, or a high-importance
// semantic fact.
func (m *Memory) Protected() bool {
	if m.ReinforcementCount >= 3 {
		return true
	}
	return m.Kind == KindSemantic && m.Importance > 0.8
}

// RetrievedMemory pairs a memory with its retrieval score and the decayed
// confidence projection so callers can communicate certainty.
type RetrievedMemory struct {
	Memory              *Memory `json:"memory"`
	Score               float64 `json:"score"`
	EffectiveConfidence float64 `json:"effective_confidence"`
}
