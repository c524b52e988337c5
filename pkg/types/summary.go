package types

import "time"

// Fact is one distinct claim inside a consolidation summary. Every fact is
// backed by at least one source memory id and carries a source-weighted
// confidence that never exceeds the maximum source confidence.
type Fact struct {
	Text            string            `json:"text"`
	Confidence      float64           `json:"confidence"`
	SourceMemoryIDs []string          `json:"source_memory_ids"`
	Category        AttributeCategory `json:"category,omitempty"`
}

// MemorySummary is the durable product of consolidating a cluster of
// memories about one entity: an ordered fact list with full provenance plus
// a prose rendering strictly derived from those facts.
//
// Summaries do not expire via the memory TTL path; a summary is deprecated
// only when a later meta-consolidation supersedes it.
type MemorySummary struct {
	ID       string `json:"id"` // Unique identifier (format: sum:uuid)
	UserID   string `json:"user_id"`
	EntityID string `json:"entity_id,omitempty"`

	// StructuredFacts enumerates every distinct claim found in the source
	// set. Lossy merging is a defect: a claim present in any source must
	// appear here with its own confidence and source ids.
	StructuredFacts []Fact `json:"structured_facts"`

	// ProseSummary is generated from StructuredFacts only. No fact may
	// appear in prose that is absent from the structured list.
	ProseSummary string `json:"prose_summary"`

	Embedding []float32 `json:"embedding,omitempty"`

	// SourceMemoryIDs covers every memory consumed by this consolidation.
	SourceMemoryIDs []string `json:"source_memory_ids"`

	// IsMetaSummary marks a summary produced by merging earlier summaries.
	IsMetaSummary bool `json:"is_meta_summary"`

	Deprecated bool      `json:"deprecated"`
	CreatedAt  time.Time `json:"created_at"`
}

// CoversMemory reports whether the summary consumed the given memory id.
func (s *MemorySummary) CoversMemory(memoryID string) bool {
	for _, id := range s.SourceMemoryIDs {
		if id == memoryID {
			return true
		}
	}
	return false
}
