// Package engine implements the memory and entity resolution engine: mention
// resolution against the entity directory, the memory ledger with calibrated
// decaying confidence, relevance-ranked retrieval, conflict detection and
// resolution, and consolidation of memory clusters into durable summaries.
package engine

import (
	"sync/atomic"
	"time"

	"github.com/scrypster/recall/internal/similarity"
	"github.com/scrypster/recall/internal/storage"
)

// Engine is the caller-facing facade over the memory and entity resolution
// machinery. All mutable state lives in the injected store; the engine
// itself holds only per-entity locks, the pending-conflict registry, and
// counters. Safe for concurrent use.
type Engine struct {
	store    storage.Store
	embedder similarity.Provider

	extractor FactExtractor
	prose     ProseGenerator

	locks     *entityLocks
	conflicts *conflictRegistry

	now func() time.Time

	// degradedRetrievals counts retrievals served without the similarity
	// term because the embedding provider was unavailable.
	degradedRetrievals atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmbedder sets the similarity provider used for memory embeddings and
// retrieval. Without one, retrieval ranks by recency, importance, and
// reinforcement only.
func WithEmbedder(p similarity.Provider) Option {
	return func(e *Engine) { e.embedder = p }
}

// WithFactExtractor sets the fact extractor used by consolidation. Without
// one, the deterministic grouping extractor is used.
func WithFactExtractor(x FactExtractor) Option {
	return func(e *Engine) { e.extractor = x }
}

// WithProseGenerator sets the generator used to render a summary's
// structured facts as prose. Without one, or when generation fails, the
// structural rendering is used.
func WithProseGenerator(g ProseGenerator) Option {
	return func(e *Engine) { e.prose = g }
}

// WithClock overrides the engine's time source. Tests use this to exercise
// decay and grace periods.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over the given store.
func New(store storage.Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		locks:     newEntityLocks(),
		conflicts: newConflictRegistry(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.extractor == nil {
		e.extractor = &GroupingExtractor{}
	}
	return e
}

// DegradedRetrievals reports how many retrievals were served in degraded
// mode since the engine started.
func (e *Engine) DegradedRetrievals() uint64 {
	return e.degradedRetrievals.Load()
}
