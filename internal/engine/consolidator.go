package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

const (
	// minConsolidationBatch is the number of active memories an entity
	// must accumulate before consolidation runs.
	minConsolidationBatch = 5

	// maxConsolidationBatch caps one consolidation pass; older memories
	// are consumed first.
	maxConsolidationBatch = 50

	// minMetaBatch is the number of active summaries that triggers
	// meta-consolidation.
	minMetaBatch = 5

	// recentWindowDays bounds how far back a memory still counts as new
	// accumulation when the sweeper decides whether to consolidate.
	recentWindowDays = 7
)

// FactExtractor turns a cluster of memories into distinct facts. Every
// returned fact must cite source memory ids from the input cluster;
// consolidation pads any memory the extractor missed with a literal fact,
// so extraction can be lossy in phrasing but never in coverage.
type FactExtractor interface {
	Extract(ctx context.Context, memories []*types.Memory) ([]types.Fact, error)
}

// ProseGenerator renders structured facts as a short prose summary. The
// prose must be derived from the given facts only.
type ProseGenerator interface {
	GenerateProse(ctx context.Context, facts []types.Fact) (string, error)
}

// ShouldConsolidate reports whether a maintenance sweep should consolidate
// the entity. It fires when the active set has outgrown one consolidation
// batch, or when a full batch of memories accumulated inside the recent
// window since the last summary. A backlog of only stale memories waits for
// an explicit Consolidate call instead of churning every sweep.
func (e *Engine) ShouldConsolidate(ctx context.Context, userID, entityID string) (bool, error) {
	const op = "ShouldConsolidate"

	memories, err := e.store.ListMemories(ctx, storage.MemoryFilter{UserID: userID, EntityID: entityID})
	if err != nil {
		return false, opErr(op, err)
	}
	if len(memories) > maxConsolidationBatch {
		return true, nil
	}
	if len(memories) < minConsolidationBatch {
		return false, nil
	}

	var watermark time.Time
	summaries, err := e.store.ListSummaries(ctx, entityID, true)
	if err != nil {
		return false, opErr(op, err)
	}
	for _, s := range summaries {
		if s.UserID == userID && s.CreatedAt.After(watermark) {
			watermark = s.CreatedAt
		}
	}

	cutoff := e.now().AddDate(0, 0, -recentWindowDays)
	fresh := 0
	for _, m := range memories {
		if m.CreatedAt.After(watermark) && m.CreatedAt.After(cutoff) {
			fresh++
		}
	}
	return fresh >= minConsolidationBatch, nil
}

// Consolidate merges an entity's oldest active memories into a durable
// summary: every distinct claim becomes a structured fact with source ids
// and confidence, prose is rendered from the facts, and the source
// memories are atomically marked superseded by the new summary. Returns
// nil without error when the entity is below the consolidation threshold.
func (e *Engine) Consolidate(ctx context.Context, userID, entityID string) (*types.MemorySummary, error) {
	const op = "Consolidate"

	if userID == "" || entityID == "" {
		return nil, opErr(op, fmt.Errorf("%w: user and entity id required", ErrValidation))
	}

	unlock := e.locks.lock(entityID)
	defer unlock()

	memories, err := e.store.ListMemories(ctx, storage.MemoryFilter{
		UserID:      userID,
		EntityID:    entityID,
		OldestFirst: true,
		Limit:       maxConsolidationBatch,
	})
	if err != nil {
		return nil, opErr(op, err)
	}
	if len(memories) < minConsolidationBatch {
		return nil, nil
	}

	facts, err := e.extractFacts(ctx, memories)
	if err != nil {
		return nil, opErr(op, err)
	}

	summary := &types.MemorySummary{
		ID:              "sum:" + uuid.NewString(),
		UserID:          userID,
		EntityID:        entityID,
		StructuredFacts: facts,
		SourceMemoryIDs: memoryIDs(memories),
		CreatedAt:       e.now(),
	}
	summary.ProseSummary = e.renderProse(ctx, facts)
	if e.embedder != nil {
		if vec, err := e.embedder.Embed(ctx, summary.ProseSummary); err == nil {
			summary.Embedding = vec
		}
	}

	if err := e.store.CreateSummary(ctx, summary); err != nil {
		return nil, opErr(op, err)
	}
	return summary, nil
}

// ShouldMetaConsolidate reports whether the entity has accumulated enough
// active summaries for a meta-consolidation pass.
func (e *Engine) ShouldMetaConsolidate(ctx context.Context, userID, entityID string) (bool, error) {
	summaries, err := e.store.ListSummaries(ctx, entityID, false)
	if err != nil {
		return false, opErr("ShouldMetaConsolidate", err)
	}
	return countUserSummaries(summaries, userID) >= minMetaBatch, nil
}

// MetaConsolidate merges an entity's accumulated summaries into one
// meta-summary. Facts are carried over with their original source memory
// ids intact, deduplicated on identical text by keeping the higher
// confidence. The consumed summaries are deprecated; the meta-summary's
// own source list names them. Returns nil without error when below the
// threshold.
func (e *Engine) MetaConsolidate(ctx context.Context, userID, entityID string) (*types.MemorySummary, error) {
	const op = "MetaConsolidate"

	unlock := e.locks.lock(entityID)
	defer unlock()

	all, err := e.store.ListSummaries(ctx, entityID, false)
	if err != nil {
		return nil, opErr(op, err)
	}
	var inputs []*types.MemorySummary
	for _, s := range all {
		if s.UserID == userID {
			inputs = append(inputs, s)
		}
	}
	if len(inputs) < minMetaBatch {
		return nil, nil
	}
	sort.SliceStable(inputs, func(i, j int) bool {
		return inputs[i].CreatedAt.Before(inputs[j].CreatedAt)
	})

	facts := mergeFacts(inputs)
	meta := &types.MemorySummary{
		ID:              "sum:" + uuid.NewString(),
		UserID:          userID,
		EntityID:        entityID,
		StructuredFacts: facts,
		SourceMemoryIDs: summaryIDs(inputs),
		IsMetaSummary:   true,
		CreatedAt:       e.now(),
	}
	meta.ProseSummary = e.renderProse(ctx, facts)
	if e.embedder != nil {
		if vec, err := e.embedder.Embed(ctx, meta.ProseSummary); err == nil {
			meta.Embedding = vec
		}
	}

	if err := e.store.CreateSummary(ctx, meta); err != nil {
		return nil, opErr(op, err)
	}
	for _, s := range inputs {
		if err := e.store.DeprecateSummary(ctx, s.ID); err != nil {
			return nil, opErr(op, err)
		}
	}
	return meta, nil
}

// EntitySummaries returns the active summaries for an entity.
func (e *Engine) EntitySummaries(ctx context.Context, userID, entityID string) ([]*types.MemorySummary, error) {
	const op = "EntitySummaries"
	all, err := e.store.ListSummaries(ctx, entityID, false)
	if err != nil {
		return nil, opErr(op, err)
	}
	var out []*types.MemorySummary
	for _, s := range all {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

// extractFacts runs the configured extractor and enforces the coverage and
// confidence invariants: every source memory is cited by at least one fact
// (missed ones become literal facts), and no fact is more confident than
// its most confident source.
func (e *Engine) extractFacts(ctx context.Context, memories []*types.Memory) ([]types.Fact, error) {
	facts, err := e.extractor.Extract(ctx, memories)
	if err != nil {
		// Extraction quality degrades; coverage must not. Fall back to
		// the deterministic extractor.
		facts, err = (&GroupingExtractor{}).Extract(ctx, memories)
		if err != nil {
			return nil, err
		}
	}

	byID := make(map[string]*types.Memory, len(memories))
	for _, m := range memories {
		byID[m.ID] = m
	}

	covered := make(map[string]bool, len(memories))
	kept := facts[:0]
	for _, f := range facts {
		var ceiling float64
		var sources []string
		for _, id := range f.SourceMemoryIDs {
			src, ok := byID[id]
			if !ok {
				continue
			}
			sources = append(sources, id)
			ceiling = math.Max(ceiling, src.Confidence)
		}
		if len(sources) == 0 || strings.TrimSpace(f.Text) == "" {
			continue
		}
		f.SourceMemoryIDs = sources
		f.Confidence = clamp01(math.Min(f.Confidence, ceiling))
		kept = append(kept, f)
		for _, id := range sources {
			covered[id] = true
		}
	}

	for _, m := range memories {
		if !covered[m.ID] {
			kept = append(kept, types.Fact{
				Text:            m.Text,
				Confidence:      clamp01(m.Confidence),
				SourceMemoryIDs: []string{m.ID},
				Category:        classify(m.Text).Category,
			})
		}
	}
	return kept, nil
}

// renderProse uses the configured generator when one exists, falling back
// to a structural rendering of the facts.
func (e *Engine) renderProse(ctx context.Context, facts []types.Fact) string {
	if e.prose != nil {
		if text, err := e.prose.GenerateProse(ctx, facts); err == nil && strings.TrimSpace(text) != "" {
			return text
		}
	}
	lines := make([]string, len(facts))
	for i, f := range facts {
		lines[i] = f.Text
	}
	return strings.Join(lines, " ")
}

// GroupingExtractor is the deterministic fact extractor: memories that
// classify to the same attribute category and value merge into one fact;
// everything else passes through as a literal fact.
type GroupingExtractor struct{}

// Extract implements FactExtractor.
func (GroupingExtractor) Extract(_ context.Context, memories []*types.Memory) ([]types.Fact, error) {
	type group struct {
		fact *types.Fact
	}
	groups := make(map[Classification]*group)
	var order []Classification
	var literals []types.Fact

	for _, m := range memories {
		cls := classify(m.Text)
		if cls.Category == types.CategoryUncategorized {
			literals = append(literals, types.Fact{
				Text:            m.Text,
				Confidence:      m.Confidence,
				SourceMemoryIDs: []string{m.ID},
				Category:        types.CategoryUncategorized,
			})
			continue
		}
		g, ok := groups[cls]
		if !ok {
			g = &group{fact: &types.Fact{
				Text:            m.Text,
				Confidence:      m.Confidence,
				SourceMemoryIDs: []string{m.ID},
				Category:        cls.Category,
			}}
			groups[cls] = g
			order = append(order, cls)
			continue
		}
		g.fact.SourceMemoryIDs = append(g.fact.SourceMemoryIDs, m.ID)
		if m.Confidence > g.fact.Confidence {
			// The strongest phrasing represents the group.
			g.fact.Confidence = m.Confidence
			g.fact.Text = m.Text
		}
	}

	facts := make([]types.Fact, 0, len(order)+len(literals))
	for _, cls := range order {
		facts = append(facts, *groups[cls].fact)
	}
	facts = append(facts, literals...)
	return facts, nil
}

// mergeFacts concatenates the fact lists of the input summaries,
// deduplicating identical texts by keeping the higher confidence and the
// union of source ids.
func mergeFacts(summaries []*types.MemorySummary) []types.Fact {
	var order []string
	byText := make(map[string]*types.Fact)
	for _, s := range summaries {
		for _, f := range s.StructuredFacts {
			key := strings.ToLower(strings.TrimSpace(f.Text))
			existing, ok := byText[key]
			if !ok {
				copied := f
				copied.SourceMemoryIDs = append([]string(nil), f.SourceMemoryIDs...)
				byText[key] = &copied
				order = append(order, key)
				continue
			}
			existing.SourceMemoryIDs = unionIDs(existing.SourceMemoryIDs, f.SourceMemoryIDs)
			if f.Confidence > existing.Confidence {
				existing.Confidence = f.Confidence
			}
		}
	}
	out := make([]types.Fact, len(order))
	for i, key := range order {
		out[i] = *byText[key]
	}
	return out
}

func unionIDs(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			a = append(a, id)
			seen[id] = true
		}
	}
	return a
}

func memoryIDs(memories []*types.Memory) []string {
	ids := make([]string, len(memories))
	for i, m := range memories {
		ids[i] = m.ID
	}
	return ids
}

func summaryIDs(summaries []*types.MemorySummary) []string {
	ids := make([]string, len(summaries))
	for i, s := range summaries {
		ids[i] = s.ID
	}
	return ids
}

func countUserSummaries(summaries []*types.MemorySummary, userID string) int {
	n := 0
	for _, s := range summaries {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

var _ FactExtractor = GroupingExtractor{}
