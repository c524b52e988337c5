package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/recall/pkg/types"
)

// seedClusterMemories writes n distinct memories for the entity, one hour
// apart so the oldest-first order is unambiguous.
func seedClusterMemories(t *testing.T, e *Engine, clock *testClock, entityID string, texts []string) []string {
	t.Helper()
	ids := make([]string, len(texts))
	for i, text := range texts {
		res, err := e.CreateMemory(context.Background(), CreateMemoryInput{
			UserID: "user-1", Kind: types.KindEpisodic,
			Text:        text,
			EntityLinks: []string{entityID},
		})
		require.NoError(t, err)
		ids[i] = res.Memory.ID
		clock.Advance(time.Hour)
	}
	return ids
}

func TestConsolidateBelowThresholdIsNoop(t *testing.T) {
	e, _, clock := newTestEngine()
	entity := seedEntity(e, "Kai Media", types.EntityTypeCustomer)

	seedClusterMemories(t, e, clock, entity.ID, []string{
		"Met Kai Media at the trade fair",
		"Kai Media asked for teal packaging",
	})

	ok, err := e.ShouldConsolidate(context.Background(), "user-1", entity.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	summary, err := e.Consolidate(context.Background(), "user-1", entity.ID)
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestConsolidateCoversEverySource(t *testing.T) {
	e, store, clock := newTestEngine()
	entity := seedEntity(e, "Kai Media", types.EntityTypeCustomer)
	ctx := context.Background()

	ids := seedClusterMemories(t, e, clock, entity.ID, []string{
		"Kai Media prefers delivery on Thursday",
		"Reconfirmed the Thursday delivery slot with Kai Media",
		"Kai Media invoice format is PDF",
		"Met Kai Media at the trade fair",
		"Kai Media asked for teal packaging",
	})

	ok, err := e.ShouldConsolidate(ctx, "user-1", entity.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	summary, err := e.Consolidate(ctx, "user-1", entity.ID)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.ElementsMatch(t, ids, summary.SourceMemoryIDs)
	assert.False(t, summary.IsMetaSummary)
	assert.NotEmpty(t, summary.ProseSummary)

	// Every source memory is cited by at least one fact, and no fact is
	// more confident than its strongest source.
	cited := make(map[string]bool)
	for _, fact := range summary.StructuredFacts {
		require.NotEmpty(t, fact.SourceMemoryIDs, fact.Text)
		var ceiling float64
		for _, id := range fact.SourceMemoryIDs {
			cited[id] = true
			src, err := store.GetMemory(ctx, id)
			require.NoError(t, err)
			if src.Confidence > ceiling {
				ceiling = src.Confidence
			}
		}
		assert.LessOrEqual(t, fact.Confidence, ceiling, fact.Text)
	}
	for _, id := range ids {
		assert.True(t, cited[id], "memory %s lost in consolidation", id)
	}

	// The two Thursday delivery statements merged into one fact with
	// both sources.
	var deliveryFacts []types.Fact
	for _, fact := range summary.StructuredFacts {
		if fact.Category == types.CategoryDeliveryDay {
			deliveryFacts = append(deliveryFacts, fact)
		}
	}
	require.Len(t, deliveryFacts, 1)
	assert.Len(t, deliveryFacts[0].SourceMemoryIDs, 2)

	// Source memories are superseded atomically with summary creation.
	for _, id := range ids {
		m, err := store.GetMemory(ctx, id)
		require.NoError(t, err)
		assert.True(t, m.Deprecated)
		assert.Equal(t, summary.ID, m.SupersededBy)
	}
}

func TestConsolidateConsumesOldestFirstUpToCap(t *testing.T) {
	e, _, clock := newTestEngine()
	entity := seedEntity(e, "Kai Media", types.EntityTypeCustomer)
	ctx := context.Background()

	total := maxConsolidationBatch + 2
	oldest := make(map[string]bool, maxConsolidationBatch)
	for i := 0; i < total; i++ {
		m := seedMemoryDirect(t, e, &types.Memory{
			ID:   fmt.Sprintf("mem:log-%03d", i),
			Kind: types.KindEpisodic, Confidence: 0.75,
			Text:        fmt.Sprintf("Kai Media call log entry %d", i),
			EntityLinks: []string{entity.ID},
			CreatedAt:   clock.Now().Add(time.Duration(i) * time.Hour),
		})
		if i < maxConsolidationBatch {
			oldest[m.ID] = true
		}
	}

	summary, err := e.Consolidate(ctx, "user-1", entity.ID)
	require.NoError(t, err)
	require.NotNil(t, summary)
	require.Len(t, summary.SourceMemoryIDs, maxConsolidationBatch)
	for _, id := range summary.SourceMemoryIDs {
		assert.True(t, oldest[id], "memory %s is not among the oldest", id)
	}

	// The two newest memories stay active for the next pass.
	active, err := e.ListEntityMemories(ctx, "user-1", entity.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, []*types.Memory) ([]types.Fact, error) {
	return nil, errors.New("model unavailable")
}

func TestConsolidateFallsBackOnExtractorFailure(t *testing.T) {
	e, _, clock := newTestEngine(WithFactExtractor(failingExtractor{}))
	entity := seedEntity(e, "Kai Media", types.EntityTypeCustomer)

	ids := seedClusterMemories(t, e, clock, entity.ID, []string{
		"Kai Media note one", "Kai Media note two", "Kai Media note three",
		"Kai Media note four", "Kai Media note five",
	})

	summary, err := e.Consolidate(context.Background(), "user-1", entity.ID)
	require.NoError(t, err)
	require.NotNil(t, summary)

	cited := make(map[string]bool)
	for _, fact := range summary.StructuredFacts {
		for _, id := range fact.SourceMemoryIDs {
			cited[id] = true
		}
	}
	for _, id := range ids {
		assert.True(t, cited[id])
	}
}

type sloppyExtractor struct{}

// Extract returns one fact citing only the first memory, with inflated
// confidence and one bogus citation.
func (sloppyExtractor) Extract(_ context.Context, memories []*types.Memory) ([]types.Fact, error) {
	return []types.Fact{{
		Text:            "merged claim",
		Confidence:      1.0,
		SourceMemoryIDs: []string{memories[0].ID, "mem:bogus"},
	}}, nil
}

func TestConsolidatePadsUncitedSources(t *testing.T) {
	e, _, clock := newTestEngine(WithFactExtractor(sloppyExtractor{}))
	entity := seedEntity(e, "Kai Media", types.EntityTypeCustomer)

	ids := seedClusterMemories(t, e, clock, entity.ID, []string{
		"Kai Media note one", "Kai Media note two", "Kai Media note three",
		"Kai Media note four", "Kai Media note five",
	})

	summary, err := e.Consolidate(context.Background(), "user-1", entity.ID)
	require.NoError(t, err)
	require.NotNil(t, summary)

	// The bogus citation was dropped and the inflated confidence clamped
	// to the strongest real source.
	first := summary.StructuredFacts[0]
	assert.Equal(t, []string{ids[0]}, first.SourceMemoryIDs)
	assert.InDelta(t, 0.75, first.Confidence, 0.001)

	// The four uncited memories came through as literal facts.
	require.Len(t, summary.StructuredFacts, 5)
	cited := make(map[string]bool)
	for _, fact := range summary.StructuredFacts {
		for _, id := range fact.SourceMemoryIDs {
			cited[id] = true
		}
	}
	for _, id := range ids {
		assert.True(t, cited[id])
	}
}

func TestMetaConsolidation(t *testing.T) {
	e, store, clock := newTestEngine()
	entity := seedEntity(e, "Kai Media", types.EntityTypeCustomer)
	ctx := context.Background()

	// Five rounds of consolidation leave five summaries behind.
	for round := 0; round < minMetaBatch; round++ {
		texts := make([]string, minConsolidationBatch)
		for i := range texts {
			texts[i] = fmt.Sprintf("Kai Media round %d note %d", round, i)
		}
		seedClusterMemories(t, e, clock, entity.ID, texts)
		summary, err := e.Consolidate(ctx, "user-1", entity.ID)
		require.NoError(t, err)
		require.NotNil(t, summary)
	}

	ok, err := e.ShouldMetaConsolidate(ctx, "user-1", entity.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	inputs, err := e.EntitySummaries(ctx, "user-1", entity.ID)
	require.NoError(t, err)
	require.Len(t, inputs, minMetaBatch)

	meta, err := e.MetaConsolidate(ctx, "user-1", entity.ID)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.True(t, meta.IsMetaSummary)

	// The meta-summary consumes the summaries, not the raw memories, and
	// carries every fact forward with its original provenance.
	wantSources := make([]string, len(inputs))
	factCount := 0
	for i, s := range inputs {
		wantSources[i] = s.ID
		factCount += len(s.StructuredFacts)
	}
	assert.ElementsMatch(t, wantSources, meta.SourceMemoryIDs)
	assert.Len(t, meta.StructuredFacts, factCount)

	// The consumed summaries are deprecated; only the meta-summary is
	// active.
	remaining, err := e.EntitySummaries(ctx, "user-1", entity.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, meta.ID, remaining[0].ID)

	for _, s := range inputs {
		stored, err := store.GetSummary(ctx, s.ID)
		require.NoError(t, err)
		assert.True(t, stored.Deprecated)
	}

	// Below the threshold again: no further meta pass.
	again, err := e.MetaConsolidate(ctx, "user-1", entity.ID)
	require.NoError(t, err)
	assert.Nil(t, again)
}
