package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

func TestCollectGarbageTwoPhase(t *testing.T) {
	e, store, clock := newTestEngine()
	ctx := context.Background()

	expired := seedMemoryDirect(t, e, &types.Memory{
		ID: "mem:expired", Kind: types.KindEpisodic, Text: "stale detail",
		Confidence: 0.75, TTLDays: 90,
	})
	alive := seedMemoryDirect(t, e, &types.Memory{
		ID: "mem:alive", Kind: types.KindEpisodic, Text: "recent detail",
		Confidence: 0.75, TTLDays: 365,
	})

	clock.AdvanceDays(120)
	report, err := e.CollectGarbage(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.SoftDeleted)
	assert.Zero(t, report.Purged)

	// Soft-deleted, not gone: the audit window applies first.
	m, err := store.GetMemory(ctx, expired.ID)
	require.NoError(t, err)
	assert.True(t, m.Deprecated)

	live, err := store.GetMemory(ctx, alive.ID)
	require.NoError(t, err)
	assert.False(t, live.Deprecated)

	// A second pass finds nothing new.
	report, err = e.CollectGarbage(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, report.SoftDeleted)
	assert.Zero(t, report.Purged)

	// Past the audit window the record is purged for good.
	clock.AdvanceDays(hardDeleteGraceDays + 1)
	report, err = e.CollectGarbage(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Purged)

	_, err = store.GetMemory(ctx, expired.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCollectGarbageSparesProtectedMemories(t *testing.T) {
	e, store, clock := newTestEngine()
	ctx := context.Background()

	reinforced := seedMemoryDirect(t, e, &types.Memory{
		ID: "mem:reinforced", Kind: types.KindEpisodic, Text: "used constantly",
		Confidence: 0.85, TTLDays: 90, ReinforcementCount: 3,
	})
	important := seedMemoryDirect(t, e, &types.Memory{
		ID: "mem:important", Kind: types.KindSemantic, Text: "critical account fact",
		Confidence: 0.95, Importance: 0.9, TTLDays: 90,
	})

	clock.AdvanceDays(120)
	report, err := e.CollectGarbage(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, report.SoftDeleted)

	for _, id := range []string{reinforced.ID, important.ID} {
		m, err := store.GetMemory(ctx, id)
		require.NoError(t, err)
		assert.False(t, m.Deprecated, id)
	}
}

func TestCollectGarbageGuardsSupersededMemories(t *testing.T) {
	e, store, clock := newTestEngine()
	ctx := context.Background()

	orphan := seedMemoryDirect(t, e, &types.Memory{
		ID: "mem:orphan", Kind: types.KindEpisodic, Text: "summary went missing",
		Confidence: 0.75,
	})
	covered := seedMemoryDirect(t, e, &types.Memory{
		ID: "mem:covered", Kind: types.KindEpisodic, Text: "summary still exists",
		Confidence: 0.75,
	})

	require.NoError(t, store.CreateSummary(ctx, &types.MemorySummary{
		ID: "sum:durable", UserID: "user-1", EntityID: "ent:customer:x",
		StructuredFacts: []types.Fact{{
			Text: "summary still exists", Confidence: 0.75,
			SourceMemoryIDs: []string{covered.ID},
		}},
		ProseSummary:    "summary still exists",
		SourceMemoryIDs: []string{covered.ID},
		CreatedAt:       clock.Now(),
	}))

	// Fake the orphan: deprecated and superseded by a summary id that
	// was never written.
	m, err := store.GetMemory(ctx, orphan.ID)
	require.NoError(t, err)
	m.SupersededBy = "sum:vanished"
	require.NoError(t, store.UpdateMemory(ctx, m))
	_, err = store.DeprecateMemories(ctx, []string{orphan.ID}, clock.Now())
	require.NoError(t, err)

	clock.AdvanceDays(hardDeleteGraceDays + 1)
	report, err := e.CollectGarbage(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Purged)
	assert.Equal(t, 1, report.SkippedUnsafe)

	// The covered memory is gone, the orphan held for operator review.
	_, err = store.GetMemory(ctx, covered.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	held, err := store.GetMemory(ctx, orphan.ID)
	require.NoError(t, err)
	assert.True(t, held.Deprecated)
}

func TestSweeperRunsFullCycle(t *testing.T) {
	e, store, clock := newTestEngine()
	entity := seedEntity(e, "Kai Media", types.EntityTypeCustomer)
	ctx := context.Background()

	for i := 0; i < minConsolidationBatch; i++ {
		seedMemoryDirect(t, e, &types.Memory{
			ID: "mem:sweep-" + string(rune('a'+i)), Kind: types.KindEpisodic,
			Text:        "Kai Media sweep note " + string(rune('a'+i)),
			Confidence:  0.75,
			EntityLinks: []string{entity.ID},
		})
	}
	seedMemoryDirect(t, e, &types.Memory{
		ID: "mem:sweep-expired", Kind: types.KindEpisodic, Text: "expired loose note",
		Confidence: 0.75, TTLDays: 30, CreatedAt: clock.Now().AddDate(0, 0, -60),
	})

	sweeper := NewSweeper(e, []string{"user-1"}, 0, 0)
	sweeper.Sweep(ctx)

	// The loose note was soft-deleted and the entity consolidated.
	m, err := store.GetMemory(ctx, "mem:sweep-expired")
	require.NoError(t, err)
	assert.True(t, m.Deprecated)

	summaries, err := e.EntitySummaries(ctx, "user-1", entity.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Len(t, summaries[0].SourceMemoryIDs, minConsolidationBatch)
}

func TestSweepConsolidatesOnlyFreshAccumulation(t *testing.T) {
	e, _, clock := newTestEngine()
	entity := seedEntity(e, "Kai Media", types.EntityTypeCustomer)
	ctx := context.Background()

	// A full batch of month-old memories is not new accumulation; the
	// sweep leaves it for an explicit consolidation call.
	for i := 0; i < minConsolidationBatch; i++ {
		seedMemoryDirect(t, e, &types.Memory{
			ID: "mem:stale-" + string(rune('a'+i)), Kind: types.KindEpisodic,
			Text:        "Kai Media old note " + string(rune('a'+i)),
			Confidence:  0.75,
			EntityLinks: []string{entity.ID},
			CreatedAt:   clock.Now().AddDate(0, 0, -30),
		})
	}

	due, err := e.ShouldConsolidate(ctx, "user-1", entity.ID)
	require.NoError(t, err)
	assert.False(t, due)

	sweeper := NewSweeper(e, []string{"user-1"}, 0, 0)
	sweeper.Sweep(ctx)

	summaries, err := e.EntitySummaries(ctx, "user-1", entity.ID)
	require.NoError(t, err)
	assert.Empty(t, summaries)

	// A batch arriving inside the past week makes the pass due, and the
	// pass then consumes the stale backlog too, oldest first.
	for i := 0; i < minConsolidationBatch; i++ {
		seedMemoryDirect(t, e, &types.Memory{
			ID: "mem:fresh-" + string(rune('a'+i)), Kind: types.KindEpisodic,
			Text:        "Kai Media new note " + string(rune('a'+i)),
			Confidence:  0.75,
			EntityLinks: []string{entity.ID},
		})
	}

	due, err = e.ShouldConsolidate(ctx, "user-1", entity.ID)
	require.NoError(t, err)
	assert.True(t, due)

	sweeper.Sweep(ctx)

	summaries, err = e.EntitySummaries(ctx, "user-1", entity.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Len(t, summaries[0].SourceMemoryIDs, 2*minConsolidationBatch)
}

func TestShouldConsolidateForcesOversizedBacklog(t *testing.T) {
	e, _, clock := newTestEngine()
	entity := seedEntity(e, "Kai Media", types.EntityTypeCustomer)
	ctx := context.Background()

	// Even with nothing recent, an active set larger than one batch is
	// always due.
	for i := 0; i < maxConsolidationBatch+1; i++ {
		seedMemoryDirect(t, e, &types.Memory{
			ID: fmt.Sprintf("mem:bulk-%03d", i), Kind: types.KindEpisodic,
			Text:        fmt.Sprintf("Kai Media bulk note %03d", i),
			Confidence:  0.75,
			EntityLinks: []string{entity.ID},
			CreatedAt:   clock.Now().AddDate(0, 0, -60),
		})
	}

	due, err := e.ShouldConsolidate(ctx, "user-1", entity.ID)
	require.NoError(t, err)
	assert.True(t, due)
}
