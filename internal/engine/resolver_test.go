package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

func TestResolveEntityExactMatch(t *testing.T) {
	e, store, _ := newTestEngine()
	entity := seedEntity(e, "Delta Industries", types.EntityTypeCustomer)

	result, err := e.ResolveEntity(context.Background(), "Delta Industries", nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeResolved, result.Outcome)
	assert.Equal(t, entity.ID, result.EntityID)
	assert.InDelta(t, 0.95, result.Confidence, 0.001)

	// Exact match is case-insensitive and records the mention.
	result, err = e.ResolveEntity(context.Background(), "delta industries", nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeResolved, result.Outcome)

	updated, err := store.GetEntity(context.Background(), entity.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.MentionCount)
	assert.NotNil(t, updated.LastMentionedAt)
}

func TestResolveEntityNotFound(t *testing.T) {
	e, _, _ := newTestEngine()
	seedEntity(e, "Delta Industries", types.EntityTypeCustomer)

	result, err := e.ResolveEntity(context.Background(), "Zenith Corp", nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeNotFound, result.Outcome)
	assert.Empty(t, result.EntityID)
	assert.Empty(t, result.Candidates)
}

func TestResolveEntityEmptyMention(t *testing.T) {
	e, _, _ := newTestEngine()
	_, err := e.ResolveEntity(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResolveEntityDisambiguationByContext(t *testing.T) {
	e, store, clock := newTestEngine()
	industries := seedEntity(e, "Delta Industries", types.EntityTypeCustomer)
	logistics := seedEntity(e, "Delta Logistics", types.EntityTypeVendor)

	// Delta Industries is hot: mentioned this turn, frequently, with
	// open work. Delta Logistics is cold.
	industries.HasActiveWork = true
	require.NoError(t, store.UpdateEntity(context.Background(), industries))
	for i := 0; i < 20; i++ {
		require.NoError(t, store.RecordMention(context.Background(), industries.ID, clock.Now()))
	}
	conv := &types.ConversationContext{
		UserID:            "user-1",
		TurnsSinceMention: map[string]int{industries.ID: 0},
	}

	result, err := e.ResolveEntity(context.Background(), "Delta", conv)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeResolved, result.Outcome)
	assert.Equal(t, industries.ID, result.EntityID)
	assert.True(t, result.NeedsAliasConfirmation)
	assert.GreaterOrEqual(t, result.Confidence, 0.90)
	assert.LessOrEqual(t, result.Confidence, 0.95)

	// The full slate is returned for audit, winner first.
	require.Len(t, result.Candidates, 2)
	assert.Equal(t, industries.ID, result.Candidates[0].EntityID)
	assert.Equal(t, logistics.ID, result.Candidates[1].EntityID)
	assert.Greater(t, result.Candidates[0].Score, result.Candidates[1].Score)
}

func TestResolveEntityPrefersDominantRecencyAndFrequency(t *testing.T) {
	e, store, clock := newTestEngine()
	industries := seedEntity(e, "Delta Industries", types.EntityTypeCustomer)
	corp := seedEntity(e, "Delta Corp", types.EntityTypeCustomer)
	ctx := context.Background()

	// Delta Industries: fifteen mentions, the latest just now. Delta
	// Corp: mentioned once, 90 days ago. No conversation context and no
	// open work; the history alone must settle "Delta".
	for i := 0; i < 15; i++ {
		require.NoError(t, store.RecordMention(ctx, industries.ID, clock.Now()))
	}
	require.NoError(t, store.RecordMention(ctx, corp.ID, clock.Now().AddDate(0, 0, -90)))

	result, err := e.ResolveEntity(ctx, "Delta", nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeResolved, result.Outcome)
	assert.Equal(t, industries.ID, result.EntityID)
	assert.True(t, result.NeedsAliasConfirmation)
	assert.InDelta(t, 0.93, result.Confidence, 0.01)

	require.Len(t, result.Candidates, 2)
	assert.Equal(t, corp.ID, result.Candidates[1].EntityID)
	assert.Greater(t, result.Candidates[0].Score, result.Candidates[1].Score)
}

func TestDisambiguationScoreMonotonicInMentionFrequency(t *testing.T) {
	e, _, clock := newTestEngine()
	now := clock.Now()

	competitor := &scoredCandidate{
		entity: &types.Entity{ID: "ent:rival", MentionCount: 10},
		sim:    0.95,
	}
	rivalScore := e.disambiguationScore(competitor, nil, now)

	// Raising an entity's mention count never lowers its score relative
	// to a fixed competitor.
	prevLead := -1.0
	for _, count := range []int{0, 1, 5, 10, 15, 20, 40, 100} {
		c := &scoredCandidate{
			entity: &types.Entity{ID: "ent:rising", MentionCount: count},
			sim:    0.95,
		}
		lead := e.disambiguationScore(c, nil, now) - rivalScore
		assert.GreaterOrEqual(t, lead, prevLead, "mention count %d", count)
		prevLead = lead
	}
}

func TestResolveEntityAmbiguousWithoutContext(t *testing.T) {
	e, _, _ := newTestEngine()
	seedEntity(e, "Delta Industries", types.EntityTypeCustomer)
	seedEntity(e, "Delta Logistics", types.EntityTypeVendor)

	// Two equally plausible candidates and no contextual signal: the
	// resolver must not guess.
	result, err := e.ResolveEntity(context.Background(), "Delta", nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeAmbiguous, result.Outcome)
	assert.Empty(t, result.EntityID)
	assert.Len(t, result.Candidates, 2)
}

func TestResolveEntityTypoNeedsConfirmation(t *testing.T) {
	e, _, _ := newTestEngine()
	entity := seedEntity(e, "Delta Industries", types.EntityTypeCustomer)
	ctx := context.Background()

	// "Dleta" fuzzy-matches but not strongly enough for silent
	// acceptance on a cold entity.
	result, err := e.ResolveEntity(ctx, "Dleta", nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeAmbiguous, result.Outcome)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, entity.ID, result.Candidates[0].EntityID)

	// The user confirms; the surface form becomes a confirmed alias.
	require.NoError(t, e.ConfirmResolution(ctx, "Dleta", entity.ID, 0.89))

	// The second occurrence resolves silently through the alias.
	result, err = e.ResolveEntity(ctx, "Dleta", nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeResolved, result.Outcome)
	assert.Equal(t, entity.ID, result.EntityID)
	assert.InDelta(t, 0.89, result.Confidence, 0.001)
}

func TestConfirmResolutionPersistsAlias(t *testing.T) {
	e, store, _ := newTestEngine()
	entity := seedEntity(e, "Kai Media", types.EntityTypeCustomer)
	ctx := context.Background()

	require.NoError(t, e.ConfirmResolution(ctx, "KM", entity.ID, 0.85))

	alias, err := store.FindAlias(ctx, "km")
	require.NoError(t, err)
	assert.Equal(t, entity.ID, alias.EntityID)
	assert.True(t, alias.UserConfirmed)
	assert.InDelta(t, 0.85, alias.Confidence, 0.001)

	// Confirming again upgrades in place instead of failing on the
	// duplicate.
	require.NoError(t, e.ConfirmResolution(ctx, "KM", entity.ID, 0.85))
	alias, err = store.FindAlias(ctx, "km")
	require.NoError(t, err)
	assert.Equal(t, 2, alias.UsageCount)
}

func TestConfirmResolutionUnknownEntity(t *testing.T) {
	e, _, _ := newTestEngine()
	err := e.ConfirmResolution(context.Background(), "KM", "ent:customer:missing", 0.85)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveEntityAliasReinforcement(t *testing.T) {
	e, store, clock := newTestEngine()
	entity := seedEntity(e, "Kai Media", types.EntityTypeCustomer)
	ctx := context.Background()

	require.NoError(t, e.ConfirmResolution(ctx, "KM", entity.ID, 0.9))
	clock.Advance(time.Hour)

	_, err := e.ResolveEntity(ctx, "KM", nil)
	require.NoError(t, err)

	alias, err := store.FindAlias(ctx, "km")
	require.NoError(t, err)
	assert.Equal(t, 2, alias.UsageCount)
	assert.Equal(t, clock.Now(), alias.LastUsedAt)
}

func TestRegisterEntityRejectsDuplicateName(t *testing.T) {
	e, _, _ := newTestEngine()
	seedEntity(e, "Kai Media", types.EntityTypeCustomer)

	_, err := e.RegisterEntity(context.Background(), "kai media", types.EntityTypeCustomer, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegisterEntityRejectsUnknownType(t *testing.T) {
	e, _, _ := newTestEngine()
	_, err := e.RegisterEntity(context.Background(), "Kai Media", types.EntityType("starship"), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResolveEntityNeverCreates(t *testing.T) {
	e, store, _ := newTestEngine()

	result, err := e.ResolveEntity(context.Background(), "Brand New Corp", nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeNotFound, result.Outcome)

	page, err := store.ListEntities(context.Background(), storage.ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestOpErrorWrapsSentinels(t *testing.T) {
	err := opErr("ResolveEntity", ErrValidation)
	assert.True(t, errors.Is(err, ErrValidation))
	var opError *OpError
	require.True(t, errors.As(err, &opError))
	assert.Equal(t, "ResolveEntity", opError.Op)
	assert.Equal(t, "recall: ResolveEntity: validation failed", err.Error())
}
