package engine

import (
	"context"
	"errors"
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
	// exactMatchConfidence is assigned when a mention equals a canonical
	// name. Even exact matches are not 1.0: names collide.
	exactMatchConfidence = 0.95

	// fuzzyThreshold is the minimum mention similarity for an entity to
	// enter the candidate slate.
	fuzzyThreshold = 0.85

	// autoAcceptThreshold lets a lone fuzzy candidate resolve without
	// disambiguation scoring.
	autoAcceptThreshold = 0.90

	// maxCandidates caps the slate handed to disambiguation.
	maxCandidates = 5

	// autoResolveScore is the minimum disambiguation score for automatic
	// resolution; the winner's contextual signal must also double the
	// runner-up's.
	autoResolveScore = 0.80

	// Disambiguation boost weights. The base similarity contributes half
	// its value so contextual signals can actually separate candidates
	// whose names both match well.
	baseWeight        = 0.5
	recencyBoostMax   = 0.30
	frequencyBoostMax = 0.20
	activeWorkBoost   = 0.10

	// recencyTurnWindow and recencyDayWindow bound the recency boost:
	// full boost at zero distance, zero boost at the window edge.
	recencyTurnWindow = 10
	recencyDayWindow  = 30

	// frequencySaturation is the mention count at which the frequency
	// boost maxes out.
	frequencySaturation = 20
)

// scoredCandidate pairs an entity with its base similarity and
// disambiguation score during resolution.
type scoredCandidate struct {
	entity *types.Entity
	sim    float64
	score  float64
}

// ResolveEntity resolves a surface mention to an entity. The pipeline is
// exact canonical-name match, then learned-alias lookup, then a fuzzy scan
// of the directory with context-weighted disambiguation. Resolution never
// creates an entity: an unmatched mention is reported as not found and the
// decision to register a new entity stays with the caller.
func (e *Engine) ResolveEntity(ctx context.Context, mention string, conv *types.ConversationContext) (*types.ResolutionResult, error) {
	const op = "ResolveEntity"

	mention = strings.TrimSpace(mention)
	if mention == "" {
		return nil, opErr(op, fmt.Errorf("%w: empty mention", ErrValidation))
	}
	now := e.now()

	// Exact canonical-name match wins outright.
	if entity, err := e.store.FindEntityByName(ctx, mention); err == nil {
		if err := e.store.RecordMention(ctx, entity.ID, now); err != nil {
			return nil, opErr(op, err)
		}
		return &types.ResolutionResult{
			Outcome:    types.OutcomeResolved,
			EntityID:   entity.ID,
			Confidence: exactMatchConfidence,
			Candidates: []types.Candidate{{EntityID: entity.ID, Name: entity.CanonicalName, Score: 1.0}},
		}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, opErr(op, err)
	}

	// Learned alias: resolve silently at the confidence the alias was
	// learned with, and reinforce it.
	if alias, err := e.store.FindAlias(ctx, strings.ToLower(mention)); err == nil {
		if err := e.store.ReinforceAlias(ctx, alias.ID, now); err != nil {
			return nil, opErr(op, err)
		}
		if err := e.store.RecordMention(ctx, alias.EntityID, now); err != nil {
			return nil, opErr(op, err)
		}
		entity, err := e.store.GetEntity(ctx, alias.EntityID)
		if err != nil {
			return nil, opErr(op, err)
		}
		return &types.ResolutionResult{
			Outcome:    types.OutcomeResolved,
			EntityID:   entity.ID,
			Confidence: alias.Confidence,
			Candidates: []types.Candidate{{EntityID: entity.ID, Name: entity.CanonicalName, Score: alias.Confidence}},
		}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, opErr(op, err)
	}

	candidates, err := e.fuzzyScan(ctx, mention)
	if err != nil {
		return nil, opErr(op, err)
	}
	if len(candidates) == 0 {
		return &types.ResolutionResult{Outcome: types.OutcomeNotFound}, nil
	}

	// A lone strong candidate resolves without context scoring, but the
	// alias is not learned until the caller confirms it.
	if len(candidates) == 1 && candidates[0].sim >= autoAcceptThreshold {
		c := candidates[0]
		if err := e.store.RecordMention(ctx, c.entity.ID, now); err != nil {
			return nil, opErr(op, err)
		}
		return &types.ResolutionResult{
			Outcome:                types.OutcomeResolved,
			EntityID:               c.entity.ID,
			Confidence:             math.Min(exactMatchConfidence, c.sim),
			Candidates:             []types.Candidate{{EntityID: c.entity.ID, Name: c.entity.CanonicalName, Score: c.sim}},
			NeedsAliasConfirmation: true,
		}, nil
	}

	for i := range candidates {
		candidates[i].score = e.disambiguationScore(&candidates[i], conv, now)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	slate := make([]types.Candidate, len(candidates))
	for i, c := range candidates {
		slate[i] = types.Candidate{EntityID: c.entity.ID, Name: c.entity.CanonicalName, Score: c.score}
	}

	// The clear-winner margin compares contextual signal (score minus the
	// base-similarity contribution), not raw score: when several names all
	// fuzzy-match a short mention they share a similarity floor that no
	// amount of recency or frequency could double.
	top := candidates[0]
	clearWinner := len(candidates) == 1 ||
		top.score-baseWeight*top.sim >= 2*(candidates[1].score-baseWeight*candidates[1].sim)
	if top.score > autoResolveScore && clearWinner {
		if err := e.store.RecordMention(ctx, top.entity.ID, now); err != nil {
			return nil, opErr(op, err)
		}
		return &types.ResolutionResult{
			Outcome:                types.OutcomeResolved,
			EntityID:               top.entity.ID,
			Confidence:             math.Min(exactMatchConfidence, top.score),
			Candidates:             slate,
			NeedsAliasConfirmation: true,
		}, nil
	}

	return &types.ResolutionResult{
		Outcome:    types.OutcomeAmbiguous,
		Candidates: slate,
	}, nil
}

// fuzzyScan walks the entity directory in pages and returns candidates
// whose mention similarity clears the threshold, best-first, capped.
func (e *Engine) fuzzyScan(ctx context.Context, mention string) ([]scoredCandidate, error) {
	var candidates []scoredCandidate
	opts := storage.ListOptions{Page: 1, Limit: 200}
	for {
		page, err := e.store.ListEntities(ctx, opts)
		if err != nil {
			return nil, err
		}
		for i := range page.Items {
			entity := page.Items[i]
			if sim := mentionSimilarity(mention, entity.CanonicalName); sim >= fuzzyThreshold {
				candidates = append(candidates, scoredCandidate{entity: &entity, sim: sim})
			}
		}
		if !page.HasMore {
			break
		}
		opts.Page++
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].sim > candidates[j].sim
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates, nil
}

// disambiguationScore combines name similarity with contextual signals:
// recency of mention, mention frequency, and open business activity.
func (e *Engine) disambiguationScore(c *scoredCandidate, conv *types.ConversationContext, now time.Time) float64 {
	score := baseWeight * c.sim
	score += e.recencyBoost(c.entity, conv, now)
	if count := c.entity.MentionCount; count > 0 {
		score += frequencyBoostMax * math.Min(1, float64(count)/frequencySaturation)
	}
	if c.entity.HasActiveWork {
		score += activeWorkBoost
	}
	return score
}

// recencyBoost prefers the in-conversation signal (turns since mention)
// when available, falling back to the entity's last mention timestamp.
func (e *Engine) recencyBoost(entity *types.Entity, conv *types.ConversationContext, now time.Time) float64 {
	if conv != nil {
		if turns, ok := conv.TurnsSinceMention[entity.ID]; ok {
			return recencyBoostMax * math.Max(0, 1-float64(turns)/recencyTurnWindow)
		}
	}
	if entity.LastMentionedAt == nil {
		return 0
	}
	days := now.Sub(*entity.LastMentionedAt).Hours() / 24
	return recencyBoostMax * math.Max(0, 1-days/recencyDayWindow)
}

// ConfirmResolution records the caller's confirmation that mention refers
// to the given entity, learning the surface form as a confirmed alias so
// subsequent occurrences resolve silently. The alias keeps whatever
// confidence the resolution carried when the user confirmed it.
func (e *Engine) ConfirmResolution(ctx context.Context, mention, entityID string, confidence float64) error {
	const op = "ConfirmResolution"

	mention = strings.ToLower(strings.TrimSpace(mention))
	if mention == "" || entityID == "" {
		return opErr(op, fmt.Errorf("%w: mention and entity id required", ErrValidation))
	}
	if confidence < 0 || confidence > 1 {
		return opErr(op, fmt.Errorf("%w: confidence %v out of range", ErrValidation, confidence))
	}

	if _, err := e.store.GetEntity(ctx, entityID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return opErr(op, ErrNotFound)
		}
		return opErr(op, err)
	}

	now := e.now()
	alias := &types.EntityAlias{
		ID:            "alias:" + uuid.NewString(),
		AliasText:     mention,
		EntityID:      entityID,
		Confidence:    confidence,
		UsageCount:    1,
		UserConfirmed: true,
		LastUsedAt:    now,
		CreatedAt:     now,
	}
	err := e.store.CreateAlias(ctx, alias)
	if err == nil {
		return e.recordConfirmedMention(ctx, op, entityID, now)
	}
	if !errors.Is(err, storage.ErrDuplicateAlias) {
		return opErr(op, err)
	}

	// Already learned: a confirmation upgrades the existing alias.
	existing, err := e.store.FindAlias(ctx, mention)
	if err != nil {
		return opErr(op, err)
	}
	if err := e.store.ConfirmAlias(ctx, existing.ID); err != nil {
		return opErr(op, err)
	}
	if err := e.store.ReinforceAlias(ctx, existing.ID, now); err != nil {
		return opErr(op, err)
	}
	return e.recordConfirmedMention(ctx, op, entityID, now)
}

func (e *Engine) recordConfirmedMention(ctx context.Context, op, entityID string, now time.Time) error {
	if err := e.store.RecordMention(ctx, entityID, now); err != nil {
		return opErr(op, err)
	}
	return nil
}

// RegisterEntity creates a new entity in the directory. Callers use it when
// resolution returns not found and the user confirms the mention is a new
// business object.
func (e *Engine) RegisterEntity(ctx context.Context, name string, entityType types.EntityType, domainRef string) (*types.Entity, error) {
	const op = "RegisterEntity"

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, opErr(op, fmt.Errorf("%w: empty name", ErrValidation))
	}
	if !types.IsValidEntityType(entityType) {
		return nil, opErr(op, fmt.Errorf("%w: unknown entity type %q", ErrValidation, entityType))
	}
	if _, err := e.store.FindEntityByName(ctx, name); err == nil {
		return nil, opErr(op, fmt.Errorf("%w: entity %q already exists", ErrValidation, name))
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, opErr(op, err)
	}

	now := e.now()
	entity := &types.Entity{
		ID:              fmt.Sprintf("ent:%s:%s", entityType, uuid.NewString()),
		CanonicalName:   name,
		Type:            entityType,
		DomainReference: domainRef,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}
	if err := e.store.CreateEntity(ctx, entity); err != nil {
		return nil, opErr(op, err)
	}
	return entity, nil
}
