package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/scrypster/recall/internal/similarity"
	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

const (
	// Retrieval score weights. Similarity dominates but never alone:
	// recency, importance, and reinforcement keep stale-but-similar
	// memories from crowding out current ones.
	simWeight        = 0.40
	recencyWeight    = 0.25
	importanceWeight = 0.20
	reinforceWeight  = 0.15

	// recencyHalfLifeDays is the age at which the recency term halves.
	recencyHalfLifeDays = 30

	// reinforceSaturation is the reinforcement count at which that term
	// maxes out.
	reinforceSaturation = 5

	// defaultRetrievalLimit bounds result sets when the caller gives none.
	defaultRetrievalLimit = 10
)

// RetrievalQuery selects and ranks memories for a user. EntityID is
// optional; when set, only memories linking that entity are considered.
type RetrievalQuery struct {
	UserID   string
	Text     string
	EntityID string
	Kinds    []types.MemoryKind
	Limit    int
}

// RetrieveMemories ranks the user's active memories against the query and
// returns the top results, each carrying its decayed confidence so the
// caller can hedge appropriately. Retrieval is itself a reinforcement
// event: returned memories have their access recorded.
//
// When the embedding provider is unavailable the similarity term drops to
// zero and ranking proceeds on recency, importance, and reinforcement
// alone; the retrieval is counted as degraded rather than failed.
func (e *Engine) RetrieveMemories(ctx context.Context, query RetrievalQuery) ([]*types.RetrievedMemory, error) {
	const op = "RetrieveMemories"

	query.Text = strings.TrimSpace(query.Text)
	if query.UserID == "" {
		return nil, opErr(op, fmt.Errorf("%w: user id required", ErrValidation))
	}
	if query.Limit <= 0 {
		query.Limit = defaultRetrievalLimit
	}

	// Any embedding failure degrades to text-free ranking; retrieval
	// never fails outright on the similarity dependency.
	var queryVec []float32
	if e.embedder != nil && query.Text != "" {
		if vec, err := e.embedder.Embed(ctx, query.Text); err == nil {
			queryVec = vec
		} else {
			e.degradedRetrievals.Add(1)
		}
	}

	memories, err := e.store.ListMemories(ctx, storage.MemoryFilter{
		UserID:   query.UserID,
		EntityID: query.EntityID,
		Kinds:    query.Kinds,
	})
	if err != nil {
		return nil, opErr(op, err)
	}

	now := e.now()
	scored := make([]*types.RetrievedMemory, 0, len(memories))
	for _, m := range memories {
		effective := EffectiveConfidence(m, now)
		if effective == 0 {
			// Fully decayed memories are retrievable by id only.
			continue
		}

		score := 0.0
		if queryVec != nil && len(m.Embedding) > 0 {
			score += simWeight * similarity.Cosine(queryVec, m.Embedding)
		}
		ageDays := now.Sub(m.CreatedAt).Hours() / 24
		score += recencyWeight * math.Exp2(-ageDays/recencyHalfLifeDays)
		score += importanceWeight * m.Importance
		score += reinforceWeight * math.Min(1, float64(m.ReinforcementCount)/reinforceSaturation)

		scored = append(scored, &types.RetrievedMemory{
			Memory:              m,
			Score:               score,
			EffectiveConfidence: effective,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Memory.CreatedAt.After(scored[j].Memory.CreatedAt)
	})
	if len(scored) > query.Limit {
		scored = scored[:query.Limit]
	}

	// Access is reinforcement: memories the user keeps pulling back stay
	// confident. Best effort per memory; a lost race is retried once
	// inside reinforceStored and a second loss is ignored.
	for _, r := range scored {
		if err := e.reinforceStored(ctx, r.Memory); err != nil && !errors.Is(err, storage.ErrVersionConflict) {
			return nil, opErr(op, err)
		}
	}
	return scored, nil
}
