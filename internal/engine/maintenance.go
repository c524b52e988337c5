package engine

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/scrypster/recall/internal/storage"
)

// Sweeper runs the periodic maintenance cycle: garbage collection plus
// consolidation checks for every entity, per user. Store work is
// rate-limited so a large directory never starves foreground traffic.
type Sweeper struct {
	engine   *Engine
	users    []string
	interval time.Duration
	limiter  *rate.Limiter
}

// NewSweeper creates a sweeper over the given user ids. opsPerSecond
// bounds how many entities the sweep touches per second.
func NewSweeper(engine *Engine, users []string, interval time.Duration, opsPerSecond float64) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if opsPerSecond <= 0 {
		opsPerSecond = 50
	}
	return &Sweeper{
		engine:   engine,
		users:    users,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Limit(opsPerSecond), 1),
	}
}

// Run sweeps on the configured interval until the context is canceled.
// The first sweep happens one full interval after start.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep executes one full maintenance cycle. Failures are logged and the
// sweep moves on; the next cycle retries everything, and both GC phases
// are idempotent.
func (s *Sweeper) Sweep(ctx context.Context) {
	for _, userID := range s.users {
		report, err := s.engine.CollectGarbage(ctx, userID)
		if err != nil {
			log.Printf("sweep: gc for user %s: %v", userID, err)
		} else if report.SoftDeleted > 0 || report.Purged > 0 || report.SkippedUnsafe > 0 {
			log.Printf("sweep: gc for user %s: soft-deleted %d, purged %d, skipped %d",
				userID, report.SoftDeleted, report.Purged, report.SkippedUnsafe)
		}
		s.consolidateUser(ctx, userID)
	}
}

// consolidateUser walks the entity directory and consolidates every entity
// whose recent accumulation of memories or summaries makes a pass due.
func (s *Sweeper) consolidateUser(ctx context.Context, userID string) {
	opts := storage.ListOptions{Page: 1, Limit: 200}
	for {
		page, err := s.engine.store.ListEntities(ctx, opts)
		if err != nil {
			log.Printf("sweep: list entities: %v", err)
			return
		}
		for i := range page.Items {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			entityID := page.Items[i].ID
			if due, err := s.engine.ShouldConsolidate(ctx, userID, entityID); err != nil {
				log.Printf("sweep: consolidation check %s: %v", entityID, err)
			} else if due {
				if summary, err := s.engine.Consolidate(ctx, userID, entityID); err != nil {
					log.Printf("sweep: consolidate %s: %v", entityID, err)
				} else if summary != nil {
					log.Printf("sweep: consolidated %d memories for %s into %s",
						len(summary.SourceMemoryIDs), entityID, summary.ID)
				}
			}
			if meta, err := s.engine.MetaConsolidate(ctx, userID, entityID); err != nil {
				log.Printf("sweep: meta-consolidate %s: %v", entityID, err)
			} else if meta != nil {
				log.Printf("sweep: merged %d summaries for %s into %s",
					len(meta.SourceMemoryIDs), entityID, meta.ID)
			}
		}
		if !page.HasMore {
			return
		}
		opts.Page++
	}
}
