package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scrypster/recall/internal/similarity"
	"github.com/scrypster/recall/internal/storage/memstore"
	"github.com/scrypster/recall/pkg/types"
)

// testClock is an adjustable time source for decay and GC tests.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *testClock) AdvanceDays(days int) {
	c.Advance(time.Duration(days) * 24 * time.Hour)
}

// stubEmbedder returns canned vectors per text and can be switched into a
// failing state to exercise degraded retrieval.
type stubEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	fail    bool
	calls   int
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{vectors: make(map[string][]float32)}
}

func (s *stubEmbedder) set(text string, vec []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[text] = vec
}

func (s *stubEmbedder) setFailing(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return nil, similarity.ErrUnavailable
	}
	if vec, ok := s.vectors[text]; ok {
		return vec, nil
	}
	return []float32{1, 0, 0}, nil
}

// newTestEngine wires an engine over the in-memory store with an
// adjustable clock.
func newTestEngine(opts ...Option) (*Engine, *memstore.Store, *testClock) {
	store := memstore.New()
	clock := newTestClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(store, opts...), store, clock
}

// seedEntity registers an entity directly with sensible defaults.
func seedEntity(e *Engine, name string, entityType types.EntityType) *types.Entity {
	entity, err := e.RegisterEntity(context.Background(), name, entityType, "")
	if err != nil {
		panic(fmt.Sprintf("seed entity %s: %v", name, err))
	}
	return entity
}
