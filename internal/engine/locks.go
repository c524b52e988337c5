package engine

import "sync"

// entityLocks serializes conflict detection, resolution, and consolidation
// per entity. Different entities proceed fully in parallel; the same entity
// is a critical section.
type entityLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newEntityLocks() *entityLocks {
	return &entityLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for entityID, creating it on first use, and
// returns the unlock function.
func (l *entityLocks) lock(entityID string) func() {
	l.mu.Lock()
	m, ok := l.locks[entityID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[entityID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
