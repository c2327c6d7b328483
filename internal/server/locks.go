package server

import "sync"

// gameLocks hands out one mutex per game id and forgets it once nobody
// holds or waits on it.
type gameLocks struct {
	mu    sync.Mutex
	locks map[string]*gameLock
}

type gameLock struct {
	mu   sync.Mutex
	refs int
}

func newGameLocks() *gameLocks {
	return &gameLocks{locks: make(map[string]*gameLock)}
}

func (g *gameLocks) lock(gameID string) func() {
	g.mu.Lock()
	entry, ok := g.locks[gameID]
	if !ok {
		entry = &gameLock{}
		g.locks[gameID] = entry
	}
	entry.refs++
	g.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		g.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(g.locks, gameID)
		}
		g.mu.Unlock()
	}
}

func (g *gameLocks) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}
