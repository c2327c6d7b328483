package server

import (
	"sync"
	"testing"
)

func TestGameLocksSerializePerGame(t *testing.T) {
	locks := newGameLocks()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("g1")
			defer unlock()
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected one holder at a time, saw %d", maxSeen)
	}
	if locks.size() != 0 {
		t.Fatalf("expected released locks to be forgotten, have %d", locks.size())
	}
}

func TestGameLocksAreIndependent(t *testing.T) {
	locks := newGameLocks()
	unlockA := locks.lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := locks.lock("b")
		unlockB()
		close(done)
	}()
	<-done
	if locks.size() != 1 {
		t.Fatalf("expected only game a held, have %d", locks.size())
	}
	unlockA()
}
