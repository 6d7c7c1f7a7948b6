package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"plotbot/storage"
)

var ErrLockTimeout = errors.New("memory: lock wait timed out")

const sweepEvery = time.Minute

type lockEntry struct {
	ch   chan struct{}
	refs int // holder plus waiters
}

// Guard is the single-instance fallback used when Redis is disabled.
type Guard struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	lastSweep time.Time
	locks     map[string]*lockEntry
	now       func() time.Time
}

func NewGuard() storage.IGuard {
	return &Guard{
		seen:  make(map[string]time.Time),
		locks: make(map[string]*lockEntry),
		now:   time.Now,
	}
}

func (g *Guard) FirstSeen(_ context.Context, token string, ttl time.Duration) (bool, error) {
	if token == "" {
		return true, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.Sub(g.lastSweep) >= sweepEvery {
		for k, exp := range g.seen {
			if now.After(exp) {
				delete(g.seen, k)
			}
		}
		g.lastSweep = now
	}
	if exp, ok := g.seen[token]; ok && !now.After(exp) {
		return false, nil
	}
	g.seen[token] = now.Add(ttl)
	return true, nil
}

// Lock waits at most ttl for key. Entries are dropped once nobody holds or
// waits on them.
func (g *Guard) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	g.mu.Lock()
	e, ok := g.locks[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		g.locks[key] = e
	}
	e.refs++
	g.mu.Unlock()

	timer := time.NewTimer(ttl)
	defer timer.Stop()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				g.release(key, e)
			})
		}, nil
	case <-timer.C:
		g.release(key, e)
		return nil, ErrLockTimeout
	case <-ctx.Done():
		g.release(key, e)
		return nil, ctx.Err()
	}
}

func (g *Guard) release(key string, e *lockEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e.refs--
	if e.refs == 0 && g.locks[key] == e {
		delete(g.locks, key)
	}
}

func (g *Guard) Close() error {
	return nil
}
