// Package keylock serialises work per key (a user ID). Local locks within
// one process; Redis locks across processes sharing a Redis server.
package keylock

import (
	"context"
	"sync"
)

// Locker hands out exclusive locks per key. The returned unlock must be
// called exactly once.
type Locker interface {
	Lock(ctx context.Context, key int64) (func(), error)
}

type entry struct {
	ch   chan struct{} // buffered(1); holding the token means holding the lock
	refs int
}

// Local is an in-process keyed mutex. Entries are dropped once nobody holds
// or waits on them.
type Local struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// NewLocal creates an empty keyed mutex.
func NewLocal() *Local {
	return &Local{entries: make(map[int64]*entry)}
}

// Lock blocks until key is free or ctx is done.
func (l *Local) Lock(ctx context.Context, key int64) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *Local) release(key int64, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Len returns the number of keys currently held or waited on.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
