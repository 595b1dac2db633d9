package workflow

import (
	"context"
	"sync"
)

// LockSet hands out one mutex per discussion id.
// Entries are dropped when their last holder releases them.
type LockSet struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewLockSet creates an empty lock set
func NewLockSet() *LockSet {
	return &LockSet{locks: make(map[string]*keyedLock)}
}

// Lock blocks until the discussion's mutex is held or ctx is done.
// The returned func releases it.
func (s *LockSet) Lock(ctx context.Context, key string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyedLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		l.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return func() { s.release(key, l) }, nil
	case <-ctx.Done():
		// the goroutine still takes the mutex eventually; hand it straight back
		go func() {
			<-acquired
			s.release(key, l)
		}()
		return nil, ctx.Err()
	}
}

func (s *LockSet) release(key string, l *keyedLock) {
	l.mu.Unlock()
	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
}

// Len returns the number of discussions currently locked or awaited
func (s *LockSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

type heldLocksKey struct{}

// heldLocks records which discussion locks the current call chain owns
type heldLocks map[string]bool

func withHeld(ctx context.Context, key string) context.Context {
	prev, _ := ctx.Value(heldLocksKey{}).(heldLocks)
	next := make(heldLocks, len(prev)+1)
	for k := range prev {
		next[k] = true
	}
	next[key] = true
	return context.WithValue(ctx, heldLocksKey{}, next)
}

func holds(ctx context.Context, key string) bool {
	held, _ := ctx.Value(heldLocksKey{}).(heldLocks)
	return held[key]
}
