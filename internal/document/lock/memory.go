package lock

import (
	"context"
	"sync"
)

// MemoryLocker is a per-document mutex for single-process deployments.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: map[string]*slot{}}
}

func (l *MemoryLocker) Acquire(ctx context.Context, documentID string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[documentID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[documentID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(documentID, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.drop(documentID, s)
		})
	}, nil
}

func (l *MemoryLocker) drop(documentID string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, documentID)
	}
}
