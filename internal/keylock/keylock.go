// Package keylock provides one mutex per string key.
package keylock

import (
	"context"
	"sync"
)

// Table hands out an exclusive lock per key. Entries exist only while a
// holder or waiter references them, so the table does not grow with the
// number of keys ever seen.
type Table struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	held chan struct{}
	refs int
}

// New returns an empty lock table.
func New() *Table {
	return &Table{locks: make(map[string]*entry)}
}

// Lock blocks until key is held or ctx is done. On success the returned
// function releases the lock; calling it more than once is a no-op.
func (t *Table) Lock(ctx context.Context, key string) (func(), error) {
	t.mu.Lock()
	e, ok := t.locks[key]
	if !ok {
		e = &entry{held: make(chan struct{}, 1)}
		t.locks[key] = e
	}
	e.refs++
	t.mu.Unlock()

	select {
	case e.held <- struct{}{}:
	case <-ctx.Done():
		t.drop(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.held
			t.drop(key, e)
		})
	}, nil
}

// Len returns the number of keys currently locked or awaited.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

func (t *Table) drop(key string, e *entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(t.locks, key)
	}
}
