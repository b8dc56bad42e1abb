package containers

import (
	"sync"

	"github.com/cockroachdb/errors"
)

var ErrInvalidHandle = errors.New("invalid handle")

// HandleTable maps opaque non-zero ids onto owned values. Released ids are
// never handed out again, so a stale id can always be told apart from a live
// one.
type HandleTable[T any] struct {
	mu     sync.RWMutex
	next   uint64
	owners map[uint64]T
}

func NewHandleTable[T any]() *HandleTable[T] {
	return &HandleTable[T]{
		owners: make(map[uint64]T),
	}
}

// Acquire stores owner and returns its new id.
func (t *HandleTable[T]) Acquire(owner T) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	t.owners[t.next] = owner
	return t.next
}

// Get returns the owner of id.
func (t *HandleTable[T]) Get(id uint64) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	owner, ok := t.owners[id]
	return owner, ok
}

// Release removes id and returns the owner it held.
func (t *HandleTable[T]) Release(id uint64) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	owner, ok := t.owners[id]
	if !ok {
		var zero T
		return zero, errors.Wrapf(ErrInvalidHandle, "release of id %d", id)
	}
	delete(t.owners, id)
	return owner, nil
}

// Len returns the number of live ids.
func (t *HandleTable[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.owners)
}

// Each calls fn for every live id in no particular order.
func (t *HandleTable[T]) Each(fn func(id uint64, owner T)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for id, owner := range t.owners {
		fn(id, owner)
	}
}
