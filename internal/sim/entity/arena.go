// Package entity provides typed handles and arenas for simulation objects.
//
// Ghosts, workers and occupants are addressed by stable integer handles instead of
// pointers shared across components. Handles are never reused, so a stale handle
// resolves to ErrNotFound rather than to an unrelated object.
package entity

import (
	"errors"
	"sort"
)

var ErrNotFound = errors.New("entity: handle not found")

type GhostID uint32

type WorkerID uint32

type OccupantID uint32

// ID is the constraint satisfied by every handle type. The zero value means "none".
type ID interface {
	~uint32
}

// Arena stores values of T under monotonically increasing handles of type K.
// Not safe for concurrent use; the simulation owns it from a single goroutine.
type Arena[K ID, T any] struct {
	items map[K]*T
	ids   []K // ascending
	next  K
}

func NewArena[K ID, T any]() *Arena[K, T] {
	return &Arena[K, T]{items: map[K]*T{}}
}

// Insert stores v and returns its new handle.
func (a *Arena[K, T]) Insert(v T) K {
	a.next++
	id := a.next
	p := new(T)
	*p = v
	a.items[id] = p
	a.ids = append(a.ids, id)
	return id
}

func (a *Arena[K, T]) Get(id K) (*T, bool) {
	if id == 0 {
		return nil, false
	}
	p, ok := a.items[id]
	return p, ok
}

// Lookup is Get with an explicit error for callers that propagate failures.
func (a *Arena[K, T]) Lookup(id K) (*T, error) {
	p, ok := a.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (a *Arena[K, T]) Has(id K) bool {
	_, ok := a.Get(id)
	return ok
}

func (a *Arena[K, T]) Remove(id K) bool {
	if _, ok := a.items[id]; !ok {
		return false
	}
	delete(a.items, id)
	i := sort.Search(len(a.ids), func(i int) bool { return a.ids[i] >= id })
	if i < len(a.ids) && a.ids[i] == id {
		a.ids = append(a.ids[:i], a.ids[i+1:]...)
	}
	return true
}

func (a *Arena[K, T]) Len() int { return len(a.items) }

// IDs returns a copy of the live handles in ascending order.
func (a *Arena[K, T]) IDs() []K {
	out := make([]K, len(a.ids))
	copy(out, a.ids)
	return out
}

// Each visits live entries in ascending handle order. fn may remove the entry it is
// given; entries inserted during iteration are not visited.
func (a *Arena[K, T]) Each(fn func(id K, v *T)) {
	for _, id := range a.IDs() {
		if p, ok := a.items[id]; ok {
			fn(id, p)
		}
	}
}
