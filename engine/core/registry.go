package core

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks live objects by identifier. It is owned by the application
// context and handed to whoever needs to enumerate the objects; there is no
// process-wide instance.
type Registry[T any] struct {
	mu      sync.RWMutex
	order   []uuid.UUID
	objects map[uuid.UUID]T
	// bumped on every Add/Remove so consumers can detect changes cheaply.
	generation uint64
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		objects: make(map[uuid.UUID]T),
	}
}

// Add stores owner under a freshly generated identifier and returns it.
func (r *Registry[T]) Add(owner T) uuid.UUID {
	id := uuid.New()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[id] = owner
	r.order = append(r.order, id)
	r.generation++
	return id
}

func (r *Registry[T]) Get(id uuid.UUID) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrRegistryNotFound, id)
	}
	return obj, nil
}

// Remove releases id. Releasing an unknown id is an error and nothing is changed.
func (r *Registry[T]) Remove(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.objects[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRegistryNotFound, id)
	}
	delete(r.objects, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.generation++
	return nil
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry[T]) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Each calls fn for every object in insertion order. Returning false stops the walk.
func (r *Registry[T]) Each(fn func(id uuid.UUID, obj T) bool) {
	r.mu.RLock()
	ids := make([]uuid.UUID, len(r.order))
	copy(ids, r.order)
	r.mu.RUnlock()

	for _, id := range ids {
		r.mu.RLock()
		obj, ok := r.objects[id]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		if !fn(id, obj) {
			return
		}
	}
}

// Snapshot returns the objects in insertion order.
func (r *Registry[T]) Snapshot() []T {
	out := make([]T, 0, r.Len())
	r.Each(func(_ uuid.UUID, obj T) bool {
		out = append(out, obj)
		return true
	})
	return out
}
