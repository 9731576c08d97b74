package topology

import (
	"fmt"

	"github.com/simlab-dev/simlab/internal/model"
)

// registry is an insertion-ordered mapping from server ID to element.
// Iteration follows insertion order so listings are deterministic without
// sorting. Not goroutine safe on its own; the lab's guard covers it.
type registry[T any] struct {
	ids   []string
	items map[string]T
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{items: map[string]T{}}
}

func (r *registry[T]) get(id string) (T, bool) {
	v, ok := r.items[id]
	return v, ok
}

func (r *registry[T]) has(id string) bool {
	_, ok := r.items[id]
	return ok
}

// set inserts a new element or replaces an existing one without disturbing
// its position.
func (r *registry[T]) set(id string, v T) {
	if _, ok := r.items[id]; !ok {
		r.ids = append(r.ids, id)
	}
	r.items[id] = v
}

// remove drops the element. Absent IDs are a no-op.
func (r *registry[T]) remove(id string) {
	if _, ok := r.items[id]; !ok {
		return
	}
	delete(r.items, id)
	for i, known := range r.ids {
		if known == id {
			r.ids = append(r.ids[:i], r.ids[i+1:]...)
			break
		}
	}
}

func (r *registry[T]) len() int { return len(r.items) }

// values returns all elements in insertion order.
func (r *registry[T]) values() []T {
	out := make([]T, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.items[id])
	}
	return out
}

// keys returns a copy of the IDs in insertion order.
func (r *registry[T]) keys() []string {
	return append([]string(nil), r.ids...)
}

// notFound builds the domain error for an element that does not exist.
func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, model.ErrNotFound)
}

// gone builds the domain error for access through a stale reference. The last
// known ID is kept in the message.
func gone(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, model.ErrStale)
}

// alreadyExists builds the domain error for a duplicate element ID.
func alreadyExists(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, model.ErrAlreadyExists)
}
