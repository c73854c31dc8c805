package serve

import (
	"fmt"
	"sort"

	"github.com/praetorian-inc/hsmatch/pkg/matcher"
)

// handles maps numeric handles to owned objects. Handles are never reused,
// so any handle below next that is missing has been released.
type handles[T interface{ Close() error }] struct {
	kind  string
	next  uint64
	items map[uint64]T
}

func newHandles[T interface{ Close() error }](kind string) *handles[T] {
	return &handles[T]{kind: kind, next: 1, items: make(map[uint64]T)}
}

func (h *handles[T]) add(v T) uint64 {
	id := h.next
	h.next++
	h.items[id] = v
	return id
}

func (h *handles[T]) get(id *uint64) (T, error) {
	var zero T
	if id == nil {
		return zero, &matcher.UsageError{Field: h.kind, Message: "handle is required"}
	}
	v, ok := h.items[*id]
	if ok {
		return v, nil
	}
	if *id > 0 && *id < h.next {
		return zero, fmt.Errorf("%s %d: %w", h.kind, *id, matcher.ErrReleased)
	}
	return zero, &matcher.UsageError{Field: h.kind, Message: fmt.Sprintf("unknown handle %d", *id)}
}

// release closes and forgets the handle.
func (h *handles[T]) release(id *uint64) error {
	v, err := h.get(id)
	if err != nil {
		return err
	}
	delete(h.items, *id)
	return v.Close()
}

// ids returns the open handles in allocation order.
func (h *handles[T]) ids() []uint64 {
	ids := make([]uint64, 0, len(h.items))
	for id := range h.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (h *handles[T]) len() int {
	return len(h.items)
}
