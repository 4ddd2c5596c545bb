package store

import (
	"strconv"
	"sync"
)

// Memory is a process-local keyed store. Identities are decimal strings
// allocated from a counter that starts at 1 and is never rewound, so an
// identity is never handed out twice within a process.
type Memory[T any] struct {
	mu    sync.RWMutex
	next  uint64
	items map[string]T
	order []string
}

func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{
		next:  1,
		items: make(map[string]T),
	}
}

// Add allocates the next identity, builds the record for it and inserts it,
// all under one lock.
func (m *Memory[T]) Add(build func(id string) T) T {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := strconv.FormatUint(m.next, 10)
	m.next++

	item := build(id)
	m.items[id] = item
	m.order = append(m.order, id)
	return item
}

func (m *Memory[T]) Get(id string) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	return item, ok
}

// Delete removes the record and returns it. The boolean reports whether it
// was present.
func (m *Memory[T]) Delete(id string) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return item, false
	}
	delete(m.items, id)
	for i, key := range m.order {
		if key == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return item, true
}

// List returns a snapshot in insertion order.
func (m *Memory[T]) List() []T {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]T, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id])
	}
	return out
}

func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
