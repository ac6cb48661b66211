package writebehind

import "sync"

// inflightMap is the authoritative key to entry mapping for resident
// entries. Allocation is serialized per key; readers never observe a
// half-constructed entry because entries are fully built before insert.
type inflightMap[V, U, W any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V, U, W]
}

func newInflightMap[V, U, W any]() *inflightMap[V, U, W] {
	return &inflightMap[V, U, W]{entries: make(map[string]*entry[V, U, W])}
}

// lookupOrCreate returns the resident entry for key, creating one with
// build when absent. The limit caps total residents; a create beyond it
// fails with ErrCacheFull.
func (m *inflightMap[V, U, W]) lookupOrCreate(key string, limit int, build func() *entry[V, U, W]) (*entry[V, U, W], bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return e, false, nil
	}
	if limit > 0 && len(m.entries) >= limit {
		return nil, false, ErrCacheFull
	}
	e := build()
	m.entries[key] = e
	return e, true, nil
}

// get returns the resident entry for key, if any
func (m *inflightMap[V, U, W]) get(key string) *entry[V, U, W] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key]
}

// remove drops e from the map if it is still the resident entry for its
// key; a newer entry under the same key is left alone
func (m *inflightMap[V, U, W]) remove(e *entry[V, U, W]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.entries[e.key]; ok && current == e {
		delete(m.entries, e.key)
	}
}

// size returns the number of resident entries
func (m *inflightMap[V, U, W]) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
