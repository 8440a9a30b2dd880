package scanning

import (
	"sync"
)

// Marker remembers which fields already carry an affordance in the current
// document. It is reset when the document changes.
type Marker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMarker returns an empty marker.
func NewMarker() *Marker {
	return &Marker{seen: make(map[string]struct{})}
}

func (m *Marker) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[id]
	return ok
}

// Mark records id and reports whether it was new.
func (m *Marker) Mark(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[id]; ok {
		return false
	}
	m.seen[id] = struct{}{}
	return true
}

func (m *Marker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = make(map[string]struct{})
}

func (m *Marker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}
