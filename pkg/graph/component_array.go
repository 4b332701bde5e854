package graph

import "sync"

type componentArray interface {
	resize(n int)
	reset(id ComponentID)
	invalidate()
}

// ComponentArray is a dense array indexed by ComponentID whose length follows
// the tracker's Capacity. It is meant for per-component state owned by a
// consumer, such as a colour or a layout.
//
// The tracker grows registered arrays during each update and resets the slot
// of a component that disappears, so a recycled id starts from the default
// value again. When the tracker is closed every array is invalidated rather
// than freed: reads return the default value and writes are dropped.
type ComponentArray[T any] struct {
	mu      sync.RWMutex
	tracker *Tracker
	values  []T
	def     T
	valid   bool
}

// NewComponentArray registers a new array with t. Every slot starts at def.
func NewComponentArray[T any](t *Tracker, def T) *ComponentArray[T] {
	a := &ComponentArray[T]{tracker: t, def: def, valid: true}

	unlock := t.rlock("NewComponentArray")
	defer unlock()

	a.resize(int(t.nextComponentID))

	t.arraysMu.Lock()
	defer t.arraysMu.Unlock()
	if t.arraysClosed {
		a.invalidate()
		return a
	}
	t.arrays[a] = struct{}{}
	return a
}

// Get returns the value stored for id, or the default for an id outside the
// array or once the array has been invalidated.
func (a *ComponentArray[T]) Get(id ComponentID) T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.valid || id.IsNull() || int(id) >= len(a.values) {
		return a.def
	}
	return a.values[id]
}

// Set stores v for id. It reports whether the value was stored.
func (a *ComponentArray[T]) Set(id ComponentID, v T) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.valid || id.IsNull() || int(id) >= len(a.values) {
		return false
	}
	a.values[id] = v
	return true
}

// Len returns the number of addressable slots.
func (a *ComponentArray[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.values)
}

// Valid reports whether the owning tracker is still alive.
func (a *ComponentArray[T]) Valid() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.valid
}

// Release unregisters the array from its tracker. The array keeps its values
// but no longer grows.
func (a *ComponentArray[T]) Release() {
	t := a.tracker
	t.arraysMu.Lock()
	delete(t.arrays, a)
	t.arraysMu.Unlock()
}

func (a *ComponentArray[T]) resize(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for len(a.values) < n {
		a.values = append(a.values, a.def)
	}
}

func (a *ComponentArray[T]) reset(id ComponentID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(id) < len(a.values) {
		a.values[id] = a.def
	}
}

func (a *ComponentArray[T]) invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.valid = false
	a.values = nil
}

func (t *Tracker) resizeArrays() {
	t.arraysMu.Lock()
	defer t.arraysMu.Unlock()
	for a := range t.arrays {
		a.resize(int(t.nextComponentID))
	}
}

func (t *Tracker) resetArrays(id ComponentID) {
	t.arraysMu.Lock()
	defer t.arraysMu.Unlock()
	for a := range t.arrays {
		a.reset(id)
	}
}
