// Package cell provides a single-slot container for the latest value of a
// piece of state. A cell has exactly one producer; any goroutine may read it.
// It is not a pub/sub bus: there is no subscription, only the current
// snapshot.
package cell

import "sync/atomic"

// Cell holds the most recently stored value of type T, or nothing if Store
// was never called. Reads are wait-free; a Store is visible to every
// subsequent Load regardless of goroutine (the atomic pointer swap is the
// happens-before edge).
type Cell[T any] struct {
	p atomic.Pointer[T]
}

// New returns an empty cell.
func New[T any]() *Cell[T] { return &Cell[T]{} }

// Store overwrites the slot with v. Only the cell's owning producer should
// call Store; concurrent writers are outside the contract.
func (c *Cell[T]) Store(v T) {
	c.p.Store(&v)
}

// Load returns the last stored value. The second result is false if the cell
// was never written. Load never blocks.
func (c *Cell[T]) Load() (T, bool) {
	if p := c.p.Load(); p != nil {
		return *p, true
	}
	var zero T
	return zero, false
}

// Get returns the last stored value or the zero value of T.
func (c *Cell[T]) Get() T {
	v, _ := c.Load()
	return v
}
