// Package scope provides structured-concurrency primitives for Go.
// A Scope owns the tasks it launches, hands out per-task handles with a
// terminal state, provides a join point, and propagates cancellation
// top-down: tearing a scope down cancels every child and blocks until all
// of them have stopped.
package scope
