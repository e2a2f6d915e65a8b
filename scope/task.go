package scope

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// TaskState describes where a task is in its lifecycle. Transitions are
// monotonic: Running moves to exactly one of the terminal states and never
// changes again.
type TaskState int32

const (
	TaskRunning TaskState = iota
	TaskCompleted
	TaskFailed
	TaskCancelled
)

func (s TaskState) String() string {
	switch s {
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	case TaskCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s TaskState) Terminal() bool { return s != TaskRunning }

// Task is the handle for one unit of concurrent work launched on a Scope.
// The scope keeps a reference to the task only until it reaches a terminal
// state; the handle stays valid for as long as the caller holds it.
type Task struct {
	id    string
	err   error // written once in finish, before the state is published
	state atomic.Int32
	done  chan struct{}
}

func newTask() *Task {
	return &Task{id: uuid.NewString(), done: make(chan struct{})}
}

// ID returns the task's unique identifier.
func (t *Task) ID() string { return t.id }

// State returns the task's current state.
func (t *Task) State() TaskState { return TaskState(t.state.Load()) }

// Err returns the error the task terminated with, nil while it is still
// running and nil for Completed tasks.
func (t *Task) Err() error {
	if !t.State().Terminal() {
		return nil
	}
	return t.err
}

// Done returns a channel closed when the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// finish publishes the terminal state. The plain err write is ordered before
// the atomic state store, so a reader that observes a terminal State may
// read err.
func (t *Task) finish(state TaskState, err error) {
	t.err = err
	t.state.Store(int32(state))
	close(t.done)
}
