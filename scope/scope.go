package scope

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrScopeClosed is returned by Launch once teardown of the scope has begun.
var ErrScopeClosed = errors.New("scope: scope is closed")

// Policy selects how a scope reacts to a failing child.
type Policy int

const (
	// FailFast cancels the whole scope on the first child failure.
	FailFast Policy = iota
	// Supervisor isolates failures: a failing child terminates alone and
	// its siblings keep running. Only explicit teardown cancels them.
	Supervisor
)

type Option func(*Options)

type Options struct {
	PanicAsError   bool
	Observer       Observer
	MaxConcurrency int
}

func defaultOptions() Options { return Options{PanicAsError: true} }

// WithPanicAsError controls whether a panicking task is recorded as Failed
// (true, the default) or re-panics after its terminal state is published.
func WithPanicAsError(v bool) Option { return func(o *Options) { o.PanicAsError = v } }

// WithObserver attaches lifecycle hooks to the scope.
func WithObserver(obs Observer) Option { return func(o *Options) { o.Observer = obs } }

// WithMaxConcurrency bounds how many tasks run at once; excess launches
// queue on a weighted semaphore until a slot frees up.
func WithMaxConcurrency(n int) Option { return func(o *Options) { o.MaxConcurrency = n } }

// Observer receives scope and task lifecycle events.
type Observer interface {
	ScopeCreated(ctx context.Context)
	ScopeCancelled(ctx context.Context, cause error)
	ScopeJoined(ctx context.Context, wait time.Duration)
	TaskStarted(ctx context.Context, id string)
	TaskFinished(ctx context.Context, id string, state TaskState, dur time.Duration, err error)
}

// Scope owns a set of concurrently running tasks. Launch adds a child,
// Cancel begins teardown, Join blocks until every child launched so far is
// terminal. A scope is torn down at most once; after that Launch refuses
// new work.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	policy Policy

	mu       sync.Mutex
	children []*Task
	closed   bool
	firstErr error

	opts Options
	obs  Observer
	sem  *semaphore.Weighted
}

// New creates a scope whose context is derived from parent.
func New(parent context.Context, policy Policy, optFns ...Option) *Scope {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Scope{ctx: ctx, cancel: cancel, policy: policy, opts: defaultOptions()}
	for _, fn := range optFns {
		fn(&s.opts)
	}
	s.obs = s.opts.Observer
	if s.opts.MaxConcurrency > 0 {
		s.sem = semaphore.NewWeighted(int64(s.opts.MaxConcurrency))
	}
	if s.obs != nil {
		s.obs.ScopeCreated(ctx)
	}
	return s
}

// Context returns the scope's context. It is cancelled when the scope is.
func (s *Scope) Context() context.Context { return s.ctx }

// Closed reports whether teardown has begun.
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Launch starts fn concurrently with the caller and with every other child,
// and returns the new task's handle without waiting for it. It fails with
// ErrScopeClosed once teardown has begun.
func (s *Scope) Launch(fn func(ctx context.Context) error) (*Task, error) {
	if fn == nil {
		return nil, errors.New("scope: nil task body")
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrScopeClosed
	}
	t := newTask()
	s.children = append(s.children, t)
	s.mu.Unlock()
	go s.run(t, fn)
	return t, nil
}

func (s *Scope) run(t *Task, fn func(ctx context.Context) error) {
	if s.sem != nil {
		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			s.settle(t, err, false, time.Time{})
			return
		}
		defer s.sem.Release(1)
	}

	start := time.Now()
	if s.obs != nil {
		s.obs.TaskStarted(s.ctx, t.id)
	}

	var err error
	panicked := false
	var panicVal any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				panicVal = r
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = fn(s.ctx)
	}()

	if panicked && !s.opts.PanicAsError {
		s.settle(t, err, true, start)
		panic(panicVal)
	}
	s.settle(t, err, panicked, start)
}

// settle applies the failure policy, notifies the observer, and only then
// publishes the task's terminal state. Join unblocks on the terminal state,
// so everything here is complete by the time a joiner resumes.
func (s *Scope) settle(t *Task, err error, panicked bool, start time.Time) {
	state := terminalState(err, panicked)
	if state == TaskFailed {
		s.fail(err)
	}
	// A zero start means the task was aborted before TaskStarted fired
	// (semaphore acquire cut short by cancellation); keep the observer's
	// started/finished pairing balanced.
	if s.obs != nil && !start.IsZero() {
		s.obs.TaskFinished(s.ctx, t.id, state, time.Since(start), err)
	}
	t.finish(state, err)
	s.drop(t)
}

func terminalState(err error, panicked bool) TaskState {
	switch {
	case panicked:
		return TaskFailed
	case err == nil:
		return TaskCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return TaskCancelled
	default:
		return TaskFailed
	}
}

func (s *Scope) drop(t *Task) {
	s.mu.Lock()
	for i, c := range s.children {
		if c == t {
			s.children = append(s.children[:i], s.children[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
}

func (s *Scope) fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.firstErr == nil {
		s.firstErr = err
	}
	shouldCancel := s.policy == FailFast
	cause := s.firstErr
	s.mu.Unlock()
	if shouldCancel {
		s.Cancel(cause)
	}
}

// Cancel begins teardown: it marks the scope closed, records cause as the
// scope's error if none was recorded yet, and cancels every running child's
// context. Idempotent.
func (s *Scope) Cancel(cause error) {
	s.mu.Lock()
	wasClosed := s.closed
	s.closed = true
	if s.firstErr == nil && cause != nil {
		s.firstErr = cause
	}
	cause = s.firstErr
	s.mu.Unlock()

	s.cancel()
	if !wasClosed && s.obs != nil {
		s.obs.ScopeCancelled(s.ctx, cause)
	}
}

// Join blocks until every child launched before the call has reached a
// terminal state, then returns the first recorded error. It does not cancel
// anything and may be called repeatedly.
func (s *Scope) Join() error {
	var start time.Time
	if s.obs != nil {
		start = time.Now()
	}
	s.mu.Lock()
	snapshot := append([]*Task(nil), s.children...)
	s.mu.Unlock()
	for _, t := range snapshot {
		<-t.done
	}
	if s.obs != nil {
		s.obs.ScopeJoined(s.ctx, time.Since(start))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

// CancelAndJoin tears the scope down: cancellation is requested for all
// running children and the call blocks until each one is terminal. After it
// returns, no child is running and Launch refuses new work. Idempotent and
// safe to call from any goroutine.
func (s *Scope) CancelAndJoin() error {
	s.Cancel(nil)
	return s.Join()
}

// Child creates a scope whose context is derived from this scope's, so
// cancelling the parent cancels the child. Options default to the parent's.
func (s *Scope) Child(policy Policy, optFns ...Option) *Scope {
	childOpts := s.opts
	for _, fn := range optFns {
		fn(&childOpts)
	}
	ctx, cancel := context.WithCancel(s.ctx)
	cs := &Scope{ctx: ctx, cancel: cancel, policy: policy, opts: childOpts, obs: childOpts.Observer}
	if childOpts.MaxConcurrency > 0 {
		cs.sem = semaphore.NewWeighted(int64(childOpts.MaxConcurrency))
	}
	if cs.obs != nil {
		cs.obs.ScopeCreated(ctx)
	}
	return cs
}
