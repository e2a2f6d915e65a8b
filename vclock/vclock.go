// Package vclock provides an injectable time source. Production code uses
// System; tests use Virtual, a logical clock that only moves when advanced,
// so timing-dependent concurrency can be asserted deterministically.
package vclock

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Clock is the time surface the library depends on.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

// System returns the wall-clock implementation.
func System() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type waiter struct {
	at  time.Time
	seq uint64
	ch  chan time.Time
}

// Virtual is a logical clock. Time never passes on its own; Advance and
// AdvanceUntilIdle move it and fire pending waiters in deadline order
// (registration order for equal deadlines).
type Virtual struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	seq     uint64
	waiters []*waiter
}

// NewVirtual returns a virtual clock positioned at start.
func NewVirtual(start time.Time) *Virtual {
	v := &Virtual{now: start}
	v.cond = sync.NewCond(&v.mu)
	return v
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	v.mu.Lock()
	if d <= 0 {
		ch <- v.now
		v.mu.Unlock()
		return ch
	}
	v.seq++
	v.waiters = append(v.waiters, &waiter{at: v.now.Add(d), seq: v.seq, ch: ch})
	v.cond.Broadcast()
	v.mu.Unlock()
	return ch
}

func (v *Virtual) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-v.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BlockUntil blocks until at least n waiters are registered on the clock.
// Tests call it after starting goroutines and before advancing, so that an
// advance can never race a goroutine that has not reached its sleep yet.
func (v *Virtual) BlockUntil(n int) {
	v.mu.Lock()
	for len(v.waiters) < n {
		v.cond.Wait()
	}
	v.mu.Unlock()
}

// Advance moves the clock forward by d and fires every waiter whose deadline
// has been reached.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	v.now = v.now.Add(d)
	v.fireDueLocked()
	v.mu.Unlock()
}

// AdvanceUntilIdle repeatedly jumps the clock to the earliest pending
// deadline until no waiter remains, then returns the total logical time that
// passed. Between jumps it settles, yielding the processor so goroutines
// released by a fire can run up to their next wait (or to completion) before
// the idle check.
func (v *Virtual) AdvanceUntilIdle() time.Duration {
	v.mu.Lock()
	start := v.now
	for {
		if len(v.waiters) == 0 {
			v.mu.Unlock()
			settle()
			v.mu.Lock()
			if len(v.waiters) == 0 {
				elapsed := v.now.Sub(start)
				v.mu.Unlock()
				return elapsed
			}
			continue
		}
		next := v.waiters[0].at
		for _, w := range v.waiters[1:] {
			if w.at.Before(next) {
				next = w.at
			}
		}
		v.now = next
		v.fireDueLocked()
		v.mu.Unlock()
		settle()
		v.mu.Lock()
	}
}

func (v *Virtual) fireDueLocked() {
	var due, rest []*waiter
	for _, w := range v.waiters {
		if !w.at.After(v.now) {
			due = append(due, w)
		} else {
			rest = append(rest, w)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	v.waiters = rest
	for _, w := range due {
		w.ch <- v.now
	}
}

// settle gives goroutines woken by a fire a chance to reach their next
// suspension point. The short real nap keeps chained sleeps (fire, run,
// sleep again) from being missed by the idle check.
func settle() {
	for i := 0; i < 16; i++ {
		runtime.Gosched()
	}
	time.Sleep(time.Millisecond)
	for i := 0; i < 16; i++ {
		runtime.Gosched()
	}
}
