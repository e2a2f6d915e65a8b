// Package errgroup provides an adapter that mimics golang.org/x/sync/errgroup
// semantics using the local scope implementation. It enables incremental
// migration without changing call sites that expect errgroup's API.
package errgroup

import (
	"context"
	"sync"

	"github.com/NetPo4ki/go-viewstate/scope"
)

// Group is an errgroup-like wrapper over scope.Scope (FailFast).
type Group struct {
	s   *scope.Scope
	ctx context.Context

	// late tracks functions handed to Go after the scope closed; errgroup
	// runs every function regardless, so they execute outside the scope on
	// the already-cancelled context and Wait joins them too.
	late sync.WaitGroup

	once     sync.Once
	firstErr error
}

// WithContext creates a Group bound to ctx. The returned context is
// cancelled when any function passed to Go returns a non-nil error.
func WithContext(ctx context.Context) (*Group, context.Context) {
	s := scope.New(ctx, scope.FailFast)
	g := &Group{s: s, ctx: s.Context()}
	return g, g.ctx
}

// Go starts a function. It should return a non-nil error to signal failure.
// The function always runs, even when the group's scope has already been
// cancelled by an earlier failure; it then sees the cancelled context, as
// with x/sync/errgroup.
func (g *Group) Go(f func() error) {
	if f == nil {
		return
	}
	body := func(context.Context) error {
		err := f()
		if err != nil {
			g.once.Do(func() {
				g.firstErr = err
				g.s.Cancel(err)
			})
		}
		return err
	}
	if _, err := g.s.Launch(body); err != nil {
		g.late.Add(1)
		go func() {
			defer g.late.Done()
			_ = body(g.ctx)
		}()
	}
}

// Wait blocks until all functions have returned. It returns the first
// non-nil error any of them produced, or nil on success.
func (g *Group) Wait() error {
	_ = g.s.Join()
	g.late.Wait()
	g.once.Do(func() {})
	return g.firstErr
}
