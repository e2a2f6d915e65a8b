package errgroup

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGroupRunsAllFunctions(t *testing.T) {
	t.Parallel()
	g, _ := WithContext(context.Background())
	ran := make(chan string, 2)
	g.Go(func() error { ran <- "fast"; return nil })
	g.Go(func() error {
		time.Sleep(10 * time.Millisecond)
		ran <- "slow"
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ran) != 2 {
		t.Fatalf("expected both functions to run, got %d", len(ran))
	}
}

func TestFirstErrorCancelsSiblings(t *testing.T) {
	t.Parallel()
	g, gctx := WithContext(context.Background())
	done := make(chan struct{})
	g.Go(func() error { return errors.New("boom") })
	g.Go(func() error {
		select {
		case <-gctx.Done():
			close(done)
			return nil
		case <-time.After(250 * time.Millisecond):
			t.Error("expected cancel propagation")
			return nil
		}
	})
	if err := g.Wait(); err == nil || err.Error() != "boom" {
		t.Fatalf("expected first error, got %v", err)
	}
	select {
	case <-done:
	case <-time.After(150 * time.Millisecond):
		t.Fatal("ctx was not canceled")
	}
}

func TestGoAfterFailureStillRuns(t *testing.T) {
	t.Parallel()
	g, gctx := WithContext(context.Background())
	g.Go(func() error { return errors.New("boom") })
	// Once the context is done the scope is closed and Launch would refuse
	// the next function; Go must run it anyway, like x/sync/errgroup.
	<-gctx.Done()
	ran := make(chan struct{})
	g.Go(func() error {
		close(ran)
		return errors.New("late")
	})
	err := g.Wait()
	select {
	case <-ran:
	default:
		t.Fatal("function passed to Go after failure never ran")
	}
	if err == nil || err.Error() != "boom" {
		t.Fatalf("Wait must keep the first error, got %v", err)
	}
}

func TestParentDeadlinePropagates(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	g, gctx := WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return gctx.Err()
	})
	err := g.Wait()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestParentCancelPropagates(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return gctx.Err()
	})
	cancel()
	err := g.Wait()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
