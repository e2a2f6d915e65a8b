package otel

import (
	"context"
	"time"

	"github.com/NetPo4ki/go-viewstate/scope"
)

// Nop is a no-op implementation of the scope.Observer interface.
// It serves as a placeholder for an OpenTelemetry-backed observer without
// adding dependencies.
type Nop struct{}

// NewNop returns a no-op observer.
func NewNop() *Nop { return &Nop{} }

func (*Nop) ScopeCreated(context.Context)                                                {}
func (*Nop) ScopeCancelled(context.Context, error)                                       {}
func (*Nop) ScopeJoined(context.Context, time.Duration)                                  {}
func (*Nop) TaskStarted(context.Context, string)                                         {}
func (*Nop) TaskFinished(context.Context, string, scope.TaskState, time.Duration, error) {}
