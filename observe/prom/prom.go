// Package prom provides a Prometheus-backed observer for the scope package.
package prom

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/NetPo4ki/go-viewstate/scope"
)

// Observer implements scope.Observer on Prometheus collectors. Attach it
// with scope.WithObserver and expose the registry however the host program
// already does.
type Observer struct {
	scopesCreated   prometheus.Counter
	scopesCancelled prometheus.Counter
	joinWait        prometheus.Histogram

	tasksStarted  prometheus.Counter
	tasksFinished *prometheus.CounterVec
	activeTasks   prometheus.Gauge
	taskDuration  prometheus.Histogram
}

// New registers the collectors against reg and returns the observer. Pass
// prometheus.DefaultRegisterer to use the process-wide registry.
func New(reg prometheus.Registerer) *Observer {
	factory := promauto.With(reg)
	return &Observer{
		scopesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "viewstate", Subsystem: "scope",
			Name: "created_total", Help: "Scopes created.",
		}),
		scopesCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "viewstate", Subsystem: "scope",
			Name: "cancelled_total", Help: "Scope teardowns begun.",
		}),
		joinWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "viewstate", Subsystem: "scope",
			Name: "join_wait_seconds", Help: "Time spent blocked in Join.",
			Buckets: prometheus.DefBuckets,
		}),
		tasksStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "viewstate", Subsystem: "task",
			Name: "started_total", Help: "Tasks started.",
		}),
		tasksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "viewstate", Subsystem: "task",
			Name: "finished_total", Help: "Tasks finished, by terminal state.",
		}, []string{"state"}),
		activeTasks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "viewstate", Subsystem: "task",
			Name: "active", Help: "Tasks currently running.",
		}),
		taskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "viewstate", Subsystem: "task",
			Name: "duration_seconds", Help: "Task run time.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (o *Observer) ScopeCreated(_ context.Context) { o.scopesCreated.Inc() }

func (o *Observer) ScopeCancelled(_ context.Context, _ error) { o.scopesCancelled.Inc() }

func (o *Observer) ScopeJoined(_ context.Context, wait time.Duration) {
	o.joinWait.Observe(wait.Seconds())
}

func (o *Observer) TaskStarted(_ context.Context, _ string) {
	o.tasksStarted.Inc()
	o.activeTasks.Inc()
}

func (o *Observer) TaskFinished(_ context.Context, _ string, state scope.TaskState, dur time.Duration, _ error) {
	o.activeTasks.Dec()
	o.tasksFinished.WithLabelValues(state.String()).Inc()
	o.taskDuration.Observe(dur.Seconds())
}
