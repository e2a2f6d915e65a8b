// Package otel provides an OpenTelemetry observer plugin for the scope
// package. It emits span events (launch, cancel, join, per-task outcome)
// with low overhead.
package otel
