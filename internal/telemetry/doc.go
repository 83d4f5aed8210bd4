// Package telemetry turns flow lifecycle events into Prometheus metrics and
// OpenTelemetry spans. Both are plain flow hooks, so they attach to a graph
// with flow.WithHook or to a single run with flow.WithRunHook.
package telemetry
