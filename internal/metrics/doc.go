// Package metrics exposes Prometheus counters for the poll loop, detection
// episodes, lock movements, notifications, telemetry and remote commands, and
// serves them on /metrics.
//
// All recording methods accept a nil receiver so components built without
// metrics (tools, tests) need no special casing.
package metrics
