// ABOUTME: Read-only HTTP surface over the engine's state snapshots.
// ABOUTME: Serves health, Prometheus metrics, and JSON views for dashboards.

// Package observer exposes the console's live state over HTTP for
// side-car dashboards and debugging. Every endpoint is a read-only
// snapshot; commands never flow through this surface.
package observer
