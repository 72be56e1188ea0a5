// ABOUTME: Package metrics exposes Prometheus counters for the console engine.

package metrics
