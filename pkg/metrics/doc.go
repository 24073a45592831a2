// Package metrics exposes Prometheus counters for botpack's data-plane
// operations (store publishes, fetches, sync file operations). Counters are
// registered explicitly via Register at CLI startup; components increment
// them directly.
package metrics
