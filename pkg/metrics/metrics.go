package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Store metrics
	StorePutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botpack_store_puts_total",
			Help: "Total number of store publish attempts by outcome",
		},
		[]string{"outcome"}, // published, exists, error
	)

	// Fetch metrics
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botpack_fetches_total",
			Help: "Total number of dependency fetches by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: path, git, registry
	)

	// Sync metrics
	SyncFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botpack_sync_files_total",
			Help: "Total number of sync file operations by target and operation",
		},
		[]string{"target", "op"}, // op: created, updated, removed, conflict, blocked
	)

	SyncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botpack_sync_runs_total",
			Help: "Total number of sync invocations by target",
		},
		[]string{"target"},
	)
)

// Register registers all metrics with the default Prometheus registry.
// Safe to call once at startup.
func Register() error {
	collectors := []prometheus.Collector{
		StorePutsTotal,
		FetchesTotal,
		SyncFilesTotal,
		SyncRunsTotal,
	}

	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}
