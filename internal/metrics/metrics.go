// Package metrics exposes the engine's operational counters on the default
// prometheus registry, served at /metrics by the admin API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerReadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crowdfund_ledger_reads_total",
		Help: "Total campaign projection reads attempted against the registry",
	})

	LedgerReadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crowdfund_ledger_read_failures_total",
		Help: "Projection reads that exhausted their retry budget and were skipped",
	})

	ReconciliationRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crowdfund_reconciliation_runs_total",
		Help: "Completed batch reconciliation runs",
	})

	ClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdfund_reconciliation_classifications_total",
		Help: "Per-submission reconciliation outcomes by classification",
	}, []string{"classification"})

	URICollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crowdfund_index_uri_collisions_total",
		Help: "Duplicate base URIs observed while building the campaign index",
	})

	LifecycleTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdfund_lifecycle_transitions_total",
		Help: "Completed lifecycle transitions by action",
	}, []string{"action"})
)
