// Package metrics declares the Prometheus collectors shared by the monitor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Candidate outcomes
const (
	OutcomeNotEntity  = "not_entity"
	OutcomeOffTopic   = "off_topic"
	OutcomeNoise      = "noise"
	OutcomeDuplicate  = "duplicate"
	OutcomeUnmatched  = "unclassified"
	OutcomeEmitted    = "emitted"
	OutcomeOverflowed = "over_page_size"
)

var (
	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listingwatch_candidates_total",
			Help: "Candidates seen by the pipeline, by source and outcome.",
		},
		[]string{"source", "outcome"},
	)
	SourceFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listingwatch_source_fetch_total",
			Help: "Source fetches by source and status.",
		},
		[]string{"source", "status"},
	)
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listingwatch_notifications_total",
			Help: "Notification deliveries by channel and status.",
		},
		[]string{"channel", "status"},
	)
	LedgerWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listingwatch_ledger_writes_total",
			Help: "Ledger persist attempts by backend and status.",
		},
		[]string{"backend", "status"},
	)
	LedgerSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "listingwatch_ledger_size",
			Help: "Number of identity hashes in the ledger.",
		},
	)
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listingwatch_run_duration_seconds",
			Help:    "Duration of monitor runs.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)
)

// Status labels
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusEmpty   = "empty"
)
