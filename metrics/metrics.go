// Package metrics registers the Prometheus instruments for pulse ingestion.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PulsesAccepted counts sensor pulses that mutated a counter.
	PulsesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crowdgauge_pulses_accepted_total",
		Help: "Total number of accepted sensor pulses",
	})

	// PulsesRejected counts rejected pulses by reason
	// (invalid_payload, unknown_device, storage).
	PulsesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdgauge_pulses_rejected_total",
		Help: "Total number of rejected sensor pulses by reason",
	}, []string{"reason"})

	// Rollovers counts daily counter rollovers.
	Rollovers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crowdgauge_daily_rollovers_total",
		Help: "Total number of daily visit counter rollovers",
	})

	// LedgerAppendFailures counts footfall ledger writes that failed after the
	// counter update was already committed.
	LedgerAppendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crowdgauge_ledger_append_failures_total",
		Help: "Total number of failed footfall ledger appends",
	})
)
