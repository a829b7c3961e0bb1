package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// IncidentsStarted counts incidents opened, labelled by trigger source.
	IncidentsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "bcp",
		Name:      "incidents_started_total",
		Help:      "Incidents started, by source.",
	}, []string{"source"})

	// PlanTransitions counts plan lifecycle transitions by target status.
	PlanTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "bcp",
		Name:      "plan_transitions_total",
		Help:      "Plan status transitions, by target status.",
	}, []string{"status"})

	// ExportsGenerated counts plan exports by format.
	ExportsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "bcp",
		Name:      "exports_generated_total",
		Help:      "Plan exports generated, by format.",
	}, []string{"format"})

	// XeroSyncs counts invoice sync runs by outcome
	// (succeeded, failed, skipped).
	XeroSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "xero",
		Name:      "invoice_syncs_total",
		Help:      "Xero invoice sync runs, by outcome.",
	}, []string{"outcome"})

	// XeroSyncDuration observes how long an invoice sync run takes.
	XeroSyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "portal",
		Subsystem: "xero",
		Name:      "invoice_sync_duration_seconds",
		Help:      "Duration of Xero invoice sync runs.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Handler exposes the Prometheus registry over HTTP.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
