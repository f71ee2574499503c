package metrics

import "github.com/prometheus/client_golang/prometheus"

// Alert pipeline Prometheus metrics.
var (
	PercolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexalert",
			Name:      "percolations_total",
			Help:      "Total number of percolated documents",
		},
		[]string{"index", "status"},
	)

	PercolatorMatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lexalert",
			Name:      "percolator_matches_total",
			Help:      "Total number of alert queries matched by percolated documents",
		},
	)

	AlertEmailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexalert",
			Name:      "alert_emails_total",
			Help:      "Total number of alert emails handed to the mailer",
		},
		[]string{"rate", "status"},
	)

	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexalert",
			Name:      "webhook_deliveries_total",
			Help:      "Total number of webhook events handed to the sender",
		},
		[]string{"status"},
	)

	ScheduledHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexalert",
			Name:      "scheduled_hits_total",
			Help:      "Total number of scheduled alert hits created",
		},
		[]string{"rate"},
	)
)

var alertMetricsRegistered bool

// RegisterAlertMetrics registers alert pipeline metrics. Must be called once from main.
func RegisterAlertMetrics() {
	if alertMetricsRegistered {
		return
	}
	prometheus.MustRegister(PercolationsTotal)
	prometheus.MustRegister(PercolatorMatchesTotal)
	prometheus.MustRegister(AlertEmailsTotal)
	prometheus.MustRegister(WebhookDeliveriesTotal)
	prometheus.MustRegister(ScheduledHitsTotal)
	alertMetricsRegistered = true
}
