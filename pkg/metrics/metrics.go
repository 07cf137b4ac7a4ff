// Package metrics exposes Prometheus collectors for forecasting and alert
// reconciliation.
package metrics

import (
	"time"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	PredictionsGenerated prometheus.Counter
	PredictionFailures   *prometheus.CounterVec
	AlertTransitions     *prometheus.CounterVec
	Notifications        *prometheus.CounterVec
	SitesSkipped         *prometheus.CounterVec
	CycleDuration        prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PredictionsGenerated: f.NewCounter(prometheus.CounterOpts{
			Name: "fuelguard_predictions_generated_total",
			Help: "Total number of predictions computed and stored.",
		}),
		PredictionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelguard_prediction_failures_total",
			Help: "Sites that could not be forecast, by reason.",
		}, []string{"reason"}),
		AlertTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelguard_alert_transitions_total",
			Help: "Alert state changes, by action.",
		}, []string{"action"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelguard_notifications_total",
			Help: "Notification attempts, by channel and status.",
		}, []string{"channel", "status"}),
		SitesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelguard_sites_skipped_total",
			Help: "Sites skipped during a cycle, by reason.",
		}, []string{"reason"}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fuelguard_cycle_duration_seconds",
			Help:    "Duration of a full reconciliation cycle.",
			Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}),
	}
}

func (m *Metrics) PredictionGenerated() {
	if m == nil {
		return
	}
	m.PredictionsGenerated.Inc()
}

func (m *Metrics) PredictionFailed(reason string) {
	if m == nil {
		return
	}
	m.PredictionFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) Transition(action string) {
	if m == nil {
		return
	}
	m.AlertTransitions.WithLabelValues(action).Inc()
}

func (m *Metrics) Notification(channel string, status model.DeliveryStatus) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(channel, string(status)).Inc()
}

func (m *Metrics) SiteSkipped(reason string) {
	if m == nil {
		return
	}
	m.SitesSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(d.Seconds())
}
