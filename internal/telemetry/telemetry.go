// Package telemetry exposes the hub's Prometheus metrics and its
// /healthz and /metrics HTTP surface.
package telemetry

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adred-codev/taghub/internal/manager"
)

// Metrics is the hub's Prometheus instrumentation.
type Metrics struct {
	valuesReceived    prometheus.Counter
	valuesAccepted    prometheus.Counter
	valuesStale       prometheus.Counter
	subscribersActive prometheus.Gauge
	tagsSubscribed    prometheus.Gauge
	cacheSize         prometheus.Gauge
	queueDrops        prometheus.Counter
	callbackFailures  *prometheus.CounterVec
	pollErrors        prometheus.Counter
}

// New registers and returns the hub's metric collectors.
func New() *Metrics {
	return &Metrics{
		valuesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taghub_values_received_total",
			Help: "Total number of values submitted to ValueReceived.",
		}),
		valuesAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taghub_values_accepted_total",
			Help: "Total number of values that passed the monotonic-time gate.",
		}),
		valuesStale: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taghub_values_stale_total",
			Help: "Total number of values rejected for being older than the cached sample.",
		}),
		subscribersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "taghub_subscribers_active",
			Help: "Current number of open subscriptions.",
		}),
		tagsSubscribed: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "taghub_tags_subscribed",
			Help: "Current number of tags with at least one subscriber.",
		}),
		cacheSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "taghub_cache_size",
			Help: "Current number of entries in the snapshot cache.",
		}),
		queueDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taghub_subscriber_queue_drops_total",
			Help: "Total number of publishes dropped by a subscriber's bounded queue.",
		}),
		callbackFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "taghub_callback_failures_total",
			Help: "Total number of first/last-subscriber callback failures.",
		}, []string{"direction"}),
		pollErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taghub_poll_errors_total",
			Help: "Total number of upstream read errors swallowed by the polling driver.",
		}),
	}
}

func (m *Metrics) ObserveValueReceived(accepted bool) {
	m.valuesReceived.Inc()
	if accepted {
		m.valuesAccepted.Inc()
	} else {
		m.valuesStale.Inc()
	}
}

func (m *Metrics) ObserveQueueDrop()             { m.queueDrops.Inc() }
func (m *Metrics) ObserveCallbackFailure(added bool) {
	if added {
		m.callbackFailures.WithLabelValues("added").Inc()
	} else {
		m.callbackFailures.WithLabelValues("removed").Inc()
	}
}
func (m *Metrics) ObservePollError() { m.pollErrors.Inc() }

// RefreshGauges snapshots the manager's health probe into the gauge
// metrics. Call periodically; cheap enough to run on every poll tick.
func (m *Metrics) RefreshGauges(h manager.Health) {
	m.subscribersActive.Set(float64(h.SubscriberCount))
	m.tagsSubscribed.Set(float64(h.TagCount))
	m.cacheSize.Set(float64(h.CacheSize))
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HealthHandler returns a /healthz handler reporting the manager's
// current health probe as JSON.
func HealthHandler(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.HealthProbe()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
