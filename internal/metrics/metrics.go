// Package metrics exposes Prometheus counters for the marketplace core.
//
// Counters:
//   - marketplace_applications_created_total
//   - marketplace_applications_refused_total{code}
//   - marketplace_selections_total
//   - marketplace_withdrawals_total
//   - marketplace_notifications_written_total{type}
//   - marketplace_notifications_failed_total
//   - marketplace_live_pushes_total{result}      delivered | offline | dropped
//   - marketplace_listing_cache_requests_total{result}  hit | miss
//
// Gauge:
//   - marketplace_live_connections
//
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the registered metrics.
type Collector struct {
	applicationsCreated prometheus.Counter
	applicationsRefused *prometheus.CounterVec
	selections          prometheus.Counter
	withdrawals         prometheus.Counter

	notificationsWritten *prometheus.CounterVec
	notificationsFailed  prometheus.Counter

	livePushes      *prometheus.CounterVec
	liveConnections prometheus.Gauge

	cacheRequests *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		applicationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_applications_created_total",
			Help: "Total number of job applications created",
		}),
		applicationsRefused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_applications_refused_total",
			Help: "Total number of apply attempts refused, by reason code",
		}, []string{"code"}),
		selections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_selections_total",
			Help: "Total number of providers selected for a job",
		}),
		withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_withdrawals_total",
			Help: "Total number of applications withdrawn",
		}),
		notificationsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_notifications_written_total",
			Help: "Total number of notifications persisted, by type",
		}, []string{"type"}),
		notificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_notifications_failed_total",
			Help: "Total number of notifications that could not be persisted",
		}),
		livePushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_live_pushes_total",
			Help: "Total number of live frames pushed, by outcome",
		}, []string{"result"}),
		liveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketplace_live_connections",
			Help: "Current number of registered live connections",
		}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_listing_cache_requests_total",
			Help: "Listing cache lookups, by result",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.applicationsCreated,
		c.applicationsRefused,
		c.selections,
		c.withdrawals,
		c.notificationsWritten,
		c.notificationsFailed,
		c.livePushes,
		c.liveConnections,
		c.cacheRequests,
	)
	return c
}

func (c *Collector) ApplicationCreated() {
	if c == nil {
		return
	}
	c.applicationsCreated.Inc()
}

func (c *Collector) ApplicationRefused(code string) {
	if c == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	c.applicationsRefused.WithLabelValues(code).Inc()
}

func (c *Collector) ProviderSelected() {
	if c == nil {
		return
	}
	c.selections.Inc()
}

func (c *Collector) ApplicationWithdrawn() {
	if c == nil {
		return
	}
	c.withdrawals.Inc()
}

func (c *Collector) NotificationWritten(kind string) {
	if c == nil {
		return
	}
	c.notificationsWritten.WithLabelValues(kind).Inc()
}

func (c *Collector) NotificationFailed() {
	if c == nil {
		return
	}
	c.notificationsFailed.Inc()
}

// LivePush records one push outcome: "delivered", "offline" or "dropped".
func (c *Collector) LivePush(result string) {
	if c == nil {
		return
	}
	c.livePushes.WithLabelValues(result).Inc()
}

func (c *Collector) SetLiveConnections(n int) {
	if c == nil {
		return
	}
	c.liveConnections.Set(float64(n))
}

func (c *Collector) CacheHit() {
	if c == nil {
		return
	}
	c.cacheRequests.WithLabelValues("hit").Inc()
}

func (c *Collector) CacheMiss() {
	if c == nil {
		return
	}
	c.cacheRequests.WithLabelValues("miss").Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
