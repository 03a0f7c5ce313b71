// Package metrics exposes Prometheus collectors for the web server and the
// activity worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "finanzas"

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	pagesTotal      *prometheus.CounterVec
	viewLoads       *prometheus.CounterVec
	viewLoadTime    *prometheus.HistogramVec
	eventsPublished *prometheus.CounterVec
	eventsHandled   *prometheus.CounterVec
}

// New registers the collectors. Go runtime and process collectors are
// included so /metrics is useful on its own.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		pagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_served_total",
			Help:      "Rendered pages by route name and status.",
		}, []string{"route", "status"}),
		viewLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_loads_total",
			Help:      "Deferred view loads by view and result.",
		}, []string{"view", "result"}),
		viewLoadTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "view_load_duration_seconds",
			Help:      "Time spent loading deferred views.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"view"}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events handed to the broker by type and result.",
		}, []string{"type", "result"}),
		eventsHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_handled_total",
			Help:      "Events processed by the activity worker by type and result.",
		}, []string{"type", "result"}),
	}
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records a finished HTTP request. The route label is the chi
// pattern, so path parameters do not explode cardinality.
func (m *Metrics) ObserveRequest(r *http.Request, status int, d time.Duration) {
	route := "unmatched"
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			route = p
		}
	}
	m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObservePage records a page render by route name.
func (m *Metrics) ObservePage(route string, status int) {
	if route == "" {
		route = "none"
	}
	m.pagesTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// ObserveViewLoad records a deferred view load.
func (m *Metrics) ObserveViewLoad(view string, d time.Duration, err error) {
	m.viewLoads.WithLabelValues(view, result(err)).Inc()
	m.viewLoadTime.WithLabelValues(view).Observe(d.Seconds())
}

// ObservePublish records an outgoing event.
func (m *Metrics) ObservePublish(eventType string, err error) {
	m.eventsPublished.WithLabelValues(eventType, result(err)).Inc()
}

// ObserveHandled records an event processed by the worker.
func (m *Metrics) ObserveHandled(eventType string, err error) {
	m.eventsHandled.WithLabelValues(eventType, result(err)).Inc()
}

// CacheStats is satisfied by cache.LRUCache.
type CacheStats interface {
	Counters() (hits, misses int64, size int)
}

// RegisterCache exports hit, miss and size gauges for a named cache.
func (m *Metrics) RegisterCache(name string, c CacheStats) {
	labels := prometheus.Labels{"cache": name}
	factory := promauto.With(m.registry)
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace, Name: "cache_hits_total", Help: "Cache hits.", ConstLabels: labels,
	}, func() float64 { h, _, _ := c.Counters(); return float64(h) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace, Name: "cache_misses_total", Help: "Cache misses.", ConstLabels: labels,
	}, func() float64 { _, mi, _ := c.Counters(); return float64(mi) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: "cache_entries", Help: "Entries held by the cache.", ConstLabels: labels,
	}, func() float64 { _, _, s := c.Counters(); return float64(s) })
}

// RegisterCounterFunc exports an externally maintained counter, such as
// rate limiter refusals.
func (m *Metrics) RegisterCounterFunc(name, help string, fn func() float64) {
	promauto.With(m.registry).NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace, Name: name, Help: help,
	}, fn)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
