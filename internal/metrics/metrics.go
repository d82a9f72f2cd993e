// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "expense_tracker"

// Fully qualified series names, for Value.
const (
	HTTPRequestsTotal = namespace + "_http_requests_total"
	RecordTotal       = namespace + "_ledger_record_total"
	CacheLookupsTotal = namespace + "_ledger_cache_lookups_total"
	PublishedTotal    = namespace + "_amqp_published_total"
	MirroredTotal     = namespace + "_worker_mirrored_total"
	RateLimitedTotal  = namespace + "_http_rate_limited_total"
	RateLimitClients  = namespace + "_http_rate_limit_clients"
)

// Ledger outcomes.
const (
	OutcomeRecorded = "recorded"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	ledgerOps    *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	published    *prometheus.CounterVec
	mirrored     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "record_total",
			Help:      "Record calls by outcome.",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "cache_lookups_total",
			Help:      "Daily listing cache lookups by result.",
		}, []string{"result"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "amqp",
			Name:      "published_total",
			Help:      "Expense recorded events by publish result.",
		}, []string{"result"}),
		mirrored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "mirrored_total",
			Help:      "Expenses appended to the spreadsheet mirror by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.ledgerOps,
		m.cacheLookups,
		m.published,
		m.mirrored,
	)
	return m
}

// RateLimitSource is the read side of a rate limiter.
type RateLimitSource interface {
	Rejected() int64
	ActiveClients() int
}

// RegisterRateLimiter exports the limiter's rejection count and the number of
// clients it tracks. It fails if a limiter is already registered.
func (m *Metrics) RegisterRateLimiter(src RateLimitSource) error {
	if m == nil || src == nil {
		return nil
	}
	rejected := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests refused by the rate limiter.",
	}, func() float64 { return float64(src.Rejected()) })
	clients := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limit_clients",
		Help:      "Clients currently tracked by the rate limiter.",
	}, func() float64 { return float64(src.ActiveClients()) })

	if err := m.registry.Register(rejected); err != nil {
		return fmt.Errorf("register rate limiter: %w", err)
	}
	if err := m.registry.Register(clients); err != nil {
		m.registry.Unregister(rejected)
		return fmt.Errorf("register rate limiter: %w", err)
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRecord(outcome string) {
	if m == nil {
		return
	}
	m.ledgerOps.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObservePublish(err error) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) ObserveMirror(err error) {
	if m == nil {
		return
	}
	m.mirrored.WithLabelValues(resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Value returns the current value of the counter or gauge called name (fully
// qualified) whose labels include the given ones. Unknown series read as 0.
func (m *Metrics) Value(name string, labels map[string]string) float64 {
	if m == nil {
		return 0
	}
	families, err := m.registry.Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if !matchLabels(metric.GetLabel(), labels) {
				continue
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	return 0
}

type labelPair interface {
	GetName() string
	GetValue() string
}

func matchLabels[L labelPair](pairs []L, want map[string]string) bool {
	found := 0
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; ok {
			if v != p.GetValue() {
				return false
			}
			found++
		}
	}
	return found == len(want)
}
