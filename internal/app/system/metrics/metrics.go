// Package metrics holds the service's Prometheus collectors. They live on
// a private registry served at /metrics. A nil *Metrics records nothing,
// so services and tests can run without one.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	reg *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Membership metrics
	InvitationsTotal   *prometheus.CounterVec
	MembershipChanges  *prometheus.CounterVec
	ContextSwitches    *prometheus.CounterVec
	OrderedFallbacks   prometheus.Counter
	LiveSubscriptions  prometheus.Gauge
	WorkerRunsTotal    *prometheus.CounterVec
	OpenSessions       prometheus.Gauge
}

// New creates a Metrics with its own registry. Go runtime and process
// collectors are included.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "taskhub"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		InvitationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "invitations",
				Name:      "total",
				Help:      "Invitation transitions by outcome",
			},
			[]string{"outcome"}, // sent, accepted, rejected, expired, failed
		),
		MembershipChanges: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "members",
				Name:      "changes_total",
				Help:      "Membership changes by kind",
			},
			[]string{"kind"}, // joined, role_changed, removed, left
		),
		ContextSwitches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "context",
				Name:      "switches_total",
				Help:      "Active-context switches by result",
			},
			[]string{"result"}, // ok, forbidden, failed
		),
		OrderedFallbacks: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "invitations",
				Name:      "ordered_fallbacks_total",
				Help:      "Pending-invitation queries served by the unordered fallback",
			},
		),
		LiveSubscriptions: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "subscriptions",
				Help:      "Live realtime subscriptions",
			},
		),
		WorkerRunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workers",
				Name:      "runs_total",
				Help:      "Background worker runs by worker and result",
			},
			[]string{"worker", "result"},
		),
		OpenSessions: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "open_sessions",
				Help:      "Signed-in sessions held by this instance",
			},
		),
	}
}

// Registry exposes the private registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Middleware records count, latency and in-flight requests. Requests are
// labelled by chi route pattern so ids do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) Invitation(outcome string) {
	if m == nil {
		return
	}
	m.InvitationsTotal.WithLabelValues(outcome).Inc()
}

// InvitationsExpired adds n expired invitations.
func (m *Metrics) InvitationsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.InvitationsTotal.WithLabelValues("expired").Add(float64(n))
}

func (m *Metrics) MembershipChange(kind string) {
	if m == nil {
		return
	}
	m.MembershipChanges.WithLabelValues(kind).Inc()
}

func (m *Metrics) ContextSwitch(result string) {
	if m == nil {
		return
	}
	m.ContextSwitches.WithLabelValues(result).Inc()
}

func (m *Metrics) OrderedFallback() {
	if m == nil {
		return
	}
	m.OrderedFallbacks.Inc()
}

// SubscriptionOpened and SubscriptionClosed track live realtime
// subscriptions.
func (m *Metrics) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.LiveSubscriptions.Inc()
}

func (m *Metrics) SubscriptionClosed() {
	if m == nil {
		return
	}
	m.LiveSubscriptions.Dec()
}

func (m *Metrics) WorkerRun(worker string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.WorkerRunsTotal.WithLabelValues(worker, result).Inc()
}

func (m *Metrics) SetOpenSessions(n int) {
	if m == nil {
		return
	}
	m.OpenSessions.Set(float64(n))
}

// statusClass folds a status code into 2xx/3xx/4xx/5xx.
func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
