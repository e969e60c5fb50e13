// Package metrics exposes Prometheus counters and histograms for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the service layer reports domain events through.
type Recorder interface {
	RecordIssueOp(op string)
	RecordMembershipChange(op string)
	RecordAuthEvent(event, outcome string)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	issues      *prometheus.CounterVec
	memberships *prometheus.CounterVec
	authEvents  *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sprintium_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sprintium_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sprintium_issues_total",
			Help: "Issue operations that completed, by operation.",
		}, []string{"op"}),
		memberships: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sprintium_membership_changes_total",
			Help: "Membership changes that completed, by operation.",
		}, []string{"op"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sprintium_auth_events_total",
			Help: "Authentication events by kind and outcome.",
		}, []string{"event", "outcome"}),
	}

	reg.MustRegister(
		c.requests,
		c.duration,
		c.issues,
		c.memberships,
		c.authEvents,
	)

	return c
}

func (c *Collector) RecordIssueOp(op string) {
	c.issues.WithLabelValues(op).Inc()
}

func (c *Collector) RecordMembershipChange(op string) {
	c.memberships.WithLabelValues(op).Inc()
}

func (c *Collector) RecordAuthEvent(event, outcome string) {
	c.authEvents.WithLabelValues(event, outcome).Inc()
}

// Middleware records every request under its chi route pattern
// ("/projects/{id}/issues"), never the raw path, so label cardinality stays
// bounded by the route table.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		c.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Used where metrics are not wired, mostly tests.
type Nop struct{}

func (Nop) RecordIssueOp(string)           {}
func (Nop) RecordMembershipChange(string)  {}
func (Nop) RecordAuthEvent(string, string) {}
