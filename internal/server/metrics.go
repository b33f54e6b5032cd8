package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-pipeform/pkg/validation"
)

// Metrics holds the collectors exported at /metrics. Each Server owns its
// registry so several servers can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	derivations *prometheus.CounterVec
	issues      *prometheus.CounterVec
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeform_http_requests_total",
			Help: "HTTP requests served, by route and status code.",
		}, []string{"method", "route", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeform_http_request_duration_seconds",
			Help:    "Latency of HTTP requests, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		derivations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeform_derivations_total",
			Help: "Form derivations, by outcome (valid, invalid, error).",
		}, []string{"outcome"}),
		issues: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeform_validation_issues_total",
			Help: "Validation issues reported, by issue code.",
		}, []string{"code"}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// observe is the request middleware: it records latency and status for the
// matched route pattern, not the raw URL.
func (m *Metrics) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		begin := time.Now()
		err := next(c)

		status := c.Response().Status
		if err != nil {
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if status < http.StatusBadRequest {
				status = http.StatusInternalServerError
			}
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request().Method
		m.latency.WithLabelValues(method, route).Observe(time.Since(begin).Seconds())
		m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		return err
	}
}

func (m *Metrics) derived(issues validation.Issues, err error) {
	switch {
	case err != nil:
		m.derivations.WithLabelValues("error").Inc()
		return
	case len(issues) == 0:
		m.derivations.WithLabelValues("valid").Inc()
	default:
		m.derivations.WithLabelValues("invalid").Inc()
	}
	for _, issue := range issues {
		m.issues.WithLabelValues(string(issue.Code)).Inc()
	}
}
