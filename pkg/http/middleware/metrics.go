package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	applogger "LiqSweep/pkg/logger"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "liqsweep_http_requests_total",
		Help: "HTTP requests by route template, method and status.",
	}, []string{"route", "method", "status"})

	requestSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "liqsweep_http_request_duration_seconds",
		Help:    "HTTP request latency by route template.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"route", "method"})

	inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "liqsweep_http_in_flight_requests",
		Help: "HTTP requests being served.",
	})

	registerOnce sync.Once
)

// Metrics counts requests by Echo route template, so /api/bars?from=...
// and unmatched paths do not blow up label cardinality. 5xx replies log at
// error, requests slower than slow at warn.
func Metrics(l *applogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	registerOnce.Do(func() {
		prometheus.MustRegister(requestsTotal, requestSeconds, inFlight)
	})
	if l == nil {
		l = applogger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			inFlight.Inc()
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			inFlight.Dec()
			took := time.Since(start)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := c.Response().Status
			requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			requestSeconds.WithLabelValues(route, method).Observe(took.Seconds())

			switch {
			case status >= 500:
				l.Error("http request failed", applogger.String("route", route), applogger.Int("status", status), applogger.Duration("took", took))
			case slow > 0 && took >= slow:
				l.Warn("http request slow", applogger.String("route", route), applogger.Int("status", status), applogger.Duration("took", took))
			}
			return nil
		}
	}
}
