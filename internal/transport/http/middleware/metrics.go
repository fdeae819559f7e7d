package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/YOGESHBOTCHA965/W/internal/infra/telemetry"
)

// unmatchedRoute labels requests that hit no route, keeping scanner traffic out of the
// route label's cardinality.
const unmatchedRoute = "unmatched"

// HTTPMetricsOptions configures the HTTP metrics middleware.
type HTTPMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Subsystem  string
	Buckets    []float64
}

// HTTPMetrics exposes Prometheus collectors for request instrumentation.
type HTTPMetrics struct {
	Requests   *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	InFlight   prometheus.Gauge
	Rejections *prometheus.CounterVec
}

var rejectedStatuses = map[int]struct{}{
	http.StatusUnauthorized:          {},
	http.StatusRequestEntityTooLarge: {},
	http.StatusLocked:                {},
	http.StatusTooManyRequests:       {},
}

// NewHTTPMetrics constructs the request collectors and registers them with the provided registerer.
func NewHTTPMetrics(opts HTTPMetricsOptions) (*HTTPMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "wow"
	}
	subsystem := opts.Subsystem
	if subsystem == "" {
		subsystem = "http"
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	requests, err := telemetry.RegisterOrReuse(reg, "requests", prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"}))
	if err != nil {
		return nil, err
	}

	duration, err := telemetry.RegisterOrReuse(reg, "duration", prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds by method and route.",
		Buckets:   buckets,
	}, []string{"method", "route"}))
	if err != nil {
		return nil, err
	}

	inFlight, err := telemetry.RegisterOrReuse[prometheus.Gauge](reg, "inflight", prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "in_flight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	}))
	if err != nil {
		return nil, err
	}

	rejections, err := telemetry.RegisterOrReuse(reg, "rejections", prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rejections_total",
		Help:      "Requests refused by authentication, lockout, body limit or rate limiting, by route and status.",
	}, []string{"route", "status"}))
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		Requests:   requests,
		Duration:   duration,
		InFlight:   inFlight,
		Rejections: rejections,
	}, nil
}

// Handler returns a Gin middleware that records the HTTP metrics.
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		code := c.Writer.Status()
		status := strconv.Itoa(code)

		m.Requests.WithLabelValues(c.Request.Method, route, status).Inc()
		m.Duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
		if _, ok := rejectedStatuses[code]; ok {
			m.Rejections.WithLabelValues(route, status).Inc()
		}
	}
}
