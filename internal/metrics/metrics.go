package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zwitch",
			Name:      "gateway_requests_total",
			Help:      "Outbound calls to the payment gateway API",
		},
		[]string{"operation", "status"},
	)

	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zwitch",
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of outbound gateway calls",
			Buckets: []float64{
				0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.2, 2, 3, 5, 10, 30,
			},
		},
		[]string{"operation"},
	)

	CallbackOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zwitch",
			Name:      "callback_outcomes_total",
			Help:      "Resolved payment verification outcomes per callback action",
		},
		[]string{"action", "outcome"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zwitch",
			Name:      "http_requests_total",
			Help:      "Inbound HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		GatewayRequestsTotal,
		GatewayRequestDuration,
		CallbackOutcomesTotal,
		HTTPRequestsTotal,
	)
}

// ObserveGatewayCall records one gateway round trip. status is the HTTP
// status code, or "error" when the request never got a response.
func ObserveGatewayCall(operation, status string, d time.Duration) {
	GatewayRequestsTotal.WithLabelValues(operation, status).Inc()
	GatewayRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func IncCallbackOutcome(action, outcome string) {
	CallbackOutcomesTotal.WithLabelValues(action, outcome).Inc()
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware counts requests by method, route template and status.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		HTTPRequestsTotal.WithLabelValues(r.Method, routeLabel(r), strconv.Itoa(sw.status)).Inc()
	})
}

// routeLabel keeps path ids out of the label set.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}
