package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

// Metrics agrupa los colectores del servicio de autenticacion.
type Metrics struct {
	registry        *prometheus.Registry
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	otpResults      *prometheus.CounterVec
	registerResults *prometheus.CounterVec
	signInResults   *prometheus.CounterVec
}

// New registra los colectores en un registry propio.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "books4all",
			Subsystem: "auth",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "books4all",
			Subsystem: "auth",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		otpResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "books4all",
			Subsystem: "auth",
			Name:      "otp_requests_total",
			Help:      "OTP issuance outcomes",
		}, []string{"outcome"}),
		registerResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "books4all",
			Subsystem: "auth",
			Name:      "registrations_total",
			Help:      "Registration verification outcomes",
		}, []string{"outcome"}),
		signInResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "books4all",
			Subsystem: "auth",
			Name:      "sign_ins_total",
			Help:      "Sign-in outcomes by strategy",
		}, []string{"strategy", "outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestTotal,
		m.requestDuration,
		m.otpResults,
		m.registerResults,
		m.signInResults,
	)
	return m
}

// Handler expone el registry para scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestDuration.With(labels).Observe(duration.Seconds())
}

func (m *Metrics) OTPResult(outcome string) {
	if m == nil {
		return
	}
	m.otpResults.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RegisterResult(outcome string) {
	if m == nil {
		return
	}
	m.registerResults.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SignInResult(strategy, outcome string) {
	if m == nil {
		return
	}
	m.signInResults.WithLabelValues(strategy, outcome).Inc()
}
