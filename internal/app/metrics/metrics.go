package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "keyledger"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	ledgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by kind and result code.",
		},
		[]string{"operation", "result"},
	)

	gameRounds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wagering",
			Name:      "rounds_total",
			Help:      "Settled or cancelled game rounds.",
		},
		[]string{"game", "outcome"},
	)

	prompts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prompt",
			Name:      "completed_total",
			Help:      "Interactive prompts by result.",
		},
		[]string{"result"},
	)

	quoteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "quotes_total",
			Help:      "Upstream quote requests.",
		},
		[]string{"success"},
	)

	quoteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "quote_duration_seconds",
			Help:      "Latency of upstream quote requests.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "handled_total",
			Help:      "Chat commands by name and result code.",
		},
		[]string{"command", "result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ledgerOperations,
		gameRounds,
		prompts,
		quoteRequests,
		quoteDuration,
		commands,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordLedgerOperation counts a ledger mutation. result is "ok" or an error code.
func RecordLedgerOperation(operation, result string) {
	if result == "" {
		result = "ok"
	}
	ledgerOperations.WithLabelValues(operation, result).Inc()
}

// RecordGameRound counts a finished round.
func RecordGameRound(game, outcome string) {
	gameRounds.WithLabelValues(game, outcome).Inc()
}

// RecordPrompt counts a finished prompt (answered, timed_out, cancelled).
func RecordPrompt(result string) {
	prompts.WithLabelValues(result).Inc()
}

// RecordQuote records an upstream quote request.
func RecordQuote(duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	quoteRequests.WithLabelValues(strconv.FormatBool(success)).Inc()
	quoteDuration.Observe(duration.Seconds())
}

// RecordCommand counts a dispatched chat command.
func RecordCommand(command, result string) {
	if command == "" {
		command = "unknown"
	}
	if result == "" {
		result = "ok"
	}
	commands.WithLabelValues(command, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses key segments so label cardinality stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 3 && parts[0] == "v1" && parts[1] == "keys" {
		parts[2] = ":key"
		return "/" + strings.Join(parts, "/")
	}
	return "/" + parts[0]
}

// Hijack lets websocket upgrades pass through the wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}
