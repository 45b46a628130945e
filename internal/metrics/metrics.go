// Package metrics provides Prometheus metrics collection for the gateway.
// It tracks per-model request outcomes, latencies, token usage, quota
// rejections, and credit spend.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
)

const namespace = "polygate"

// LatencyBuckets defines histogram buckets for latency metrics (in seconds).
var LatencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 90, 120,
}

var (
	// RequestsTotal counts orchestrated model requests by terminal outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of model requests",
		},
		[]string{"provider", "model", "method", "status"},
	)

	// RequestLatency tracks end-to-end per-model latency.
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_seconds",
			Help:      "Per-model request latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"provider", "model"},
	)

	// TokenUsage tracks token consumption by direction.
	TokenUsage = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_usage_total",
			Help:      "Total token usage",
		},
		[]string{"provider", "model", "type"}, // type: input, output
	)

	// UpstreamErrors counts terminal failures by classified type.
	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Total upstream errors by type",
		},
		[]string{"provider", "error_type"},
	)

	// FallbacksTotal counts successes by the source class that served them.
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Successful requests by fallback method",
		},
		[]string{"model", "method"},
	)

	// QuotaRejections counts requests turned away by the monthly gate.
	QuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Requests rejected by quota limits",
		},
		[]string{"provider", "model"},
	)

	// CreditSpend accumulates pooled-credit spend in dollars.
	CreditSpend = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_spend_dollars_total",
			Help:      "Total pooled-credit spend in dollars",
		},
		[]string{"model"},
	)
)

// Recorder implements the orchestrator's Observer interface.
type Recorder struct{}

// NewRecorder returns a metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ObserveOutcome records one terminal per-model outcome.
func (Recorder) ObserveOutcome(provider, model, method string, err error, latency time.Duration) {
	model = sanitizeModelLabel(model)
	if provider == "" {
		provider = "unknown"
	}

	status := "ok"
	if err != nil {
		status = "error"
		errType := "internal_error"
		if ge := gwerrors.AsGatewayError(err); ge != nil {
			errType = ge.Type
		}
		UpstreamErrors.WithLabelValues(provider, errType).Inc()
		if gwerrors.IsQuotaExceeded(err) {
			QuotaRejections.WithLabelValues(provider, model).Inc()
		}
	} else if method != "" && method != "none" {
		FallbacksTotal.WithLabelValues(model, method).Inc()
	}

	RequestsTotal.WithLabelValues(provider, model, method, status).Inc()
	RequestLatency.WithLabelValues(provider, model).Observe(latency.Seconds())
}

// RecordTokens records token usage metrics.
func RecordTokens(provider, model string, inputTokens, outputTokens int) {
	model = sanitizeModelLabel(model)
	if inputTokens > 0 {
		TokenUsage.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		TokenUsage.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordCreditSpend records pooled-credit spend for one request.
func RecordCreditSpend(model string, cost float64) {
	if cost <= 0 {
		return
	}
	CreditSpend.WithLabelValues(sanitizeModelLabel(model)).Add(cost)
}

const maxModelLabelLen = 64

// sanitizeModelLabel bounds label cardinality against hostile model names.
func sanitizeModelLabel(model string) string {
	model = strings.TrimSpace(model)
	if idx := strings.LastIndex(model, "/"); idx >= 0 {
		model = model[idx+1:]
	}
	if model == "" {
		return "unknown"
	}

	var b strings.Builder
	for _, r := range model {
		if (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '-' || r == '_' || r == '.' || r == ':' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		if b.Len() >= maxModelLabelLen {
			break
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "unknown"
	}
	return out
}
