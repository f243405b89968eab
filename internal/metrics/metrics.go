package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// UploadsTotal counts uploaded files by outcome.
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanroom_uploads_total",
			Help: "Count of uploaded files by status",
		},
		[]string{"status"},
	)

	// LLMRequestsTotal counts model calls by kind and outcome.
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanroom_llm_requests_total",
			Help: "Count of LLM API calls by kind and status",
		},
		[]string{"kind", "status"},
	)

	// LLMRequestDuration observes model call latency per kind.
	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cleanroom_llm_request_duration_seconds",
			Help:    "Latency of LLM API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// ResponseRepairsTotal counts repair attempts on malformed responses.
	ResponseRepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanroom_response_repairs_total",
			Help: "Count of repair passes on malformed LLM responses",
		},
		[]string{"status"},
	)

	// ExportsTotal counts generated workbooks by kind.
	ExportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanroom_exports_total",
			Help: "Count of exported workbooks by kind",
		},
		[]string{"kind"},
	)
)

// Register installs all collectors on the default registry.
func Register() {
	prometheus.MustRegister(UploadsTotal)
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(ResponseRepairsTotal)
	prometheus.MustRegister(ExportsTotal)
}
