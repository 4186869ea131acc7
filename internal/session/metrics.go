package session

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "session",
			Name:      "loads_total",
			Help:      "Model loads by result",
		},
		[]string{"result"},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "session",
			Name:      "generations_total",
			Help:      "Finished generation calls by stop reason (or failure stage)",
		},
		[]string{"reason"},
	)

	tokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "session",
			Name:      "tokens_total",
			Help:      "Tokens processed by phase",
		},
		[]string{"phase"},
	)

	contextAdjustmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "session",
			Name:      "context_adjustments_total",
			Help:      "Context windows grown to fit prompt and output",
		},
	)

	stopRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "session",
			Name:      "stop_requests_total",
			Help:      "Stop requests received",
		},
	)

	tokensPerSecond = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "clover",
			Subsystem: "session",
			Name:      "tokens_per_second",
			Help:      "Throughput of the last generation call by phase",
		},
		[]string{"phase"},
	)

	generating = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clover",
			Subsystem: "session",
			Name:      "generating",
			Help:      "1 while a generation call is running",
		},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, generationsTotal, tokensTotal, contextAdjustmentsTotal,
		stopRequestsTotal, tokensPerSecond, generating)
}

const (
	phaseIngest   = "ingest"
	phaseGenerate = "generate"
)
