package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval and LLM pipeline Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infinitum",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "infinitum",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infinitum",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	RetrievalSourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infinitum",
			Name:      "retrieval_source_requests_total",
			Help:      "Per-source retrieval attempts",
		},
		[]string{"source", "status"}, // source: "vector" / "keyword"
	)

	RetrievalSourceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "infinitum",
			Name:      "retrieval_source_duration_seconds",
			Help:      "Per-source retrieval duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	SearchMethodTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infinitum",
			Name:      "search_method_total",
			Help:      "Completed searches by resulting method",
		},
		[]string{"method"}, // "hybrid" / "vector_only" / "keyword_only" / "cached" / "unavailable"
	)

	ResultCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infinitum",
			Name:      "result_cache_total",
			Help:      "Search result cache hits and misses",
		},
		[]string{"result"},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infinitum",
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "purpose", "status"}, // purpose: "intent" / "curation"
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "infinitum",
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model", "purpose"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infinitum",
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"provider", "model", "type"}, // type: "prompt" / "completion"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers retrieval and LLM metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(RetrievalSourceRequestsTotal)
	prometheus.MustRegister(RetrievalSourceDuration)
	prometheus.MustRegister(SearchMethodTotal)
	prometheus.MustRegister(ResultCacheTotal)
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(LLMTokensTotal)
	pipelineMetricsRegistered = true
}
