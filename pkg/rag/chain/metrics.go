package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewrag_chain_requests_total",
			Help: "Conversational chain invocations by outcome (ok or error kind)",
		},
		[]string{"outcome"},
	)
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reviewrag_chain_stage_duration_seconds",
			Help:    "Duration of each chain stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"stage"},
	)
	retrievedDocuments = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reviewrag_chain_retrieved_documents",
			Help:    "Number of documents returned by the retrieval stage",
			Buckets: []float64{0, 1, 2, 3},
		},
	)
)

var tracer = otel.Tracer("review-rag-be/chain")

func init() {
	prometheus.MustRegister(requestsTotal, stageDuration, retrievedDocuments)
}
