package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scribe_gateway_active_sessions",
		Help: "Number of live streaming sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_gateway_sessions_total",
		Help: "Total number of streaming sessions created",
	})

	// Audio metrics
	chunksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_gateway_audio_chunks_total",
		Help: "Total number of audio chunks received",
	})

	audioBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_gateway_audio_bytes_total",
		Help: "Total audio bytes received",
	}, []string{"path"}) // path: "stream" or "batch"

	// Provider metrics
	transcriptionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_gateway_transcription_requests_total",
		Help: "Total number of transcription requests",
	}, []string{"status"})

	transcriptionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scribe_gateway_transcription_latency_seconds",
		Help:    "Transcription call latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	summarizationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_gateway_summarization_requests_total",
		Help: "Total number of summarization requests",
	}, []string{"status"})

	summarizationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scribe_gateway_summarization_latency_seconds",
		Help:    "Summarization call latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Batch pipeline metrics
	batchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_gateway_batch_requests_total",
		Help: "Total number of one-shot batch requests",
	}, []string{"status"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// SessionStarted records a new streaming session.
func SessionStarted() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// SessionEnded records a streaming session leaving the store.
func SessionEnded() {
	activeSessions.Dec()
}

// RecordChunk records one received audio chunk.
func RecordChunk(bytes int) {
	chunksTotal.Inc()
	audioBytesTotal.WithLabelValues("stream").Add(float64(bytes))
}

// RecordBatchAudio records the size of a one-shot upload.
func RecordBatchAudio(bytes int) {
	audioBytesTotal.WithLabelValues("batch").Add(float64(bytes))
}

// RecordTranscription records the outcome and latency of one transcription call.
func RecordTranscription(status string, seconds float64) {
	transcriptionRequests.WithLabelValues(status).Inc()
	transcriptionLatency.Observe(seconds)
}

// RecordSummarization records the outcome and latency of one summarization call.
func RecordSummarization(status string, seconds float64) {
	summarizationRequests.WithLabelValues(status).Inc()
	summarizationLatency.Observe(seconds)
}

// RecordBatch records the outcome of a one-shot batch request.
func RecordBatch(status string) {
	batchRequests.WithLabelValues(status).Inc()
}

// RecordError records an error by type and component.
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
