package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the transcription service.
// Each instance owns its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// Session buffer metrics
	ChunksAppended prometheus.Counter
	ChunkBytes     prometheus.Histogram
	OpenSessions   prometheus.Gauge
	Finishes       *prometheus.CounterVec

	// Transcription metrics
	TranscriptionRequests *prometheus.CounterVec
	TranscriptionFailures *prometheus.CounterVec
	TranscriptionRetries  prometheus.Counter
	ProviderDuration      prometheus.Histogram
	AudioDuration         prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ChunksAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicetranscribe_chunks_appended_total",
			Help: "Total number of audio chunks appended to session buffers",
		}),
		ChunkBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicetranscribe_chunk_size_bytes",
			Help:    "Size of appended audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 2, 14), // 256B to ~2MB
		}),
		OpenSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicetranscribe_open_sessions",
			Help: "Current number of sessions accumulating chunks",
		}),
		Finishes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicetranscribe_session_finishes_total",
			Help: "Total number of session finish calls by outcome",
		}, []string{"outcome"}),

		TranscriptionRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicetranscribe_transcription_requests_total",
			Help: "Total number of transcription requests sent to the provider",
		}, []string{"provider"}),
		TranscriptionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicetranscribe_transcription_failures_total",
			Help: "Total number of degraded transcriptions by failure kind",
		}, []string{"provider", "kind"}),
		TranscriptionRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicetranscribe_transcription_retries_total",
			Help: "Total number of transcription request retries",
		}),
		ProviderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicetranscribe_provider_duration_seconds",
			Help:    "Duration of provider calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1 minute
		}),
		AudioDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicetranscribe_audio_duration_seconds",
			Help:    "Estimated playback duration of transcribed audio",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicetranscribe_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicetranscribe_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// Handler exposes this instance's registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordChunk records one appended chunk
func (m *Metrics) RecordChunk(sizeBytes int) {
	m.ChunksAppended.Inc()
	m.ChunkBytes.Observe(float64(sizeBytes))
}

// SetOpenSessions sets the current number of open sessions
func (m *Metrics) SetOpenSessions(count int) {
	m.OpenSessions.Set(float64(count))
}

// RecordFinish counts a finish call; outcome is "transcribed", "no_audio" or "error"
func (m *Metrics) RecordFinish(outcome string) {
	m.Finishes.WithLabelValues(outcome).Inc()
}

// RecordTranscription records a provider call and, if kind is not empty,
// the degraded outcome.
func (m *Metrics) RecordTranscription(provider, kind string, durationSeconds float64) {
	m.TranscriptionRequests.WithLabelValues(provider).Inc()
	m.ProviderDuration.Observe(durationSeconds)
	if kind != "" {
		m.TranscriptionFailures.WithLabelValues(provider, kind).Inc()
	}
}

// RecordTranscriptionRetry increments the retry counter
func (m *Metrics) RecordTranscriptionRetry() {
	m.TranscriptionRetries.Inc()
}

// RecordAudioDuration observes the estimated duration of transcribed audio
func (m *Metrics) RecordAudioDuration(seconds float64) {
	m.AudioDuration.Observe(seconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
