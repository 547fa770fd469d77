package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChatStreamsTotal       *prometheus.CounterVec
	ChatStreamDuration     prometheus.Histogram
	ChatStreamBytes        prometheus.Counter
	GeneratedContentsTotal *prometheus.CounterVec
	GenerationJobsTotal    *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the process-wide metrics, registering them on first use.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = &Metrics{
			ChatStreamsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "tutor_chat_streams_total",
				Help: "Chat stream requests by outcome",
			}, []string{"outcome"}),
			ChatStreamDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "tutor_chat_stream_duration_seconds",
				Help:    "Time from stream start until the assistant reply is stored",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			}),
			ChatStreamBytes: promauto.NewCounter(prometheus.CounterOpts{
				Name: "tutor_chat_stream_bytes_total",
				Help: "Assistant text bytes streamed to clients",
			}),
			GeneratedContentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "tutor_generated_contents_total",
				Help: "Generated learning contents by result",
			}, []string{"result"}),
			GenerationJobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "tutor_generation_jobs_total",
				Help: "Asynchronous generation jobs by outcome (succeeded, failed, retried)",
			}, []string{"status"}),
		}
	})
	return defaultMetrics
}
