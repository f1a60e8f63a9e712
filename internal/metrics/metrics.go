package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TaskTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manhua",
			Name:      "task_transitions_total",
			Help:      "Count of task state transitions by target state.",
		},
		[]string{"state"},
	)

	ImagesDownloaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "manhua",
			Name:      "images_downloaded_total",
			Help:      "Images fetched and written to disk.",
		},
	)

	ImagesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "manhua",
			Name:      "images_skipped_total",
			Help:      "Images found on disk by reconciliation and not fetched again.",
		},
	)

	BytesDownloaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "manhua",
			Name:      "bytes_downloaded_total",
			Help:      "Bytes of image data written to disk.",
		},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "manhua",
			Name:      "rate_limited_total",
			Help:      "Rate-limit signals received from the content source.",
		},
	)

	PoolInUse = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "manhua",
			Name:      "pool_slots_in_use",
			Help:      "Occupied slots per concurrency pool.",
		},
		[]string{"pool"},
	)

	DownloadSpeed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "manhua",
			Name:      "download_speed_bytes_per_second",
			Help:      "Aggregate image throughput over the last sample interval.",
		},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manhua",
			Name:      "http_requests_total",
			Help:      "Outgoing HTTP requests by status code.",
		},
		[]string{"code"},
	)

	HTTPLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "manhua",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of outgoing HTTP requests.",
		},
	)
)

var registerOnce sync.Once

// Register registers the collectors into the default registry. Calling it
// more than once is harmless.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			TaskTransitions, ImagesDownloaded, ImagesSkipped, BytesDownloaded,
			RateLimited, PoolInUse, DownloadSpeed, HTTPRequests, HTTPLatency,
		)
	})
}
