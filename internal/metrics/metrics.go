package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Import metrics
	ImportFilesTotal      *prometheus.CounterVec
	ImportBatchDuration   prometheus.Histogram
	ImportBatchesInFlight prometheus.Gauge

	// Sharing metrics
	WebsocketClients   prometheus.Gauge
	AuthFailuresTotal  *prometheus.CounterVec
	StreamBytesTotal   prometheus.Counter
	UploadedFilesTotal prometheus.Counter

	// Job metrics
	JobDurationSeconds *prometheus.HistogramVec
	TrashPurgedTotal   prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide metrics, registered on first use
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance registered with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediashelf_http_requests_total",
				Help: "Sharing server requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediashelf_http_request_duration_seconds",
				Help:    "Sharing server request latency by method and route",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"method", "route"},
		),

		ImportFilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediashelf_import_files_total",
				Help: "Files handled by the import pipeline by result",
			},
			[]string{"result"},
		),
		ImportBatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mediashelf_import_batch_duration_seconds",
				Help:    "Duration of import batches in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
		),
		ImportBatchesInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mediashelf_import_batches_in_flight",
				Help: "Import batches currently holding a library batch lock",
			},
		),

		WebsocketClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mediashelf_websocket_clients",
				Help: "Connected websocket clients",
			},
		),
		AuthFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediashelf_auth_failures_total",
				Help: "Rejected sharing requests by reason",
			},
			[]string{"reason"},
		),
		StreamBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mediashelf_stream_bytes_total",
				Help: "Total number of bytes streamed",
			},
		),
		UploadedFilesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mediashelf_uploaded_files_total",
				Help: "Files received through the upload endpoint",
			},
		),

		JobDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "mediashelf_job_duration_seconds",
				Help: "Duration of scheduled jobs in seconds",
			},
			[]string{"job", "status"},
		),
		TrashPurgedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mediashelf_trash_purged_total",
				Help: "Media files permanently removed by the trash purge job",
			},
		),
	}
}
