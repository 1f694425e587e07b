package service

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService instruments the scan pipeline and serves the collectors to
// the kiosk status server. It also provides lightweight snapshots for the
// status endpoint.
type MetricsService struct {
	registry      *prometheus.Registry
	handler       http.Handler
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	pagesScanned  prometheus.Counter
	docsCompleted *prometheus.CounterVec
	docsAbandoned prometheus.Counter
	ocrAttempts   prometheus.Counter
	ocrFailures   prometheus.Counter
	uploadRetries prometheus.Counter
	uploadGiveups prometheus.Counter

	pageCount      uint64
	completedCount uint64
	abandonedCount uint64
	ocrAttemptNum  uint64
	ocrFailureNum  uint64
	giveupCount    uint64
}

// NewMetricsService registers the pipeline collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scan_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	stageFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_stage_failures_total",
		Help: "Failures per pipeline stage",
	}, []string{"stage", "kind"})

	pagesScanned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scan_pages_total",
		Help: "Pages captured from the scanner",
	})

	docsCompleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_documents_completed_total",
		Help: "Documents graded and persisted",
	}, []string{"mode"})

	docsAbandoned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scan_documents_abandoned_total",
		Help: "Documents abandoned at a recovery menu",
	})

	ocrAttempts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ocr_attempts_total",
		Help: "Extraction service calls, including retries",
	})

	ocrFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ocr_failures_total",
		Help: "Failed extraction service calls",
	})

	uploadRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "upload_background_retries_total",
		Help: "Background upload retry jobs enqueued",
	})

	uploadGiveups := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "upload_background_exhausted_total",
		Help: "Background upload jobs that exhausted every attempt",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(stageDuration, stageFailures, pagesScanned, docsCompleted, docsAbandoned, ocrAttempts, ocrFailures, uploadRetries, uploadGiveups, goroutines)

	return &MetricsService{
		registry:      registry,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		stageDuration: stageDuration,
		stageFailures: stageFailures,
		pagesScanned:  pagesScanned,
		docsCompleted: docsCompleted,
		docsAbandoned: docsAbandoned,
		ocrAttempts:   ocrAttempts,
		ocrFailures:   ocrFailures,
		uploadRetries: uploadRetries,
		uploadGiveups: uploadGiveups,
	}
}

// Handler exposes the Prometheus endpoint.
func (m *MetricsService) Handler() http.Handler { return m.handler }

// ObserveStage records one stage execution.
func (m *MetricsService) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// StageFailure counts a stage failure by recovery kind.
func (m *MetricsService) StageFailure(stage, kind string) {
	m.stageFailures.WithLabelValues(stage, kind).Inc()
}

// PageScanned counts one captured page.
func (m *MetricsService) PageScanned() {
	m.pagesScanned.Inc()
	atomic.AddUint64(&m.pageCount, 1)
}

// DocumentCompleted counts one persisted document.
func (m *MetricsService) DocumentCompleted(mode string) {
	m.docsCompleted.WithLabelValues(mode).Inc()
	atomic.AddUint64(&m.completedCount, 1)
}

// DocumentAbandoned counts one abandoned document.
func (m *MetricsService) DocumentAbandoned() {
	m.docsAbandoned.Inc()
	atomic.AddUint64(&m.abandonedCount, 1)
}

// OCRAttempt implements the extraction client's observer hook.
func (m *MetricsService) OCRAttempt(err error) {
	m.ocrAttempts.Inc()
	atomic.AddUint64(&m.ocrAttemptNum, 1)
	if err != nil {
		m.ocrFailures.Inc()
		atomic.AddUint64(&m.ocrFailureNum, 1)
	}
}

// UploadRetryScheduled counts a background retry job.
func (m *MetricsService) UploadRetryScheduled() {
	m.uploadRetries.Inc()
}

// UploadRetryExhausted counts a background job that gave up.
func (m *MetricsService) UploadRetryExhausted() {
	m.uploadGiveups.Inc()
	atomic.AddUint64(&m.giveupCount, 1)
}

// Snapshot is a point-in-time counter view for the status endpoint.
type Snapshot struct {
	PagesScanned       uint64 `json:"pages_scanned"`
	DocumentsCompleted uint64 `json:"documents_completed"`
	DocumentsAbandoned uint64 `json:"documents_abandoned"`
	OCRAttempts        uint64 `json:"ocr_attempts"`
	OCRFailures        uint64 `json:"ocr_failures"`
	UploadsGivenUp     uint64 `json:"uploads_given_up"`
	Goroutines         int    `json:"goroutines"`
}

// Snapshot returns the current counters.
func (m *MetricsService) Snapshot() Snapshot {
	return Snapshot{
		PagesScanned:       atomic.LoadUint64(&m.pageCount),
		DocumentsCompleted: atomic.LoadUint64(&m.completedCount),
		DocumentsAbandoned: atomic.LoadUint64(&m.abandonedCount),
		OCRAttempts:        atomic.LoadUint64(&m.ocrAttemptNum),
		OCRFailures:        atomic.LoadUint64(&m.ocrFailureNum),
		UploadsGivenUp:     atomic.LoadUint64(&m.giveupCount),
		Goroutines:         runtime.NumGoroutine(),
	}
}
