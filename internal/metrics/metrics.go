// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlRequestsTotal *prometheus.CounterVec
	csvRowsTotal       *prometheus.CounterVec
	csvFilesTotal      prometheus.Counter
	ingestJobsTotal    *prometheus.CounterVec
	ingestPollsTotal   prometheus.Counter
	activeUploads      prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mindstream_crawl_requests_total",
				Help: "Total crawl API requests, labeled by status code.",
			},
			[]string{"code"},
		)

		csvRowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mindstream_csv_rows_total",
				Help: "Total rows handled by the converter, labeled by outcome (written or skipped).",
			},
			[]string{"outcome"},
		)

		csvFilesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mindstream_csv_files_total",
				Help: "Total CSV batch files sealed by the converter.",
			},
		)

		ingestJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mindstream_ingest_jobs_total",
				Help: "Total bulk ingest jobs, labeled by terminal outcome.",
			},
			[]string{"outcome"},
		)

		ingestPollsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mindstream_ingest_polls_total",
				Help: "Total job status polls issued while waiting for terminal states.",
			},
		)

		activeUploads = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mindstream_active_uploads",
				Help: "Number of upload workers currently processing a file.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCrawlRequest records one crawl API call by HTTP status code.
func ObserveCrawlRequest(code string) {
	if crawlRequestsTotal == nil {
		return
	}
	crawlRequestsTotal.WithLabelValues(code).Inc()
}

// ObserveRow records one converter row outcome ("written" or "skipped").
func ObserveRow(outcome string) {
	if csvRowsTotal == nil {
		return
	}
	csvRowsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFileSealed records one sealed CSV batch file.
func ObserveFileSealed() {
	if csvFilesTotal == nil {
		return
	}
	csvFilesTotal.Inc()
}

// ObserveJob records one ingest job reaching a terminal outcome.
func ObserveJob(outcome string) {
	if ingestJobsTotal == nil {
		return
	}
	ingestJobsTotal.WithLabelValues(outcome).Inc()
}

// ObservePoll records one status poll.
func ObservePoll() {
	if ingestPollsTotal == nil {
		return
	}
	ingestPollsTotal.Inc()
}

// UploadStarted marks a worker as busy.
func UploadStarted() {
	if activeUploads == nil {
		return
	}
	activeUploads.Inc()
}

// UploadFinished marks a worker as idle again.
func UploadFinished() {
	if activeUploads == nil {
		return
	}
	activeUploads.Dec()
}
