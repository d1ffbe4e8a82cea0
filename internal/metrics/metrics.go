// Package metrics exposes Prometheus collectors for uploads, deletions,
// previews and the record store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adreel_uploads_total",
		Help: "Video record creations by outcome.",
	}, []string{"outcome"}) // outcome=success|validation|upstream|persistence|unknown

	deletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adreel_deletions_total",
		Help: "Video record deletions by outcome.",
	}, []string{"outcome"})

	mediaUploadSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adreel_media_upload_duration_seconds",
		Help:    "Time spent probing, transforming and storing a single asset.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"role"}) // role=primary|ad

	previewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adreel_previews_total",
		Help: "Animated preview renders by outcome.",
	}, []string{"outcome"}) // outcome=success|failure|dropped|canceled

	previewQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "adreel_preview_queue_depth",
		Help: "Preview jobs waiting for a worker.",
	})

	storeCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adreel_record_cache_total",
		Help: "Record cache lookups by result.",
	}, []string{"result"}) // result=hit|miss

	storeCompactionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adreel_store_compactions_total",
		Help: "File store compactions.",
	})
)

func IncUpload(outcome string)   { uploadsTotal.WithLabelValues(outcome).Inc() }
func IncDeletion(outcome string) { deletionsTotal.WithLabelValues(outcome).Inc() }

func ObserveMediaUpload(role string, seconds float64) {
	mediaUploadSeconds.WithLabelValues(role).Observe(seconds)
}

func IncPreview(outcome string)  { previewsTotal.WithLabelValues(outcome).Inc() }
func SetPreviewQueueDepth(n int) { previewQueueDepth.Set(float64(n)) }

// RecordCacheLookup counts a record cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		storeCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	storeCacheTotal.WithLabelValues("miss").Inc()
}

func IncCompaction() { storeCompactionsTotal.Inc() }
