// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsSynced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resosync_records_synced_total",
		Help: "Records upserted per resource by outcome",
	}, []string{"resource", "outcome"}) // outcome=success|failure

	listingsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resosync_listings_deleted_total",
		Help: "Listings removed via the tombstone feed",
	})

	cycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "resosync_cycle_duration_seconds",
		Help:    "Duration of a full sync driver run",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"resource"})

	mediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resosync_media_uploads_total",
		Help: "Media asset upload attempts by outcome",
	}, []string{"outcome"}) // outcome=success|expired|permanent|rate_limited|error

	mediaMissing = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resosync_media_missing",
		Help: "Assets still lacking a local URL (last worker scan)",
	})

	quarantined = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resosync_quarantined_listings",
		Help: "Listings currently in media quarantine",
	})

	rateLimitHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resosync_rate_limit_hits_total",
		Help: "Terminal 429 responses by source",
	}, []string{"source"}) // source=api|media

	governorWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "resosync_governor_wait_seconds",
		Help:    "Time spent waiting for a governor slot",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"governor"})

	searchWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resosync_search_write_errors_total",
		Help: "Failed search index writes (DB state stands)",
	})
)

func IncRecordSynced(resource, outcome string) {
	recordsSynced.WithLabelValues(resource, outcome).Inc()
}

func IncListingDeleted() { listingsDeleted.Inc() }

func ObserveCycle(resource string, seconds float64) {
	cycleDuration.WithLabelValues(resource).Observe(seconds)
}

func IncMediaUpload(outcome string) { mediaUploads.WithLabelValues(outcome).Inc() }

func SetMediaMissing(n int) { mediaMissing.Set(float64(n)) }

func SetQuarantined(n int) { quarantined.Set(float64(n)) }

func IncRateLimitHit(source string) { rateLimitHits.WithLabelValues(source).Inc() }

func ObserveGovernorWait(governor string, seconds float64) {
	governorWait.WithLabelValues(governor).Observe(seconds)
}

func IncSearchWriteError() { searchWriteErrors.Inc() }
