// SPDX-License-Identifier: MIT

// Package progress records periodic replication-health snapshots and hosts
// the full local reset used for from-scratch rebuilds.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openestate/resosync/internal/log"
	"github.com/openestate/resosync/internal/store"
)

const (
	sampleGate = 15 * time.Minute
	retention  = 7 * 24 * time.Hour
)

// Store is the relational surface the recorder needs.
type Store interface {
	CountsForProgress(ctx context.Context) (store.ProgressCounts, error)
	InsertProgressSample(ctx context.Context, p store.ProgressSample) error
	PruneProgressBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// WorkerStatus exposes the media worker's live counters.
type WorkerStatus interface {
	TakeDownloads() int
	CooldownsActive() (api, media bool)
}

// Recorder appends one progress_history row at most every 15 minutes. The
// sync orchestrator calls MaybeRecord at the end of every cycle; the gate
// keeps the table coarse regardless of cycle cadence.
type Recorder struct {
	store  Store
	worker WorkerStatus

	mu         sync.Mutex
	lastSample time.Time
	now        func() time.Time

	logger zerolog.Logger
}

func NewRecorder(st Store, worker WorkerStatus) *Recorder {
	return &Recorder{
		store:  st,
		worker: worker,
		now:    time.Now,
		logger: log.WithComponent("progress"),
	}
}

// MaybeRecord takes a snapshot if the gate has elapsed. Failures are logged
// and never propagate; the history table is advisory.
func (r *Recorder) MaybeRecord(ctx context.Context) {
	r.mu.Lock()
	now := r.now()
	if now.Sub(r.lastSample) < sampleGate {
		r.mu.Unlock()
		return
	}
	r.lastSample = now
	r.mu.Unlock()

	counts, err := r.store.CountsForProgress(ctx)
	if err != nil {
		r.logger.Error().Err(err).Str("event", "progress.counts_failed").Msg("snapshot aborted")
		return
	}

	pct := 0.0
	hydratable := counts.DownloadedMedia + counts.MissingMedia
	if hydratable > 0 {
		pct = float64(counts.DownloadedMedia) / float64(hydratable) * 100
	}
	apiLimited, mediaLimited := r.worker.CooldownsActive()

	sample := store.ProgressSample{
		SampledAt:            now.UTC(),
		TotalListings:        counts.TotalListings,
		ActiveListings:       counts.ActiveListings,
		TotalMedia:           counts.TotalMedia,
		DownloadedMedia:      counts.DownloadedMedia,
		MissingMedia:         counts.MissingMedia,
		PctDownloaded:        pct,
		ListingsMissingMedia: counts.ListingsMissingMedia,
		DownloadsSinceLast:   r.worker.TakeDownloads(),
		APIRateLimited:       apiLimited,
		MediaRateLimited:     mediaLimited,
	}
	if err := r.store.InsertProgressSample(ctx, sample); err != nil {
		r.logger.Error().Err(err).Str("event", "progress.insert_failed").Msg("snapshot lost")
		return
	}

	if pruned, err := r.store.PruneProgressBefore(ctx, now.Add(-retention)); err != nil {
		r.logger.Warn().Err(err).Msg("history prune failed")
	} else if pruned > 0 {
		r.logger.Debug().Int("pruned", pruned).Msg("old history rows dropped")
	}

	r.logger.Info().
		Str("event", "progress.sample").
		Int("total_listings", sample.TotalListings).
		Int("missing_media", sample.MissingMedia).
		Float64("pct_downloaded", pct).
		Int("downloads_since_last", sample.DownloadsSinceLast).
		Bool("api_rate_limited", apiLimited).
		Bool("media_rate_limited", mediaLimited).
		Msg("progress snapshot recorded")
}
