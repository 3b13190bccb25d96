// SPDX-License-Identifier: MIT

// Package media runs the long-lived hydration worker. It is independent of
// the sync schedule: it scans the relational store for photo assets lacking
// a local URL, refreshes the owning listing's media manifest upstream, and
// uploads each asset to the object store.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/openestate/resosync/internal/log"
	"github.com/openestate/resosync/internal/metrics"
	"github.com/openestate/resosync/internal/reso"
	"github.com/openestate/resosync/internal/store"
)

const (
	idleSleep           = 3 * time.Minute
	quarantinedSleep    = 5 * time.Minute
	errorSleep          = time.Minute
	mediaCooldownLength = 15 * time.Minute
	apiCooldownLength   = 30 * time.Minute
	candidateLimit      = 10
	expiryWindow        = 5 * time.Minute

	// Small burst bucket; the governor remains the sole pacer.
	burstPerSecond = 20
)

// Store is the relational surface the worker reads and writes.
type Store interface {
	MissingMediaCount(ctx context.Context) (int, error)
	ListingsWithMissingMedia(ctx context.Context, limit int) ([]string, error)
	MediaForListing(ctx context.Context, listingKey string) ([]store.MediaAsset, error)
	UpsertMediaMetadata(ctx context.Context, listingKey string, media []reso.Media) error
	DeleteMediaNotIn(ctx context.Context, listingKey string, keepKeys []string) (int, error)
	MarkMediaDownloaded(ctx context.Context, mediaKey, localURL string) error
	DeleteListing(ctx context.Context, listingKey string) (bool, error)
	MediaInterval(ctx context.Context, fallback time.Duration) time.Duration
	InsertRateLimitEvent(ctx context.Context, source, listingKey string) error
	RecordProblematicListing(ctx context.Context, listingKey string, hits int, cooldownUntil time.Time) error
	ClearProblematicListing(ctx context.Context, listingKey string) error
}

// Upstream fetches single OData entities (the manifest fetch).
type Upstream interface {
	Object(ctx context.Context, pathOrURL string, v any) error
}

// Fetcher downloads media bytes through the media governor.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, string, error)
}

// ObjectStore uploads and purges listing imagery.
type ObjectStore interface {
	Key(listingKey string, ordinal int, contentType string) string
	URL(key string) string
	Put(ctx context.Context, key string, body []byte, contentType string) error
	ListingPrefix(listingKey string) string
	PurgePrefix(ctx context.Context, prefix string) (int, error)
}

// Searcher removes index documents on cascade deletion.
type Searcher interface {
	Delete(listingKey string) error
}

// Tunable receives the live-tuned pacing interval.
type Tunable interface {
	SetMinInterval(d time.Duration)
}

// Worker is the hydration loop. One instance runs per process.
type Worker struct {
	store    Store
	upstream Upstream
	fetcher  Fetcher
	bucket   ObjectStore
	search   Searcher
	governor Tunable

	defaultInterval time.Duration

	failures   *failureTracker
	quarantine *quarantine
	burst      *rate.Limiter

	mu            sync.Mutex
	mediaCooldown time.Time
	apiCooldown   time.Time

	downloads atomic.Int64
	nudge     chan struct{}
	logger    zerolog.Logger
}

func NewWorker(st Store, upstream Upstream, fetcher Fetcher, bucket ObjectStore, search Searcher, governor Tunable, defaultInterval time.Duration) *Worker {
	return &Worker{
		store:           st,
		upstream:        upstream,
		fetcher:         fetcher,
		bucket:          bucket,
		search:          search,
		governor:        governor,
		defaultInterval: defaultInterval,
		failures:        newFailureTracker(),
		quarantine:      newQuarantine(),
		burst:           rate.NewLimiter(rate.Limit(burstPerSecond), burstPerSecond),
		nudge:           make(chan struct{}, 1),
		logger:          log.WithComponent("media"),
	}
}

// Nudge wakes the worker early; safe from any goroutine, never blocks.
func (w *Worker) Nudge() {
	select {
	case w.nudge <- struct{}{}:
	default:
	}
}

// TakeDownloads returns and clears the completed-download counter. The swap
// is atomic with the read so the progress recorder never double-counts.
func (w *Worker) TakeDownloads() int {
	return int(w.downloads.Swap(0))
}

// CooldownsActive reports whether the API and media cooldowns are live.
func (w *Worker) CooldownsActive() (api, media bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	return now.Before(w.apiCooldown), now.Before(w.mediaCooldown)
}

// Run loops until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Str("event", "media.start").Msg("media worker started")
	for {
		wait := w.iterate(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if wait <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.nudge:
		case <-time.After(wait):
		}
	}
}

// iterate performs one selection-and-hydration pass and returns how long to
// sleep before the next one.
func (w *Worker) iterate(ctx context.Context) time.Duration {
	now := time.Now()

	w.mu.Lock()
	cooldown := w.mediaCooldown
	if w.apiCooldown.After(cooldown) {
		cooldown = w.apiCooldown
	}
	w.mu.Unlock()
	if now.Before(cooldown) {
		return cooldown.Sub(now)
	}

	missing, err := w.store.MissingMediaCount(ctx)
	if err != nil {
		w.logger.Error().Err(err).Str("event", "media.scan_failed").Msg("missing-media scan failed")
		return errorSleep
	}
	metrics.SetMediaMissing(missing)
	metrics.SetQuarantined(w.quarantine.Len())
	if missing == 0 {
		return idleSleep
	}

	candidates, err := w.store.ListingsWithMissingMedia(ctx, candidateLimit)
	if err != nil {
		w.logger.Error().Err(err).Str("event", "media.scan_failed").Msg("candidate scan failed")
		return errorSleep
	}
	listingKey := ""
	for _, key := range candidates {
		if !w.quarantine.IsQuarantined(key, now) {
			listingKey = key
			break
		}
	}
	if listingKey == "" {
		w.logger.Info().
			Str("event", "media.all_quarantined").
			Int("candidates", len(candidates)).
			Msg("every candidate listing is quarantined")
		return quarantinedSleep
	}

	return w.hydrateListing(ctx, listingKey)
}

// manifest is the single-object expansion response.
type manifest struct {
	ListingKey string       `json:"ListingKey"`
	Media      []reso.Media `json:"Media"`
}

func (w *Worker) hydrateListing(ctx context.Context, listingKey string) time.Duration {
	// Re-read the tuned interval every pass so operator changes apply
	// without a restart.
	interval := w.store.MediaInterval(ctx, w.defaultInterval)
	w.governor.SetMinInterval(interval)
	if !w.sleep(ctx, interval) {
		return 0
	}

	var m manifest
	path := fmt.Sprintf("/Property('%s')?%s", url.PathEscape(listingKey), "$expand=Media&$select=ListingKey")
	if err := w.upstream.Object(ctx, path, &m); err != nil {
		return w.handleManifestError(ctx, listingKey, err)
	}
	w.quarantine.Clear(listingKey)
	if err := w.store.ClearProblematicListing(ctx, listingKey); err != nil {
		w.logger.Warn().Err(err).Str("listing_key", listingKey).Msg("failed to clear problematic record")
	}

	// Orphan reconcile: rows whose asset key vanished from the manifest are
	// dropped immediately, never re-downloaded.
	freshKeys := make([]string, 0, len(m.Media))
	for _, asset := range m.Media {
		if asset.MediaKey != "" {
			freshKeys = append(freshKeys, asset.MediaKey)
		}
	}
	if removed, err := w.store.DeleteMediaNotIn(ctx, listingKey, freshKeys); err != nil {
		w.logger.Error().Err(err).Str("listing_key", listingKey).Msg("orphan reconcile failed")
	} else if removed > 0 {
		w.logger.Info().
			Str("event", "media.orphans_removed").
			Str("listing_key", listingKey).
			Int("removed", removed).
			Msg("stale media rows dropped")
	}

	// Fresh URLs and timestamps land before any download attempt.
	if err := w.store.UpsertMediaMetadata(ctx, listingKey, m.Media); err != nil {
		w.logger.Error().Err(err).Str("listing_key", listingKey).Msg("manifest upsert failed")
		return errorSleep
	}

	assets, err := w.store.MediaForListing(ctx, listingKey)
	if err != nil {
		w.logger.Error().Err(err).Str("listing_key", listingKey).Msg("asset read-back failed")
		return errorSleep
	}

	for _, asset := range assets {
		if ctx.Err() != nil {
			return 0
		}
		if asset.LocalURL != nil || asset.IsVideo() || asset.UpstreamURL == nil {
			continue
		}
		if w.failures.ShouldSkip(asset.MediaKey, time.Now()) {
			continue
		}
		if reso.URLExpiresWithin(*asset.UpstreamURL, expiryWindow, time.Now()) {
			// The signed URL is about to lapse; restart the pass to pull a
			// fresh manifest rather than upload from a stale link.
			metrics.IncMediaUpload("expired")
			w.logger.Info().
				Str("event", "media.url_expired").
				Str("listing_key", listingKey).
				Str("media_key", asset.MediaKey).
				Msg("upstream URL expired pre-flight, refreshing manifest")
			return 0
		}

		done, wait := w.hydrateAsset(ctx, listingKey, asset)
		if !done {
			return wait
		}
		if !w.sleep(ctx, w.store.MediaInterval(ctx, w.defaultInterval)) {
			return 0
		}
	}
	return time.Second
}

// hydrateAsset downloads and uploads one asset. done=false aborts the
// listing pass with the given wait.
func (w *Worker) hydrateAsset(ctx context.Context, listingKey string, asset store.MediaAsset) (done bool, wait time.Duration) {
	if err := w.burst.Wait(ctx); err != nil {
		return false, 0
	}

	body, contentType, err := w.fetcher.Fetch(ctx, *asset.UpstreamURL)
	if err != nil {
		return w.handleAssetError(ctx, listingKey, asset.MediaKey, err)
	}

	key := w.bucket.Key(listingKey, asset.Ordinal, contentType)
	if err := w.bucket.Put(ctx, key, body, contentType); err != nil {
		w.logger.Error().Err(err).
			Str("event", "media.upload_failed").
			Str("media_key", asset.MediaKey).
			Msg("object store upload failed")
		w.failures.RecordFailure(asset.MediaKey, time.Now())
		metrics.IncMediaUpload("error")
		return true, 0
	}

	if err := w.store.MarkMediaDownloaded(ctx, asset.MediaKey, w.bucket.URL(key)); err != nil {
		w.logger.Error().Err(err).
			Str("media_key", asset.MediaKey).
			Msg("failed to record hydrated asset")
		return true, 0
	}
	w.failures.Clear(asset.MediaKey)
	w.downloads.Add(1)
	metrics.IncMediaUpload("success")
	w.logger.Debug().
		Str("event", "media.upload").
		Str("listing_key", listingKey).
		Str("media_key", asset.MediaKey).
		Str("key", key).
		Msg("asset hydrated")
	return true, 0
}

func (w *Worker) handleAssetError(ctx context.Context, listingKey, mediaKey string, err error) (done bool, wait time.Duration) {
	switch {
	case errors.Is(err, reso.ErrRateLimited):
		until := time.Now().Add(mediaCooldownLength)
		w.mu.Lock()
		w.mediaCooldown = until
		w.mu.Unlock()
		metrics.IncMediaUpload("rate_limited")
		metrics.IncRateLimitHit("media")
		if dbErr := w.store.InsertRateLimitEvent(ctx, "media", listingKey); dbErr != nil {
			w.logger.Warn().Err(dbErr).Msg("failed to log rate limit event")
		}
		w.logger.Warn().
			Str("event", "media.cooldown").
			Str("listing_key", listingKey).
			Time("until", until).
			Msg("media CDN rate limited, cooling off")
		return false, time.Until(until)

	case errors.Is(err, reso.ErrNotFound), errors.Is(err, reso.ErrForbidden):
		w.failures.MarkPermanent(mediaKey)
		metrics.IncMediaUpload("permanent")
		w.logger.Warn().
			Str("event", "media.permanent_failure").
			Str("media_key", mediaKey).
			Msg("asset gone upstream, never retrying")
		return true, 0

	default:
		w.failures.RecordFailure(mediaKey, time.Now())
		metrics.IncMediaUpload("error")
		w.logger.Warn().Err(err).
			Str("event", "media.fetch_failed").
			Str("media_key", mediaKey).
			Msg("asset fetch failed")
		return true, 0
	}
}

func (w *Worker) handleManifestError(ctx context.Context, listingKey string, err error) time.Duration {
	switch {
	case errors.Is(err, reso.ErrRateLimited):
		until := time.Now().Add(apiCooldownLength)
		w.mu.Lock()
		w.apiCooldown = until
		w.mu.Unlock()
		hits, qUntil := w.quarantine.RecordHit(listingKey, time.Now())
		metrics.IncRateLimitHit("api")
		metrics.SetQuarantined(w.quarantine.Len())
		if dbErr := w.store.InsertRateLimitEvent(ctx, "api", listingKey); dbErr != nil {
			w.logger.Warn().Err(dbErr).Msg("failed to log rate limit event")
		}
		if dbErr := w.store.RecordProblematicListing(ctx, listingKey, hits, qUntil); dbErr != nil {
			w.logger.Warn().Err(dbErr).Msg("failed to record problematic listing")
		}
		w.logger.Warn().
			Str("event", "media.manifest_rate_limited").
			Str("listing_key", listingKey).
			Int("consecutive_fails", hits).
			Time("quarantined_until", qUntil).
			Msg("manifest fetch rate limited, quarantining listing")
		return time.Until(until)

	case errors.Is(err, reso.ErrNotFound):
		w.logger.Info().
			Str("event", "media.listing_gone").
			Str("listing_key", listingKey).
			Msg("listing gone upstream, cascading local deletion")
		w.deleteEverywhere(ctx, listingKey)
		return 0

	default:
		w.logger.Error().Err(err).
			Str("event", "media.manifest_failed").
			Str("listing_key", listingKey).
			Msg("manifest fetch failed")
		return errorSleep
	}
}

// deleteEverywhere removes the listing from all three systems of record.
func (w *Worker) deleteEverywhere(ctx context.Context, listingKey string) {
	if _, err := w.bucket.PurgePrefix(ctx, w.bucket.ListingPrefix(listingKey)); err != nil {
		w.logger.Error().Err(err).Str("listing_key", listingKey).Msg("object purge failed")
	}
	if _, err := w.store.DeleteListing(ctx, listingKey); err != nil {
		w.logger.Error().Err(err).Str("listing_key", listingKey).Msg("DB delete failed")
	}
	if err := w.search.Delete(listingKey); err != nil {
		w.logger.Warn().Err(err).Str("listing_key", listingKey).Msg("search delete failed")
		metrics.IncSearchWriteError()
	}
	w.quarantine.Clear(listingKey)
	metrics.IncListingDeleted()
}

// sleep waits d unless the context ends first.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
