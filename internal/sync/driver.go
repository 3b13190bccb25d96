// SPDX-License-Identifier: MIT

// Package sync holds the per-resource delta drivers. Every driver follows
// the same contract: read the high-water-mark, page the upstream feed in
// ModificationTimestamp order, upsert into the stores, and advance the mark
// after every acknowledged batch.
package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/openestate/resosync/internal/metrics"
	"github.com/openestate/resosync/internal/reso"
)

// interPageDelay smooths bursts between pages of one resource, on top of the
// governor's pacing.
const interPageDelay = 500 * time.Millisecond

// Pager is the slice of the upstream client the drivers need.
type Pager interface {
	Page(ctx context.Context, pathOrURL string) (*reso.Page, error)
}

// StateStore persists high-water-marks.
type StateStore interface {
	GetSyncState(ctx context.Context, resource string) (time.Time, error)
	SetSyncState(ctx context.Context, resource string, lastModified time.Time) error
	TouchSyncState(ctx context.Context, resource string) error
}

// recordResult reports one handled record back to the delta loop.
type recordResult struct {
	modified time.Time
	ok       bool
}

// runDelta drives the shared paging loop. handle processes one raw record
// and returns its modification timestamp; a handler error is logged by the
// caller and skipped, never fatal to the cycle. maxRecords caps the run for
// test deployments; zero means unlimited.
func runDelta(
	ctx context.Context,
	logger zerolog.Logger,
	client Pager,
	state StateStore,
	stateKey string,
	firstPage string,
	maxRecords int,
	handle func(ctx context.Context, raw json.RawMessage) recordResult,
) error {
	started := time.Now()
	watermark, err := state.GetSyncState(ctx, stateKey)
	if err != nil {
		return err
	}

	logger.Info().
		Str("event", "sync.start").
		Str("resource", stateKey).
		Time("watermark", watermark).
		Msg("starting delta sync")

	next := firstPage
	processed := 0
	succeeded := 0
	maxSeen := watermark

	for next != "" {
		page, err := client.Page(ctx, next)
		if err != nil {
			// Abandon this cycle; the next tick retries from the last
			// acknowledged watermark.
			return err
		}

		for _, raw := range page.Value {
			res := handle(ctx, raw)
			processed++
			if res.ok {
				succeeded++
				metrics.IncRecordSynced(stateKey, "success")
				if res.modified.After(maxSeen) {
					maxSeen = res.modified
				}
			} else {
				metrics.IncRecordSynced(stateKey, "failure")
			}
			if maxRecords > 0 && processed >= maxRecords {
				break
			}
		}

		// Per-batch watermark advance: a crash never re-processes a fully
		// acknowledged batch.
		if maxSeen.After(watermark) {
			if err := state.SetSyncState(ctx, stateKey, maxSeen); err != nil {
				return err
			}
			watermark = maxSeen
		}

		if maxRecords > 0 && processed >= maxRecords {
			break
		}
		next = page.NextLink
		if next != "" {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interPageDelay):
			}
		}
	}

	if succeeded == 0 {
		if err := state.TouchSyncState(ctx, stateKey); err != nil {
			return err
		}
	}

	metrics.ObserveCycle(stateKey, time.Since(started).Seconds())
	logger.Info().
		Str("event", "sync.done").
		Str("resource", stateKey).
		Int("processed", processed).
		Int("succeeded", succeeded).
		Time("watermark", watermark).
		Dur("elapsed", time.Since(started)).
		Msg("delta sync completed")
	return nil
}
