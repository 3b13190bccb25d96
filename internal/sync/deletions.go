// SPDX-License-Identifier: MIT
package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/openestate/resosync/internal/log"
	"github.com/openestate/resosync/internal/metrics"
	"github.com/openestate/resosync/internal/reso"
)

// freshStartThreshold guards the tombstone feed against a freshly reset
// database: below this many local listings, mass deletion would be a misuse
// of the visibility-false feed.
const freshStartThreshold = 500

// DeletionStore is the relational surface the deletions driver needs.
type DeletionStore interface {
	DeleteListing(ctx context.Context, listingKey string) (bool, error)
	ListingCount(ctx context.Context) (int, error)
}

// Purger removes a listing's objects from the object store.
type Purger interface {
	ListingPrefix(listingKey string) string
	PurgePrefix(ctx context.Context, prefix string) (int, error)
}

// DeletionsDriver consumes the visibility-false tombstone feed and cascades
// each hit across the object store, the DB and the search index.
type DeletionsDriver struct {
	client Pager
	state  StateStore
	store  DeletionStore
	search Searcher
	blob   Purger
	system string
	batch  int
	logger zerolog.Logger
}

func NewDeletionsDriver(client Pager, state StateStore, store DeletionStore, searcher Searcher, blob Purger, system string, batch int) *DeletionsDriver {
	return &DeletionsDriver{
		client: client,
		state:  state,
		store:  store,
		search: searcher,
		blob:   blob,
		system: system,
		batch:  batch,
		logger: log.WithComponent("sync.deletions"),
	}
}

func (d *DeletionsDriver) Name() string { return "PropertyDeletions" }

func (d *DeletionsDriver) Run(ctx context.Context) error {
	count, err := d.store.ListingCount(ctx)
	if err != nil {
		return err
	}
	if count < freshStartThreshold {
		d.logger.Info().
			Str("event", "sync.deletions_skipped").
			Int("listings", count).
			Msg("local store looks freshly reset, skipping tombstone feed")
		return nil
	}

	watermark, err := d.state.GetSyncState(ctx, "PropertyDeletions")
	if err != nil {
		return err
	}
	q := reso.NewQuery("Property").
		FilterEq("OriginatingSystemName", d.system).
		FilterEqBool("MlgCanView", false).
		Select("ListingKey", "ModificationTimestamp").
		OrderBy("ModificationTimestamp asc").
		Top(d.batch)
	if !watermark.IsZero() {
		q.FilterGtTime("ModificationTimestamp", watermark)
	}

	return runDelta(ctx, d.logger, d.client, d.state, "PropertyDeletions", q.Encode(), 0,
		func(ctx context.Context, raw json.RawMessage) recordResult {
			var tomb struct {
				ListingKey            string     `json:"ListingKey"`
				ModificationTimestamp *time.Time `json:"ModificationTimestamp"`
			}
			if err := json.Unmarshal(raw, &tomb); err != nil || tomb.ListingKey == "" {
				return recordResult{}
			}
			if err := d.cascade(ctx, tomb.ListingKey); err != nil {
				d.logger.Error().Err(err).
					Str("event", "sync.delete_failed").
					Str("listing_key", tomb.ListingKey).
					Msg("skipping tombstone")
				return recordResult{}
			}
			var modified time.Time
			if tomb.ModificationTimestamp != nil {
				modified = *tomb.ModificationTimestamp
			}
			return recordResult{modified: modified, ok: true}
		})
}

// cascade removes every trace of the listing: object-store prefix first,
// then the DB row (children cascade), then the search document.
func (d *DeletionsDriver) cascade(ctx context.Context, listingKey string) error {
	purged, err := d.blob.PurgePrefix(ctx, d.blob.ListingPrefix(listingKey))
	if err != nil {
		return err
	}
	existed, err := d.store.DeleteListing(ctx, listingKey)
	if err != nil {
		return err
	}
	if err := d.search.Delete(listingKey); err != nil {
		d.logger.Warn().Err(err).
			Str("event", "search.delete_failed").
			Str("listing_key", listingKey).
			Msg("search index delete failed")
		metrics.IncSearchWriteError()
	}
	if existed {
		metrics.IncListingDeleted()
		d.logger.Info().
			Str("event", "sync.listing_deleted").
			Str("listing_key", listingKey).
			Int("objects_purged", purged).
			Msg("listing removed via tombstone")
	}
	return nil
}
