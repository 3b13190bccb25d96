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
	"github.com/openestate/resosync/internal/search"
)

// ListingStore is the relational surface the listing driver writes.
type ListingStore interface {
	UpsertListing(ctx context.Context, p *reso.Property, raw []byte) error
	ReplaceRooms(ctx context.Context, listingKey string, rooms []reso.Room) error
	ReplaceUnitTypes(ctx context.Context, listingKey string, unitTypes []reso.UnitType) error
	UpsertMediaMetadata(ctx context.Context, listingKey string, media []reso.Media) error
}

// Searcher mirrors listing documents into the search index.
type Searcher interface {
	Upsert(doc *search.Document) error
	Delete(listingKey string) error
}

// MediaNotifier wakes the media worker when a listing with photo changes
// lands. The worker scans the DB on its own; this is only a nudge.
type MediaNotifier interface {
	Nudge()
}

// ListingDriver mirrors /Property into the relational store and the search
// index, expanding Media, Rooms and UnitTypes in one request.
type ListingDriver struct {
	client   Pager
	state    StateStore
	store    ListingStore
	search   Searcher
	notifier MediaNotifier
	system   string
	batch    int
	cap      int
	logger   zerolog.Logger
}

func NewListingDriver(client Pager, state StateStore, store ListingStore, searcher Searcher, notifier MediaNotifier, system string, batch, cap int) *ListingDriver {
	return &ListingDriver{
		client:   client,
		state:    state,
		store:    store,
		search:   searcher,
		notifier: notifier,
		system:   system,
		batch:    batch,
		cap:      cap,
		logger:   log.WithComponent("sync.listings"),
	}
}

func (d *ListingDriver) Name() string { return "Property" }

func (d *ListingDriver) Run(ctx context.Context) error {
	watermark, err := d.state.GetSyncState(ctx, "Property")
	if err != nil {
		return err
	}
	q := reso.NewQuery("Property").
		FilterEq("OriginatingSystemName", d.system).
		FilterEqBool("MlgCanView", true).
		Expand("Media", "Rooms", "UnitTypes").
		OrderBy("ModificationTimestamp asc").
		Top(d.batch)
	if !watermark.IsZero() {
		q.FilterGtTime("ModificationTimestamp", watermark)
	}

	sawPhotos := false
	err = runDelta(ctx, d.logger, d.client, d.state, "Property", q.Encode(), d.cap,
		func(ctx context.Context, raw json.RawMessage) recordResult {
			var p reso.Property
			if err := json.Unmarshal(raw, &p); err != nil {
				d.logger.Error().Err(err).
					Str("event", "sync.decode_failed").
					Msg("skipping undecodable listing record")
				return recordResult{}
			}
			if p.ListingKey == "" {
				return recordResult{}
			}
			if err := d.upsertOne(ctx, &p, raw); err != nil {
				d.logger.Error().Err(err).
					Str("event", "sync.record_failed").
					Str("listing_key", p.ListingKey).
					Msg("skipping listing record")
				return recordResult{}
			}
			if len(p.Media) > 0 {
				sawPhotos = true
			}
			var modified time.Time
			if p.ModificationTimestamp != nil {
				modified = *p.ModificationTimestamp
			}
			return recordResult{modified: modified, ok: true}
		})
	if err != nil {
		return err
	}
	if sawPhotos && d.notifier != nil {
		d.notifier.Nudge()
	}
	return nil
}

// upsertOne writes the DB rows first, then the search document. The DB is
// authoritative; a search failure is logged and heals on the next upsert.
func (d *ListingDriver) upsertOne(ctx context.Context, p *reso.Property, raw json.RawMessage) error {
	if err := d.store.UpsertListing(ctx, p, raw); err != nil {
		return err
	}
	if err := d.store.ReplaceRooms(ctx, p.ListingKey, p.Rooms); err != nil {
		return err
	}
	if err := d.store.ReplaceUnitTypes(ctx, p.ListingKey, p.UnitTypes); err != nil {
		return err
	}
	if err := d.store.UpsertMediaMetadata(ctx, p.ListingKey, p.Media); err != nil {
		return err
	}
	if err := d.search.Upsert(search.ProjectListing(p)); err != nil {
		d.logger.Warn().Err(err).
			Str("event", "search.upsert_failed").
			Str("listing_key", p.ListingKey).
			Msg("search index write failed, DB state stands")
		metrics.IncSearchWriteError()
	}
	return nil
}
