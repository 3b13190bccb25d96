// SPDX-License-Identifier: MIT
package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/openestate/resosync/internal/log"
	"github.com/openestate/resosync/internal/reso"
)

// DimensionStore covers the independent dimension upserts.
type DimensionStore interface {
	UpsertMember(ctx context.Context, m *reso.Member) error
	UpsertOffice(ctx context.Context, o *reso.Office) error
	UpsertOpenHouse(ctx context.Context, oh *reso.OpenHouse) error
	UpsertLookup(ctx context.Context, l *reso.Lookup) error
}

// MemberDriver mirrors /Member on its own delta cycle.
type MemberDriver struct {
	client Pager
	state  StateStore
	store  DimensionStore
	system string
	batch  int
	cap    int
	logger zerolog.Logger
}

func NewMemberDriver(client Pager, state StateStore, store DimensionStore, system string, batch, cap int) *MemberDriver {
	return &MemberDriver{client: client, state: state, store: store, system: system,
		batch: batch, cap: cap, logger: log.WithComponent("sync.members")}
}

func (d *MemberDriver) Name() string { return "Member" }

func (d *MemberDriver) Run(ctx context.Context) error {
	q := deltaQuery("Member", d.system, d.batch)
	watermark, err := d.state.GetSyncState(ctx, "Member")
	if err != nil {
		return err
	}
	if !watermark.IsZero() {
		q.FilterGtTime("ModificationTimestamp", watermark)
	}
	return runDelta(ctx, d.logger, d.client, d.state, "Member", q.Encode(), d.cap,
		func(ctx context.Context, raw json.RawMessage) recordResult {
			var m reso.Member
			if err := json.Unmarshal(raw, &m); err != nil || m.MemberKey == "" {
				return recordResult{}
			}
			if err := d.store.UpsertMember(ctx, &m); err != nil {
				d.logger.Error().Err(err).
					Str("event", "sync.record_failed").
					Str("member_key", m.MemberKey).
					Msg("skipping member record")
				return recordResult{}
			}
			return recordResult{modified: tsOrZero(m.ModificationTimestamp), ok: true}
		})
}

// OfficeDriver mirrors /Office.
type OfficeDriver struct {
	client Pager
	state  StateStore
	store  DimensionStore
	system string
	batch  int
	cap    int
	logger zerolog.Logger
}

func NewOfficeDriver(client Pager, state StateStore, store DimensionStore, system string, batch, cap int) *OfficeDriver {
	return &OfficeDriver{client: client, state: state, store: store, system: system,
		batch: batch, cap: cap, logger: log.WithComponent("sync.offices")}
}

func (d *OfficeDriver) Name() string { return "Office" }

func (d *OfficeDriver) Run(ctx context.Context) error {
	q := deltaQuery("Office", d.system, d.batch)
	watermark, err := d.state.GetSyncState(ctx, "Office")
	if err != nil {
		return err
	}
	if !watermark.IsZero() {
		q.FilterGtTime("ModificationTimestamp", watermark)
	}
	return runDelta(ctx, d.logger, d.client, d.state, "Office", q.Encode(), d.cap,
		func(ctx context.Context, raw json.RawMessage) recordResult {
			var o reso.Office
			if err := json.Unmarshal(raw, &o); err != nil || o.OfficeKey == "" {
				return recordResult{}
			}
			if err := d.store.UpsertOffice(ctx, &o); err != nil {
				d.logger.Error().Err(err).
					Str("event", "sync.record_failed").
					Str("office_key", o.OfficeKey).
					Msg("skipping office record")
				return recordResult{}
			}
			return recordResult{modified: tsOrZero(o.ModificationTimestamp), ok: true}
		})
}

// OpenHouseDriver mirrors /OpenHouse. Rows whose parent listing is absent
// are dropped by the store.
type OpenHouseDriver struct {
	client Pager
	state  StateStore
	store  DimensionStore
	system string
	batch  int
	cap    int
	logger zerolog.Logger
}

func NewOpenHouseDriver(client Pager, state StateStore, store DimensionStore, system string, batch, cap int) *OpenHouseDriver {
	return &OpenHouseDriver{client: client, state: state, store: store, system: system,
		batch: batch, cap: cap, logger: log.WithComponent("sync.openhouses")}
}

func (d *OpenHouseDriver) Name() string { return "OpenHouse" }

func (d *OpenHouseDriver) Run(ctx context.Context) error {
	q := deltaQuery("OpenHouse", d.system, d.batch)
	watermark, err := d.state.GetSyncState(ctx, "OpenHouse")
	if err != nil {
		return err
	}
	if !watermark.IsZero() {
		q.FilterGtTime("ModificationTimestamp", watermark)
	}
	return runDelta(ctx, d.logger, d.client, d.state, "OpenHouse", q.Encode(), d.cap,
		func(ctx context.Context, raw json.RawMessage) recordResult {
			var oh reso.OpenHouse
			if err := json.Unmarshal(raw, &oh); err != nil || oh.ListingKey == "" {
				return recordResult{}
			}
			if err := d.store.UpsertOpenHouse(ctx, &oh); err != nil {
				d.logger.Error().Err(err).
					Str("event", "sync.record_failed").
					Str("listing_key", oh.ListingKey).
					Msg("skipping open house record")
				return recordResult{}
			}
			return recordResult{modified: tsOrZero(oh.ModificationTimestamp), ok: true}
		})
}

// LookupDriver mirrors /Lookup, the enum display-name dimension.
type LookupDriver struct {
	client Pager
	state  StateStore
	store  DimensionStore
	system string
	batch  int
	logger zerolog.Logger
}

func NewLookupDriver(client Pager, state StateStore, store DimensionStore, system string, batch int) *LookupDriver {
	return &LookupDriver{client: client, state: state, store: store, system: system,
		batch: batch, logger: log.WithComponent("sync.lookups")}
}

func (d *LookupDriver) Name() string { return "Lookup" }

func (d *LookupDriver) Run(ctx context.Context) error {
	q := deltaQuery("Lookup", d.system, d.batch)
	watermark, err := d.state.GetSyncState(ctx, "Lookup")
	if err != nil {
		return err
	}
	if !watermark.IsZero() {
		q.FilterGtTime("ModificationTimestamp", watermark)
	}
	return runDelta(ctx, d.logger, d.client, d.state, "Lookup", q.Encode(), 0,
		func(ctx context.Context, raw json.RawMessage) recordResult {
			var l reso.Lookup
			if err := json.Unmarshal(raw, &l); err != nil || l.LookupKey == "" {
				return recordResult{}
			}
			if err := d.store.UpsertLookup(ctx, &l); err != nil {
				d.logger.Error().Err(err).
					Str("event", "sync.record_failed").
					Str("lookup_key", l.LookupKey).
					Msg("skipping lookup record")
				return recordResult{}
			}
			return recordResult{modified: tsOrZero(l.ModificationTimestamp), ok: true}
		})
}

func deltaQuery(resource, system string, batch int) *reso.Query {
	return reso.NewQuery(resource).
		FilterEq("OriginatingSystemName", system).
		OrderBy("ModificationTimestamp asc").
		Top(batch)
}

func tsOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
