// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/openestate/resosync/internal/reso"
)

// ReplaceRooms swaps the listing's room set wholesale. Upstream only ever
// provides the full new set, so this is delete-then-insert in one
// transaction.
func (s *Store) ReplaceRooms(ctx context.Context, listingKey string, rooms []reso.Room) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace rooms: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM mls.rooms WHERE listing_key = $1`, listingKey); err != nil {
		return fmt.Errorf("delete rooms for %s: %w", listingKey, err)
	}
	for _, r := range rooms {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO mls.rooms (
				listing_key, room_key, room_type, room_level, dimensions,
				length, width, area, features
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			listingKey, nullable(r.RoomKey), nullable(r.RoomType),
			nullable(r.RoomLevel), nullable(r.RoomDimensions),
			CoerceInt(r.RoomLength), CoerceInt(r.RoomWidth),
			CoerceInt(r.RoomArea), pq.StringArray(r.RoomFeatures))
		if err != nil {
			return fmt.Errorf("insert room for %s: %w", listingKey, err)
		}
	}
	return tx.Commit()
}

// ReplaceUnitTypes swaps the listing's unit-type set wholesale.
func (s *Store) ReplaceUnitTypes(ctx context.Context, listingKey string, unitTypes []reso.UnitType) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace unit types: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM mls.unit_types WHERE listing_key = $1`, listingKey); err != nil {
		return fmt.Errorf("delete unit types for %s: %w", listingKey, err)
	}
	for _, u := range unitTypes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO mls.unit_types (
				listing_key, unit_type_key, unit_type, units_total,
				beds_total, baths_total, actual_rent
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			listingKey, nullable(u.UnitTypeKey), nullable(u.UnitTypeType),
			CoerceInt(u.UnitTypeUnitsTotal), CoerceInt(u.UnitTypeBedsTotal),
			CoerceInt(u.UnitTypeBathsTotal), CoerceInt(u.UnitTypeActualRent))
		if err != nil {
			return fmt.Errorf("insert unit type for %s: %w", listingKey, err)
		}
	}
	return tx.Commit()
}

// UpsertOpenHouse appends an open house, de-duplicated on (listing, start,
// end). Rows whose parent listing is absent are dropped silently; the FK
// makes that a no-op rather than an error worth a cycle abort.
func (s *Store) UpsertOpenHouse(ctx context.Context, oh *reso.OpenHouse) error {
	if oh.ListingKey == "" || oh.OpenHouseStartTime == nil || oh.OpenHouseEndTime == nil {
		return nil
	}
	var exists bool
	if err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM mls.properties WHERE listing_key = $1)`,
		oh.ListingKey); err != nil {
		return fmt.Errorf("check parent for open house: %w", err)
	}
	if !exists {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mls.open_houses (
			open_house_key, listing_key, start_at, end_at, remarks, modified_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (listing_key, start_at, end_at) DO UPDATE SET
			open_house_key = EXCLUDED.open_house_key,
			remarks = EXCLUDED.remarks,
			modified_at = EXCLUDED.modified_at`,
		nullable(oh.OpenHouseKey), oh.ListingKey,
		oh.OpenHouseStartTime, oh.OpenHouseEndTime,
		nullable(oh.OpenHouseRemarks), oh.ModificationTimestamp)
	if err != nil {
		return fmt.Errorf("upsert open house for %s: %w", oh.ListingKey, err)
	}
	return nil
}
