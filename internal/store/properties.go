// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/openestate/resosync/internal/reso"
)

type propertyRow struct {
	ListingKey        string         `db:"listing_key"`
	ListingID         *string        `db:"listing_id"`
	OriginatingSystem string         `db:"originating_system"`
	StandardStatus    *string        `db:"standard_status"`
	PropertyType      *string        `db:"property_type"`
	PropertySubType   *string        `db:"property_sub_type"`
	CanView           bool           `db:"can_view"`
	CanUse            pq.StringArray `db:"can_use"`
	ListPrice         *int64         `db:"list_price"`
	OriginalListPrice *int64         `db:"original_list_price"`
	Bedrooms          *int64         `db:"bedrooms"`
	Bathrooms         *int64         `db:"bathrooms"`
	LivingArea        *int64         `db:"living_area"`
	LotSizeSqft       *int64         `db:"lot_size_sqft"`
	YearBuilt         *int64         `db:"year_built"`
	GarageSpaces      *int64         `db:"garage_spaces"`
	ParkingTotal      *int64         `db:"parking_total"`
	Stories           *int64         `db:"stories"`
	Latitude          *float64       `db:"latitude"`
	Longitude         *float64       `db:"longitude"`
	UnparsedAddress   *string        `db:"unparsed_address"`
	StreetName        *string        `db:"street_name"`
	City              *string        `db:"city"`
	State             *string        `db:"state"`
	PostalCode        *string        `db:"postal_code"`
	County            *string        `db:"county"`
	Subdivision       *string        `db:"subdivision"`
	ElementarySchool  *string        `db:"elementary_school"`
	MiddleSchool      *string        `db:"middle_school"`
	HighSchool        *string        `db:"high_school"`
	PublicRemarks     *string        `db:"public_remarks"`
	Pool              *bool          `db:"pool"`
	Waterfront        *bool          `db:"waterfront"`
	Garage            *bool          `db:"garage"`
	NewConstruction   *bool          `db:"new_construction"`
	InteriorFeatures  pq.StringArray `db:"interior_features"`
	ModifiedAt        *time.Time     `db:"modified_at"`
	PhotosChangedAt   *time.Time     `db:"photos_changed_at"`
	OriginalEntryAt   *time.Time     `db:"original_entry_at"`
	PriceChangedAt    *time.Time     `db:"price_changed_at"`
	MajorChangeAt     *time.Time     `db:"major_change_at"`
	Raw               []byte         `db:"raw"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// UpsertListing writes the structured columns plus the opaque raw snapshot.
// The raw blob is the preservation contract for everything the structured
// columns do not cover.
func (s *Store) UpsertListing(ctx context.Context, p *reso.Property, raw []byte) error {
	canView := true
	if p.MlgCanView != nil {
		canView = *p.MlgCanView
	}
	row := propertyRow{
		ListingKey:        p.ListingKey,
		ListingID:         nullable(p.ListingID),
		OriginatingSystem: s.system,
		StandardStatus:    nullable(p.StandardStatus),
		PropertyType:      nullable(p.PropertyType),
		PropertySubType:   nullable(p.PropertySubType),
		CanView:           canView,
		CanUse:            pq.StringArray(p.MlgCanUse),
		ListPrice:         CoerceInt(p.ListPrice),
		OriginalListPrice: CoerceInt(p.OriginalListPrice),
		Bedrooms:          CoerceInt(p.BedroomsTotal),
		Bathrooms:         CoerceInt(p.BathroomsTotal),
		LivingArea:        CoerceInt(p.LivingArea),
		LotSizeSqft:       CoerceInt(p.LotSizeSquareFeet),
		YearBuilt:         CoerceInt(p.YearBuilt),
		GarageSpaces:      CoerceInt(p.GarageSpaces),
		ParkingTotal:      CoerceInt(p.ParkingTotal),
		Stories:           CoerceInt(p.Stories),
		Latitude:          p.Latitude,
		Longitude:         p.Longitude,
		UnparsedAddress:   nullable(p.UnparsedAddress),
		StreetName:        nullable(p.StreetName),
		City:              nullable(p.City),
		State:             nullable(p.StateOrProvince),
		PostalCode:        nullable(p.PostalCode),
		County:            nullable(p.CountyOrParish),
		Subdivision:       nullable(p.SubdivisionName),
		ElementarySchool:  nullable(p.ElementarySchool),
		MiddleSchool:      nullable(p.MiddleSchool),
		HighSchool:        nullable(p.HighSchool),
		PublicRemarks:     nullable(p.PublicRemarks),
		Pool:              p.PoolPrivateYN,
		Waterfront:        p.WaterfrontYN,
		Garage:            p.GarageYN,
		NewConstruction:   p.NewConstruction,
		InteriorFeatures:  pq.StringArray(p.InteriorFeatures),
		ModifiedAt:        p.ModificationTimestamp,
		PhotosChangedAt:   p.PhotosChangeTimestamp,
		OriginalEntryAt:   p.OriginalEntryTimestamp,
		PriceChangedAt:    p.PriceChangeTimestamp,
		MajorChangeAt:     p.MajorChangeTimestamp,
		Raw:               raw,
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO mls.properties (
			listing_key, listing_id, originating_system, standard_status,
			property_type, property_sub_type, can_view, can_use,
			list_price, original_list_price, bedrooms, bathrooms,
			living_area, lot_size_sqft, year_built, garage_spaces,
			parking_total, stories, latitude, longitude,
			unparsed_address, street_name, city, state, postal_code,
			county, subdivision, elementary_school, middle_school,
			high_school, public_remarks, pool, waterfront, garage,
			new_construction, interior_features, modified_at,
			photos_changed_at, original_entry_at, price_changed_at,
			major_change_at, raw, updated_at
		) VALUES (
			:listing_key, :listing_id, :originating_system, :standard_status,
			:property_type, :property_sub_type, :can_view, :can_use,
			:list_price, :original_list_price, :bedrooms, :bathrooms,
			:living_area, :lot_size_sqft, :year_built, :garage_spaces,
			:parking_total, :stories, :latitude, :longitude,
			:unparsed_address, :street_name, :city, :state, :postal_code,
			:county, :subdivision, :elementary_school, :middle_school,
			:high_school, :public_remarks, :pool, :waterfront, :garage,
			:new_construction, :interior_features, :modified_at,
			:photos_changed_at, :original_entry_at, :price_changed_at,
			:major_change_at, :raw, now()
		)
		ON CONFLICT (listing_key) DO UPDATE SET
			listing_id = EXCLUDED.listing_id,
			standard_status = EXCLUDED.standard_status,
			property_type = EXCLUDED.property_type,
			property_sub_type = EXCLUDED.property_sub_type,
			can_view = EXCLUDED.can_view,
			can_use = EXCLUDED.can_use,
			list_price = EXCLUDED.list_price,
			original_list_price = EXCLUDED.original_list_price,
			bedrooms = EXCLUDED.bedrooms,
			bathrooms = EXCLUDED.bathrooms,
			living_area = EXCLUDED.living_area,
			lot_size_sqft = EXCLUDED.lot_size_sqft,
			year_built = EXCLUDED.year_built,
			garage_spaces = EXCLUDED.garage_spaces,
			parking_total = EXCLUDED.parking_total,
			stories = EXCLUDED.stories,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			unparsed_address = EXCLUDED.unparsed_address,
			street_name = EXCLUDED.street_name,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			postal_code = EXCLUDED.postal_code,
			county = EXCLUDED.county,
			subdivision = EXCLUDED.subdivision,
			elementary_school = EXCLUDED.elementary_school,
			middle_school = EXCLUDED.middle_school,
			high_school = EXCLUDED.high_school,
			public_remarks = EXCLUDED.public_remarks,
			pool = EXCLUDED.pool,
			waterfront = EXCLUDED.waterfront,
			garage = EXCLUDED.garage,
			new_construction = EXCLUDED.new_construction,
			interior_features = EXCLUDED.interior_features,
			modified_at = EXCLUDED.modified_at,
			photos_changed_at = EXCLUDED.photos_changed_at,
			original_entry_at = EXCLUDED.original_entry_at,
			price_changed_at = EXCLUDED.price_changed_at,
			major_change_at = EXCLUDED.major_change_at,
			raw = EXCLUDED.raw,
			updated_at = now()`, row)
	if err != nil {
		return fmt.Errorf("upsert listing %s: %w", p.ListingKey, err)
	}
	return nil
}

// DeleteListing removes the listing row; child rows cascade. Returns whether
// a row existed.
func (s *Store) DeleteListing(ctx context.Context, listingKey string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM mls.properties WHERE listing_key = $1`, listingKey)
	if err != nil {
		return false, fmt.Errorf("delete listing %s: %w", listingKey, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListingCount returns the number of listings currently mirrored.
func (s *Store) ListingCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM mls.properties`); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}
