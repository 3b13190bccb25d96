// SPDX-License-Identifier: MIT
package search

import (
	"github.com/openestate/resosync/internal/reso"
	"github.com/openestate/resosync/internal/store"
)

// Geo is Meilisearch's built-in geo point shape.
type Geo struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Document is the searchable projection of one listing. Structured fields
// only; the raw blob never reaches the index.
type Document struct {
	ListingKey       string `json:"listing_key"`
	ListingID        string `json:"listing_id,omitempty"`
	StandardStatus   string `json:"standard_status,omitempty"`
	PropertyType     string `json:"property_type,omitempty"`
	PropertySubType  string `json:"property_sub_type,omitempty"`
	CanView          bool   `json:"can_view"`
	UnparsedAddress  string `json:"unparsed_address,omitempty"`
	StreetName       string `json:"street_name,omitempty"`
	City             string `json:"city,omitempty"`
	State            string `json:"state,omitempty"`
	PostalCode       string `json:"postal_code,omitempty"`
	County           string `json:"county,omitempty"`
	Subdivision      string `json:"subdivision,omitempty"`
	PublicRemarks    string `json:"public_remarks,omitempty"`
	ElementarySchool string `json:"elementary_school,omitempty"`
	MiddleSchool     string `json:"middle_school,omitempty"`
	HighSchool       string `json:"high_school,omitempty"`

	ListPrice         *int64 `json:"list_price,omitempty"`
	OriginalListPrice *int64 `json:"original_list_price,omitempty"`
	Bedrooms          *int64 `json:"bedrooms,omitempty"`
	Bathrooms         *int64 `json:"bathrooms,omitempty"`
	LivingArea        *int64 `json:"living_area,omitempty"`
	LotSizeSqft       *int64 `json:"lot_size_sqft,omitempty"`
	YearBuilt         *int64 `json:"year_built,omitempty"`
	GarageSpaces      *int64 `json:"garage_spaces,omitempty"`
	ParkingTotal      *int64 `json:"parking_total,omitempty"`

	Pool             *bool    `json:"pool,omitempty"`
	Waterfront       *bool    `json:"waterfront,omitempty"`
	Garage           *bool    `json:"garage,omitempty"`
	NewConstruction  *bool    `json:"new_construction,omitempty"`
	InteriorFeatures []string `json:"interior_features,omitempty"`

	ModifiedAtMS      *int64 `json:"modified_at_ms,omitempty"`
	OriginalEntryAtMS *int64 `json:"original_entry_at_ms,omitempty"`

	Geo *Geo `json:"_geo,omitempty"`
}

// ProjectListing builds the index document from an upstream record, applying
// the same numeric coercion as the relational store so both projections
// agree.
func ProjectListing(p *reso.Property) *Document {
	canView := true
	if p.MlgCanView != nil {
		canView = *p.MlgCanView
	}
	doc := &Document{
		ListingKey:       p.ListingKey,
		ListingID:        p.ListingID,
		StandardStatus:   p.StandardStatus,
		PropertyType:     p.PropertyType,
		PropertySubType:  p.PropertySubType,
		CanView:          canView,
		UnparsedAddress:  p.UnparsedAddress,
		StreetName:       p.StreetName,
		City:             p.City,
		State:            p.StateOrProvince,
		PostalCode:       p.PostalCode,
		County:           p.CountyOrParish,
		Subdivision:      p.SubdivisionName,
		PublicRemarks:    p.PublicRemarks,
		ElementarySchool: p.ElementarySchool,
		MiddleSchool:     p.MiddleSchool,
		HighSchool:       p.HighSchool,

		ListPrice:         store.CoerceInt(p.ListPrice),
		OriginalListPrice: store.CoerceInt(p.OriginalListPrice),
		Bedrooms:          store.CoerceInt(p.BedroomsTotal),
		Bathrooms:         store.CoerceInt(p.BathroomsTotal),
		LivingArea:        store.CoerceInt(p.LivingArea),
		LotSizeSqft:       store.CoerceInt(p.LotSizeSquareFeet),
		YearBuilt:         store.CoerceInt(p.YearBuilt),
		GarageSpaces:      store.CoerceInt(p.GarageSpaces),
		ParkingTotal:      store.CoerceInt(p.ParkingTotal),

		Pool:             p.PoolPrivateYN,
		Waterfront:       p.WaterfrontYN,
		Garage:           p.GarageYN,
		NewConstruction:  p.NewConstruction,
		InteriorFeatures: p.InteriorFeatures,
	}
	if p.ModificationTimestamp != nil {
		ms := p.ModificationTimestamp.UnixMilli()
		doc.ModifiedAtMS = &ms
	}
	if p.OriginalEntryTimestamp != nil {
		ms := p.OriginalEntryTimestamp.UnixMilli()
		doc.OriginalEntryAtMS = &ms
	}
	if p.Latitude != nil && p.Longitude != nil {
		doc.Geo = &Geo{Lat: *p.Latitude, Lng: *p.Longitude}
	}
	return doc
}
