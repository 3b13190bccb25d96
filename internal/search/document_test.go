// SPDX-License-Identifier: MIT
package search

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openestate/resosync/internal/reso"
)

func TestProjectListing(t *testing.T) {
	raw := `{
		"ListingKey": "L1",
		"ListingId": "MLS-1",
		"StandardStatus": "Active",
		"MlgCanView": true,
		"City": "Austin",
		"StateOrProvince": "TX",
		"ListPrice": "2995000.00",
		"BedroomsTotal": 4,
		"BathroomsTotalInteger": "3",
		"LivingArea": 2481.6,
		"YearBuilt": "not recorded",
		"Latitude": 30.2672,
		"Longitude": -97.7431,
		"PoolPrivateYN": true,
		"InteriorFeatures": ["Quartz Counters", "Walk-In Closet(s)"],
		"ModificationTimestamp": "2026-05-01T10:00:00Z"
	}`
	var p reso.Property
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	doc := ProjectListing(&p)
	assert.Equal(t, "L1", doc.ListingKey)
	assert.True(t, doc.CanView)
	assert.Equal(t, "Austin", doc.City)
	assert.Equal(t, "TX", doc.State)

	// Numeric coercion mirrors the relational store: decimal strings round,
	// non-numeric stores as null.
	require.NotNil(t, doc.ListPrice)
	assert.EqualValues(t, 2995000, *doc.ListPrice)
	require.NotNil(t, doc.Bedrooms)
	assert.EqualValues(t, 4, *doc.Bedrooms)
	require.NotNil(t, doc.Bathrooms)
	assert.EqualValues(t, 3, *doc.Bathrooms)
	require.NotNil(t, doc.LivingArea)
	assert.EqualValues(t, 2482, *doc.LivingArea)
	assert.Nil(t, doc.YearBuilt)

	require.NotNil(t, doc.Geo)
	assert.InDelta(t, 30.2672, doc.Geo.Lat, 1e-9)
	assert.InDelta(t, -97.7431, doc.Geo.Lng, 1e-9)

	require.NotNil(t, doc.Pool)
	assert.True(t, *doc.Pool)
	assert.Equal(t, []string{"Quartz Counters", "Walk-In Closet(s)"}, doc.InteriorFeatures)

	require.NotNil(t, doc.ModifiedAtMS)
	assert.EqualValues(t, p.ModificationTimestamp.UnixMilli(), *doc.ModifiedAtMS)
}

func TestProjectListingDefaults(t *testing.T) {
	var p reso.Property
	require.NoError(t, json.Unmarshal([]byte(`{"ListingKey": "L2"}`), &p))

	doc := ProjectListing(&p)
	assert.True(t, doc.CanView, "absent visibility flag defaults to visible")
	assert.Nil(t, doc.Geo, "no coordinates, no geo point")
	assert.Nil(t, doc.ListPrice)
	assert.Nil(t, doc.ModifiedAtMS)
}

func TestProjectListingGeoNeedsBothCoordinates(t *testing.T) {
	var p reso.Property
	require.NoError(t, json.Unmarshal([]byte(`{"ListingKey": "L3", "Latitude": 30.1}`), &p))
	assert.Nil(t, ProjectListing(&p).Geo)
}

func TestDocumentOmitsNullFields(t *testing.T) {
	var p reso.Property
	require.NoError(t, json.Unmarshal([]byte(`{"ListingKey": "L4"}`), &p))

	out, err := json.Marshal(ProjectListing(&p))
	require.NoError(t, err)
	assert.NotContains(t, string(out), "list_price")
	assert.NotContains(t, string(out), "_geo")
	assert.Contains(t, string(out), `"can_view"`)
}
