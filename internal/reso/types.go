// SPDX-License-Identifier: MIT
package reso

import (
	"bytes"
	"encoding/json"
	"time"
)

// Num preserves a loosely-typed upstream numeric token without interpreting
// it. RESO feeds emit integers, floats, decimal strings and nulls for the
// same field depending on the originating system; the relational store owns
// the coercion policy, so the client only carries the literal through.
type Num struct {
	Raw string // literal JSON token with quotes stripped; "" means null/absent
}

func (n *Num) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		n.Raw = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n.Raw = s
		return nil
	}
	n.Raw = string(data)
	return nil
}

func (n Num) MarshalJSON() ([]byte, error) {
	if n.Raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(n.Raw)
}

// IsNull reports whether the upstream value was null or absent.
func (n Num) IsNull() bool { return n.Raw == "" }

// Page is one page of an OData collection response.
type Page struct {
	Context  string            `json:"@odata.context"`
	Count    *int64            `json:"@odata.count"`
	NextLink string            `json:"@odata.nextLink"`
	Value    []json.RawMessage `json:"value"`
}

// Property carries the structured subset of an upstream listing record. The
// full record travels separately as the raw page element.
type Property struct {
	ListingKey      string   `json:"ListingKey"`
	ListingID       string   `json:"ListingId"`
	StandardStatus  string   `json:"StandardStatus"`
	PropertyType    string   `json:"PropertyType"`
	PropertySubType string   `json:"PropertySubType"`
	MlgCanView      *bool    `json:"MlgCanView"`
	MlgCanUse       []string `json:"MlgCanUse"`

	ListPrice         Num `json:"ListPrice"`
	OriginalListPrice Num `json:"OriginalListPrice"`
	BedroomsTotal     Num `json:"BedroomsTotal"`
	BathroomsTotal    Num `json:"BathroomsTotalInteger"`
	LivingArea        Num `json:"LivingArea"`
	LotSizeSquareFeet Num `json:"LotSizeSquareFeet"`
	YearBuilt         Num `json:"YearBuilt"`
	GarageSpaces      Num `json:"GarageSpaces"`
	ParkingTotal      Num `json:"ParkingTotal"`
	Stories           Num `json:"Stories"`

	Latitude  *float64 `json:"Latitude"`
	Longitude *float64 `json:"Longitude"`

	UnparsedAddress  string `json:"UnparsedAddress"`
	StreetName       string `json:"StreetName"`
	City             string `json:"City"`
	StateOrProvince  string `json:"StateOrProvince"`
	PostalCode       string `json:"PostalCode"`
	CountyOrParish   string `json:"CountyOrParish"`
	SubdivisionName  string `json:"SubdivisionName"`
	ElementarySchool string `json:"ElementarySchool"`
	MiddleSchool     string `json:"MiddleOrJuniorSchool"`
	HighSchool       string `json:"HighSchool"`

	PublicRemarks string `json:"PublicRemarks"`

	PoolPrivateYN    *bool    `json:"PoolPrivateYN"`
	WaterfrontYN     *bool    `json:"WaterfrontYN"`
	GarageYN         *bool    `json:"GarageYN"`
	NewConstruction  *bool    `json:"NewConstructionYN"`
	InteriorFeatures []string `json:"InteriorFeatures"`

	ModificationTimestamp  *time.Time `json:"ModificationTimestamp"`
	PhotosChangeTimestamp  *time.Time `json:"PhotosChangeTimestamp"`
	OriginalEntryTimestamp *time.Time `json:"OriginalEntryTimestamp"`
	PriceChangeTimestamp   *time.Time `json:"PriceChangeTimestamp"`
	MajorChangeTimestamp   *time.Time `json:"MajorChangeTimestamp"`

	Media     []Media    `json:"Media"`
	Rooms     []Room     `json:"Rooms"`
	UnitTypes []UnitType `json:"UnitTypes"`
}

// Media is one asset row from a listing's media collection.
type Media struct {
	MediaKey              string     `json:"MediaKey"`
	ResourceRecordKey     string     `json:"ResourceRecordKey"`
	MediaCategory         string     `json:"MediaCategory"`
	MediaURL              string     `json:"MediaURL"`
	Order                 Num        `json:"Order"`
	ImageWidth            Num        `json:"ImageWidth"`
	ImageHeight           Num        `json:"ImageHeight"`
	ModificationTimestamp *time.Time `json:"ModificationTimestamp"`
}

// IsVideo reports whether the asset is a video; videos are never hydrated.
func (m Media) IsVideo() bool {
	return m.MediaCategory == "Video" || m.MediaCategory == "BrandedVideo" ||
		m.MediaCategory == "UnbrandedVideo"
}

type Room struct {
	RoomKey        string   `json:"RoomKey"`
	RoomType       string   `json:"RoomType"`
	RoomLevel      string   `json:"RoomLevel"`
	RoomDimensions string   `json:"RoomDimensions"`
	RoomLength     Num      `json:"RoomLength"`
	RoomWidth      Num      `json:"RoomWidth"`
	RoomArea       Num      `json:"RoomArea"`
	RoomFeatures   []string `json:"RoomFeatures"`
}

type UnitType struct {
	UnitTypeKey        string `json:"UnitTypeKey"`
	UnitTypeType       string `json:"UnitTypeType"`
	UnitTypeUnitsTotal Num    `json:"UnitTypeUnitsTotal"`
	UnitTypeBedsTotal  Num    `json:"UnitTypeBedsTotal"`
	UnitTypeBathsTotal Num    `json:"UnitTypeBathsTotal"`
	UnitTypeActualRent Num    `json:"UnitTypeActualRent"`
}

type Member struct {
	MemberKey             string     `json:"MemberKey"`
	MemberMlsID           string     `json:"MemberMlsId"`
	MemberFirstName       string     `json:"MemberFirstName"`
	MemberLastName        string     `json:"MemberLastName"`
	MemberFullName        string     `json:"MemberFullName"`
	MemberEmail           string     `json:"MemberEmail"`
	MemberPhone           string     `json:"MemberPreferredPhone"`
	OfficeKey             string     `json:"OfficeKey"`
	MemberStateLicense    string     `json:"MemberStateLicense"`
	ModificationTimestamp *time.Time `json:"ModificationTimestamp"`
}

type Office struct {
	OfficeKey             string     `json:"OfficeKey"`
	OfficeMlsID           string     `json:"OfficeMlsId"`
	OfficeName            string     `json:"OfficeName"`
	OfficePhone           string     `json:"OfficePhone"`
	OfficeEmail           string     `json:"OfficeEmail"`
	OfficeAddress1        string     `json:"OfficeAddress1"`
	OfficeCity            string     `json:"OfficeCity"`
	OfficeStateOrProvince string     `json:"OfficeStateOrProvince"`
	OfficePostalCode      string     `json:"OfficePostalCode"`
	ModificationTimestamp *time.Time `json:"ModificationTimestamp"`
}

type OpenHouse struct {
	OpenHouseKey          string     `json:"OpenHouseKey"`
	ListingKey            string     `json:"ListingKey"`
	OpenHouseStartTime    *time.Time `json:"OpenHouseStartTime"`
	OpenHouseEndTime      *time.Time `json:"OpenHouseEndTime"`
	OpenHouseRemarks      string     `json:"OpenHouseRemarks"`
	ModificationTimestamp *time.Time `json:"ModificationTimestamp"`
}

type Lookup struct {
	LookupKey             string     `json:"LookupKey"`
	LookupName            string     `json:"LookupName"`
	LookupValue           string     `json:"LookupValue"`
	StandardLookupValue   string     `json:"StandardLookupValue"`
	ModificationTimestamp *time.Time `json:"ModificationTimestamp"`
}
