// SPDX-License-Identifier: MIT

// Package search keeps the Meilisearch index in step with the relational
// store. The index holds a projection of Listing only; the DB is
// authoritative and a failed index write is never allowed to roll back a DB
// write.
package search

import (
	"fmt"

	"github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"

	"github.com/openestate/resosync/internal/log"
)

// The attribute sets are a compatibility surface for downstream search
// consumers; changing them changes what queries are expressible.
var (
	searchableAttributes = []string{
		"listing_key", "listing_id", "unparsed_address", "street_name",
		"city", "postal_code", "subdivision", "public_remarks",
		"elementary_school", "middle_school", "high_school",
	}

	filterableAttributes = []string{
		"can_view", "standard_status", "property_type", "property_sub_type",
		"city", "state", "postal_code", "county",
		"list_price", "original_list_price", "bedrooms", "bathrooms",
		"living_area", "year_built", "lot_size_sqft",
		"garage_spaces", "parking_total",
		"pool", "waterfront", "garage", "new_construction",
		"interior_features", "_geo",
	}

	sortableAttributes = []string{
		"list_price", "modified_at_ms", "original_entry_at_ms",
		"bedrooms", "bathrooms", "living_area", "year_built",
		"lot_size_sqft",
	}
)

// Indexer wraps one Meilisearch index (one per originating system).
type Indexer struct {
	client meilisearch.ServiceManager
	index  meilisearch.IndexManager
	uid    string
	logger zerolog.Logger
}

// New connects to the search engine. No network calls happen here.
func New(host, masterKey, indexUID string) *Indexer {
	client := meilisearch.New(host, meilisearch.WithAPIKey(masterKey))
	return &Indexer{
		client: client,
		index:  client.Index(indexUID),
		uid:    indexUID,
		logger: log.WithComponent("search"),
	}
}

// EnsureIndex performs the idempotent startup configuration: create the
// index with its primary key if absent, always refresh the searchable set,
// and populate filterable/sortable only when filterable is still empty so a
// later operator override survives restarts.
func (ix *Indexer) EnsureIndex() error {
	if _, err := ix.client.GetIndex(ix.uid); err != nil {
		ix.logger.Info().
			Str("event", "search.create_index").
			Str("index", ix.uid).
			Msg("index not found, creating")
		if _, err := ix.client.CreateIndex(&meilisearch.IndexConfig{
			Uid:        ix.uid,
			PrimaryKey: "listing_key",
		}); err != nil {
			return fmt.Errorf("create index %s: %w", ix.uid, err)
		}
	}

	if _, err := ix.index.UpdateSearchableAttributes(&searchableAttributes); err != nil {
		return fmt.Errorf("update searchable attributes: %w", err)
	}

	current, err := ix.index.GetFilterableAttributes()
	if err != nil {
		return fmt.Errorf("get filterable attributes: %w", err)
	}
	if current == nil || len(*current) == 0 {
		if _, err := ix.index.UpdateFilterableAttributes(&filterableAttributes); err != nil {
			return fmt.Errorf("update filterable attributes: %w", err)
		}
		if _, err := ix.index.UpdateSortableAttributes(&sortableAttributes); err != nil {
			return fmt.Errorf("update sortable attributes: %w", err)
		}
	}
	return nil
}

// Upsert writes the listing's projection document.
func (ix *Indexer) Upsert(doc *Document) error {
	if _, err := ix.index.AddDocuments([]*Document{doc}); err != nil {
		return fmt.Errorf("index listing %s: %w", doc.ListingKey, err)
	}
	return nil
}

// Delete removes the listing's document.
func (ix *Indexer) Delete(listingKey string) error {
	if _, err := ix.index.DeleteDocument(listingKey); err != nil {
		return fmt.Errorf("delete listing %s from index: %w", listingKey, err)
	}
	return nil
}

// DeleteAll clears every document. Used only by the full reset.
func (ix *Indexer) DeleteAll() error {
	if _, err := ix.index.DeleteAllDocuments(); err != nil {
		return fmt.Errorf("clear index %s: %w", ix.uid, err)
	}
	return nil
}
