// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/openestate/resosync/internal/reso"
)

// MediaAsset is the DB-side view of one media row, as consumed by the media
// worker.
type MediaAsset struct {
	MediaKey           string     `db:"media_key"`
	ListingKey         string     `db:"listing_key"`
	Category           *string    `db:"category"`
	Ordinal            int        `db:"ordinal"`
	UpstreamURL        *string    `db:"upstream_url"`
	UpstreamModifiedAt *time.Time `db:"upstream_modified_at"`
	LocalURL           *string    `db:"local_url"`
}

// IsVideo reports whether the row describes a video asset.
func (a MediaAsset) IsVideo() bool {
	return a.Category != nil && (*a.Category == "Video" ||
		*a.Category == "BrandedVideo" || *a.Category == "UnbrandedVideo")
}

// UpsertMediaMetadata writes one row per asset key. local_url is monotonic:
// it survives metadata refreshes and is cleared only when the upstream
// modification timestamp advances, which forces a re-download.
func (s *Store) UpsertMediaMetadata(ctx context.Context, listingKey string, media []reso.Media) error {
	for _, m := range media {
		if m.MediaKey == "" {
			continue
		}
		ordinal := 0
		if o := CoerceInt(m.Order); o != nil {
			ordinal = int(*o)
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO mls.media AS m (
				media_key, listing_key, category, ordinal, upstream_url,
				upstream_modified_at, width, height, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (media_key) DO UPDATE SET
				listing_key = EXCLUDED.listing_key,
				category = EXCLUDED.category,
				ordinal = EXCLUDED.ordinal,
				upstream_url = EXCLUDED.upstream_url,
				width = EXCLUDED.width,
				height = EXCLUDED.height,
				local_url = CASE
					WHEN m.upstream_modified_at IS NOT NULL
					     AND EXCLUDED.upstream_modified_at IS NOT NULL
					     AND EXCLUDED.upstream_modified_at > m.upstream_modified_at
					THEN NULL
					ELSE m.local_url
				END,
				upstream_modified_at = EXCLUDED.upstream_modified_at,
				updated_at = now()`,
			m.MediaKey, listingKey, nullable(m.MediaCategory), ordinal,
			nullable(m.MediaURL), m.ModificationTimestamp,
			CoerceInt(m.ImageWidth), CoerceInt(m.ImageHeight))
		if err != nil {
			return fmt.Errorf("upsert media %s: %w", m.MediaKey, err)
		}
	}
	return nil
}

// UpdateMediaURL stores a fresh short-lived upstream URL for an asset.
func (s *Store) UpdateMediaURL(ctx context.Context, mediaKey, url string, modifiedAt *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mls.media
		SET upstream_url = $2, upstream_modified_at = $3, updated_at = now()
		WHERE media_key = $1`, mediaKey, url, modifiedAt)
	if err != nil {
		return fmt.Errorf("update media url %s: %w", mediaKey, err)
	}
	return nil
}

// MarkMediaDownloaded records a hydrated asset's stable CDN URL.
func (s *Store) MarkMediaDownloaded(ctx context.Context, mediaKey, localURL string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mls.media
		SET local_url = $2, updated_at = now()
		WHERE media_key = $1`, mediaKey, localURL)
	if err != nil {
		return fmt.Errorf("mark media downloaded %s: %w", mediaKey, err)
	}
	return nil
}

// MissingMediaCount counts photo assets that still lack a local URL and have
// a known upstream URL. Videos are never hydrated and never counted.
func (s *Store) MissingMediaCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT count(*) FROM mls.media
		WHERE local_url IS NULL
		  AND upstream_url IS NOT NULL
		  AND (category IS NULL OR category NOT IN ('Video', 'BrandedVideo', 'UnbrandedVideo'))`)
	if err != nil {
		return 0, fmt.Errorf("count missing media: %w", err)
	}
	return n, nil
}

// ListingsWithMissingMedia returns up to limit listing keys that have at
// least one missing photo asset, most recently modified first. The media
// worker uses these as quarantine-aware candidates.
func (s *Store) ListingsWithMissingMedia(ctx context.Context, limit int) ([]string, error) {
	var keys []string
	err := s.db.SelectContext(ctx, &keys, `
		SELECT p.listing_key
		FROM mls.properties p
		WHERE EXISTS (
			SELECT 1 FROM mls.media m
			WHERE m.listing_key = p.listing_key
			  AND m.local_url IS NULL
			  AND m.upstream_url IS NOT NULL
			  AND (m.category IS NULL OR m.category NOT IN ('Video', 'BrandedVideo', 'UnbrandedVideo'))
		)
		ORDER BY p.modified_at DESC NULLS LAST
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select listings with missing media: %w", err)
	}
	return keys, nil
}

// MediaForListing returns every media row for the listing.
func (s *Store) MediaForListing(ctx context.Context, listingKey string) ([]MediaAsset, error) {
	var assets []MediaAsset
	err := s.db.SelectContext(ctx, &assets, `
		SELECT media_key, listing_key, category, ordinal, upstream_url,
		       upstream_modified_at, local_url
		FROM mls.media
		WHERE listing_key = $1
		ORDER BY ordinal`, listingKey)
	if err != nil {
		return nil, fmt.Errorf("select media for %s: %w", listingKey, err)
	}
	return assets, nil
}

// DeleteMediaNotIn removes local media rows for the listing whose asset key
// no longer appears in the fresh upstream manifest. Stale asset keys must
// not be re-downloaded.
func (s *Store) DeleteMediaNotIn(ctx context.Context, listingKey string, keepKeys []string) (int, error) {
	var res sql.Result
	var err error
	if len(keepKeys) == 0 {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM mls.media WHERE listing_key = $1`, listingKey)
	} else {
		res, err = s.db.ExecContext(ctx, `
			DELETE FROM mls.media
			WHERE listing_key = $1 AND media_key <> ALL ($2)`,
			listingKey, pq.StringArray(keepKeys))
	}
	if err != nil {
		return 0, fmt.Errorf("delete orphan media for %s: %w", listingKey, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// HydratedMediaCount counts assets that already carry a local URL.
func (s *Store) HydratedMediaCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n,
		`SELECT count(*) FROM mls.media WHERE local_url IS NOT NULL`); err != nil {
		return 0, fmt.Errorf("count hydrated media: %w", err)
	}
	return n, nil
}

// MediaCount counts all media rows.
func (s *Store) MediaCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM mls.media`); err != nil {
		return 0, fmt.Errorf("count media: %w", err)
	}
	return n, nil
}

// ErrNoRows is exposed so callers need not import database/sql.
var ErrNoRows = errors.New("store: no rows")
