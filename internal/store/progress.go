// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"fmt"
	"time"
)

// ProgressSample is one aggregate snapshot of replication health.
type ProgressSample struct {
	SampledAt            time.Time `db:"sampled_at"`
	TotalListings        int       `db:"total_listings"`
	ActiveListings       int       `db:"active_listings"`
	TotalMedia           int       `db:"total_media"`
	DownloadedMedia      int       `db:"downloaded_media"`
	MissingMedia         int       `db:"missing_media"`
	PctDownloaded        float64   `db:"pct_downloaded"`
	ListingsMissingMedia int       `db:"listings_missing_media"`
	DownloadsSinceLast   int       `db:"downloads_since_last"`
	APIRateLimited       bool      `db:"api_rate_limited"`
	MediaRateLimited     bool      `db:"media_rate_limited"`
}

// InsertProgressSample appends one row to the history table.
func (s *Store) InsertProgressSample(ctx context.Context, p ProgressSample) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO mls.progress_history (
			sampled_at, total_listings, active_listings, total_media,
			downloaded_media, missing_media, pct_downloaded,
			listings_missing_media, downloads_since_last,
			api_rate_limited, media_rate_limited
		) VALUES (
			:sampled_at, :total_listings, :active_listings, :total_media,
			:downloaded_media, :missing_media, :pct_downloaded,
			:listings_missing_media, :downloads_since_last,
			:api_rate_limited, :media_rate_limited
		)`, p)
	if err != nil {
		return fmt.Errorf("insert progress sample: %w", err)
	}
	return nil
}

// PruneProgressBefore drops history rows older than the cutoff.
func (s *Store) PruneProgressBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM mls.progress_history WHERE sampled_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune progress history: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ProgressCounts gathers the aggregates the recorder snapshots.
type ProgressCounts struct {
	TotalListings        int `db:"total_listings"`
	ActiveListings       int `db:"active_listings"`
	TotalMedia           int `db:"total_media"`
	DownloadedMedia      int `db:"downloaded_media"`
	MissingMedia         int `db:"missing_media"`
	ListingsMissingMedia int `db:"listings_missing_media"`
}

// CountsForProgress computes the snapshot aggregates in one round trip.
func (s *Store) CountsForProgress(ctx context.Context) (ProgressCounts, error) {
	var c ProgressCounts
	err := s.db.GetContext(ctx, &c, `
		SELECT
			(SELECT count(*) FROM mls.properties) AS total_listings,
			(SELECT count(*) FROM mls.properties WHERE standard_status = 'Active') AS active_listings,
			(SELECT count(*) FROM mls.media) AS total_media,
			(SELECT count(*) FROM mls.media WHERE local_url IS NOT NULL) AS downloaded_media,
			(SELECT count(*) FROM mls.media
			 WHERE local_url IS NULL AND upstream_url IS NOT NULL
			   AND (category IS NULL OR category NOT IN ('Video', 'BrandedVideo', 'UnbrandedVideo'))
			) AS missing_media,
			(SELECT count(DISTINCT listing_key) FROM mls.media
			 WHERE local_url IS NULL AND upstream_url IS NOT NULL
			   AND (category IS NULL OR category NOT IN ('Video', 'BrandedVideo', 'UnbrandedVideo'))
			) AS listings_missing_media`)
	if err != nil {
		return ProgressCounts{}, fmt.Errorf("progress counts: %w", err)
	}
	return c, nil
}
