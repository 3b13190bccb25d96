// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"fmt"
	"time"
)

// InsertRateLimitEvent logs one terminal 429. source is "api" or "media";
// listingKey is empty when the rejection was not attributable to a listing.
func (s *Store) InsertRateLimitEvent(ctx context.Context, source, listingKey string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mls.rate_limit_events (source, listing_key)
		VALUES ($1, $2)`, source, nullable(listingKey))
	if err != nil {
		return fmt.Errorf("insert rate limit event: %w", err)
	}
	return nil
}

// RecordProblematicListing persists the quarantine state of a chronic
// offender so operators can see it outlive the in-memory map.
func (s *Store) RecordProblematicListing(ctx context.Context, listingKey string, hits int, cooldownUntil time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mls.problematic_properties (listing_key, hits, cooldown_until, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (listing_key) DO UPDATE SET
			hits = EXCLUDED.hits,
			cooldown_until = EXCLUDED.cooldown_until,
			updated_at = now()`,
		listingKey, hits, cooldownUntil)
	if err != nil {
		return fmt.Errorf("record problematic listing %s: %w", listingKey, err)
	}
	return nil
}

// ClearProblematicListing removes the row after a successful cycle.
func (s *Store) ClearProblematicListing(ctx context.Context, listingKey string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM mls.problematic_properties WHERE listing_key = $1`, listingKey)
	if err != nil {
		return fmt.Errorf("clear problematic listing %s: %w", listingKey, err)
	}
	return nil
}
