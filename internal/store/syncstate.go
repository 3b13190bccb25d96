// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetSyncState returns the high-water-mark for the resource, or a zero time
// when no state has been recorded yet.
func (s *Store) GetSyncState(ctx context.Context, resource string) (time.Time, error) {
	var t sql.NullTime
	err := s.db.GetContext(ctx, &t, `
		SELECT last_modified FROM mls.sync_state
		WHERE resource = $1 AND originating_system = $2`, resource, s.system)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get sync state %s: %w", resource, err)
	}
	if !t.Valid {
		return time.Time{}, nil
	}
	return t.Time, nil
}

// SetSyncState advances the high-water-mark and stamps the run time. Called
// after every acknowledged batch, never only at cycle end: a crash must not
// re-process a fully-acknowledged batch.
func (s *Store) SetSyncState(ctx context.Context, resource string, lastModified time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mls.sync_state (resource, originating_system, last_modified, last_run)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (resource, originating_system) DO UPDATE SET
			last_modified = GREATEST(mls.sync_state.last_modified, EXCLUDED.last_modified),
			last_run = now()`,
		resource, s.system, lastModified)
	if err != nil {
		return fmt.Errorf("set sync state %s: %w", resource, err)
	}
	return nil
}

// TouchSyncState stamps last_run without moving the high-water-mark, for
// cycles that saw no new records.
func (s *Store) TouchSyncState(ctx context.Context, resource string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mls.sync_state (resource, originating_system, last_run)
		VALUES ($1, $2, now())
		ON CONFLICT (resource, originating_system) DO UPDATE SET last_run = now()`,
		resource, s.system)
	if err != nil {
		return fmt.Errorf("touch sync state %s: %w", resource, err)
	}
	return nil
}
