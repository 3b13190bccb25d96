// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// SettingMediaIntervalMS is the operator-tunable pacing interval for the
// media governor, in milliseconds.
const SettingMediaIntervalMS = "media_download_interval_ms"

// GetSetting reads a runtime setting; ok is false when the key is unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		`SELECT value FROM mls.settings WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting writes a runtime setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mls.settings (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// MediaInterval reads the tuned media pacing interval, falling back to the
// given default when unset or unparsable. Clamping is the governor's job.
func (s *Store) MediaInterval(ctx context.Context, fallback time.Duration) time.Duration {
	value, ok, err := s.GetSetting(ctx, SettingMediaIntervalMS)
	if err != nil || !ok {
		return fallback
	}
	ms, err := strconv.Atoi(value)
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
