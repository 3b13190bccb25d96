// SPDX-License-Identifier: MIT
package media

import (
	"sync"
	"time"
)

const (
	maxAttemptsPerCycle = 3
	attemptCooldown     = 5 * time.Minute
)

type assetFailure struct {
	attempts    int
	lastAttempt time.Time
	permanent   bool
}

// failureTracker keeps per-asset failure accounting in memory. Single
// writer (the worker loop), but guarded anyway so the snapshot readers in
// tests and any future parallelism stay safe.
type failureTracker struct {
	mu     sync.Mutex
	assets map[string]*assetFailure
}

func newFailureTracker() *failureTracker {
	return &failureTracker{assets: make(map[string]*assetFailure)}
}

// ShouldSkip reports whether the asset is either permanently failed or in
// its per-cycle cooldown. An expired cooldown resets the attempt counter.
func (t *failureTracker) ShouldSkip(mediaKey string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.assets[mediaKey]
	if !ok {
		return false
	}
	if f.permanent {
		return true
	}
	if f.attempts >= maxAttemptsPerCycle {
		if now.Sub(f.lastAttempt) < attemptCooldown {
			return true
		}
		f.attempts = 0
	}
	return false
}

// RecordFailure bumps the attempt counter.
func (t *failureTracker) RecordFailure(mediaKey string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.assets[mediaKey]
	if !ok {
		f = &assetFailure{}
		t.assets[mediaKey] = f
	}
	f.attempts++
	f.lastAttempt = now
}

// MarkPermanent flags the asset after a 403/404: no further retries, ever.
func (t *failureTracker) MarkPermanent(mediaKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.assets[mediaKey]
	if !ok {
		f = &assetFailure{}
		t.assets[mediaKey] = f
	}
	f.permanent = true
}

// IsPermanent reports whether the asset is permanently failed.
func (t *failureTracker) IsPermanent(mediaKey string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.assets[mediaKey]
	return ok && f.permanent
}

// Clear forgets the asset after a successful upload.
func (t *failureTracker) Clear(mediaKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.assets, mediaKey)
}
