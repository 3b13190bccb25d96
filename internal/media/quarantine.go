// SPDX-License-Identifier: MIT
package media

import (
	"sync"
	"time"
)

const maxQuarantineHits = 5

// quarantineEntry tracks one chronic offender.
type quarantineEntry struct {
	consecutiveFails int
	until            time.Time
}

// quarantine holds the per-listing backoff ladder for listings whose
// manifest fetch keeps drawing 429s. Escalation: 2 hits 2 h, 3 hits 4 h,
// 4 hits 8 h, 5 hits 7 days.
type quarantine struct {
	mu       sync.Mutex
	listings map[string]*quarantineEntry
}

func newQuarantine() *quarantine {
	return &quarantine{listings: make(map[string]*quarantineEntry)}
}

// cooldownFor returns the ladder step for a hit count.
func cooldownFor(hits int) time.Duration {
	switch {
	case hits >= maxQuarantineHits:
		return 7 * 24 * time.Hour
	case hits == 4:
		return 8 * time.Hour
	case hits == 3:
		return 4 * time.Hour
	case hits == 2:
		return 2 * time.Hour
	default:
		return 0
	}
}

// RecordHit bumps the consecutive-429 counter and returns the new hit count
// and the cooldown expiry.
func (q *quarantine) RecordHit(listingKey string, now time.Time) (int, time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.listings[listingKey]
	if !ok {
		e = &quarantineEntry{}
		q.listings[listingKey] = e
	}
	e.consecutiveFails++
	e.until = now.Add(cooldownFor(e.consecutiveFails))
	return e.consecutiveFails, e.until
}

// IsQuarantined reports whether the listing may not be attempted yet.
func (q *quarantine) IsQuarantined(listingKey string, now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.listings[listingKey]
	return ok && now.Before(e.until)
}

// Hits returns the current consecutive-fail count.
func (q *quarantine) Hits(listingKey string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.listings[listingKey]; ok {
		return e.consecutiveFails
	}
	return 0
}

// Clear resets the listing after a successful manifest handling.
func (q *quarantine) Clear(listingKey string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.listings, listingKey)
}

// Len reports how many listings are currently held.
func (q *quarantine) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.listings)
}
