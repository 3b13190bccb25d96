// SPDX-License-Identifier: MIT
package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFailureTrackerCooldownAfterMaxAttempts(t *testing.T) {
	tr := newFailureTracker()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, tr.ShouldSkip("m1", now), "unknown asset is eligible")

	for i := 0; i < maxAttemptsPerCycle; i++ {
		assert.False(t, tr.ShouldSkip("m1", now))
		tr.RecordFailure("m1", now)
	}

	assert.True(t, tr.ShouldSkip("m1", now), "exhausted asset is in cooldown")
	assert.True(t, tr.ShouldSkip("m1", now.Add(attemptCooldown-time.Second)))

	// Cooldown expiry resets the budget.
	later := now.Add(attemptCooldown + time.Second)
	assert.False(t, tr.ShouldSkip("m1", later))
	tr.RecordFailure("m1", later)
	assert.False(t, tr.ShouldSkip("m1", later), "counter restarted after cooldown")
}

func TestFailureTrackerPermanent(t *testing.T) {
	tr := newFailureTracker()
	now := time.Now()

	tr.MarkPermanent("m1")
	assert.True(t, tr.IsPermanent("m1"))
	assert.True(t, tr.ShouldSkip("m1", now))
	assert.True(t, tr.ShouldSkip("m1", now.Add(24*time.Hour)), "permanent never expires")
	assert.False(t, tr.IsPermanent("m2"))
}

func TestFailureTrackerClear(t *testing.T) {
	tr := newFailureTracker()
	now := time.Now()

	for i := 0; i < maxAttemptsPerCycle; i++ {
		tr.RecordFailure("m1", now)
	}
	assert.True(t, tr.ShouldSkip("m1", now))

	tr.Clear("m1")
	assert.False(t, tr.ShouldSkip("m1", now))
}
