// SPDX-License-Identifier: MIT
package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuarantineLadder(t *testing.T) {
	q := newQuarantine()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	hits, until := q.RecordHit("L1", now)
	assert.Equal(t, 1, hits)
	assert.False(t, q.IsQuarantined("L1", now), "one hit carries no cooldown")
	assert.Equal(t, now, until)

	hits, until = q.RecordHit("L1", now)
	assert.Equal(t, 2, hits)
	assert.Equal(t, now.Add(2*time.Hour), until)
	assert.True(t, q.IsQuarantined("L1", now))
	assert.False(t, q.IsQuarantined("L1", now.Add(2*time.Hour+time.Second)))

	hits, until = q.RecordHit("L1", now)
	assert.Equal(t, 3, hits)
	assert.Equal(t, now.Add(4*time.Hour), until)

	hits, until = q.RecordHit("L1", now)
	assert.Equal(t, 4, hits)
	assert.Equal(t, now.Add(8*time.Hour), until)

	hits, until = q.RecordHit("L1", now)
	assert.Equal(t, 5, hits)
	assert.Equal(t, now.Add(7*24*time.Hour), until)

	// Past the top of the ladder it stays at a week.
	hits, until = q.RecordHit("L1", now)
	assert.Equal(t, 6, hits)
	assert.Equal(t, now.Add(7*24*time.Hour), until)
}

func TestQuarantineIsPerListing(t *testing.T) {
	q := newQuarantine()
	now := time.Now()

	q.RecordHit("L1", now)
	q.RecordHit("L1", now)
	assert.True(t, q.IsQuarantined("L1", now))
	assert.False(t, q.IsQuarantined("L2", now))
	assert.Equal(t, 2, q.Hits("L1"))
	assert.Equal(t, 0, q.Hits("L2"))
	assert.Equal(t, 1, q.Len())
}

func TestQuarantineClear(t *testing.T) {
	q := newQuarantine()
	now := time.Now()

	q.RecordHit("L1", now)
	q.RecordHit("L1", now)
	q.Clear("L1")
	assert.False(t, q.IsQuarantined("L1", now))
	assert.Equal(t, 0, q.Hits("L1"))
	assert.Equal(t, 0, q.Len())

	// A fresh incident starts the ladder over.
	hits, _ := q.RecordHit("L1", now)
	assert.Equal(t, 1, hits)
}
