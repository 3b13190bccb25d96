// SPDX-License-Identifier: MIT
package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openestate/resosync/internal/store"
)

type fakeProgressStore struct {
	counts    store.ProgressCounts
	countsErr error
	samples   []store.ProgressSample
	pruned    []time.Time
}

func (f *fakeProgressStore) CountsForProgress(context.Context) (store.ProgressCounts, error) {
	return f.counts, f.countsErr
}

func (f *fakeProgressStore) InsertProgressSample(_ context.Context, p store.ProgressSample) error {
	f.samples = append(f.samples, p)
	return nil
}

func (f *fakeProgressStore) PruneProgressBefore(_ context.Context, cutoff time.Time) (int, error) {
	f.pruned = append(f.pruned, cutoff)
	return 1, nil
}

type fakeWorkerStatus struct {
	downloads    int
	apiLimited   bool
	mediaLimited bool
}

func (f *fakeWorkerStatus) TakeDownloads() int {
	n := f.downloads
	f.downloads = 0
	return n
}

func (f *fakeWorkerStatus) CooldownsActive() (bool, bool) {
	return f.apiLimited, f.mediaLimited
}

func TestRecorderSamplesAndPrunes(t *testing.T) {
	st := &fakeProgressStore{counts: store.ProgressCounts{
		TotalListings:        200,
		ActiveListings:       150,
		TotalMedia:           1000,
		DownloadedMedia:      600,
		MissingMedia:         400,
		ListingsMissingMedia: 42,
	}}
	worker := &fakeWorkerStatus{downloads: 17, mediaLimited: true}
	r := NewRecorder(st, worker)

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	r.MaybeRecord(context.Background())
	require.Len(t, st.samples, 1)

	sample := st.samples[0]
	assert.Equal(t, 200, sample.TotalListings)
	assert.Equal(t, 17, sample.DownloadsSinceLast)
	assert.InDelta(t, 60.0, sample.PctDownloaded, 0.01)
	assert.False(t, sample.APIRateLimited)
	assert.True(t, sample.MediaRateLimited)

	require.Len(t, st.pruned, 1)
	assert.Equal(t, base.Add(-retention), st.pruned[0])
}

func TestRecorderGate(t *testing.T) {
	st := &fakeProgressStore{}
	r := NewRecorder(st, &fakeWorkerStatus{})

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r.now = func() time.Time { return now }

	r.MaybeRecord(context.Background())
	require.Len(t, st.samples, 1)

	// Inside the gate: no second sample.
	now = base.Add(10 * time.Minute)
	r.MaybeRecord(context.Background())
	assert.Len(t, st.samples, 1)

	// Past the gate: sampled again.
	now = base.Add(16 * time.Minute)
	r.MaybeRecord(context.Background())
	assert.Len(t, st.samples, 2)
}

func TestRecorderCountsFailureIsNonFatal(t *testing.T) {
	st := &fakeProgressStore{countsErr: errors.New("db down")}
	r := NewRecorder(st, &fakeWorkerStatus{})
	r.MaybeRecord(context.Background())
	assert.Empty(t, st.samples)
}

func TestRecorderZeroMediaAvoidsDivideByZero(t *testing.T) {
	st := &fakeProgressStore{}
	r := NewRecorder(st, &fakeWorkerStatus{})
	r.MaybeRecord(context.Background())
	require.Len(t, st.samples, 1)
	assert.Zero(t, st.samples[0].PctDownloaded)
}
