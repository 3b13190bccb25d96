// SPDX-License-Identifier: MIT
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openestate/resosync/internal/reso"
)

type fakeDeletionStore struct {
	count   int
	deletes []string
}

func (f *fakeDeletionStore) DeleteListing(_ context.Context, listingKey string) (bool, error) {
	f.deletes = append(f.deletes, listingKey)
	return true, nil
}

func (f *fakeDeletionStore) ListingCount(context.Context) (int, error) {
	return f.count, nil
}

type fakePurger struct {
	purged   []string
	purgeErr error
}

func (f *fakePurger) ListingPrefix(listingKey string) string {
	return fmt.Sprintf("production/actris/%s/", listingKey)
}

func (f *fakePurger) PurgePrefix(_ context.Context, prefix string) (int, error) {
	if f.purgeErr != nil {
		return 0, f.purgeErr
	}
	f.purged = append(f.purged, prefix)
	return 3, nil
}

func tombstoneJSON(key string, ts time.Time) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{
		"ListingKey":            key,
		"ModificationTimestamp": ts.Format(time.RFC3339),
	})
	return raw
}

func TestDeletionsSkipsFreshStore(t *testing.T) {
	pager := &fakePager{t: t} // any fetch would fail the test
	store := &fakeDeletionStore{count: freshStartThreshold - 1}

	d := NewDeletionsDriver(pager, &fakeState{}, store, &fakeSearcher{}, &fakePurger{}, "actris", 100)
	require.NoError(t, d.Run(context.Background()))

	assert.Zero(t, pager.calls, "tombstone feed must not be consulted below the threshold")
	assert.Empty(t, store.deletes)
}

func TestDeletionsCascade(t *testing.T) {
	ts := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	pager := &fakePager{t: t, pages: []*reso.Page{{
		Value: []json.RawMessage{
			tombstoneJSON("L1", ts),
			tombstoneJSON("L2", ts.Add(time.Minute)),
		},
	}}}
	store := &fakeDeletionStore{count: 1000}
	purger := &fakePurger{}
	searcher := &fakeSearcher{}
	state := &fakeState{}

	d := NewDeletionsDriver(pager, state, store, searcher, purger, "actris", 100)
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, []string{"production/actris/L1/", "production/actris/L2/"}, purger.purged)
	assert.Equal(t, []string{"L1", "L2"}, store.deletes)
	assert.Equal(t, []string{"L1", "L2"}, searcher.deletes)
	assert.Equal(t, ts.Add(time.Minute), state.watermark)

	require.Len(t, pager.paths, 1)
	assert.Contains(t, pager.paths[0], "MlgCanView+eq+false")
	assert.Contains(t, pager.paths[0], "%24select=ListingKey%2CModificationTimestamp")
}

func TestDeletionsPurgeFailureSkipsRecord(t *testing.T) {
	ts := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	pager := &fakePager{t: t, pages: []*reso.Page{{
		Value: []json.RawMessage{tombstoneJSON("L1", ts)},
	}}}
	store := &fakeDeletionStore{count: 1000}
	state := &fakeState{}

	d := NewDeletionsDriver(pager, state, store, &fakeSearcher{},
		&fakePurger{purgeErr: errors.New("s3 down")}, "actris", 100)
	require.NoError(t, d.Run(context.Background()))

	// Object purge failed, so the DB row must survive and the watermark must
	// not move past the unhandled tombstone.
	assert.Empty(t, store.deletes)
	assert.True(t, state.watermark.IsZero())
	assert.Equal(t, 1, state.touched)
}

func TestDeletionsSearchFailureDoesNotBlock(t *testing.T) {
	ts := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	pager := &fakePager{t: t, pages: []*reso.Page{{
		Value: []json.RawMessage{tombstoneJSON("L1", ts)},
	}}}
	store := &fakeDeletionStore{count: 1000}
	state := &fakeState{}

	d := NewDeletionsDriver(pager, state, store,
		&fakeSearcher{deleteErr: errors.New("index down")}, &fakePurger{}, "actris", 100)
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, []string{"L1"}, store.deletes)
	assert.Equal(t, ts, state.watermark)
}
