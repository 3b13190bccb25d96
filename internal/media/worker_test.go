// SPDX-License-Identifier: MIT
package media

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openestate/resosync/internal/reso"
	"github.com/openestate/resosync/internal/store"
)

type rateEvent struct{ source, listingKey string }

type fakeWorkerStore struct {
	missing    int
	candidates []string
	assets     map[string][]store.MediaAsset

	upserts         []string
	keepLists       [][]string
	marked          map[string]string
	deletedListings []string
	events          []rateEvent
	problematic     map[string]int
	cleared         []string
}

func newFakeWorkerStore() *fakeWorkerStore {
	return &fakeWorkerStore{
		assets:      map[string][]store.MediaAsset{},
		marked:      map[string]string{},
		problematic: map[string]int{},
	}
}

func (f *fakeWorkerStore) MissingMediaCount(context.Context) (int, error) { return f.missing, nil }

func (f *fakeWorkerStore) ListingsWithMissingMedia(_ context.Context, limit int) ([]string, error) {
	if len(f.candidates) > limit {
		return f.candidates[:limit], nil
	}
	return f.candidates, nil
}

func (f *fakeWorkerStore) MediaForListing(_ context.Context, listingKey string) ([]store.MediaAsset, error) {
	return f.assets[listingKey], nil
}

func (f *fakeWorkerStore) UpsertMediaMetadata(_ context.Context, listingKey string, _ []reso.Media) error {
	f.upserts = append(f.upserts, listingKey)
	return nil
}

func (f *fakeWorkerStore) DeleteMediaNotIn(_ context.Context, _ string, keepKeys []string) (int, error) {
	f.keepLists = append(f.keepLists, keepKeys)
	return 0, nil
}

func (f *fakeWorkerStore) MarkMediaDownloaded(_ context.Context, mediaKey, localURL string) error {
	f.marked[mediaKey] = localURL
	return nil
}

func (f *fakeWorkerStore) DeleteListing(_ context.Context, listingKey string) (bool, error) {
	f.deletedListings = append(f.deletedListings, listingKey)
	return true, nil
}

func (f *fakeWorkerStore) MediaInterval(context.Context, time.Duration) time.Duration {
	return time.Millisecond
}

func (f *fakeWorkerStore) InsertRateLimitEvent(_ context.Context, source, listingKey string) error {
	f.events = append(f.events, rateEvent{source, listingKey})
	return nil
}

func (f *fakeWorkerStore) RecordProblematicListing(_ context.Context, listingKey string, hits int, _ time.Time) error {
	f.problematic[listingKey] = hits
	return nil
}

func (f *fakeWorkerStore) ClearProblematicListing(_ context.Context, listingKey string) error {
	f.cleared = append(f.cleared, listingKey)
	return nil
}

type fakeUpstream struct {
	manifest manifest
	err      error
	paths    []string
}

func (f *fakeUpstream) Object(_ context.Context, pathOrURL string, v any) error {
	f.paths = append(f.paths, pathOrURL)
	if f.err != nil {
		return f.err
	}
	*(v.(*manifest)) = f.manifest
	return nil
}

type fakeFetcher struct {
	body []byte
	ct   string
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) ([]byte, string, error) {
	f.urls = append(f.urls, rawURL)
	if f.err != nil {
		return nil, "", f.err
	}
	return f.body, f.ct, nil
}

type fakeBucket struct {
	puts   map[string][]byte
	purges []string
	putErr error
}

func newFakeBucket() *fakeBucket { return &fakeBucket{puts: map[string][]byte{}} }

func (f *fakeBucket) Key(listingKey string, ordinal int, _ string) string {
	return fmt.Sprintf("production/actris/%s/%d.jpg", listingKey, ordinal)
}

func (f *fakeBucket) URL(key string) string { return "https://cdn.test/" + key }

func (f *fakeBucket) Put(_ context.Context, key string, body []byte, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts[key] = body
	return nil
}

func (f *fakeBucket) ListingPrefix(listingKey string) string {
	return fmt.Sprintf("production/actris/%s/", listingKey)
}

func (f *fakeBucket) PurgePrefix(_ context.Context, prefix string) (int, error) {
	f.purges = append(f.purges, prefix)
	return 2, nil
}

type fakeSearch struct{ deletes []string }

func (f *fakeSearch) Delete(listingKey string) error {
	f.deletes = append(f.deletes, listingKey)
	return nil
}

type fakeGovernor struct{ intervals []time.Duration }

func (f *fakeGovernor) SetMinInterval(d time.Duration) { f.intervals = append(f.intervals, d) }

func missingAsset(listingKey, mediaKey string, ordinal int) store.MediaAsset {
	url := "https://photos.mls.test/" + mediaKey + ".jpg"
	return store.MediaAsset{
		MediaKey:    mediaKey,
		ListingKey:  listingKey,
		Ordinal:     ordinal,
		UpstreamURL: &url,
	}
}

func newTestWorker(st *fakeWorkerStore, up *fakeUpstream, fetch *fakeFetcher, bucket *fakeBucket) (*Worker, *fakeSearch, *fakeGovernor) {
	search := &fakeSearch{}
	gov := &fakeGovernor{}
	w := NewWorker(st, up, fetch, bucket, search, gov, 1500*time.Millisecond)
	return w, search, gov
}

func TestWorkerHydratesMissingAsset(t *testing.T) {
	st := newFakeWorkerStore()
	st.assets["L1"] = []store.MediaAsset{missingAsset("L1", "m0", 0)}
	up := &fakeUpstream{manifest: manifest{
		ListingKey: "L1",
		Media:      []reso.Media{{MediaKey: "m0", MediaURL: "https://photos.mls.test/m0.jpg"}},
	}}
	fetch := &fakeFetcher{body: []byte("jpeg"), ct: "image/jpeg"}
	bucket := newFakeBucket()
	w, _, gov := newTestWorker(st, up, fetch, bucket)

	wait := w.hydrateListing(context.Background(), "L1")
	assert.Equal(t, time.Second, wait)

	require.Len(t, up.paths, 1)
	assert.Contains(t, up.paths[0], "/Property('L1')")
	assert.Contains(t, up.paths[0], "$expand=Media")

	assert.Equal(t, []string{"L1"}, st.upserts)
	assert.Equal(t, [][]string{{"m0"}}, st.keepLists)
	assert.Contains(t, bucket.puts, "production/actris/L1/0.jpg")
	assert.Equal(t, "https://cdn.test/production/actris/L1/0.jpg", st.marked["m0"])
	assert.Equal(t, []string{"L1"}, st.cleared)
	assert.Equal(t, 1, w.TakeDownloads())
	assert.Equal(t, 0, w.TakeDownloads(), "counter is taken, not read")
	assert.NotEmpty(t, gov.intervals, "tuned interval must reach the governor")
}

func TestWorkerSkipsHydratedVideoAndPermanent(t *testing.T) {
	st := newFakeWorkerStore()
	local := "https://cdn.test/done.jpg"
	video := "Video"
	hydrated := missingAsset("L1", "m-done", 0)
	hydrated.LocalURL = &local
	videoAsset := missingAsset("L1", "m-video", 1)
	videoAsset.Category = &video
	st.assets["L1"] = []store.MediaAsset{hydrated, videoAsset, missingAsset("L1", "m-perm", 2)}
	up := &fakeUpstream{manifest: manifest{ListingKey: "L1"}}
	fetch := &fakeFetcher{body: []byte("x"), ct: "image/jpeg"}
	bucket := newFakeBucket()
	w, _, _ := newTestWorker(st, up, fetch, bucket)
	w.failures.MarkPermanent("m-perm")

	w.hydrateListing(context.Background(), "L1")
	assert.Empty(t, fetch.urls, "nothing eligible should be fetched")
	assert.Empty(t, bucket.puts)
}

func TestWorkerAssetNotFoundIsPermanent(t *testing.T) {
	st := newFakeWorkerStore()
	st.assets["L1"] = []store.MediaAsset{missingAsset("L1", "m0", 0)}
	up := &fakeUpstream{manifest: manifest{ListingKey: "L1"}}
	fetch := &fakeFetcher{err: &reso.APIError{Sentinel: reso.ErrNotFound, Status: 404}}
	w, _, _ := newTestWorker(st, up, fetch, newFakeBucket())

	w.hydrateListing(context.Background(), "L1")
	assert.True(t, w.failures.IsPermanent("m0"))
	assert.Empty(t, st.marked)
}

func TestWorkerAssetRateLimitSetsMediaCooldown(t *testing.T) {
	st := newFakeWorkerStore()
	st.assets["L1"] = []store.MediaAsset{missingAsset("L1", "m0", 0)}
	up := &fakeUpstream{manifest: manifest{ListingKey: "L1"}}
	fetch := &fakeFetcher{err: &reso.APIError{Sentinel: reso.ErrRateLimited, Status: 429}}
	w, _, _ := newTestWorker(st, up, fetch, newFakeBucket())

	wait := w.hydrateListing(context.Background(), "L1")
	assert.Greater(t, wait, 10*time.Minute)

	api, media := w.CooldownsActive()
	assert.False(t, api)
	assert.True(t, media)
	assert.Equal(t, []rateEvent{{"media", "L1"}}, st.events)
}

func TestWorkerManifestRateLimitQuarantines(t *testing.T) {
	st := newFakeWorkerStore()
	up := &fakeUpstream{err: &reso.APIError{Sentinel: reso.ErrRateLimited, Status: 429}}
	w, _, _ := newTestWorker(st, up, &fakeFetcher{}, newFakeBucket())

	wait := w.hydrateListing(context.Background(), "L1")
	assert.Greater(t, wait, 25*time.Minute)

	api, _ := w.CooldownsActive()
	assert.True(t, api)
	assert.Equal(t, 1, w.quarantine.Hits("L1"))
	assert.Equal(t, 1, st.problematic["L1"])
	assert.Equal(t, []rateEvent{{"api", "L1"}}, st.events)
}

func TestWorkerManifestGoneCascades(t *testing.T) {
	st := newFakeWorkerStore()
	up := &fakeUpstream{err: &reso.APIError{Sentinel: reso.ErrNotFound, Status: 404}}
	bucket := newFakeBucket()
	w, search, _ := newTestWorker(st, up, &fakeFetcher{}, bucket)

	wait := w.hydrateListing(context.Background(), "L1")
	assert.Equal(t, time.Duration(0), wait)
	assert.Equal(t, []string{"production/actris/L1/"}, bucket.purges)
	assert.Equal(t, []string{"L1"}, st.deletedListings)
	assert.Equal(t, []string{"L1"}, search.deletes)
}

func TestWorkerExpiredURLRefreshesManifest(t *testing.T) {
	st := newFakeWorkerStore()
	expired := fmt.Sprintf("https://photos.mls.test/m0.jpg?expires=%d",
		time.Now().Add(-time.Hour).Unix())
	st.assets["L1"] = []store.MediaAsset{{
		MediaKey:    "m0",
		ListingKey:  "L1",
		UpstreamURL: &expired,
	}}
	up := &fakeUpstream{manifest: manifest{ListingKey: "L1"}}
	fetch := &fakeFetcher{body: []byte("x"), ct: "image/jpeg"}
	w, _, _ := newTestWorker(st, up, fetch, newFakeBucket())

	wait := w.hydrateListing(context.Background(), "L1")
	assert.Equal(t, time.Duration(0), wait, "expired URL forces an immediate fresh pass")
	assert.Empty(t, fetch.urls, "expired URL must not be fetched")
}

func TestWorkerIterateSkipsQuarantinedCandidates(t *testing.T) {
	st := newFakeWorkerStore()
	st.missing = 5
	st.candidates = []string{"L1"}
	up := &fakeUpstream{}
	w, _, _ := newTestWorker(st, up, &fakeFetcher{}, newFakeBucket())

	now := time.Now()
	w.quarantine.RecordHit("L1", now)
	w.quarantine.RecordHit("L1", now)

	wait := w.iterate(context.Background())
	assert.Equal(t, quarantinedSleep, wait)
	assert.Empty(t, up.paths, "quarantined listing must not be touched")
}

func TestWorkerIterateIdleWhenNothingMissing(t *testing.T) {
	st := newFakeWorkerStore()
	w, _, _ := newTestWorker(st, &fakeUpstream{}, &fakeFetcher{}, newFakeBucket())

	assert.Equal(t, idleSleep, w.iterate(context.Background()))
}

func TestWorkerIterateHonoursCooldown(t *testing.T) {
	st := newFakeWorkerStore()
	st.missing = 5
	st.candidates = []string{"L1"}
	w, _, _ := newTestWorker(st, &fakeUpstream{}, &fakeFetcher{}, newFakeBucket())

	w.mu.Lock()
	w.mediaCooldown = time.Now().Add(10 * time.Minute)
	w.mu.Unlock()

	wait := w.iterate(context.Background())
	assert.Greater(t, wait, 9*time.Minute)
}

func TestWorkerNudgeNeverBlocks(t *testing.T) {
	w, _, _ := newTestWorker(newFakeWorkerStore(), &fakeUpstream{}, &fakeFetcher{}, newFakeBucket())
	w.Nudge()
	w.Nudge()
	w.Nudge()
	select {
	case <-w.nudge:
	default:
		t.Fatal("expected a pending nudge")
	}
}
