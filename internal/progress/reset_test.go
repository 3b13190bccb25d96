// SPDX-License-Identifier: MIT
package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTruncator struct {
	called bool
	err    error
}

func (f *fakeTruncator) TruncateAll(context.Context) error {
	f.called = true
	return f.err
}

type fakeBlobWiper struct {
	purged []string
	err    error
}

func (f *fakeBlobWiper) RootPrefix() string { return "production/actris/" }

func (f *fakeBlobWiper) PurgePrefix(_ context.Context, prefix string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.purged = append(f.purged, prefix)
	return 5, nil
}

type fakeSearchWiper struct {
	called bool
	err    error
}

func (f *fakeSearchWiper) DeleteAll() error {
	f.called = true
	return f.err
}

func TestResetWipesAllThree(t *testing.T) {
	db := &fakeTruncator{}
	blob := &fakeBlobWiper{}
	search := &fakeSearchWiper{}

	require.NoError(t, Reset(context.Background(), db, blob, search))
	assert.True(t, db.called)
	assert.Equal(t, []string{"production/actris/"}, blob.purged)
	assert.True(t, search.called)
}

func TestResetPartialFailureStillWipesOthers(t *testing.T) {
	db := &fakeTruncator{}
	blob := &fakeBlobWiper{err: errors.New("s3 down")}
	search := &fakeSearchWiper{}

	err := Reset(context.Background(), db, blob, search)
	require.Error(t, err)

	// The failing wipe must not stop the independent ones.
	assert.True(t, db.called)
	assert.True(t, search.called)
}
