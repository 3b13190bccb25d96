// SPDX-License-Identifier: MIT
package reso

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloaderFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	body, contentType, err := NewDownloader(nopWaiter{}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(body))
	assert.Equal(t, "image/jpeg", contentType)
}

func TestDownloaderEmptyBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, _, err := NewDownloader(nopWaiter{}).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestDownloaderStatusTaxonomy(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusBadGateway, ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, _, err := NewDownloader(nopWaiter{}).Fetch(context.Background(), srv.URL)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestURLExpiresWithin(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	window := 5 * time.Minute
	signed := func(offset time.Duration) string {
		return fmt.Sprintf("https://cdn.test/photo.jpg?expires=%d", now.Add(offset).Unix())
	}

	assert.True(t, URLExpiresWithin(signed(2*time.Minute), window, now), "expiring inside window")
	assert.True(t, URLExpiresWithin(signed(-time.Hour), window, now), "already expired")
	assert.False(t, URLExpiresWithin(signed(time.Hour), window, now), "plenty of time left")
	assert.False(t, URLExpiresWithin("https://cdn.test/photo.jpg", window, now), "unsigned URL")
	assert.False(t, URLExpiresWithin("https://cdn.test/photo.jpg?expires=later", window, now), "junk expiry")
	assert.False(t, URLExpiresWithin("://bad", window, now), "unparsable URL")
}
