// SPDX-License-Identifier: MIT
package ops

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openestate/resosync/internal/store"
)

type fakeSettings struct {
	values  map[string]string
	pingErr error
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: map[string]string{}}
}

func (f *fakeSettings) GetSetting(_ context.Context, key string) (string, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeSettings) SetSetting(_ context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func (f *fakeSettings) Ping(context.Context) error { return f.pingErr }

type fakeTunable struct{ intervals []time.Duration }

func (f *fakeTunable) SetMinInterval(d time.Duration) { f.intervals = append(f.intervals, d) }

func do(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	settings := newFakeSettings()
	srv := NewServer(settings, &fakeTunable{}, 1500*time.Millisecond)
	router := srv.Router()

	rec := do(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)

	settings.pingErr = errors.New("connection refused")
	rec = do(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := NewServer(newFakeSettings(), &fakeTunable{}, 1500*time.Millisecond)
	rec := do(t, srv.Router(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestGetMediaIntervalFallsBack(t *testing.T) {
	srv := NewServer(newFakeSettings(), &fakeTunable{}, 1500*time.Millisecond)
	rec := do(t, srv.Router(), http.MethodGet, "/api/settings/media-interval", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"interval_ms": 1500}`, rec.Body.String())
}

func TestGetMediaIntervalReadsStored(t *testing.T) {
	settings := newFakeSettings()
	settings.values[store.SettingMediaIntervalMS] = "2500"
	srv := NewServer(settings, &fakeTunable{}, 1500*time.Millisecond)

	rec := do(t, srv.Router(), http.MethodGet, "/api/settings/media-interval", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"interval_ms": 2500}`, rec.Body.String())
}

func TestPutMediaInterval(t *testing.T) {
	settings := newFakeSettings()
	governor := &fakeTunable{}
	srv := NewServer(settings, governor, 1500*time.Millisecond)
	router := srv.Router()

	rec := do(t, router, http.MethodPut, "/api/settings/media-interval", `{"interval_ms": 2000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2000", settings.values[store.SettingMediaIntervalMS])
	require.Len(t, governor.intervals, 1)
	assert.Equal(t, 2*time.Second, governor.intervals[0])
}

func TestPutMediaIntervalRejectsOutOfRange(t *testing.T) {
	settings := newFakeSettings()
	srv := NewServer(settings, &fakeTunable{}, 1500*time.Millisecond)
	router := srv.Router()

	for _, body := range []string{`{"interval_ms": 100}`, `{"interval_ms": 60000}`, `{"interval_ms": 0}`} {
		rec := do(t, router, http.MethodPut, "/api/settings/media-interval", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)
	}
	assert.Empty(t, settings.values)
}

func TestPutMediaIntervalRejectsBadJSON(t *testing.T) {
	srv := NewServer(newFakeSettings(), &fakeTunable{}, 1500*time.Millisecond)
	rec := do(t, srv.Router(), http.MethodPut, "/api/settings/media-interval", `{"interval_ms": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
