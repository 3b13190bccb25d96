// SPDX-License-Identifier: MIT
package reso

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Downloader fetches media bytes from the upstream CDN. It shares the error
// taxonomy with Client but runs on its own governor and its own, longer
// timeouts: 30 s to first response headers, 60 s for the full body.
type Downloader struct {
	http     *http.Client
	governor Waiter
}

func NewDownloader(governor Waiter) *Downloader {
	return &Downloader{
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		governor: governor,
	}
}

// Fetch downloads the asset at rawURL and returns its bytes and content type.
// An empty body is an error.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := d.governor.Wait(ctx); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", &APIError{Sentinel: ErrBadResponse, Path: rawURL, Err: err}
	}

	res, err := d.http.Do(req)
	if err != nil {
		return nil, "", &APIError{Sentinel: ErrUnavailable, Path: rawURL, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, "", &APIError{Sentinel: ErrRateLimited, Path: rawURL, Status: res.StatusCode}
	case res.StatusCode == http.StatusNotFound:
		return nil, "", &APIError{Sentinel: ErrNotFound, Path: rawURL, Status: res.StatusCode}
	case res.StatusCode == http.StatusForbidden:
		return nil, "", &APIError{Sentinel: ErrForbidden, Path: rawURL, Status: res.StatusCode}
	case res.StatusCode >= 500:
		return nil, "", &APIError{Sentinel: ErrUpstream, Path: rawURL, Status: res.StatusCode}
	case res.StatusCode != http.StatusOK:
		return nil, "", &APIError{Sentinel: ErrBadResponse, Path: rawURL, Status: res.StatusCode}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", &APIError{Sentinel: ErrUnavailable, Path: rawURL, Err: err}
	}
	if len(body) == 0 {
		return nil, "", &APIError{Sentinel: ErrBadResponse, Path: rawURL, Body: "empty body"}
	}
	return body, res.Header.Get("Content-Type"), nil
}

// URLExpiresWithin reports whether the signed media URL carries an
// `expires=<unix>` parameter that falls inside the given window from now.
// URLs without the parameter never expire.
func URLExpiresWithin(rawURL string, window time.Duration, now time.Time) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	expires := u.Query().Get("expires")
	if expires == "" {
		return false
	}
	unix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	return time.Unix(unix, 0).Before(now.Add(window))
}
