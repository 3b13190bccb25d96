// SPDX-License-Identifier: MIT
package reso

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/openestate/resosync/internal/log"
)

const (
	maxRateLimitRetries = 5
	baseRetryWait       = 60 * time.Second
	maxErrorBodyBytes   = 512
)

// Waiter blocks until the caller may issue the next upstream request.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Client talks to a RESO Web API (OData) feed. Every request passes through
// the injected rate governor before it reaches the wire.
type Client struct {
	base     *url.URL
	token    string
	http     *http.Client
	governor Waiter
	breaker  *gobreaker.CircuitBreaker
	logger   zerolog.Logger
}

// NewClient builds a client for the given base URL (scheme://host/path-prefix)
// and bearer token.
func NewClient(base, token string, governor Waiter) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "reso-upstream",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Only transport failures and 5xx count against the breaker;
			// 4xx and rate limits are the caller's problem.
			return err == nil ||
				(!errors.Is(err, ErrUnavailable) && !errors.Is(err, ErrUpstream))
		},
	})
	return &Client{
		base:     u,
		token:    token,
		http:     &http.Client{Timeout: 30 * time.Second},
		governor: governor,
		breaker:  breaker,
		logger:   log.WithComponent("reso"),
	}, nil
}

// Page fetches one page of an OData collection. pathOrURL is either a
// relative path+query produced by Query.Encode or an absolute
// @odata.nextLink from a previous page.
func (c *Client) Page(ctx context.Context, pathOrURL string) (*Page, error) {
	body, err := c.get(ctx, pathOrURL)
	if err != nil {
		return nil, err
	}
	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &APIError{Sentinel: ErrBadResponse, Path: pathOrURL, Err: err}
	}
	return &page, nil
}

// Object fetches a single OData entity into v.
func (c *Client) Object(ctx context.Context, pathOrURL string, v any) error {
	body, err := c.get(ctx, pathOrURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &APIError{Sentinel: ErrBadResponse, Path: pathOrURL, Err: err}
	}
	return nil
}

// get issues the request with governor pacing and internal 429 retries.
func (c *Client) get(ctx context.Context, pathOrURL string) ([]byte, error) {
	target := c.resolve(pathOrURL)

	var lastErr error
	for attempt := 0; attempt <= maxRateLimitRetries; attempt++ {
		if err := c.governor.Wait(ctx); err != nil {
			return nil, err
		}

		body, retryAfter, err := c.do(ctx, target)
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return nil, err
		}
		lastErr = err
		if attempt == maxRateLimitRetries {
			break
		}

		wait := baseRetryWait << attempt
		if retryAfter > 0 {
			wait = retryAfter
		}
		c.logger.Warn().
			Str("event", "upstream.rate_limited").
			Str("path", pathOrURL).
			Dur("wait", wait).
			Int("attempt", attempt+1).
			Msg("upstream returned 429, backing off")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

// do performs a single HTTP round trip through the circuit breaker.
func (c *Client) do(ctx context.Context, target string) ([]byte, time.Duration, error) {
	var retryAfter time.Duration

	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, &APIError{Sentinel: ErrBadResponse, Path: target, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Accept-Encoding", "gzip")

		res, err := c.http.Do(req)
		if err != nil {
			return nil, &APIError{Sentinel: ErrUnavailable, Path: target, Err: err}
		}
		defer func() { _ = res.Body.Close() }()

		if res.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyBytes))
			switch {
			case res.StatusCode == http.StatusTooManyRequests:
				retryAfter = parseRetryAfter(res.Header.Get("Retry-After"))
				return nil, &APIError{Sentinel: ErrRateLimited, Path: target, Status: res.StatusCode}
			case res.StatusCode == http.StatusNotFound:
				return nil, &APIError{Sentinel: ErrNotFound, Path: target, Status: res.StatusCode}
			case res.StatusCode == http.StatusForbidden || res.StatusCode == http.StatusUnauthorized:
				return nil, &APIError{Sentinel: ErrForbidden, Path: target, Status: res.StatusCode}
			case res.StatusCode >= 500:
				return nil, &APIError{Sentinel: ErrUpstream, Path: target, Status: res.StatusCode, Body: string(snippet)}
			default:
				return nil, &APIError{Sentinel: ErrBadResponse, Path: target, Status: res.StatusCode, Body: string(snippet)}
			}
		}

		reader := io.Reader(res.Body)
		if strings.EqualFold(res.Header.Get("Content-Encoding"), "gzip") {
			gz, err := gzip.NewReader(res.Body)
			if err != nil {
				return nil, &APIError{Sentinel: ErrBadResponse, Path: target, Err: err}
			}
			defer func() { _ = gz.Close() }()
			reader = gz
		}

		body, err := io.ReadAll(reader)
		if err != nil {
			return nil, &APIError{Sentinel: ErrUnavailable, Path: target, Err: err}
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, 0, &APIError{Sentinel: ErrUnavailable, Path: target, Err: err}
		}
		return nil, retryAfter, err
	}
	return result.([]byte), 0, nil
}

// resolve turns a relative path or an absolute nextLink into a full URL on
// this client's host. Absolute links keep only path+query so that a feed
// handing out links with a different version prefix still routes through the
// configured base.
func (c *Client) resolve(pathOrURL string) string {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		if u, err := url.Parse(pathOrURL); err == nil {
			rel := u.RequestURI()
			if c.base.Path != "" && strings.HasPrefix(rel, c.base.Path+"/") {
				rel = strings.TrimPrefix(rel, c.base.Path)
			}
			return c.base.String() + rel
		}
	}
	if !strings.HasPrefix(pathOrURL, "/") {
		pathOrURL = "/" + pathOrURL
	}
	return c.base.String() + pathOrURL
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
