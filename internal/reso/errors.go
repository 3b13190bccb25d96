// SPDX-License-Identifier: MIT
package reso

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound    = errors.New("reso: resource not found")
	ErrForbidden   = errors.New("reso: access forbidden")
	ErrRateLimited = errors.New("reso: rate limited after retries")
	ErrUpstream    = errors.New("reso: upstream internal error (5xx)")
	ErrUnavailable = errors.New("reso: host unreachable or transport failure")
	ErrBadResponse = errors.New("reso: invalid response format or malformed data")
)

// APIError wraps a sentinel with request context.
type APIError struct {
	Sentinel error
	Path     string
	Status   int
	Body     string
	Err      error // nested lower-level error (e.g. net.Error)
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("reso: %s: %v", e.Path, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Sentinel
}
