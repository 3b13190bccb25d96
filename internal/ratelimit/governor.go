// SPDX-License-Identifier: MIT
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/openestate/resosync/internal/metrics"
)

const (
	// Bounds for the live-tuned media interval; operator input outside this
	// range is clamped, never rejected.
	MinTunableInterval = 500 * time.Millisecond
	MaxTunableInterval = 5 * time.Second
)

// Governor paces outbound requests against one upstream budget. Two
// instances exist at runtime: one for metadata API calls, one for media CDN
// fetches. Wait blocks until both the minimum inter-request interval and the
// rolling hourly cap allow another request.
type Governor struct {
	name string

	mu          sync.Mutex
	minInterval time.Duration
	hourlyCap   int
	last        time.Time
	windowStart time.Time
	count       int

	now func() time.Time
}

// Stats is a point-in-time snapshot for observability.
type Stats struct {
	Count         int
	WindowElapsed time.Duration
	LastRequest   time.Time
}

func NewGovernor(name string, minInterval time.Duration, hourlyCap int) *Governor {
	return &Governor{
		name:        name,
		minInterval: minInterval,
		hourlyCap:   hourlyCap,
		now:         time.Now,
	}
}

// Wait blocks until the caller may issue its request, or until ctx is done.
// The pacing wait is computed against the time of the previous request, so a
// naturally slow caller pays nothing.
func (g *Governor) Wait(ctx context.Context) error {
	start := g.now()
	defer func() {
		metrics.ObserveGovernorWait(g.name, g.now().Sub(start).Seconds())
	}()

	for {
		g.mu.Lock()
		now := g.now()

		if g.windowStart.IsZero() || now.Sub(g.windowStart) >= time.Hour {
			g.windowStart = now
			g.count = 0
		}

		var wait time.Duration
		switch {
		case g.hourlyCap > 0 && g.count >= g.hourlyCap:
			// Cap reached: cool off until one hour from window start.
			wait = g.windowStart.Add(time.Hour).Sub(now)
		case g.minInterval > 0 && now.Sub(g.last) < g.minInterval:
			wait = g.minInterval - now.Sub(g.last)
		default:
			g.last = now
			g.count++
			g.mu.Unlock()
			return nil
		}
		g.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// SetMinInterval retunes the pacing interval at runtime, clamped to the safe
// range. Used by the media governor's settings refresher.
func (g *Governor) SetMinInterval(d time.Duration) {
	if d < MinTunableInterval {
		d = MinTunableInterval
	}
	if d > MaxTunableInterval {
		d = MaxTunableInterval
	}
	g.mu.Lock()
	g.minInterval = d
	g.mu.Unlock()
}

// MinInterval returns the current pacing interval.
func (g *Governor) MinInterval() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.minInterval
}

// Snapshot reports the governor's current window state.
func (g *Governor) Snapshot() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	var elapsed time.Duration
	if !g.windowStart.IsZero() {
		elapsed = g.now().Sub(g.windowStart)
	}
	return Stats{Count: g.count, WindowElapsed: elapsed, LastRequest: g.last}
}
