package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SpacingGate enforces a minimum interval between consecutive calls by
// remembering when the last call was let through and sleeping out any
// shortfall. Callers are admitted one at a time.
type SpacingGate struct {
	mu       sync.Mutex
	lastCall time.Time
	minDelay time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewSpacingGate creates a gate using the wall clock.
func NewSpacingGate(minDelay time.Duration) *SpacingGate {
	return &SpacingGate{
		minDelay: minDelay,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait blocks until minDelay has passed since the previous admitted call.
func (g *SpacingGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.lastCall.IsZero() {
		if since := g.now().Sub(g.lastCall); since < g.minDelay {
			if err := g.sleep(ctx, g.minDelay-since); err != nil {
				return err
			}
		}
	}
	g.lastCall = g.now()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Polite is a named token-bucket limiter used to keep scraping traffic
// within a steady request rate.
type Polite struct {
	limiter *rate.Limiter
	name    string
}

// NewPolite allows one request every interval with the given burst.
func NewPolite(name string, interval time.Duration, burst int) *Polite {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Polite{
		limiter: rate.NewLimiter(limit, burst),
		name:    name,
	}
}

// Wait blocks until the limiter admits a request or ctx ends.
func (p *Polite) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", p.name, err)
	}
	return nil
}
