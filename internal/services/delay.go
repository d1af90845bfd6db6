package services

import (
	"context"
	"time"
)

// DelayPolicy decides how long to wait before the attempt-th operation of a
// sequence (attempt 0 is the first). Policies are swappable so tests can run
// with no delay at all.
type DelayPolicy interface {
	Delay(attempt int) time.Duration
}

// NoDelay never waits.
type NoDelay struct{}

func (NoDelay) Delay(int) time.Duration { return 0 }

// FixedDelay waits Step before every attempt after the first.
type FixedDelay struct {
	Step time.Duration
}

func (d FixedDelay) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return d.Step
}

// LinearStagger waits attempt*Step, spreading a batch out over time.
type LinearStagger struct {
	Step time.Duration
}

func (d LinearStagger) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(attempt) * d.Step
}

// waitFor sleeps for the policy's delay or until ctx ends.
func waitFor(ctx context.Context, p DelayPolicy, attempt int) error {
	if p == nil {
		return ctx.Err()
	}
	d := p.Delay(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
