// Package ratelimit paces outbound provider traffic: a fixed-window request
// budget per provider key, a FIFO queue with a post-call delay, a minimum
// spacing gate and a token-bucket politeness limiter.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// blocked is the count stored for a key forced into backoff by SetRateLimited.
const blocked = math.MaxInt

// Result is the outcome of a CheckLimit call.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window request counter keyed by provider.
// A window opens on the first request after the previous one expired.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewLimiter creates an empty limiter using the wall clock.
func NewLimiter() *Limiter {
	return NewLimiterWithClock(time.Now)
}

// NewLimiterWithClock creates an empty limiter reading time from now.
func NewLimiterWithClock(now func() time.Time) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		now:     now,
	}
}

// CheckLimit counts one request against key and reports whether it may proceed.
// Once maxRequests have been counted in the current window every call is
// rejected until ResetAt.
func (l *Limiter) CheckLimit(key string, maxRequests int, windowSize time.Duration) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(windowSize)}
		l.windows[key] = w
	}

	if w.count >= maxRequests {
		return Result{Allowed: false, Remaining: 0, ResetAt: w.resetAt}
	}

	w.count++
	return Result{Allowed: true, Remaining: maxRequests - w.count, ResetAt: w.resetAt}
}

// SetRateLimited blocks every request for key until resetAt.
func (l *Limiter) SetRateLimited(key string, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.windows[key] = &window{count: blocked, resetAt: resetAt}
}

// IsBlocked reports whether key is currently forced into backoff.
func (l *Limiter) IsBlocked(key string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !l.now().Before(w.resetAt) || w.count != blocked {
		return false, time.Time{}
	}
	return true, w.resetAt
}

// WindowState describes one live window for status reporting.
type WindowState struct {
	Used    int       `json:"used"`
	Blocked bool      `json:"blocked"`
	ResetAt time.Time `json:"reset_at"`
}

// Snapshot returns the state of every window that has not expired.
func (l *Limiter) Snapshot() map[string]WindowState {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	out := make(map[string]WindowState, len(l.windows))
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			continue
		}
		if w.count == blocked {
			out[key] = WindowState{Blocked: true, ResetAt: w.resetAt}
			continue
		}
		out[key] = WindowState{Used: w.count, ResetAt: w.resetAt}
	}
	return out
}

// ParseRetryAfter reads a Retry-After header value, either delta-seconds or
// an HTTP date. It falls back to now+fallback when the value is missing or
// unparseable.
func ParseRetryAfter(value string, now time.Time, fallback time.Duration) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return now.Add(fallback)
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			secs = 0
		}
		return now.Add(time.Duration(secs) * time.Second)
	}
	if t, err := http.ParseTime(value); err == nil {
		if t.Before(now) {
			return now
		}
		return t
	}
	return now.Add(fallback)
}
