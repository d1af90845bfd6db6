package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound means the provider has no record for the card identity.
	ErrNotFound = errors.New("not found")

	// ErrNotConfigured means the provider's credential is missing.
	ErrNotConfigured = errors.New("provider not configured")
)

// RateLimitError means a provider throttled us, or our own budget for it is
// spent, until RetryAt.
type RateLimitError struct {
	Provider string
	RetryAt  time.Time
	Local    bool
}

func (e *RateLimitError) Error() string {
	if e.Local {
		return fmt.Sprintf("%s request budget exhausted until %s", e.Provider, e.RetryAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("%s rate limited until %s", e.Provider, e.RetryAt.Format(time.RFC3339))
}

// IsRateLimited reports whether err is or wraps a *RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// failureNote turns an adapter error into the note carried by an N/A record.
func failureNote(provider string, err error) string {
	var rl *RateLimitError
	switch {
	case errors.As(err, &rl):
		return fmt.Sprintf("%s is rate limited, retry after %s", provider, rl.RetryAt.Format(time.Kitchen))
	case errors.Is(err, ErrNotConfigured):
		return fmt.Sprintf("%s is not configured", provider)
	case errors.Is(err, ErrNotFound):
		return fmt.Sprintf("%s has no matching card", provider)
	default:
		return fmt.Sprintf("%s request failed", provider)
	}
}
