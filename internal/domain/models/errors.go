package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConnectivity: the liveness ping failed. Fatal.
	ErrConnectivity = errors.New("connectivity check failed")
	// ErrNoData: empty ranked list or no asset fetched. Fatal.
	ErrNoData = errors.New("no market data available")
	// ErrRateLimited: the remote service asked us to slow down.
	ErrRateLimited = errors.New("rate limited")
	// ErrFetchFailed: a remote call failed for another reason.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrCancelled: the caller cancelled the attempt between items.
	ErrCancelled = errors.New("acquisition cancelled")
	// ErrBusy: another acquisition is already in flight.
	ErrBusy = errors.New("acquisition already in progress")
	// ErrNoSnapshot: nothing has been acquired successfully yet.
	ErrNoSnapshot = errors.New("no snapshot available yet")
)

// RateLimitError carries the cool-down recommended by the remote service.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter)
}

// Is makes errors.Is(err, ErrRateLimited) hold.
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

func (e *RateLimitError) Unwrap() error { return e.Err }

// UserMessage turns a fatal acquisition error into the single message shown
// to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	const fallback = "Try demo mode to explore the analysis offline."
	switch {
	case errors.Is(err, ErrBusy):
		return "An acquisition is already running. Wait for it to finish."
	case errors.Is(err, ErrRateLimited):
		return "API rate limit exceeded. Wait 1-2 minutes before trying again. " + fallback
	case errors.Is(err, ErrConnectivity):
		return "Market API is unreachable: " + err.Error() + ". " + fallback
	case errors.Is(err, ErrNoData):
		return "No market data could be fetched. " + fallback
	case errors.Is(err, ErrCancelled):
		return "Acquisition was cancelled."
	default:
		return "Failed to fetch data: " + err.Error() + ". " + fallback
	}
}
