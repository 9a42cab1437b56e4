package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for provider calls.
var (
	// ErrEmptyResult indicates the provider reported success but
	// returned no payload.
	ErrEmptyResult = errors.New("provider returned empty result")

	// ErrNoModel indicates a text generator was constructed without a
	// backing model.
	ErrNoModel = errors.New("no model configured")
)

// Category classifies how a provider error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help: rate limits,
	// timeouts, 5xx responses, temporary network failures.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help: authentication
	// failures, cancelled contexts, unknown failures.
	CategoryPermanent

	// CategoryInvalid indicates the request itself was rejected: bad
	// prompt, unsupported parameter. Retrying the same request is
	// pointless; the node's configuration has to change.
	CategoryInvalid
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// CallError is a failed provider call: either a non-2xx HTTP exchange
// or a well-formed response carrying success=false.
type CallError struct {
	Provider   string
	Op         string
	StatusCode int // zero when the HTTP exchange succeeded
	Message    string
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Provider, e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Message)
}

// Categorize determines how a provider error should be handled.
// Unknown errors categorize as permanent: failing safe means not
// hammering a provider with retries it never asked for.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var callErr *CallError
	if errors.As(err, &callErr) {
		switch callErr.StatusCode {
		case 0:
			// Application-level failure with a clean HTTP exchange.
			return CategoryPermanent
		case 429, 503, 504:
			return CategoryTransient
		case 400, 422:
			return CategoryInvalid
		case 401, 403:
			return CategoryPermanent
		default:
			if callErr.StatusCode >= 500 {
				return CategoryTransient
			}
			return CategoryPermanent
		}
	}

	if errors.Is(err, context.Canceled) {
		return CategoryPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTransient
	}

	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}
