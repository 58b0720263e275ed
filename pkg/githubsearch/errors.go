package githubsearch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FetchError wraps an upstream search failure so callers can
// distinguish timeout-like causes from everything else. Fetch errors
// are never retried beyond the client's own bounded retries and are
// never cached.
type FetchError struct {
	Cause   error
	Timeout bool
}

func (e *FetchError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("upstream fetch timed out: %v", e.Cause)
	}
	return fmt.Sprintf("upstream fetch failed: %v", e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// NewFetchError classifies cause and wraps it.
func NewFetchError(cause error) *FetchError {
	return &FetchError{Cause: cause, Timeout: isTimeout(cause)}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsFetchError reports whether err is (or wraps) a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsTimeout reports whether err is a timeout-like fetch failure, so
// the caller can suggest raising the fetch timeout budget.
func IsTimeout(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Timeout
}
