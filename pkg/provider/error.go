package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// QueryError wraps provider call failures with status metadata.
type QueryError struct {
	Provider  string
	Status    int
	Temporary bool
	Err       error
}

func (e *QueryError) Error() string {
	if e == nil {
		return "provider query error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: query error (status=%d)", e.Provider, e.Status)
}

func (e *QueryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether an error is safe to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var queryErr *QueryError
	if errors.As(err, &queryErr) {
		if queryErr.Temporary {
			return true
		}
		if queryErr.Status == 429 || (queryErr.Status >= 500 && queryErr.Status <= 599) {
			return true
		}
	}
	return false
}
