package shopify

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrAlreadyMember signals that an add-member call found the product
// already in the collection. Callers treat this as success.
var ErrAlreadyMember = errors.New("product already in collection")

// PermissionError reports a non-retryable authorization failure. The
// remedy is reissuing the access token with the correct scope, so
// retrying cannot help.
type PermissionError struct {
	Op     string
	Detail string

	// ListResponse is set when a create call returned a collection
	// listing instead of the created entity, which Shopify does when
	// the token lacks write scope.
	ListResponse bool
}

func (e *PermissionError) Error() string {
	if e.ListResponse {
		return fmt.Sprintf("%s: access token lacks write permission (create returned a listing instead of the new collection): %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("%s: access token not authorized: %s", e.Op, e.Detail)
}

// RateLimitError reports an explicit 429 from the store. RetryAfter is
// zero when the response carried no Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// APIError is a non-2xx response that is neither a permission nor a
// rate-limit failure.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: shopify API returned status %d: %s", e.Op, e.Status, e.Body)
}

// Retryable reports whether err is worth another attempt: timeouts,
// rate limiting, and server-side errors qualify; permission failures
// and client errors do not.
func Retryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return false
}

// RetryAfter extracts the server-requested wait from err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
		return rateErr.RetryAfter, true
	}
	return 0, false
}
