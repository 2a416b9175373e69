// Package httpx classifies upstream HTTP failures. The generation pipeline
// never retries in place, but the classification still matters: it decides
// whether a provider failure is quota or transport, and whether an adapter
// outage is transient.
package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// HTTPStatusCoder is implemented by upstream error types that carry the
// response status, so callers classify without matching error strings.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// IsRetryableStatus reports whether the status signals a transient upstream
// condition (timeout, throttling, 5xx) rather than a permanent rejection.
func IsRetryableStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// IsRetryableError reports whether err looks transient: a context timeout,
// a network-level failure, or a retryable upstream status.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableStatus(sc.HTTPStatusCode())
	}
	return false
}
