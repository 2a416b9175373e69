package ai

import (
	"errors"

	"github.com/pathwise/pathwise-backend/internal/httpx"
)

// ErrAIUnavailable means every configured provider tier failed for one call.
var ErrAIUnavailable = errors.New("ai unavailable: all provider tiers failed")

// ErrQuotaExceeded marks quota/rate exhaustion on a provider. Providers wrap
// their upstream 429 / RESOURCE_EXHAUSTED signals with this sentinel.
var ErrQuotaExceeded = errors.New("provider quota exceeded")

func IsQuota(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}
	var sc httpx.HTTPStatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode() == 429
	}
	return false
}
