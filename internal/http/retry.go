package http

import (
	"math/rand"
	nethttp "net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// CalculateBackoff returns exponential backoff duration with full jitter.
//
// Formula: random(0, min(maxDelay, initialDelay * 2^attempt))
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || initialDelay <= 0 {
		return 0
	}

	base := maxDelay
	if attempt < 30 {
		if d := time.Duration(1<<uint(attempt)) * initialDelay; d > 0 && d < maxDelay {
			base = d
		}
	}

	return time.Duration(rand.Int63n(int64(base)))
}

// JitterBackoff is a retryablehttp.Backoff. A Retry-After header on 429 and
// 503 responses wins; otherwise it falls back to CalculateBackoff.
func JitterBackoff(min, max time.Duration, attemptNum int, resp *nethttp.Response) time.Duration {
	if resp != nil && (resp.StatusCode == nethttp.StatusTooManyRequests || resp.StatusCode == nethttp.StatusServiceUnavailable) {
		if resp.Header.Get("Retry-After") != "" {
			return retryablehttp.DefaultBackoff(min, max, attemptNum, resp)
		}
	}
	return CalculateBackoff(attemptNum+1, min, max)
}

var _ retryablehttp.Backoff = JitterBackoff
