package http

import (
	nethttp "net/http"
	"testing"
	"time"
)

func TestCalculateBackoff_Bounds(t *testing.T) {
	initial := 10 * time.Millisecond
	max := 100 * time.Millisecond

	if got := CalculateBackoff(0, initial, max); got != 0 {
		t.Errorf("CalculateBackoff(0) = %v, want 0", got)
	}

	for attempt := 1; attempt <= 40; attempt++ {
		got := CalculateBackoff(attempt, initial, max)
		if got < 0 || got >= max {
			t.Errorf("CalculateBackoff(%d) = %v, want in [0, %v)", attempt, got, max)
		}
	}
}

func TestJitterBackoff_RetryAfter(t *testing.T) {
	resp := &nethttp.Response{
		StatusCode: nethttp.StatusTooManyRequests,
		Header:     nethttp.Header{"Retry-After": []string{"2"}},
	}

	got := JitterBackoff(10*time.Millisecond, time.Minute, 0, resp)
	if got != 2*time.Second {
		t.Errorf("JitterBackoff() = %v, want 2s from Retry-After", got)
	}
}

func TestJitterBackoff_NoResponse(t *testing.T) {
	max := 50 * time.Millisecond
	got := JitterBackoff(5*time.Millisecond, max, 3, nil)
	if got < 0 || got >= max {
		t.Errorf("JitterBackoff() = %v, want in [0, %v)", got, max)
	}
}
