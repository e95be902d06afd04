package port

import (
	"context"
	"time"
)

// RateLimitResult reports the state of a sliding window after an attempt.
type RateLimitResult struct {
	Allowed bool
	// Count is the number of attempts inside the window, including this one when allowed.
	Count     int
	Oldest    time.Time
	HasOldest bool
}

// RateLimitStore enforces sliding-window limits. Attempt must prune, count and
// record as one atomic step per identifier.
type RateLimitStore interface {
	Attempt(ctx context.Context, identifier string, limit int, window time.Duration, at time.Time) (RateLimitResult, error)
}
