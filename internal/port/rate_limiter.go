package port

import "context"

type RateLimiter interface {
	// Allow reports whether the key is within its request budget for
	// the current window.
	Allow(ctx context.Context, key string) (bool, error)
}

type Deduplicator interface {
	// FirstSeen marks the key and reports whether this is its first
	// occurrence within the retention window.
	FirstSeen(ctx context.Context, key string) (bool, error)
}
