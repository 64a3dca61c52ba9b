package rate

import "errors"

var (
	// ErrRateLimited reports that the attempt budget for the window is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable reports that the counter backend cannot be reached.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
