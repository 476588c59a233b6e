package ratelimit

import (
	"fmt"
	"time"
)

// WindowID returns the fixed-window identifier for an instant: the epoch
// second floored to the window size. Every request inside the same window
// maps to the same identifier, so concurrent callers share one counter entry.
func WindowID(now time.Time, window time.Duration) int64 {
	secs := int64(window / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return now.Unix() / secs
}

// WindowKey composes the counter entry key for a base key and instant.
func WindowKey(base string, now time.Time, window time.Duration) string {
	return fmt.Sprintf("ratelimit:%s:%d", base, WindowID(now, window))
}

// UntilRollover returns the time remaining until the current fixed window
// ends. This is the Retry-After value handed to blocked callers.
func UntilRollover(now time.Time, window time.Duration) time.Duration {
	secs := int64(window / time.Second)
	if secs <= 0 {
		return 0
	}
	remaining := secs - now.Unix()%secs
	return time.Duration(remaining) * time.Second
}
