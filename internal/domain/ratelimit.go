package domain

import "time"

// RateLimitWindow is one fixed counting bucket for a (client key, endpoint)
// pair. The window starts at the first request and is never extended; a
// request arriving after WindowStart plus the configured window length starts
// a fresh bucket. BlockedUntil is set once, when the count reaches the limit,
// and pins the end of the current window.
type RateLimitWindow struct {
	ClientKey    string
	Endpoint     string
	WindowStart  time.Time
	RequestCount int
	BlockedUntil *time.Time
}

// End returns the moment the window elapses for the given window length.
func (w *RateLimitWindow) End(window time.Duration) time.Time {
	return w.WindowStart.Add(window)
}

// Expired reports whether the window no longer counts toward the limit.
func (w *RateLimitWindow) Expired(now time.Time, window time.Duration) bool {
	return !now.Before(w.End(window))
}
