package cache

import (
	"time"
)

// DefaultTTL is how long a cached response is considered fresh.
const DefaultTTL = 5 * time.Minute

// Entry is a cached API response.
type Entry struct {
	// Payload is the raw response body.
	Payload []byte `json:"payload"`

	// FetchedAt is when the payload was received from the API.
	FetchedAt time.Time `json:"fetched_at"`
}

// Age returns how old the entry is at now.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// IsFresh reports whether the entry is younger than ttl at now.
// A nil entry is never fresh.
func (e *Entry) IsFresh(now time.Time, ttl time.Duration) bool {
	if e == nil {
		return false
	}
	return e.Age(now) < ttl
}
