package pagecache

import "time"

// Entry is one cached page.
type Entry struct {
	// Data is the JSON encoded primary.Response.
	Data []byte `json:"data"`

	// HasTotal records whether the response carried a total count.
	HasTotal bool `json:"has_total"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the page was stored.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
