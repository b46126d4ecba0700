package domain

import "time"

// SecureWordRecord is the live secure word for a username. Reissuing
// overwrites the prior record; consumption or expiry deletes it.
type SecureWordRecord struct {
	Username string
	Word     string // 8 uppercase hex characters
	IssuedAt time.Time
}

// ExpiredAt reports whether the record is past its validity window at
// the given instant.
func (r *SecureWordRecord) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.IssuedAt) > ttl
}

// RateLimitRecord is the per-username cooldown stamp for secure-word
// issuance. Absence means the username never requested a word.
type RateLimitRecord struct {
	Username      string
	LastRequestAt time.Time
}
