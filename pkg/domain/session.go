package domain

import "time"

// Session binds a live access code to one stored file.
type Session struct {
	// Access code, unique among live sessions only
	Code int `json:"code"`

	// Storage key of the backing file, derived server-side
	StorageKey string `json:"-"`

	// Sanitized client filename, used to name the download
	OriginalName string `json:"filename"`

	// Stored size in bytes
	Size int64 `json:"size"`

	// Registration time, used for TTL accounting
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the session is older than ttl at now.
func (s Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}
