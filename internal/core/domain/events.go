package domain

import "time"

// SessionRevokedEvent captures a single session being destroyed.
type SessionRevokedEvent struct {
	EventID   string
	UserID    string
	Verifier  string
	RevokedBy string
	RevokedAt time.Time
	IPAddress string
	UserAgent string
	Metadata  map[string]any
}

// SessionsPurgedEvent captures a bulk revocation for one user. KeptVerifier
// is nil when every session was destroyed.
type SessionsPurgedEvent struct {
	EventID      string
	UserID       string
	KeptVerifier *string
	Destroyed    int
	PurgedBy     string
	PurgedAt     time.Time
	Metadata     map[string]any
}
