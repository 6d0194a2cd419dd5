package domain

import "time"

// Session represents one authenticated login instance for a user. The
// verifier is the hashed form of the raw session token and is the only
// identifier ever exposed to clients.
type Session struct {
	Verifier   string
	Expiration time.Time
	Started    *time.Time
	IPAddress  string
	UserAgent  string
}

// HasExpiration reports whether the session carries a usable expiration.
// Legacy records without one are dropped from enumeration entirely.
func (s Session) HasExpiration() bool {
	return !s.Expiration.IsZero()
}

// Expired reports whether the session is invalid at the supplied moment.
// A session is invalid at or after its expiration timestamp.
func (s Session) Expired(at time.Time) bool {
	return !s.Expiration.After(at)
}

// MergeMetadata folds collected request metadata into the session. Sessions
// are otherwise immutable once stored; this only runs at attachment time.
func (s *Session) MergeMetadata(meta SessionMetadata) {
	if meta.IPAddress != "" {
		s.IPAddress = meta.IPAddress
	}
	if meta.UserAgent != "" {
		s.UserAgent = meta.UserAgent
	}
	if meta.Started != nil {
		startedCopy := meta.Started.UTC()
		s.Started = &startedCopy
	}
}

// SessionMetadata is the best-effort request context collected by the
// transport layer when a session is attached. It is passed in explicitly;
// the core never reads request state itself.
type SessionMetadata struct {
	IPAddress string
	UserAgent string
	Started   *time.Time
}

// SessionSet maps verifier to session for exactly one user. Verifiers are
// unique within the set by construction.
type SessionSet map[string]Session

// Clone returns a copy safe to mutate independently.
func (set SessionSet) Clone() SessionSet {
	cloned := make(SessionSet, len(set))
	for verifier, session := range set {
		cloned[verifier] = session
	}
	return cloned
}

// Actor is the authenticated caller initiating a request.
type Actor struct {
	UserID       string
	Verifier     string
	Capabilities []string
}

// HasCapability reports whether the actor carries the named capability.
func (a Actor) HasCapability(name string) bool {
	for _, capability := range a.Capabilities {
		if capability == name {
			return true
		}
	}
	return false
}
