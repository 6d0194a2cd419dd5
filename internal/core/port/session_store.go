package port

import (
	"context"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
)

// SessionStore owns the durable verifier-to-session mapping for each user.
// Every mutation is a full read-modify-write of the user's session set; the
// backing persistence must serialize writes per user (row lock, CAS, or
// mutex). Session counts per user stay small, so whole-set rewrites are fine.
type SessionStore interface {
	// GetAll returns every stored session for the user, dropping entries
	// without a usable expiration. Unknown users yield an empty slice.
	GetAll(ctx context.Context, userID string) ([]domain.Session, error)
	// Get performs a point lookup, returning repository.ErrNotFound when
	// the verifier is absent.
	Get(ctx context.Context, userID, verifier string) (*domain.Session, error)
	// Put inserts or overwrites the session keyed by its verifier.
	Put(ctx context.Context, userID string, session domain.Session) error
	// Remove deletes one entry. Absent verifiers are a no-op, not an error.
	Remove(ctx context.Context, userID, verifier string) error
	// RemoveAllExcept replaces the set with at most the kept entry. When the
	// kept verifier no longer exists the result is an empty set: everything
	// is destroyed. Callers rely on that fallback.
	RemoveAllExcept(ctx context.Context, userID, verifierToKeep string) error
	// RemoveAll empties the set and deletes the persisted record outright so
	// no empty structure is left behind.
	RemoveAll(ctx context.Context, userID string) error
}
