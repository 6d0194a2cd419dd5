package port

import (
	"context"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
)

// SessionSetCache is an optional read cache over a user's session set. Any
// implementation must tolerate being invalidated on every mutating call for
// the affected user; stale reads after a mutation are not acceptable.
type SessionSetCache interface {
	GetSessionSet(ctx context.Context, userID string) ([]domain.Session, error)
	SetSessionSet(ctx context.Context, userID string, sessions []domain.Session) error
	InvalidateSessionSet(ctx context.Context, userID string) error
}
