package port

import (
	"context"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
)

// AuthorizationGate decides whether an actor may operate on a target user's
// sessions and validates the request-scoped anti-forgery token. Failures
// short-circuit before any store access.
type AuthorizationGate interface {
	CanEditUser(ctx context.Context, actor domain.Actor, targetUserID string) (bool, error)
	VerifyActionToken(action, targetUserID, token string) bool
}

// UserDirectory answers whether a target user exists at all.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}
