package security

import (
	"context"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/core/port"
)

// Capabilities understood by the gate. Self-edit never requires one.
const (
	CapabilityEditUsers      = "edit_users"
	CapabilityManageSessions = "manage_sessions"
)

// CapabilityGate authorizes session operations from actor capabilities and
// verifies anti-forgery tokens via the nonce provider.
type CapabilityGate struct {
	nonces *NonceProvider
}

// NewCapabilityGate constructs a gate around the supplied nonce provider.
func NewCapabilityGate(nonces *NonceProvider) *CapabilityGate {
	return &CapabilityGate{nonces: nonces}
}

// CanEditUser allows self-edit unconditionally; editing another user's
// sessions requires the edit_users capability.
func (g *CapabilityGate) CanEditUser(ctx context.Context, actor domain.Actor, targetUserID string) (bool, error) {
	if actor.UserID == "" {
		return false, nil
	}
	if actor.UserID == targetUserID {
		return true, nil
	}
	return actor.HasCapability(CapabilityEditUsers), nil
}

// VerifyActionToken validates the request-scoped anti-forgery token.
func (g *CapabilityGate) VerifyActionToken(action, targetUserID, token string) bool {
	if g.nonces == nil {
		return false
	}
	return g.nonces.Verify(action, targetUserID, token)
}

var _ port.AuthorizationGate = (*CapabilityGate)(nil)
