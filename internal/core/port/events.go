package port

import (
	"context"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
)

// EventPublisher emits session lifecycle events for downstream consumers.
type EventPublisher interface {
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
	PublishSessionsPurged(ctx context.Context, event domain.SessionsPurgedEvent) error
}
