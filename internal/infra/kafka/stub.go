package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/infra/logger"
)

// StubPublisher logs events instead of producing them. Used when no Kafka
// brokers are configured, typically in development and tests.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a logging-only event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	p.logger.Info("stub publisher: session revoked",
		zap.String("user_id", event.UserID),
		zap.String("verifier", logger.MaskVerifier(event.Verifier)),
		zap.String("revoked_by", event.RevokedBy),
	)
	return nil
}

func (p *StubPublisher) PublishSessionsPurged(ctx context.Context, event domain.SessionsPurgedEvent) error {
	p.logger.Info("stub publisher: sessions purged",
		zap.String("user_id", event.UserID),
		zap.Int("destroyed", event.Destroyed),
		zap.String("purged_by", event.PurgedBy),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
