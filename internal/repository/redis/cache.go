package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

const (
	defaultCachePrefix = "sessions:cache"
	defaultCacheTTL    = 5 * time.Minute
)

// SessionSetCache is a read-through cache over the enumerated session list.
// It is invalidated on every mutation, so a hit is at worst cacheTTL stale
// and only for reads that raced a mutation on another instance.
type SessionSetCache struct {
	client *red.Client
	prefix string
	ttl    time.Duration
}

// NewSessionSetCache constructs a Redis-backed session list cache.
func NewSessionSetCache(client *red.Client, keyPrefix string, ttl time.Duration) *SessionSetCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &SessionSetCache{client: client, prefix: prefix, ttl: ttl}
}

// GetSessionSet returns the cached session list, ErrNotFound on cache miss.
func (c *SessionSetCache) GetSessionSet(ctx context.Context, userID string) ([]domain.Session, error) {
	raw, err := c.client.Get(ctx, c.key(userID)).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get cached session set: %w", err)
	}

	var sessions []domain.Session
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		return nil, fmt.Errorf("decode cached session set: %w", err)
	}
	return sessions, nil
}

// SetSessionSet stores the session list under the configured TTL.
func (c *SessionSetCache) SetSessionSet(ctx context.Context, userID string, sessions []domain.Session) error {
	raw, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("encode cached session set: %w", err)
	}

	if err := c.client.Set(ctx, c.key(userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cached session set: %w", err)
	}
	return nil
}

// InvalidateSessionSet drops the cached session list for the user.
func (c *SessionSetCache) InvalidateSessionSet(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis invalidate cached session set: %w", err)
	}
	return nil
}

func (c *SessionSetCache) key(userID string) string {
	return fmt.Sprintf("%s:%s", c.prefix, strings.TrimSpace(userID))
}

var _ port.SessionSetCache = (*SessionSetCache)(nil)
