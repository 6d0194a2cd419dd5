package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

const defaultSessionSetPrefix = "sessions:set"

// maxCASRetries bounds optimistic retry loops when another writer touches
// the same user's session set between WATCH and EXEC.
const maxCASRetries = 5

// SessionStore implements port.SessionStore on a Redis hash per user. The
// hash field is the verifier, the value a JSON session record. Mutations run
// under WATCH so concurrent writers for the same user retry instead of
// clobbering each other.
type SessionStore struct {
	client *red.Client
	prefix string
}

// NewSessionStore constructs a Redis-backed session store.
func NewSessionStore(client *red.Client, keyPrefix string) *SessionStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultSessionSetPrefix
	}
	return &SessionStore{client: client, prefix: prefix}
}

type sessionRecord struct {
	Expiration int64  `json:"expiration"`
	Started    *int64 `json:"started,omitempty"`
	IPAddress  string `json:"ip,omitempty"`
	UserAgent  string `json:"ua,omitempty"`
}

// GetAll returns every session with a known expiration, ordered by
// expiration then verifier. Unknown users yield an empty slice.
func (s *SessionStore) GetAll(ctx context.Context, userID string) ([]domain.Session, error) {
	values, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get session set: %w", err)
	}

	sessions := make([]domain.Session, 0, len(values))
	for verifier, raw := range values {
		session, err := decodeSession(verifier, raw)
		if err != nil {
			return nil, err
		}
		if !session.HasExpiration() {
			continue
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Expiration.Equal(sessions[j].Expiration) {
			return sessions[i].Verifier < sessions[j].Verifier
		}
		return sessions[i].Expiration.Before(sessions[j].Expiration)
	})

	return sessions, nil
}

// Get fetches a single session by verifier.
func (s *SessionStore) Get(ctx context.Context, userID, verifier string) (*domain.Session, error) {
	raw, err := s.client.HGet(ctx, s.key(userID), verifier).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	session, err := decodeSession(verifier, raw)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Put inserts or replaces the session stored under the verifier.
func (s *SessionStore) Put(ctx context.Context, userID string, session domain.Session) error {
	raw, err := encodeSession(session)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.key(userID), session.Verifier, raw).Err(); err != nil {
		return fmt.Errorf("redis put session: %w", err)
	}
	return nil
}

// Remove deletes the session under the verifier. Absent verifiers are a no-op.
func (s *SessionStore) Remove(ctx context.Context, userID, verifier string) error {
	if err := s.client.HDel(ctx, s.key(userID), verifier).Err(); err != nil {
		return fmt.Errorf("redis remove session: %w", err)
	}
	return nil
}

// RemoveAllExcept keeps only the session under keepVerifier. When that
// verifier is absent the whole set is destroyed. The hash is rewritten
// under WATCH so a login racing the purge cannot resurrect stale entries.
func (s *SessionStore) RemoveAllExcept(ctx context.Context, userID, keepVerifier string) error {
	key := s.key(userID)

	transaction := func(tx *red.Tx) error {
		kept, err := tx.HGet(ctx, key, keepVerifier).Result()
		missing := errors.Is(err, red.Nil)
		if err != nil && !missing {
			return fmt.Errorf("redis get kept session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe red.Pipeliner) error {
			pipe.Del(ctx, key)
			if !missing {
				pipe.HSet(ctx, key, keepVerifier, kept)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		err := s.client.Watch(ctx, transaction, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, red.TxFailedErr) {
			continue
		}
		return fmt.Errorf("redis remove sessions except: %w", err)
	}

	return fmt.Errorf("redis remove sessions except: %w", red.TxFailedErr)
}

// RemoveAll drops the user's session hash outright.
func (s *SessionStore) RemoveAll(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis remove session set: %w", err)
	}
	return nil
}

func (s *SessionStore) key(userID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, strings.TrimSpace(userID))
}

func decodeSession(verifier, raw string) (domain.Session, error) {
	var record sessionRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return domain.Session{}, fmt.Errorf("decode session record: %w", err)
	}

	session := domain.Session{
		Verifier:  verifier,
		IPAddress: record.IPAddress,
		UserAgent: record.UserAgent,
	}
	if record.Expiration > 0 {
		session.Expiration = time.Unix(record.Expiration, 0).UTC()
	}
	if record.Started != nil {
		started := time.Unix(*record.Started, 0).UTC()
		session.Started = &started
	}
	return session, nil
}

func encodeSession(session domain.Session) (string, error) {
	record := sessionRecord{
		IPAddress: session.IPAddress,
		UserAgent: session.UserAgent,
	}
	if session.HasExpiration() {
		record.Expiration = session.Expiration.Unix()
	}
	if session.Started != nil {
		started := session.Started.Unix()
		record.Started = &started
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode session record: %w", err)
	}
	return string(raw), nil
}

var _ port.SessionStore = (*SessionStore)(nil)
