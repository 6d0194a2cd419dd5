package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

// SessionStore keeps session sets in process memory. It backs tests and
// single-node development; a mutex gives the per-user write serialization
// the store contract requires.
type SessionStore struct {
	mu    sync.Mutex
	users map[string]domain.SessionSet
}

// NewSessionStore constructs an empty in-memory store.
func NewSessionStore() *SessionStore {
	return &SessionStore{users: make(map[string]domain.SessionSet)}
}

// GetAll returns the user's sessions ordered by expiration, dropping entries
// without a usable expiration.
func (s *SessionStore) GetAll(ctx context.Context, userID string) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.users[userID]
	if !ok {
		return []domain.Session{}, nil
	}

	sessions := make([]domain.Session, 0, len(set))
	for _, session := range set {
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

// Get performs a point lookup by verifier.
func (s *SessionStore) Get(ctx context.Context, userID, verifier string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	session, ok := set[verifier]
	if !ok {
		return nil, repository.ErrNotFound
	}

	sessionCopy := session
	return &sessionCopy, nil
}

// Put inserts or overwrites the session keyed by its verifier.
func (s *SessionStore) Put(ctx context.Context, userID string, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.users[userID]
	if !ok {
		set = make(domain.SessionSet)
		s.users[userID] = set
	}
	set[session.Verifier] = session

	return nil
}

// Remove deletes one entry; absent verifiers are a no-op.
func (s *SessionStore) Remove(ctx context.Context, userID, verifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.users[userID]
	if !ok {
		return nil
	}

	delete(set, verifier)
	if len(set) == 0 {
		delete(s.users, userID)
	}

	return nil
}

// RemoveAllExcept replaces the set with at most the kept entry. A missing
// keep verifier empties the set entirely.
func (s *SessionStore) RemoveAllExcept(ctx context.Context, userID, verifierToKeep string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.users[userID]
	if !ok {
		return nil
	}

	kept, exists := set[verifierToKeep]
	if !exists {
		delete(s.users, userID)
		return nil
	}

	s.users[userID] = domain.SessionSet{verifierToKeep: kept}
	return nil
}

// RemoveAll deletes the user's record outright.
func (s *SessionStore) RemoveAll(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, userID)
	return nil
}

var _ port.SessionStore = (*SessionStore)(nil)
