package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

var (
	// ErrNoUserID indicates the target user identifier was missing.
	ErrNoUserID = errors.New("target user id is required")
	// ErrInvalidUser indicates the target user does not exist.
	ErrInvalidUser = errors.New("target user does not exist")
	// ErrNotAllowed indicates the actor lacks edit capability over the target.
	ErrNotAllowed = errors.New("actor may not manage sessions for this user")
	// ErrInvalidNonce indicates the anti-forgery token failed verification.
	ErrInvalidNonce = errors.New("invalid or expired action token")
	// ErrNoVerifier indicates the session verifier was missing from the request.
	ErrNoVerifier = errors.New("session verifier is required")
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStorageUnavailable indicates the session store could not complete the call.
	ErrStorageUnavailable = errors.New("session storage unavailable")
)

// Action names used to scope anti-forgery tokens.
const (
	ActionDestroySession  = "destroy_session"
	ActionDestroySessions = "destroy_sessions"
)

// SessionList partitions a user's sessions around the actor's own login.
// Current is nil when the actor is viewing another user's profile.
type SessionList struct {
	Current *domain.Session
	Others  []domain.Session
}

// SessionService orchestrates authorization-checked listing and revocation
// over a SessionStore. It is the only component reachable from transport.
type SessionService struct {
	store  port.SessionStore
	gate   port.AuthorizationGate
	users  port.UserDirectory
	events port.EventPublisher
	cache  port.SessionSetCache
	logger *zap.Logger
	now    func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(store port.SessionStore, gate port.AuthorizationGate, users port.UserDirectory, events port.EventPublisher, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &SessionService{
		store:  store,
		gate:   gate,
		users:  users,
		events: events,
		logger: logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) *SessionService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithSessionSetCache injects a read cache. The service invalidates it on
// every mutating call for the affected user.
func (s *SessionService) WithSessionSetCache(cache port.SessionSetCache) *SessionService {
	s.cache = cache
	return s
}

// ListSessions returns the target user's live sessions partitioned into the
// actor's current session and everything else. When the actor is not the
// target there is no current session; every entry lands in Others.
func (s *SessionService) ListSessions(ctx context.Context, actor domain.Actor, targetUserID string) (*SessionList, error) {
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return nil, ErrNoUserID
	}

	if err := s.authorize(ctx, actor, targetUserID); err != nil {
		return nil, err
	}

	sessions, err := s.loadSessions(ctx, targetUserID)
	if err != nil {
		return nil, err
	}

	list := &SessionList{Others: make([]domain.Session, 0, len(sessions))}
	for _, session := range sessions {
		if actor.UserID == targetUserID && actor.Verifier != "" && session.Verifier == actor.Verifier {
			sessionCopy := session
			list.Current = &sessionCopy
			continue
		}
		list.Others = append(list.Others, session)
	}

	return list, nil
}

// DestroySingle revokes exactly one session. An absent verifier is an error,
// never a silent success.
func (s *SessionService) DestroySingle(ctx context.Context, actor domain.Actor, targetUserID, verifier, nonce string) error {
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return ErrNoUserID
	}
	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return ErrNoVerifier
	}
	if !s.gate.VerifyActionToken(ActionDestroySession, targetUserID, nonce) {
		return ErrInvalidNonce
	}
	if err := s.authorize(ctx, actor, targetUserID); err != nil {
		return err
	}

	session, err := s.store.Get(ctx, targetUserID, verifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if err := s.store.Remove(ctx, targetUserID, verifier); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.invalidateCache(ctx, targetUserID)
	s.publishRevoked(ctx, actor, targetUserID, *session)

	s.logger.Info("session revoked",
		zap.String("user_id", targetUserID),
		zap.String("revoked_by", actor.UserID),
	)

	return nil
}

// DestroyOthers revokes every session for the target user except the one
// identified by verifierToKeep. When verifierToKeep is empty all sessions are
// destroyed. When it is supplied but no longer present, all sessions are
// destroyed as well; that fallback is contract, not an error. Returns the
// number of sessions destroyed.
func (s *SessionService) DestroyOthers(ctx context.Context, actor domain.Actor, targetUserID, verifierToKeep, nonce string) (int, error) {
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return 0, ErrNoUserID
	}
	if !s.gate.VerifyActionToken(ActionDestroySessions, targetUserID, nonce) {
		return 0, ErrInvalidNonce
	}
	if err := s.authorize(ctx, actor, targetUserID); err != nil {
		return 0, err
	}

	before, err := s.store.GetAll(ctx, targetUserID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	verifierToKeep = strings.TrimSpace(verifierToKeep)
	if verifierToKeep == "" {
		err = s.store.RemoveAll(ctx, targetUserID)
	} else {
		err = s.store.RemoveAllExcept(ctx, targetUserID, verifierToKeep)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	after, err := s.store.GetAll(ctx, targetUserID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	destroyed := len(before) - len(after)
	if destroyed < 0 {
		destroyed = 0
	}

	s.invalidateCache(ctx, targetUserID)
	s.publishPurged(ctx, actor, targetUserID, verifierToKeep, len(after), destroyed)

	s.logger.Info("sessions purged",
		zap.String("user_id", targetUserID),
		zap.String("purged_by", actor.UserID),
		zap.Int("destroyed", destroyed),
		zap.Int("remaining", len(after)),
	)

	return destroyed, nil
}

// AttachSession records a freshly authenticated login. The transport layer
// collects the metadata; the raw token never reaches this method, only its
// verifier.
func (s *SessionService) AttachSession(ctx context.Context, userID, verifier string, expiration time.Time, meta domain.SessionMetadata) (*domain.Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrNoUserID
	}
	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return nil, ErrNoVerifier
	}
	if expiration.IsZero() {
		return nil, fmt.Errorf("session expiration is required")
	}

	session := domain.Session{
		Verifier:   verifier,
		Expiration: expiration.UTC(),
	}
	if meta.Started == nil {
		started := s.now()
		meta.Started = &started
	}
	session.MergeMetadata(meta)

	if err := s.store.Put(ctx, userID, session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.invalidateCache(ctx, userID)

	return &session, nil
}

func (s *SessionService) authorize(ctx context.Context, actor domain.Actor, targetUserID string) error {
	if strings.TrimSpace(actor.UserID) == "" {
		return ErrNotAllowed
	}

	exists, err := s.users.Exists(ctx, targetUserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !exists {
		return ErrInvalidUser
	}

	allowed, err := s.gate.CanEditUser(ctx, actor, targetUserID)
	if err != nil {
		return fmt.Errorf("authorize actor: %w", err)
	}
	if !allowed {
		return ErrNotAllowed
	}

	return nil
}

// loadSessions reads the user's session set, read-through the cache when one
// is configured, and filters out entries that have already expired. Stores
// never expire eagerly; enumeration is where expiry takes effect.
func (s *SessionService) loadSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetSessionSet(ctx, userID); err == nil {
			return s.filterLive(cached), nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("session cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	sessions, err := s.store.GetAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if s.cache != nil {
		if err := s.cache.SetSessionSet(ctx, userID, sessions); err != nil {
			s.logger.Warn("session cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return s.filterLive(sessions), nil
}

func (s *SessionService) filterLive(sessions []domain.Session) []domain.Session {
	now := s.now()
	live := make([]domain.Session, 0, len(sessions))
	for _, session := range sessions {
		if !session.HasExpiration() || session.Expired(now) {
			continue
		}
		live = append(live, session)
	}
	return live
}

func (s *SessionService) invalidateCache(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSessionSet(ctx, userID); err != nil {
		s.logger.Warn("session cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *SessionService) publishRevoked(ctx context.Context, actor domain.Actor, targetUserID string, session domain.Session) {
	if s.events == nil {
		return
	}
	event := domain.SessionRevokedEvent{
		EventID:   uuid.NewString(),
		UserID:    targetUserID,
		Verifier:  session.Verifier,
		RevokedBy: actor.UserID,
		RevokedAt: s.now(),
		IPAddress: session.IPAddress,
		UserAgent: session.UserAgent,
	}
	if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
		s.logger.Warn("publish session revoked failed", zap.String("user_id", targetUserID), zap.Error(err))
	}
}

func (s *SessionService) publishPurged(ctx context.Context, actor domain.Actor, targetUserID, verifierToKeep string, remaining, destroyed int) {
	if s.events == nil {
		return
	}
	event := domain.SessionsPurgedEvent{
		EventID:   uuid.NewString(),
		UserID:    targetUserID,
		Destroyed: destroyed,
		PurgedBy:  actor.UserID,
		PurgedAt:  s.now(),
	}
	if verifierToKeep != "" && remaining > 0 {
		kept := verifierToKeep
		event.KeptVerifier = &kept
	}
	if err := s.events.PublishSessionsPurged(ctx, event); err != nil {
		s.logger.Warn("publish sessions purged failed", zap.String("user_id", targetUserID), zap.Error(err))
	}
}
