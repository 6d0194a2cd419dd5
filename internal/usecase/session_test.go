package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/repository"
	"github.com/arklim/social-platform-sessions/internal/repository/memory"
)

type fakeGate struct {
	editAllowed bool
	nonceValid  bool

	verifyCalls []struct {
		action string
		target string
	}
}

func (f *fakeGate) CanEditUser(ctx context.Context, actor domain.Actor, targetUserID string) (bool, error) {
	if f.editAllowed {
		return true, nil
	}
	return actor.UserID == targetUserID, nil
}

func (f *fakeGate) VerifyActionToken(action, targetUserID, token string) bool {
	f.verifyCalls = append(f.verifyCalls, struct {
		action string
		target string
	}{action: action, target: targetUserID})
	return f.nonceValid
}

type fakeUserDirectory struct {
	known map[string]bool
	err   error
}

func (f *fakeUserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.known[userID], nil
}

type fakePublisher struct {
	revoked []domain.SessionRevokedEvent
	purged  []domain.SessionsPurgedEvent
	fail    error
}

func (f *fakePublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.revoked = append(f.revoked, event)
	return nil
}

func (f *fakePublisher) PublishSessionsPurged(ctx context.Context, event domain.SessionsPurgedEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.purged = append(f.purged, event)
	return nil
}

type fakeCache struct {
	sets        map[string][]domain.Session
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{sets: make(map[string][]domain.Session)}
}

func (f *fakeCache) GetSessionSet(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, ok := f.sets[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return sessions, nil
}

func (f *fakeCache) SetSessionSet(ctx context.Context, userID string, sessions []domain.Session) error {
	f.sets[userID] = sessions
	return nil
}

func (f *fakeCache) InvalidateSessionSet(ctx context.Context, userID string) error {
	delete(f.sets, userID)
	f.invalidated = append(f.invalidated, userID)
	return nil
}

var testBase = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func seedStore(t *testing.T, store *memory.SessionStore, userID string, verifiers ...string) {
	t.Helper()
	for _, verifier := range verifiers {
		err := store.Put(context.Background(), userID, domain.Session{
			Verifier:   verifier,
			Expiration: testBase.Add(24 * time.Hour),
			IPAddress:  "203.0.113.7",
			UserAgent:  "Mozilla/5.0",
		})
		if err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
}

func newTestService(store *memory.SessionStore, gate *fakeGate, users *fakeUserDirectory, events *fakePublisher) *SessionService {
	if events == nil {
		events = &fakePublisher{}
	}
	return NewSessionService(store, gate, users, events, nil).
		WithClock(func() time.Time { return testBase })
}

func TestSessionService_ListSessionsPartitionsCurrent(t *testing.T) {
	store := memory.NewSessionStore()
	seedStore(t, store, "user-1", "verifier-a", "verifier-b", "verifier-c")

	gate := &fakeGate{nonceValid: true}
	users := &fakeUserDirectory{known: map[string]bool{"user-1": true}}
	svc := newTestService(store, gate, users, nil)

	actor := domain.Actor{UserID: "user-1", Verifier: "verifier-b"}
	list, err := svc.ListSessions(context.Background(), actor, "user-1")
	if err != nil {
		t.Fatalf("ListSessions returned error: %v", err)
	}

	if list.Current == nil || list.Current.Verifier != "verifier-b" {
		t.Fatalf("expected current session verifier-b, got %+v", list.Current)
	}
	if len(list.Others) != 2 {
		t.Fatalf("expected 2 other sessions, got %d", len(list.Others))
	}
	for _, session := range list.Others {
		if session.Verifier == actor.Verifier {
			t.Fatalf("current verifier leaked into others partition")
		}
	}
}

func TestSessionService_ListSessionsAdminViewHasNoCurrent(t *testing.T) {
	store := memory.NewSessionStore()
	seedStore(t, store, "user-2", "verifier-a", "verifier-b")

	gate := &fakeGate{editAllowed: true}
	users := &fakeUserDirectory{known: map[string]bool{"user-2": true}}
	svc := newTestService(store, gate, users, nil)

	admin := domain.Actor{UserID: "admin-1", Verifier: "verifier-admin", Capabilities: []string{"edit_users"}}
	list, err := svc.ListSessions(context.Background(), admin, "user-2")
	if err != nil {
		t.Fatalf("ListSessions returned error: %v", err)
	}

	if list.Current != nil {
		t.Fatalf("admin view must not have a current session, got %+v", list.Current)
	}
	if len(list.Others) != 2 {
		t.Fatalf("expected 2 sessions in others, got %d", len(list.Others))
	}
}

func TestSessionService_ListSessionsFiltersExpired(t *testing.T) {
	store := memory.NewSessionStore()
	ctx := context.Background()

	if err := store.Put(ctx, "user-1", domain.Session{Verifier: "verifier-live", Expiration: testBase.Add(time.Hour)}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	if err := store.Put(ctx, "user-1", domain.Session{Verifier: "verifier-stale", Expiration: testBase.Add(-time.Minute)}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	gate := &fakeGate{}
	users := &fakeUserDirectory{known: map[string]bool{"user-1": true}}
	svc := newTestService(store, gate, users, nil)

	list, err := svc.ListSessions(ctx, domain.Actor{UserID: "user-1"}, "user-1")
	if err != nil {
		t.Fatalf("ListSessions returned error: %v", err)
	}
	if len(list.Others) != 1 || list.Others[0].Verifier != "verifier-live" {
		t.Fatalf("expected only the live session, got %+v", list.Others)
	}
}

func TestSessionService_ListSessionsValidation(t *testing.T) {
	store := memory.NewSessionStore()
	gate := &fakeGate{}
	users := &fakeUserDirectory{known: map[string]bool{}}
	svc := newTestService(store, gate, users, nil)

	if _, err := svc.ListSessions(context.Background(), domain.Actor{UserID: "user-1"}, "  "); !errors.Is(err, ErrNoUserID) {
		t.Fatalf("expected ErrNoUserID, got %v", err)
	}
	if _, err := svc.ListSessions(context.Background(), domain.Actor{UserID: "user-1"}, "user-ghost"); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
}

func TestSessionService_DestroySingle(t *testing.T) {
	store := memory.NewSessionStore()
	seedStore(t, store, "user-1", "verifier-a", "verifier-b")

	gate := &fakeGate{nonceValid: true}
	users := &fakeUserDirectory{known: map[string]bool{"user-1": true}}
	events := &fakePublisher{}
	svc := newTestService(store, gate, users, events)

	actor := domain.Actor{UserID: "user-1", Verifier: "verifier-a"}
	if err := svc.DestroySingle(context.Background(), actor, "user-1", "verifier-b", "nonce"); err != nil {
		t.Fatalf("DestroySingle returned error: %v", err)
	}

	if _, err := store.Get(context.Background(), "user-1", "verifier-b"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected verifier-b removed, got %v", err)
	}
	if _, err := store.Get(context.Background(), "user-1", "verifier-a"); err != nil {
		t.Fatalf("expected verifier-a untouched, got %v", err)
	}
	if len(events.revoked) != 1 {
		t.Fatalf("expected one revoked event, got %d", len(events.revoked))
	}
	if events.revoked[0].Verifier != "verifier-b" || events.revoked[0].RevokedBy != "user-1" {
		t.Fatalf("unexpected revoked event payload: %+v", events.revoked[0])
	}
	if !events.revoked[0].RevokedAt.Equal(testBase) {
		t.Fatalf("expected event timestamp %s, got %s", testBase, events.revoked[0].RevokedAt)
	}
	if len(gate.verifyCalls) != 1 || gate.verifyCalls[0].action != ActionDestroySession {
		t.Fatalf("expected nonce verified for %s, got %+v", ActionDestroySession, gate.verifyCalls)
	}
}

func TestSessionService_DestroySingleAbsentVerifier(t *testing.T) {
	store := memory.NewSessionStore()
	seedStore(t, store, "user-1", "verifier-a", "verifier-b")

	gate := &fakeGate{nonceValid: true}
	users := &fakeUserDirectory{known: map[string]bool{"user-1": true}}
	svc := newTestService(store, gate, users, nil)

	actor := domain.Actor{UserID: "user-1"}
	err := svc.DestroySingle(context.Background(), actor, "user-1", "verifier-missing", "nonce")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	sessions, err := store.GetAll(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("session set changed on failed destroy: %d sessions", len(sessions))
	}
}

func TestSessionService_DestroySingleValidation(t *testing.T) {
	store := memory.NewSessionStore()
	seedStore(t, store, "user-1", "verifier-a")

	gate := &fakeGate{nonceValid: true}
	users := &fakeUserDirectory{known: map[string]bool{"user-1": true}}
	svc := newTestService(store, gate, users, nil)
	actor := domain.Actor{UserID: "user-1"}

	if err := svc.DestroySingle(context.Background(), actor, "", "verifier-a", "nonce"); !errors.Is(err, ErrNoUserID) {
		t.Fatalf("expected ErrNoUserID, got %v", err)
	}
	if err := svc.DestroySingle(context.Background(), actor, "user-1", "", "nonce"); !errors.Is(err, ErrNoVerifier) {
		t.Fatalf("expected ErrNoVerifier, got %v", err)
	}

	gate.nonceValid = false
	if err := svc.DestroySingle(context.Background(), actor, "user-1", "verifier-a", "bad"); !errors.Is(err, ErrInvalidNonce) {
		t.Fatalf("expected ErrInvalidNonce, got %v", err)
	}
}

func TestSessionService_DestroySingleForbidden(t *testing.T) {
	store := memory.NewSessionStore()
	seedStore(t, store, "user-2", "verifier-a")

	gate := &fakeGate{nonceValid: true}
	users := &fakeUserDirectory{known: map[string]bool{"user-2": true}}
	svc := newTestService(store, gate, users, nil)

	intruder := domain.Actor{UserID: "user-1"}
	err := svc.DestroySingle(context.Background(), intruder, "user-2", "verifier-a", "nonce")
	if !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed, got %v", err)
	}

	sessions, err := store.GetAll(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("session set changed on forbidden destroy: %d sessions", len(sessions))
	}
}

func TestSessionService_DestroyOthersKeepsSupplied(t *testing.T) {
	store := memory.NewSessionStore()
	seedStore(t, store, "user-1", "verifier-a", "verifier-b", "verifier-c")

	gate := &fakeGate{nonceValid: true}
	users := &fakeUserDirectory{known: map[string]bool{"user-1": true}}
	events := &fakePublisher{}
	svc := newTestService(store, gate, users, events)

	actor := domain.Actor{UserID: "user-1", Verifier: "verifier-b"}
	destroyed, err := svc.DestroyOthers(context.Background(), actor, "user-1", "verifier-b", "nonce")
	if err != nil {
		t.Fatalf("DestroyOthers returned error: %v", err)
	}
	if destroyed != 2 {
		t.Fatalf("expected 2 destroyed, got %d", destroyed)
	}

	sessions, err := store.GetAll(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Verifier != "verifier-b" {
		t.Fatalf("expected only verifier-b kept, got %+v", sessions)
	}

	if len(events.purged) != 1 {
		t.Fatalf("expected one purged event, got %d", len(events.purged))
	}
	if events.purged[0].KeptVerifier == nil || *events.purged[0].KeptVerifier != "verifier-b" {
		t.Fatalf("expected kept verifier in event, got %+v", events.purged[0])
	}
	if events.purged[0].Destroyed != 2 {
		t.Fatalf("expected destroyed count 2 in event, got %d", events.purged[0].Destroyed)
	}
}

func TestSessionService_DestroyOthersMissingKeepDestroysAll(t *testing.T) {
	store := memory.NewSessionStore()
	seedStore(t, store, "user-1", "verifier-a", "verifier-b")

	gate := &fakeGate{nonceValid: true}
	users := &fakeUserDirectory{known: map[string]bool{"user-1": true}}
	events := &fakePublisher{}
	svc := newTestService(store, gate, users, events)

	actor := domain.Actor{UserID: "user-1"}
	destroyed, err := svc.DestroyOthers(context.Background(), actor, "user-1", "verifier-z", "nonce")
	if err != nil {
		t.Fatalf("DestroyOthers returned error: %v", err)
	}
	if destroyed != 2 {
		t.Fatalf("expected 2 destroyed on missing keep verifier, got %d", destroyed)
	}

	sessions, err := store.GetAll(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected all sessions destroyed, got %+v", sessions)
	}
	if events.purged[0].KeptVerifier != nil {
		t.Fatalf("expected no kept verifier in event when fallback fired, got %+v", events.purged[0])
	}
}

func TestSessionService_DestroyOthersOmittedKeepDestroysAll(t *testing.T) {
	store := memory.NewSessionStore()
	seedStore(t, store, "user-1", "verifier-a", "verifier-b", "verifier-c")

	gate := &fakeGate{nonceValid: true}
	users := &fakeUserDirectory{known: map[string]bool{"user-1": true}}
	svc := newTestService(store, gate, users, nil)

	destroyed, err := svc.DestroyOthers(context.Background(), domain.Actor{UserID: "user-1"}, "user-1", "", "nonce")
	if err != nil {
		t.Fatalf("DestroyOthers returned error: %v", err)
	}
	if destroyed != 3 {
		t.Fatalf("expected 3 destroyed, got %d", destroyed)
	}

	sessions, err := store.GetAll(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected empty set, got %+v", sessions)
	}
}

func TestSessionService_DestroyOthersInvalidNonce(t *testing.T) {
	store := memory.NewSessionStore()
	seedStore(t, store, "user-1", "verifier-a")

	gate := &fakeGate{nonceValid: false}
	users := &fakeUserDirectory{known: map[string]bool{"user-1": true}}
	svc := newTestService(store, gate, users, nil)

	if _, err := svc.DestroyOthers(context.Background(), domain.Actor{UserID: "user-1"}, "user-1", "", "stale"); !errors.Is(err, ErrInvalidNonce) {
		t.Fatalf("expected ErrInvalidNonce, got %v", err)
	}

	sessions, err := store.GetAll(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("session set changed despite invalid nonce: %+v", sessions)
	}
}

func TestSessionService_AttachSessionMergesMetadata(t *testing.T) {
	store := memory.NewSessionStore()
	gate := &fakeGate{}
	users := &fakeUserDirectory{known: map[string]bool{"user-1": true}}
	svc := newTestService(store, gate, users, nil)

	meta := domain.SessionMetadata{
		IPAddress: "198.51.100.40",
		UserAgent: "Safari/17.0",
	}
	session, err := svc.AttachSession(context.Background(), "user-1", "verifier-new", testBase.Add(48*time.Hour), meta)
	if err != nil {
		t.Fatalf("AttachSession returned error: %v", err)
	}

	if session.IPAddress != meta.IPAddress || session.UserAgent != meta.UserAgent {
		t.Fatalf("metadata not merged: %+v", session)
	}
	if session.Started == nil || !session.Started.Equal(testBase) {
		t.Fatalf("expected started defaulted to clock, got %v", session.Started)
	}

	stored, err := store.Get(context.Background(), "user-1", "verifier-new")
	if err != nil {
		t.Fatalf("Get after attach returned error: %v", err)
	}
	if !stored.Expiration.Equal(testBase.Add(48 * time.Hour)) {
		t.Fatalf("expiration not persisted: %v", stored.Expiration)
	}
}

func TestSessionService_CacheInvalidatedOnMutation(t *testing.T) {
	store := memory.NewSessionStore()
	seedStore(t, store, "user-1", "verifier-a", "verifier-b")

	gate := &fakeGate{nonceValid: true}
	users := &fakeUserDirectory{known: map[string]bool{"user-1": true}}
	cache := newFakeCache()
	svc := newTestService(store, gate, users, nil).WithSessionSetCache(cache)

	actor := domain.Actor{UserID: "user-1"}
	if _, err := svc.ListSessions(context.Background(), actor, "user-1"); err != nil {
		t.Fatalf("ListSessions returned error: %v", err)
	}
	if _, ok := cache.sets["user-1"]; !ok {
		t.Fatalf("expected cache populated after list")
	}

	if err := svc.DestroySingle(context.Background(), actor, "user-1", "verifier-a", "nonce"); err != nil {
		t.Fatalf("DestroySingle returned error: %v", err)
	}
	if len(cache.invalidated) == 0 {
		t.Fatalf("expected cache invalidated after destroy")
	}
	if _, ok := cache.sets["user-1"]; ok {
		t.Fatalf("expected cache entry removed after destroy")
	}

	list, err := svc.ListSessions(context.Background(), actor, "user-1")
	if err != nil {
		t.Fatalf("ListSessions after destroy returned error: %v", err)
	}
	if len(list.Others) != 1 || list.Others[0].Verifier != "verifier-b" {
		t.Fatalf("stale sessions served after invalidation: %+v", list.Others)
	}
}

func TestSessionService_DirectoryFailureSurfacesAsStorageUnavailable(t *testing.T) {
	store := memory.NewSessionStore()
	gate := &fakeGate{nonceValid: true}
	users := &fakeUserDirectory{err: errors.New("connection refused")}
	svc := newTestService(store, gate, users, nil)

	_, err := svc.ListSessions(context.Background(), domain.Actor{UserID: "user-1"}, "user-1")
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
