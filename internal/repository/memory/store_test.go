package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

func testSession(verifier string, expiresIn time.Duration) domain.Session {
	return domain.Session{
		Verifier:   verifier,
		Expiration: time.Now().UTC().Add(expiresIn),
		IPAddress:  "203.0.113.7",
		UserAgent:  "Mozilla/5.0",
	}
}

func TestSessionStore_PutThenGet(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	started := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	session := testSession("verifier-a", time.Hour)
	session.Started = &started

	if err := store.Put(ctx, "user-1", session); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	got, err := store.Get(ctx, "user-1", "verifier-a")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Verifier != session.Verifier || !got.Expiration.Equal(session.Expiration) {
		t.Fatalf("stored session does not match: %+v vs %+v", got, session)
	}
	if got.Started == nil || !got.Started.Equal(started) {
		t.Fatalf("expected started timestamp %s, got %v", started, got.Started)
	}
	if got.IPAddress != session.IPAddress || got.UserAgent != session.UserAgent {
		t.Fatalf("metadata mismatch: %+v", got)
	}
}

func TestSessionStore_GetMissing(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "user-unknown", "verifier-a"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}

	if err := store.Put(ctx, "user-1", testSession("verifier-a", time.Hour)); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if _, err := store.Get(ctx, "user-1", "verifier-missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown verifier, got %v", err)
	}
}

func TestSessionStore_GetAllFiltersEntriesWithoutExpiration(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	if err := store.Put(ctx, "user-1", testSession("verifier-a", time.Hour)); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := store.Put(ctx, "user-1", domain.Session{Verifier: "verifier-legacy"}); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	sessions, err := store.GetAll(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected legacy entry filtered, got %d sessions", len(sessions))
	}
	if sessions[0].Verifier != "verifier-a" {
		t.Fatalf("expected verifier-a to remain, got %s", sessions[0].Verifier)
	}
}

func TestSessionStore_GetAllUnknownUser(t *testing.T) {
	store := NewSessionStore()

	sessions, err := store.GetAll(context.Background(), "user-nobody")
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected empty slice for unknown user, got %d", len(sessions))
	}
}

func TestSessionStore_RemoveIsIdempotent(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	if err := store.Remove(ctx, "user-1", "verifier-a"); err != nil {
		t.Fatalf("Remove on unknown user returned error: %v", err)
	}

	if err := store.Put(ctx, "user-1", testSession("verifier-a", time.Hour)); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := store.Remove(ctx, "user-1", "verifier-a"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if err := store.Remove(ctx, "user-1", "verifier-a"); err != nil {
		t.Fatalf("second Remove returned error: %v", err)
	}

	sessions, err := store.GetAll(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions after remove, got %d", len(sessions))
	}
}

func TestSessionStore_RemoveAllExceptKeepsOnlyKept(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	for _, verifier := range []string{"verifier-a", "verifier-b", "verifier-c"} {
		if err := store.Put(ctx, "user-1", testSession(verifier, 24*time.Hour)); err != nil {
			t.Fatalf("Put returned error: %v", err)
		}
	}

	if err := store.RemoveAllExcept(ctx, "user-1", "verifier-b"); err != nil {
		t.Fatalf("RemoveAllExcept returned error: %v", err)
	}

	sessions, err := store.GetAll(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Verifier != "verifier-b" {
		t.Fatalf("expected exactly verifier-b to survive, got %+v", sessions)
	}
}

func TestSessionStore_RemoveAllExceptMissingKeepDestroysAll(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	if err := store.Put(ctx, "user-1", testSession("verifier-a", time.Hour)); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := store.Put(ctx, "user-1", testSession("verifier-b", time.Hour)); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	if err := store.RemoveAllExcept(ctx, "user-1", "verifier-z"); err != nil {
		t.Fatalf("RemoveAllExcept returned error: %v", err)
	}

	sessions, err := store.GetAll(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected all sessions destroyed on missing keep verifier, got %d", len(sessions))
	}
}

func TestSessionStore_RemoveAll(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	if err := store.Put(ctx, "user-1", testSession("verifier-a", time.Hour)); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := store.RemoveAll(ctx, "user-1"); err != nil {
		t.Fatalf("RemoveAll returned error: %v", err)
	}

	sessions, err := store.GetAll(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected empty set after RemoveAll, got %d", len(sessions))
	}
	if _, err := store.Get(ctx, "user-1", "verifier-a"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after RemoveAll, got %v", err)
	}
}
