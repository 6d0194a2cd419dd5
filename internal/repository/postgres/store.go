package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SessionStore implements port.SessionStore backed by PostgreSQL. Each user
// owns a single row holding the whole session set as jsonb; mutations load
// the row under FOR UPDATE so concurrent writers for one user serialize.
type SessionStore struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionStore constructs a store backed by any executor that satisfies pgExecutor.
func NewSessionStore(exec pgExecutor) *SessionStore {
	store := &SessionStore{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		store.pool = pool
	}
	return store
}

// sessionRecord is the persisted shape of one session inside the jsonb set.
// Expiration and start times are unix seconds to stay readable in SQL.
type sessionRecord struct {
	Expiration int64  `json:"expiration"`
	Started    *int64 `json:"started,omitempty"`
	IPAddress  string `json:"ip,omitempty"`
	UserAgent  string `json:"ua,omitempty"`
}

// GetAll returns every session with a known expiration for the user, ordered
// by expiration then verifier. Unknown users yield an empty slice.
func (s *SessionStore) GetAll(ctx context.Context, userID string) ([]domain.Session, error) {
	set, found, err := s.loadSet(ctx, s.exec, userID, false)
	if err != nil {
		return nil, err
	}
	if !found {
		return []domain.Session{}, nil
	}

	sessions := make([]domain.Session, 0, len(set))
	for verifier, record := range set {
		session := recordToSession(verifier, record)
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
	set, found, err := s.loadSet(ctx, s.exec, userID, false)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, repository.ErrNotFound
	}

	record, ok := set[verifier]
	if !ok {
		return nil, repository.ErrNotFound
	}

	session := recordToSession(verifier, record)
	return &session, nil
}

// Put inserts or replaces the session stored under the verifier.
func (s *SessionStore) Put(ctx context.Context, userID string, session domain.Session) error {
	return s.mutate(ctx, userID, func(set map[string]sessionRecord, found bool) (map[string]sessionRecord, error) {
		if set == nil {
			set = make(map[string]sessionRecord, 1)
		}
		set[session.Verifier] = sessionToRecord(session)
		return set, nil
	})
}

// Remove deletes the session under the verifier. Absent verifiers are a no-op.
func (s *SessionStore) Remove(ctx context.Context, userID, verifier string) error {
	return s.mutate(ctx, userID, func(set map[string]sessionRecord, found bool) (map[string]sessionRecord, error) {
		if !found {
			return nil, errNoChange
		}
		if _, ok := set[verifier]; !ok {
			return nil, errNoChange
		}
		delete(set, verifier)
		return set, nil
	})
}

// RemoveAllExcept keeps only the session under keepVerifier. When that
// verifier is absent the whole set is destroyed.
func (s *SessionStore) RemoveAllExcept(ctx context.Context, userID, keepVerifier string) error {
	return s.mutate(ctx, userID, func(set map[string]sessionRecord, found bool) (map[string]sessionRecord, error) {
		if !found {
			return nil, errNoChange
		}
		kept, ok := set[keepVerifier]
		if !ok {
			return map[string]sessionRecord{}, nil
		}
		return map[string]sessionRecord{keepVerifier: kept}, nil
	})
}

// RemoveAll drops the user's session row outright.
func (s *SessionStore) RemoveAll(ctx context.Context, userID string) error {
	stmt, args, err := s.builder.
		Delete("sessions.user_sessions").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete session set sql: %w", err)
	}

	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete session set: %w", err)
	}
	return nil
}

// errNoChange short-circuits a mutation that would not alter the stored set.
var errNoChange = errors.New("postgres: session set unchanged")

// mutate runs a read-modify-write cycle on the user's session row inside a
// transaction, holding the row lock between read and write. A nil or empty
// resulting set removes the row.
func (s *SessionStore) mutate(ctx context.Context, userID string, apply func(set map[string]sessionRecord, found bool) (map[string]sessionRecord, error)) error {
	tx, err := s.exec.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin session set tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	set, found, err := s.loadSet(ctx, tx, userID, true)
	if err != nil {
		return err
	}

	next, err := apply(set, found)
	if err != nil {
		if errors.Is(err, errNoChange) {
			return tx.Commit(ctx)
		}
		return err
	}

	if err := s.storeSet(ctx, tx, userID, next, found); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit session set tx: %w", err)
	}
	return nil
}

func (s *SessionStore) loadSet(ctx context.Context, exec interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, userID string, forUpdate bool) (map[string]sessionRecord, bool, error) {
	query := s.builder.
		Select("data").
		From("sessions.user_sessions").
		Where(squirrel.Eq{"user_id": userID})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build select session set sql: %w", err)
	}

	var raw []byte
	if err := exec.QueryRow(ctx, stmt, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("select session set: %w", err)
	}

	set := make(map[string]sessionRecord)
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, false, fmt.Errorf("decode session set: %w", err)
	}

	return set, true, nil
}

func (s *SessionStore) storeSet(ctx context.Context, tx pgx.Tx, userID string, set map[string]sessionRecord, existed bool) error {
	if len(set) == 0 {
		if !existed {
			return nil
		}
		stmt, args, err := s.builder.
			Delete("sessions.user_sessions").
			Where(squirrel.Eq{"user_id": userID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build delete session set sql: %w", err)
		}
		if _, err := tx.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("delete session set: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode session set: %w", err)
	}

	now := time.Now().UTC()
	if existed {
		stmt, args, err := s.builder.
			Update("sessions.user_sessions").
			Set("data", raw).
			Set("updated_at", now).
			Where(squirrel.Eq{"user_id": userID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build update session set sql: %w", err)
		}
		if _, err := tx.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("update session set: %w", err)
		}
		return nil
	}

	stmt, args, err := s.builder.
		Insert("sessions.user_sessions").
		Columns("user_id", "data", "updated_at").
		Values(userID, raw, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session set sql: %w", err)
	}
	if _, err := tx.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert session set: %w", err)
	}
	return nil
}

func recordToSession(verifier string, record sessionRecord) domain.Session {
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
	return session
}

func sessionToRecord(session domain.Session) sessionRecord {
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
	return record
}

var _ port.SessionStore = (*SessionStore)(nil)
