package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultSessionStoreTTL = 24 * time.Hour

// ErrSessionNotFound indicates no exported session exists under the given ID.
var ErrSessionNotFound = errors.New("triage: session not found")

// SessionStore persists exported sessions to Redis so a conversation can be
// resumed after the in-memory manager expired or the process restarted.
type SessionStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewSessionStore creates a Redis-backed session store.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if client == nil {
		panic("triage: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionStoreTTL
	}
	return &SessionStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("teleseva.internal.triage.sessions"),
	}
}

// Save persists an exported session snapshot.
func (s *SessionStore) Save(ctx context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return errors.New("triage: session with ID required")
	}
	ctx, span := s.tracer.Start(ctx, "triage.save_session")
	defer span.End()

	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("triage: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(session.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("triage: failed to persist session: %w", err)
	}
	return nil
}

// Load retrieves an exported session by ID.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "triage.load_session")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("triage: failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("triage: failed to decode session: %w", err)
	}
	return &session, nil
}

// Delete removes a stored session.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "triage.delete_session")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("triage: failed to delete session: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("triage:session:%s", id)
}
