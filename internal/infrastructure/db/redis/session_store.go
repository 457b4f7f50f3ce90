package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/laundrypro/portal/internal/core/domain"
)

// SessionStore keeps the session slot as one JSON value so token and user are
// written and expired together.
// Key format: <prefix>:session (default prefix "laundrypro").
type SessionStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    zerolog.Logger
}

// NewSessionStore wraps client. A zero ttl keeps the slot until cleared.
func NewSessionStore(client *redis.Client, prefix string, ttl time.Duration, log zerolog.Logger) *SessionStore {
	if prefix == "" {
		prefix = strings.SplitN(domain.SessionSlot, ".", 2)[0]
	}
	return &SessionStore{
		client: client,
		key:    prefix + ":session",
		ttl:    ttl,
		log:    log.With().Str("component", "session.redis").Logger(),
	}
}

// Key is the redis key holding the slot.
func (s *SessionStore) Key() string { return s.key }

func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	if !sess.Valid() {
		return fmt.Errorf("session save: %w", domain.ErrNoSession)
	}
	rec := sess.Clone()
	rec.SavedAt = time.Now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session marshal: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context) (*domain.Session, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session load: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil || !sess.Valid() {
		s.log.Warn().Err(err).Str("key", s.key).Msg("discarding unreadable session slot")
		if delErr := s.client.Del(ctx, s.key).Err(); delErr != nil {
			s.log.Error().Err(delErr).Msg("failed to clear corrupt session slot")
		}
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}
