// Package session holds the durable session slot implementations that live
// on the local machine: an optionally sealed JSON file and an in-memory slot.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/laundrypro/portal/internal/core/domain"
)

const filePerm = 0o600

// FileStore keeps the session slot in a single file named after
// domain.SessionSlot. Writes go through a temp file and a rename so a reader
// sees either the old pair or the new pair, never half of one.
type FileStore struct {
	path   string
	sealer *sealer
	log    zerolog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewFileStore creates dir if needed. A non-empty secret seals the file at
// rest.
func NewFileStore(dir, secret string, log zerolog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("session: empty state directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session: create state dir: %w", err)
	}
	return &FileStore{
		path:   filepath.Join(dir, domain.SessionSlot),
		sealer: newSealer(secret),
		log:    log.With().Str("component", "session.file").Logger(),
		now:    time.Now,
	}, nil
}

// Path is the location of the slot on disk.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Save(_ context.Context, sess *domain.Session) error {
	if !sess.Valid() {
		return fmt.Errorf("session: save: %w", domain.ErrNoSession)
	}
	rec := sess.Clone()
	rec.SavedAt = s.now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	if s.sealer != nil {
		if data, err = s.sealer.seal(data); err != nil {
			return fmt.Errorf("session: seal: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("session: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("session: write: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("session: chmod: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("session: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("session: rename: %w", err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read: %w", err)
	}

	sess, err := s.decode(data)
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("discarding unreadable session slot")
		if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			s.log.Error().Err(rmErr).Msg("failed to clear corrupt session slot")
		}
		return nil, nil
	}
	return sess, nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}

func (s *FileStore) decode(data []byte) (*domain.Session, error) {
	if s.sealer != nil {
		opened, err := s.sealer.open(data)
		if err != nil {
			return nil, err
		}
		data = opened
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSessionCorrupt, err)
	}
	if !sess.Valid() {
		return nil, fmt.Errorf("%w: token and user must both be present", domain.ErrSessionCorrupt)
	}
	return &sess, nil
}
