package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"docchat-service/auth"
	"docchat-service/models"

	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// DefaultSessionTTL is the absolute lifetime of a session token
const DefaultSessionTTL = 24 * time.Hour

// UserStore is the single source of truth for users, their sessions and chats.
// Every mutation holds the write lock through persisting the full snapshot;
// readers take the read lock and always see a complete state.
type UserStore struct {
	mu         sync.RWMutex
	backend    Backend
	hasher     *auth.Hasher
	now        func() time.Time
	sessionTTL time.Duration

	users   map[string]*models.User
	byEmail map[string]string // email -> username
	byToken map[string]string // session token -> username
}

// Option configures a UserStore
type Option func(*UserStore)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *UserStore) {
		s.now = now
	}
}

// WithSessionTTL overrides DefaultSessionTTL
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *UserStore) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// New loads the store from backend. A backend with no document yields an empty store;
// an unreadable or corrupt document is an error and nothing is written back.
func New(backend Backend, hasher *auth.Hasher, opts ...Option) (*UserStore, error) {
	if hasher == nil {
		hasher = auth.DefaultHasher()
	}
	s := &UserStore{
		backend:    backend,
		hasher:     hasher,
		now:        time.Now,
		sessionTTL: DefaultSessionTTL,
		users:      make(map[string]*models.User),
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := backend.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.users); err != nil {
			return nil, fmt.Errorf("%w: corrupt user document: %w", ErrPersistence, err)
		}
	}

	for username, u := range s.users {
		if u == nil {
			delete(s.users, username)
			continue
		}
		if u.Username == "" {
			u.Username = username
		}
		if u.Chats == nil {
			u.Chats = make(map[string]models.Chat)
		}
	}
	s.reindex()

	logger.Info("User store loaded", zap.Int("users", len(s.users)))
	return s, nil
}

// reindex rebuilds the secondary indexes from the primary map
func (s *UserStore) reindex() {
	s.byEmail = make(map[string]string, len(s.users))
	s.byToken = make(map[string]string)
	for username, u := range s.users {
		if other, taken := s.byEmail[u.Email]; taken {
			logger.Error("Duplicate email in user document",
				zap.String("email", u.Email), zap.String("username", username), zap.String("existing", other))
		} else {
			s.byEmail[u.Email] = username
		}
		if u.SessionToken != nil && *u.SessionToken != "" {
			s.byToken[*u.SessionToken] = username
		}
	}
}

// persist writes the full snapshot. Callers hold the write lock.
func (s *UserStore) persist() error {
	doc, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersistence, err)
	}
	if err := s.backend.Save(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// commit persists after a mutation of username's record. On failure the record
// is put back to prev (nil removes it) so memory never runs ahead of storage.
func (s *UserStore) commit(username string, prev *models.User) error {
	err := s.persist()
	if err == nil {
		return nil
	}
	if prev == nil {
		delete(s.users, username)
	} else {
		s.users[username] = prev
	}
	s.reindex()
	logger.Error("Failed to persist user store", zap.String("username", username), zap.Error(err))
	return err
}
