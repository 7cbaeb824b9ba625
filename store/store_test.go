package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"docchat-service/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umakantv/go-utils/logger"
)

func TestMain(m *testing.M) {
	logger.Init(logger.LoggerConfig{
		CallerKey:  "file",
		TimeKey:    "timestamp",
		CallerSkip: 1,
	})
	os.Exit(m.Run())
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*UserStore, *MemoryBackend, *fakeClock) {
	t.Helper()
	backend := NewMemoryBackend(nil)
	clock := newFakeClock()
	s, err := New(backend, auth.DefaultHasher(), WithClock(clock.Now))
	require.NoError(t, err)
	return s, backend, clock
}

func TestNew_EmptyBackend(t *testing.T) {
	s, backend, _ := newTestStore(t)

	assert.Empty(t, s.ListUsers())
	assert.Empty(t, backend.Bytes(), "loading must not write")
}

func TestNew_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")

	s, err := New(NewFileBackend(path), nil)
	require.NoError(t, err)
	assert.Empty(t, s.ListUsers())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestNew_CorruptFileIsNotOverwritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	corrupt := []byte(`{"alice": {"user_id": `)
	require.NoError(t, os.WriteFile(path, corrupt, 0o600))

	s, err := New(NewFileBackend(path), nil)
	require.Error(t, err)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrPersistence)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, corrupt, after)
}

func TestNew_BackendLoadError(t *testing.T) {
	dir := t.TempDir()
	// a directory in place of the file cannot be read
	_, err := New(NewFileBackend(dir), nil)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestNew_AbsentFieldsDefault(t *testing.T) {
	cred, err := auth.DefaultHasher().Hash("pw")
	require.NoError(t, err)
	doc := fmt.Sprintf(`{
		"bob": {
			"user_id": "u-bob",
			"username": "bob",
			"email": "bob@x.com",
			"password_hash": %q,
			"created_at": "2024-01-01T00:00:00Z",
			"last_login": null
		}
	}`, cred)

	s, err := New(NewMemoryBackend([]byte(doc)), nil)
	require.NoError(t, err)

	u, ok := s.GetByUsername("bob")
	require.True(t, ok)
	assert.True(t, u.Active())
	assert.NotNil(t, u.Chats)
	assert.Empty(t, u.Chats)

	profile, err := s.Authenticate("bob", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u-bob", profile.UserID)

	// email index was rebuilt on load
	_, err = s.Register("bobby", "bob@x.com", "pw")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestNew_ZonelessTimestamps(t *testing.T) {
	cred, err := auth.DefaultHasher().Hash("pw")
	require.NoError(t, err)
	doc := fmt.Sprintf(`{
		"carol": {
			"user_id": "u-carol",
			"username": "carol",
			"email": "carol@x.com",
			"password_hash": %q,
			"created_at": "2024-05-01T10:20:30.123456",
			"last_login": "2024-05-01T11:00:00",
			"is_active": true,
			"session_token": "tok-carol",
			"session_expires": "2024-05-02T10:20:30.123456",
			"chats": {
				"c1": {
					"chat_id": "c1",
					"title": "Manuals",
					"thread_id": "thread_1",
					"created_at": "2024-05-01T10:21:00.000001",
					"last_message_at": "2024-05-01T10:25:00.5",
					"message_count": 2
				}
			}
		}
	}`, cred)

	clock := newFakeClock()
	backend := NewMemoryBackend([]byte(doc))
	s, err := New(backend, nil, WithClock(clock.Now))
	require.NoError(t, err)

	u, ok := s.GetByUsername("carol")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 20, 30, 123456000, time.Local), u.CreatedAt.Time)
	require.NotNil(t, u.LastLogin)
	assert.Equal(t, time.Date(2024, 5, 1, 11, 0, 0, 0, time.Local), u.LastLogin.Time)

	chat, ok := s.GetChat("carol", "c1")
	require.True(t, ok)
	require.NotNil(t, chat.LastMessageAt)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 25, 0, 500000000, time.Local), chat.LastMessageAt.Time)
	assert.Equal(t, 2, chat.MessageCount)

	identity, err := s.ValidateSession("tok-carol")
	require.NoError(t, err)
	assert.Equal(t, "u-carol", identity.UserID)

	// a rewritten document loads again
	_, err = s.Authenticate("carol", "pw")
	require.NoError(t, err)
	reloaded, err := New(NewMemoryBackend(backend.Bytes()), nil)
	require.NoError(t, err)
	u, ok = reloaded.GetByUsername("carol")
	require.True(t, ok)
	assert.True(t, u.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 20, 30, 123456000, time.Local)))
	assert.True(t, u.LastLogin.Equal(clock.Now()))
}

func TestFileBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")

	s, err := New(NewFileBackend(path), nil)
	require.NoError(t, err)
	_, err = s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)
	chatID, err := s.CreateChat("alice", "Notes")
	require.NoError(t, err)

	reloaded, err := New(NewFileBackend(path), nil)
	require.NoError(t, err)
	chats := reloaded.ListChats("alice")
	require.Contains(t, chats, chatID)
	assert.Equal(t, "Notes", chats[chatID].Title)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestPersistFailureRollsBack(t *testing.T) {
	s, backend, _ := newTestStore(t)

	backend.FailSave = errors.New("disk full")
	_, err := s.Register("alice", "alice@x.com", "pw123")
	require.ErrorIs(t, err, ErrPersistence)

	_, ok := s.GetByUsername("alice")
	assert.False(t, ok)

	backend.FailSave = nil
	_, err = s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)

	chatID, err := s.CreateChat("alice", "")
	require.NoError(t, err)

	backend.FailSave = errors.New("disk full")
	err = s.RecordMessage("alice", chatID)
	require.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, 0, s.ListChats("alice")[chatID].MessageCount)

	deleted, err := s.DeleteChat("alice", chatID)
	require.ErrorIs(t, err, ErrPersistence)
	assert.False(t, deleted)
	assert.Contains(t, s.ListChats("alice"), chatID)
}

func TestConcurrentMutations(t *testing.T) {
	s, backend, _ := newTestStore(t)
	_, err := s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateChat("alice", fmt.Sprintf("chat %d", i))
			assert.NoError(t, err)
			s.ListChats("alice")
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.ListChats("alice"), n)

	reloaded, err := New(NewMemoryBackend(backend.Bytes()), nil)
	require.NoError(t, err)
	assert.Len(t, reloaded.ListChats("alice"), n)
}
