package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantAndValidateSession(t *testing.T) {
	s, _, _ := newTestStore(t)
	userID, err := s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)

	token, err := s.GrantSession("alice")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(token), 43)

	identity, err := s.ValidateSession(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, userID, identity.UserID)
}

func TestGrantSession_UnknownUser(t *testing.T) {
	s, _, _ := newTestStore(t)

	_, err := s.GrantSession("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGrantSession_ReplacesPreviousToken(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, err := s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)

	first, err := s.GrantSession("alice")
	require.NoError(t, err)
	second, err := s.GrantSession("alice")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = s.ValidateSession(first)
	assert.ErrorIs(t, err, ErrUnauthorized)

	identity, err := s.ValidateSession(second)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Username)
}

func TestValidateSession_Expired(t *testing.T) {
	s, backend, clock := newTestStore(t)
	_, err := s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)

	token, err := s.GrantSession("alice")
	require.NoError(t, err)

	clock.Advance(DefaultSessionTTL - time.Second)
	_, err = s.ValidateSession(token)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = s.ValidateSession(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	u, _ := s.GetByUsername("alice")
	assert.Nil(t, u.SessionToken)
	assert.Nil(t, u.SessionExpires)

	// the cleared state was persisted
	assert.NotContains(t, string(backend.Bytes()), token)

	// and a second attempt fails as well
	_, err = s.ValidateSession(token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestValidateSession_UnknownToken(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, err := s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)
	_, err = s.GrantSession("alice")
	require.NoError(t, err)

	for _, token := range []string{"", "not-a-token", "Bearer x"} {
		identity, err := s.ValidateSession(token)
		assert.Nil(t, identity)
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
}

func TestWithSessionTTL(t *testing.T) {
	backend := NewMemoryBackend(nil)
	clock := newFakeClock()
	s, err := New(backend, nil, WithClock(clock.Now), WithSessionTTL(time.Minute))
	require.NoError(t, err)

	_, err = s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)
	token, err := s.GrantSession("alice")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = s.ValidateSession(token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogout(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, err := s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)
	token, err := s.GrantSession("alice")
	require.NoError(t, err)

	require.NoError(t, s.Logout("alice"))

	_, err = s.ValidateSession(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	u, _ := s.GetByUsername("alice")
	assert.Nil(t, u.SessionToken)

	// logging out twice is harmless
	assert.NoError(t, s.Logout("alice"))
	assert.ErrorIs(t, s.Logout("nobody"), ErrNotFound)
}

func TestSessionSurvivesReload(t *testing.T) {
	s, backend, clock := newTestStore(t)
	_, err := s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)
	token, err := s.GrantSession("alice")
	require.NoError(t, err)

	reloaded, err := New(NewMemoryBackend(backend.Bytes()), nil, WithClock(clock.Now))
	require.NoError(t, err)

	identity, err := reloaded.ValidateSession(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Username)
}
