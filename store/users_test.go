package store

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	s, _, clock := newTestStore(t)

	userID, err := s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)
	assert.NotEmpty(t, userID)

	u, ok := s.GetByUsername("alice")
	require.True(t, ok)
	assert.Equal(t, userID, u.UserID)
	assert.Equal(t, "alice@x.com", u.Email)
	assert.NotEqual(t, "pw123", u.PasswordHash)
	assert.True(t, u.Active())
	assert.Empty(t, u.Chats)
	assert.Nil(t, u.LastLogin)
	assert.Nil(t, u.SessionToken)
	assert.Equal(t, clock.Now(), u.CreatedAt.Time)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	s, _, _ := newTestStore(t)

	firstID, err := s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)

	_, err = s.Register("alice", "other@x.com", "different")
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	u, ok := s.GetByUsername("alice")
	require.True(t, ok)
	assert.Equal(t, firstID, u.UserID)
	assert.Equal(t, "alice@x.com", u.Email)

	_, err = s.Authenticate("alice", "pw123")
	assert.NoError(t, err)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s, _, _ := newTestStore(t)

	_, err := s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)

	_, err = s.Register("alicia", "alice@x.com", "pw123")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, ok := s.GetByUsername("alicia")
	assert.False(t, ok)
}

func TestRegister_Validation(t *testing.T) {
	s, _, _ := newTestStore(t)

	tests := []struct {
		name                      string
		username, email, password string
	}{
		{"blank username", " ", "a@x.com", "pw"},
		{"blank email", "alice", "", "pw"},
		{"blank password", "alice", "a@x.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(tt.username, tt.email, tt.password)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Empty(t, s.ListUsers())
}

func TestAuthenticate(t *testing.T) {
	s, _, clock := newTestStore(t)

	userID, err := s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	profile, err := s.Authenticate("alice", "pw123")
	require.NoError(t, err)
	assert.Equal(t, userID, profile.UserID)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, "alice@x.com", profile.Email)
	assert.NotNil(t, profile.Chats)

	u, _ := s.GetByUsername("alice")
	require.NotNil(t, u.LastLogin)
	assert.Equal(t, clock.Now(), u.LastLogin.Time)
}

func TestAuthenticate_FailuresAreIndistinguishable(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, err := s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)

	_, wrongPassword := s.Authenticate("alice", "wrongpw")
	_, unknownUser := s.Authenticate("nobody", "pw123")

	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())

	u, _ := s.GetByUsername("alice")
	assert.Nil(t, u.LastLogin)
}

func TestDeactivate(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, err := s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)
	token, err := s.GrantSession("alice")
	require.NoError(t, err)

	ok, err := s.Deactivate("alice")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Authenticate("alice", "pw123")
	assert.ErrorIs(t, err, ErrAccountDeactivated)

	// a wrong password still reads as bad credentials, not as a deactivated account
	_, err = s.Authenticate("alice", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.ValidateSession(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	ok, err = s.Deactivate("nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListUsers(t *testing.T) {
	s, _, _ := newTestStore(t)

	names := map[string]bool{}
	for len(names) < 5 {
		username := gofakeit.Username()
		if names[username] {
			continue
		}
		_, err := s.Register(username, username+"@"+gofakeit.DomainName(), gofakeit.Password(true, true, true, false, false, 12))
		require.NoError(t, err)
		names[username] = true
	}
	_, err := s.Deactivate(gofakeit.RandomMapKey(names).(string))
	require.NoError(t, err)

	users := s.ListUsers()
	require.Len(t, users, 5)

	inactive := 0
	for i, u := range users {
		assert.True(t, names[u.Username])
		if i > 0 {
			assert.Less(t, users[i-1].Username, u.Username)
		}
		if !u.IsActive {
			inactive++
		}
	}
	assert.Equal(t, 1, inactive)
}

func TestGetByUsername_ReturnsCopy(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, err := s.Register("alice", "alice@x.com", "pw123")
	require.NoError(t, err)
	_, err = s.CreateChat("alice", "one")
	require.NoError(t, err)

	u, _ := s.GetByUsername("alice")
	u.Email = "changed@x.com"
	for id := range u.Chats {
		delete(u.Chats, id)
	}

	again, _ := s.GetByUsername("alice")
	assert.Equal(t, "alice@x.com", again.Email)
	assert.Len(t, again.Chats, 1)

	_, ok := s.GetByUsername("nobody")
	assert.False(t, ok)
}
