package store

import (
	"fmt"
	"sort"
	"strings"

	"docchat-service/auth"
	"docchat-service/models"

	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// Register creates an active account and returns its user_id
func (s *UserStore) Register(username, email, password string) (string, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(email) == "" || password == "" {
		return "", fmt.Errorf("%w: username, email and password are required", ErrValidation)
	}

	// hash outside the lock, bcrypt is slow
	credential, err := s.hasher.Hash(password)
	if err != nil {
		return "", err
	}
	userID, err := auth.NewID()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return "", ErrDuplicateUsername
	}
	if _, taken := s.byEmail[email]; taken {
		return "", ErrDuplicateEmail
	}

	u := &models.User{
		UserID:       userID,
		Username:     username,
		Email:        email,
		PasswordHash: credential,
		CreatedAt:    models.NewTimestamp(s.now()),
		Chats:        make(map[string]models.Chat),
	}
	u.SetActive(true)

	s.users[username] = u
	s.byEmail[email] = username
	if err := s.commit(username, nil); err != nil {
		return "", err
	}

	logger.Info("New user registered", zap.String("username", username))
	return userID, nil
}

// Authenticate checks credentials and records the login time.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *UserStore) Authenticate(username, password string) (*models.UserProfile, error) {
	s.mu.RLock()
	var credential string
	if u, ok := s.users[username]; ok {
		credential = u.PasswordHash
	}
	s.mu.RUnlock()

	// an empty credential never verifies, so unknown users take the same path
	if !s.hasher.Verify(password, credential) {
		return nil, ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok || u.PasswordHash != credential {
		return nil, ErrInvalidCredentials
	}
	if !u.Active() {
		return nil, ErrAccountDeactivated
	}

	prev := u.Clone()
	u.LastLogin = models.TimestampPtr(s.now())
	if err := s.commit(username, prev); err != nil {
		return nil, err
	}

	logger.Info("User authenticated", zap.String("username", username))
	return &models.UserProfile{
		UserID:   u.UserID,
		Username: u.Username,
		Email:    u.Email,
		Chats:    models.CloneChats(u.Chats),
	}, nil
}

// GetByUsername returns a copy of the user record
func (s *UserStore) GetByUsername(username string) (*models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return nil, false
	}
	return u.Clone(), true
}

// ListUsers returns the admin view of every account, ordered by username
func (s *UserStore) ListUsers() []models.UserSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.UserSummary, 0, len(s.users))
	for _, u := range s.users {
		summary := models.UserSummary{
			Username:  u.Username,
			Email:     u.Email,
			CreatedAt: u.CreatedAt,
			IsActive:  u.Active(),
		}
		if u.LastLogin != nil {
			t := *u.LastLogin
			summary.LastLogin = &t
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Deactivate disables an account and ends its session. Reports whether the user exists.
func (s *UserStore) Deactivate(username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return false, nil
	}

	prev := u.Clone()
	if u.SessionToken != nil {
		delete(s.byToken, *u.SessionToken)
	}
	u.ClearSession()
	u.SetActive(false)
	if err := s.commit(username, prev); err != nil {
		return true, err
	}

	logger.Info("User deactivated", zap.String("username", username))
	return true, nil
}
