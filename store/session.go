package store

import (
	"docchat-service/auth"
	"docchat-service/models"

	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// GrantSession issues a new token for username, replacing any previous one
func (s *UserStore) GrantSession(username string) (string, error) {
	token, err := auth.IssueToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return "", ErrNotFound
	}

	prev := u.Clone()
	if u.SessionToken != nil {
		delete(s.byToken, *u.SessionToken)
	}
	u.SessionToken = &token
	u.SessionExpires = models.TimestampPtr(s.now().Add(s.sessionTTL))
	s.byToken[token] = username

	if err := s.commit(username, prev); err != nil {
		return "", err
	}
	return token, nil
}

// ValidateSession resolves a token to its user. Unknown and expired tokens both
// return ErrUnauthorized; an expired token is cleared from its record.
func (s *UserStore) ValidateSession(token string) (*models.SessionUser, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	s.mu.RLock()
	identity, expired := s.lookupToken(token)
	s.mu.RUnlock()
	if identity != nil {
		return identity, nil
	}
	if !expired {
		return nil, ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// state may have moved while unlocked
	identity, expired = s.lookupToken(token)
	if identity != nil {
		return identity, nil
	}
	if !expired {
		return nil, ErrUnauthorized
	}

	username := s.byToken[token]
	u := s.users[username]
	prev := u.Clone()
	u.ClearSession()
	delete(s.byToken, token)
	if err := s.commit(username, prev); err != nil {
		return nil, err
	}

	logger.Debug("Expired session cleared", zap.String("username", username))
	return nil, ErrUnauthorized
}

// lookupToken returns the identity for a live token, or expired=true when the
// token is known but past its expiry. Callers hold a lock.
func (s *UserStore) lookupToken(token string) (identity *models.SessionUser, expired bool) {
	username, ok := s.byToken[token]
	if !ok {
		return nil, false
	}
	u, ok := s.users[username]
	if !ok || u.SessionToken == nil || *u.SessionToken != token {
		return nil, false
	}
	if u.SessionExpires == nil || !s.now().Before(u.SessionExpires.Time) {
		return nil, true
	}
	return &models.SessionUser{Username: u.Username, UserID: u.UserID}, false
}

// Logout clears the user's session
func (s *UserStore) Logout(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return ErrNotFound
	}
	if u.SessionToken == nil && u.SessionExpires == nil {
		return nil
	}

	prev := u.Clone()
	if u.SessionToken != nil {
		delete(s.byToken, *u.SessionToken)
	}
	u.ClearSession()
	return s.commit(username, prev)
}
