package store

import (
	"errors"
	"strings"

	"docchat-service/auth"
	"docchat-service/models"

	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// CreateChat adds an empty chat for username and returns its id.
// A blank title becomes models.DefaultChatTitle.
func (s *UserStore) CreateChat(username, title string) (string, error) {
	if strings.TrimSpace(title) == "" {
		title = models.DefaultChatTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return "", ErrNotFound
	}

	var chatID string
	for {
		id, err := auth.NewID()
		if err != nil {
			return "", err
		}
		if _, clash := u.Chats[id]; !clash {
			chatID = id
			break
		}
	}

	prev := u.Clone()
	u.Chats[chatID] = models.Chat{
		ChatID:    chatID,
		Title:     title,
		CreatedAt: models.NewTimestamp(s.now()),
	}
	if err := s.commit(username, prev); err != nil {
		return "", err
	}

	logger.Info("Created chat", zap.String("username", username), zap.String("chat_id", chatID))
	return chatID, nil
}

// ListChats returns a copy of the user's chats; empty for unknown users
func (s *UserStore) ListChats(username string) map[string]models.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return map[string]models.Chat{}
	}
	return models.CloneChats(u.Chats)
}

// GetChat returns one chat
func (s *UserStore) GetChat(username, chatID string) (models.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return models.Chat{}, false
	}
	chat, ok := u.Chats[chatID]
	if !ok {
		return models.Chat{}, false
	}
	return models.CloneChats(map[string]models.Chat{chatID: chat})[chatID], true
}

// BindThread links a chat to an upstream conversation
func (s *UserStore) BindThread(username, chatID, threadID string) error {
	return s.updateChat(username, chatID, func(c *models.Chat) {
		c.ThreadID = &threadID
	})
}

// RecordMessage stamps the chat's last activity and bumps its message count
func (s *UserStore) RecordMessage(username, chatID string) error {
	now := models.TimestampPtr(s.now())
	return s.updateChat(username, chatID, func(c *models.Chat) {
		c.LastMessageAt = now
		c.MessageCount++
	})
}

// RenameChat reports whether the chat existed
func (s *UserStore) RenameChat(username, chatID, title string) (bool, error) {
	err := s.updateChat(username, chatID, func(c *models.Chat) {
		c.Title = title
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteChat removes the chat and reports whether it existed
func (s *UserStore) DeleteChat(username, chatID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return false, nil
	}
	if _, ok := u.Chats[chatID]; !ok {
		return false, nil
	}

	prev := u.Clone()
	delete(u.Chats, chatID)
	if err := s.commit(username, prev); err != nil {
		return false, err
	}

	logger.Info("Deleted chat", zap.String("username", username), zap.String("chat_id", chatID))
	return true, nil
}

func (s *UserStore) updateChat(username, chatID string, fn func(*models.Chat)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return ErrNotFound
	}
	chat, ok := u.Chats[chatID]
	if !ok {
		return ErrNotFound
	}

	prev := u.Clone()
	fn(&chat)
	u.Chats[chatID] = chat
	return s.commit(username, prev)
}
