// Package events publishes user activity to a message queue.
// Publishing is best effort: callers log failures and carry on.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

const (
	TypeUserRegistered = "user.registered"
	TypeUserLoggedIn   = "user.logged_in"
	TypeUserLoggedOut  = "user.logged_out"
	TypeChatCreated    = "chat.created"
	TypeChatDeleted    = "chat.deleted"
	TypeMessageSent    = "chat.message_sent"
)

// Event is the JSON body of a published message
type Event struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Username string    `json:"username"`
	ChatID   string    `json:"chat_id,omitempty"`
	At       time.Time `json:"at"`
}

// New stamps an event with a fresh id and the current UTC time
func New(eventType, username, chatID string) Event {
	return Event{
		ID:       uuid.NewString(),
		Type:     eventType,
		Username: username,
		ChatID:   chatID,
		At:       time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event. Used when AMQP_URL is not set.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }

// Emit publishes e and logs a failure instead of returning it
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		logger.Error("Error publishing event",
			zap.String("event_type", e.Type),
			zap.String("event_id", e.ID),
			zap.Error(err))
	}
}
