package models

import (
	"sort"
	"time"
)

// DefaultChatTitle is used when a chat is created without a title
const DefaultChatTitle = "New Chat"

// Chat is a conversation owned by one user
// ThreadID links it to the upstream assistant conversation once the first message is sent
type Chat struct {
	ChatID        string     `json:"chat_id"`
	Title         string     `json:"title"`
	ThreadID      *string    `json:"thread_id"`
	CreatedAt     Timestamp  `json:"created_at"`
	LastMessageAt *Timestamp `json:"last_message_at"`
	MessageCount  int        `json:"message_count"`
}

// activity is the sort key for chat listings
func (c Chat) activity() time.Time {
	if c.LastMessageAt != nil {
		return c.LastMessageAt.Time
	}
	return c.CreatedAt.Time
}

// CloneChats deep-copies a chat mapping; nil becomes an empty map
func CloneChats(in map[string]Chat) map[string]Chat {
	out := make(map[string]Chat, len(in))
	for id, chat := range in {
		if chat.ThreadID != nil {
			t := *chat.ThreadID
			chat.ThreadID = &t
		}
		if chat.LastMessageAt != nil {
			t := *chat.LastMessageAt
			chat.LastMessageAt = &t
		}
		out[id] = chat
	}
	return out
}

// SortedChats orders chats most recently active first
// (last_message_at, falling back to created_at)
func SortedChats(chats map[string]Chat) []Chat {
	list := make([]Chat, 0, len(chats))
	for _, chat := range chats {
		list = append(list, chat)
	}
	sort.Slice(list, func(i, j int) bool {
		ai, aj := list[i].activity(), list[j].activity()
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return list[i].ChatID < list[j].ChatID
	})
	return list
}

// CreateChatRequest for POST /api/chats
type CreateChatRequest struct {
	Title string `json:"title,omitempty"`
}

// RenameChatRequest for PUT /api/chats/{chat_id}/title
type RenameChatRequest struct {
	Title string `json:"title"`
}

// ChatResponse is the API view of a chat
type ChatResponse struct {
	ChatID        string     `json:"chat_id"`
	Title         string     `json:"title"`
	ThreadID      *string    `json:"thread_id"`
	CreatedAt     Timestamp  `json:"created_at"`
	LastMessageAt *Timestamp `json:"last_message_at"`
	MessageCount  int        `json:"message_count"`
}

// NewChatResponse converts a stored chat
func NewChatResponse(c Chat) ChatResponse {
	return ChatResponse{
		ChatID:        c.ChatID,
		Title:         c.Title,
		ThreadID:      c.ThreadID,
		CreatedAt:     c.CreatedAt,
		LastMessageAt: c.LastMessageAt,
		MessageCount:  c.MessageCount,
	}
}

// ChatListResponse for GET /api/chats
type ChatListResponse struct {
	Chats []ChatResponse `json:"chats"`
}
