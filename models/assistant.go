package models

// ChatMessageRequest represents the POST /api/chat request body
// ThreadID is optional; the chat's stored thread is used when omitted
type ChatMessageRequest struct {
	Message  string `json:"message"`
	ChatID   string `json:"chat_id"`
	ThreadID string `json:"thread_id,omitempty"`
}

// ChatMessageResponse carries the assistant reply and the thread it was sent on
type ChatMessageResponse struct {
	Reply    string `json:"reply"`
	ThreadID string `json:"thread_id"`
}

// ThreadRequest for POST /api/thread; ChatID binds the new thread to an existing chat
type ThreadRequest struct {
	ChatID string `json:"chat_id,omitempty"`
}

// ThreadResponse for POST /api/thread
type ThreadResponse struct {
	ThreadID string `json:"thread_id"`
}

// HealthResponse for GET /health
type HealthResponse struct {
	Status                string  `json:"status"`
	Service               string  `json:"service"`
	AssistantConfigured   bool    `json:"assistant_configured"`
	VectorStoreConfigured bool    `json:"vector_store_configured"`
	SetupRequired         bool    `json:"setup_required"`
	SetupCommand          *string `json:"setup_command"`
}

// Note: the assistant itself is managed upstream; ASSISTANT_ID and VECTOR_STORE_ID only
// identify it. Replies degrade to fixed strings instead of surfacing upstream errors.
