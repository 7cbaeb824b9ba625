package assistant

import (
	"context"
	"fmt"
	"sync"
)

// EchoService is an in-process Service for local runs without an API key.
// Reply defaults to echoing the question; CreateErr makes CreateConversation fail.
type EchoService struct {
	mu       sync.Mutex
	seq      int
	threads  map[string][]string
	Reply    func(text string) string
	CreateErr error
}

// NewEchoService returns an empty EchoService
func NewEchoService() *EchoService {
	return &EchoService{threads: make(map[string][]string)}
}

func (e *EchoService) CreateConversation(_ context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.CreateErr != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, e.CreateErr)
	}
	e.seq++
	id := fmt.Sprintf("thread_echo_%d", e.seq)
	e.threads[id] = nil
	return id, nil
}

func (e *EchoService) SendMessage(_ context.Context, threadID, text string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.threads[threadID]; !ok {
		return ErrorReply
	}
	e.threads[threadID] = append(e.threads[threadID], text)
	if e.Reply != nil {
		return e.Reply(text)
	}
	return "You asked: " + text
}

// Messages returns what was sent on a thread
func (e *EchoService) Messages(threadID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.threads[threadID]...)
}
