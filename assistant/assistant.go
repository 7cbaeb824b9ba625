// Package assistant talks to the hosted document Q&A assistant.
package assistant

import (
	"context"
	"errors"
)

// Fixed replies returned instead of upstream output
const (
	OutOfContextReply = "Out of context. Please ask based on the uploaded documents."
	ErrorReply        = "Sorry, I encountered an error processing your request."
)

// ErrUpstream wraps every failure of the hosted service
var ErrUpstream = errors.New("assistant upstream error")

// Service is a document Q&A conversation provider.
// SendMessage never fails: it degrades to ErrorReply or OutOfContextReply.
type Service interface {
	CreateConversation(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, threadID, text string) string
}
