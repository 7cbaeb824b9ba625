package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docchat-service/metrics"

	"github.com/sethvargo/go-retry"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

const (
	runStatusCompleted = "completed"

	defaultBaseURL      = "https://api.openai.com/v1"
	defaultPollInterval = time.Second
	defaultRunTimeout   = 60 * time.Second
)

var errRunPending = errors.New("run still in progress")

// Options configures Client
type Options struct {
	BaseURL      string
	APIKey       string
	AssistantID  string
	PollInterval time.Duration
	RunTimeout   time.Duration
	HTTPClient   *http.Client
}

// Client calls the OpenAI Assistants API: a thread per conversation and a run per message
type Client struct {
	http         *http.Client
	baseURL      string
	apiKey       string
	assistantID  string
	pollInterval time.Duration
	runTimeout   time.Duration
}

// NewClient fills unset options with defaults
func NewClient(opts Options) *Client {
	c := &Client{
		http:         opts.HTTPClient,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		apiKey:       opts.APIKey,
		assistantID:  opts.AssistantID,
		pollInterval: opts.PollInterval,
		runTimeout:   opts.RunTimeout,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.runTimeout <= 0 {
		c.runTimeout = defaultRunTimeout
	}
	return c
}

type idResponse struct {
	ID string `json:"id"`
}

type runResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

type messageList struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text *struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// CreateConversation creates an empty thread and returns its id
func (c *Client) CreateConversation(ctx context.Context) (string, error) {
	start := time.Now()
	var thread idResponse
	err := c.do(ctx, http.MethodPost, "/threads", map[string]any{}, &thread)
	if err == nil && thread.ID == "" {
		err = fmt.Errorf("%w: thread response without id", ErrUpstream)
	}
	metrics.ObserveUpstream("create_thread", start, err)
	if err != nil {
		logger.Error("Error creating thread", zap.Error(err))
		return "", err
	}

	logger.Info("Created thread", zap.String("thread_id", thread.ID))
	return thread.ID, nil
}

// SendMessage posts text to the thread, runs the assistant and returns its reply
func (c *Client) SendMessage(ctx context.Context, threadID, text string) string {
	start := time.Now()
	reply, err := c.send(ctx, threadID, text)
	metrics.ObserveUpstream("send_message", start, err)
	if err != nil {
		logger.Error("Error sending message", zap.String("thread_id", threadID), zap.Error(err))
		return ErrorReply
	}
	return reply
}

func (c *Client) send(ctx context.Context, threadID, text string) (string, error) {
	thread := "/threads/" + url.PathEscape(threadID)

	if err := c.do(ctx, http.MethodPost, thread+"/messages", map[string]string{
		"role":    "user",
		"content": text,
	}, nil); err != nil {
		return "", err
	}

	var run runResponse
	if err := c.do(ctx, http.MethodPost, thread+"/runs", map[string]string{
		"assistant_id": c.assistantID,
	}, &run); err != nil {
		return "", err
	}

	run, err := c.waitForRun(ctx, threadID, run)
	if err != nil {
		return "", err
	}
	if run.Status != runStatusCompleted {
		detail := ""
		if run.LastError != nil {
			detail = run.LastError.Code + ": " + run.LastError.Message
		}
		return "", fmt.Errorf("%w: run %s ended with status %s %s", ErrUpstream, run.ID, run.Status, detail)
	}

	var messages messageList
	query := url.Values{"order": {"desc"}, "limit": {"20"}, "run_id": {run.ID}}
	if err := c.do(ctx, http.MethodGet, thread+"/messages?"+query.Encode(), nil, &messages); err != nil {
		return "", err
	}
	return replyFrom(messages), nil
}

// waitForRun polls until the run leaves the queued/in-progress states
func (c *Client) waitForRun(ctx context.Context, threadID string, run runResponse) (runResponse, error) {
	if !pending(run.Status) {
		return run, nil
	}

	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(run.ID)
	backoff := retry.WithMaxDuration(c.runTimeout, retry.NewConstant(c.pollInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var current runResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &current); err != nil {
			return err
		}
		run = current
		if pending(run.Status) {
			return retry.RetryableError(errRunPending)
		}
		return nil
	})
	if errors.Is(err, errRunPending) {
		return run, fmt.Errorf("%w: run %s timed out in status %s", ErrUpstream, run.ID, run.Status)
	}
	return run, err
}

func pending(status string) bool {
	switch status {
	case "queued", "in_progress", "cancelling":
		return true
	}
	return false
}

// replyFrom takes the newest assistant message and maps unusable text to OutOfContextReply
func replyFrom(messages messageList) string {
	var reply strings.Builder
	for _, m := range messages.Data {
		if m.Role != "assistant" {
			continue
		}
		for _, part := range m.Content {
			if part.Type == "text" && part.Text != nil {
				reply.WriteString(part.Text.Value)
			}
		}
		break
	}

	text := strings.TrimSpace(reply.String())
	if text == "" || strings.Contains(strings.ToLower(text), "out of context") {
		return OutOfContextReply
	}
	return text
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUpstream, method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", ErrUpstream, path, err)
	}
	return nil
}
