// ABOUTME: HTTP client for the gateway's admin command endpoints with JWT bearer auth.
// ABOUTME: JSON in, JSON out; non-2xx responses surface the backend's error message.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/2389/coven-console/internal/domain"
)

const defaultTimeout = 15 * time.Second

// Client issues REST-shaped commands against the gateway backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a command client. token may be empty for unauthenticated
// development setups. If the token looks like a JWT and is already expired,
// a warning is logged up front instead of failing on the first request.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")

	if token != "" {
		warnIfExpired(token, logger)
	}

	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

// warnIfExpired parses the bearer token without verification (the client
// holds no signing secret) just to check the exp claim.
func warnIfExpired(token string, logger *slog.Logger) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		logger.Warn("bearer token is not a parseable JWT", "error", err)
		return
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	if exp.Before(time.Now()) {
		logger.Warn("bearer token already expired", "expired_at", exp.Time)
	}
}

// SendResult is the backend's confirmation of a sent message.
type SendResult struct {
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
}

// ListConversations fetches the roster from the backend.
func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var out struct {
		Conversations []domain.Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// History fetches a conversation's message history.
func (c *Client) History(ctx context.Context, userID string, limit int) ([]domain.Message, error) {
	path := fmt.Sprintf("/api/admin/conversations/%s/messages?limit=%d", url.PathEscape(userID), limit)
	var out struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// MarkRead tells the backend the operator has seen a conversation.
func (c *Client) MarkRead(ctx context.Context, userID string) error {
	path := fmt.Sprintf("/api/admin/conversations/%s/read", url.PathEscape(userID))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// SendMessage delivers an operator-authored message and returns the
// server-assigned id and timestamp.
func (c *Client) SendMessage(ctx context.Context, userID, content string) (*SendResult, error) {
	body := map[string]string{"userId": userID, "content": content}
	var out SendResult
	if err := c.do(ctx, http.MethodPost, "/api/admin/messages", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetAIEnabled toggles the agent for one conversation.
func (c *Client) SetAIEnabled(ctx context.Context, userID string, enabled bool) error {
	path := fmt.Sprintf("/api/admin/conversations/%s/ai", url.PathEscape(userID))
	return c.do(ctx, http.MethodPut, path, map[string]bool{"enabled": enabled}, nil)
}

// ApproveResponse approves a drafted agent reply for delivery.
func (c *Client) ApproveResponse(ctx context.Context, userID, responseID string) error {
	body := map[string]string{"userId": userID, "responseId": responseID}
	return c.do(ctx, http.MethodPost, "/api/admin/responses/approve", body, nil)
}

// RejectResponse discards a drafted agent reply.
func (c *Client) RejectResponse(ctx context.Context, userID, responseID, reason string) error {
	body := map[string]string{"userId": userID, "responseId": responseID, "reason": reason}
	return c.do(ctx, http.MethodPost, "/api/admin/responses/reject", body, nil)
}

// CancelProcessing aborts the agent's work on a message.
func (c *Client) CancelProcessing(ctx context.Context, userID, messageID string) error {
	body := map[string]string{"userId": userID, "messageId": messageID}
	return c.do(ctx, http.MethodPost, "/api/admin/processing/cancel", body, nil)
}

// do runs one JSON request/response cycle.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// StatusError is a non-2xx backend response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// newStatusError extracts the backend's error message when the body is
// the usual {"error": "..."} shape.
func newStatusError(resp *http.Response) error {
	se := &StatusError{Status: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil {
		se.Message = body.Error
	}
	return se
}
