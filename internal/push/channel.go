// ABOUTME: WebSocket push channel: a read loop feeding the engine and a concurrent-safe emitter.
// ABOUTME: Reconnection and backoff are deliberately absent; a dropped channel ends Listen.

package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/2389/coven-console/internal/event"
)

// Outbound emission names. These mirror backend actions the REST client
// also exposes; emissions are the fallback delivery path.
const (
	emitTypingStart = "admin_typing_start"
	emitTypingStop  = "admin_typing_stop"
	emitApprove     = "approve_ai_response"
	emitReject      = "reject_ai_response"
	emitCancel      = "cancel_ai_processing"
)

// Handler consumes decoded push events.
type Handler interface {
	HandleEvent(ev event.Event)
}

// Channel is one live WebSocket connection to the gateway.
type Channel struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	logger  *slog.Logger
}

// Dial opens the push channel. token, when set, is sent as a bearer
// header during the handshake.
func Dial(ctx context.Context, wsURL, token string, logger *slog.Logger) (*Channel, error) {
	if logger == nil {
		logger = slog.Default()
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing push channel (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing push channel: %w", err)
	}

	return &Channel{
		conn:   conn,
		logger: logger.With("component", "push"),
	}, nil
}

// Listen reads frames until the context is cancelled or the connection
// drops, handing each decoded event to the handler. Unknown event names
// and malformed frames are logged and skipped.
func (c *Channel) Listen(ctx context.Context, h Handler) error {
	// The watcher must not outlive this Listen call: when the read loop
	// ends on a connection error, done releases it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.conn.Close()
		case <-done:
		}
	}()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("push channel closed: %w", err)
		}

		ev, err := event.Decode(frame)
		if err != nil {
			if errors.Is(err, event.ErrUnknownEvent) {
				c.logger.Debug("skipping unknown event", "error", err)
			} else {
				c.logger.Warn("dropping malformed frame", "error", err)
			}
			continue
		}
		h.HandleEvent(ev)
	}
}

// Close tears down the connection.
func (c *Channel) Close() error {
	return c.conn.Close()
}

// emit writes one outbound envelope. Writes are serialized; gorilla
// connections allow only one concurrent writer.
func (c *Channel) emit(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(event.Envelope{Event: name, Data: data}); err != nil {
		return fmt.Errorf("emitting %s: %w", name, err)
	}
	return nil
}

// TypingStart announces this operator started typing in a conversation.
func (c *Channel) TypingStart(userID, adminID string) error {
	return c.emit(emitTypingStart, map[string]string{"userId": userID, "adminId": adminID})
}

// TypingStop announces this operator stopped typing.
func (c *Channel) TypingStop(userID, adminID string) error {
	return c.emit(emitTypingStop, map[string]string{"userId": userID, "adminId": adminID})
}

// ApproveResponse re-issues an approval over the push channel.
func (c *Channel) ApproveResponse(userID, responseID string) error {
	return c.emit(emitApprove, map[string]string{"userId": userID, "responseId": responseID})
}

// RejectResponse re-issues a rejection over the push channel.
func (c *Channel) RejectResponse(userID, responseID, reason string) error {
	return c.emit(emitReject, map[string]string{"userId": userID, "responseId": responseID, "reason": reason})
}

// CancelProcessing re-issues a cancellation over the push channel.
func (c *Channel) CancelProcessing(userID, messageID string) error {
	return c.emit(emitCancel, map[string]string{"userId": userID, "messageId": messageID})
}
