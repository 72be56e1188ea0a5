// ABOUTME: Optimistic operator send: local insert, backend call, reconcile or roll back.
// ABOUTME: Reconciliation matches by temporary id, so duplicate text cannot cross wires.

package engine

import (
	"context"
	"strings"
)

// Send inserts the message optimistically, releases the typing pause,
// and fires the backend call. On success the temporary id is replaced by
// the server-assigned one; on failure the message is rolled back and the
// draft restored. The caller should disable only its send control while
// Sending() reports true.
func (e *Engine) Send(content string) error {
	trimmed := strings.TrimSpace(content)

	e.mu.Lock()
	open := e.roster.Open()
	switch {
	case open == "":
		e.mu.Unlock()
		return ErrNoOpenConversation
	case trimmed == "":
		e.mu.Unlock()
		return ErrEmptyMessage
	case e.sending:
		e.mu.Unlock()
		return ErrAlreadySending
	}

	tempID := e.timeline.BeginSend(open, trimmed, e.clock.Now())
	e.draft = ""
	e.sending = true

	// Typing and sending are exclusive: stop the typing signal before
	// the message goes out.
	e.blurLocked()
	e.mu.Unlock()
	e.notifyChanged()

	go e.completeSend(open, tempID, trimmed)
	return nil
}

// completeSend runs the backend call and reconciles under the lock.
func (e *Engine) completeSend(userID, tempID, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	result, err := e.backend.SendMessage(ctx, userID, content)

	e.mu.Lock()
	e.sending = false

	if err != nil {
		e.metrics.CommandFailures.WithLabelValues("send").Inc()
		if restored, ok := e.timeline.AbortSend(userID, tempID); ok {
			e.draft = restored
		}
		if e.roster.Open() == userID {
			e.setStatusLocked("Send failed: "+err.Error(), statusTTL)
		}
		e.mu.Unlock()
		e.logger.Warn("send failed", "user_id", userID, "error", err)
		e.notifyChanged()
		return
	}

	e.timeline.ResolveSend(userID, tempID, result.MessageID, result.Timestamp)
	e.mu.Unlock()

	e.logger.Debug("send reconciled",
		"user_id", userID,
		"message_id", result.MessageID)
	e.notifyChanged()
}
