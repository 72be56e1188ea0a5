// ABOUTME: Reduces inbound push events into roster, timeline, and activity state.
// ABOUTME: Handlers are idempotent; stale or mismatched events fall through as no-ops.

package engine

import (
	"context"

	"github.com/2389/coven-console/internal/domain"
	"github.com/2389/coven-console/internal/event"
)

// HandleEvent applies one push event. Events may arrive in any order and
// may be redelivered; every branch guards against both.
func (e *Engine) HandleEvent(ev event.Event) {
	e.metrics.EventsConsumed.WithLabelValues(event.Name(ev)).Inc()

	e.mu.Lock()
	e.handleLocked(ev)
	e.metrics.Conversations.Set(float64(e.roster.Len()))
	e.mu.Unlock()

	e.notifyChanged()
}

func (e *Engine) handleLocked(ev event.Event) {
	switch ev := ev.(type) {
	case *event.NewMessage:
		// The envelope's userId keys the conversation; the nested
		// message may omit its own copy or carry a conflicting one.
		msg := ev.Message
		if msg.UserID != "" && msg.UserID != ev.UserID {
			e.logger.Warn("dropping message with mismatched conversation id",
				"user_id", ev.UserID,
				"message_user_id", msg.UserID,
				"message_id", msg.MessageID)
			return
		}
		msg.UserID = ev.UserID
		e.applyIncomingLocked(msg)

	case *event.AdminNewUserMessage:
		if e.seenEvents.CheckAndMark("new-user-msg:" + ev.MessageID) {
			e.metrics.DuplicatesDropped.Inc()
			return
		}
		e.applyIncomingLocked(domain.Message{
			MessageID: ev.MessageID,
			UserID:    ev.UserID,
			Role:      domain.RoleUser,
			Content:   ev.MessageContent,
			Timestamp: e.clock.Now(),
			Source:    "push",
			SenderProfile: &domain.SenderProfile{
				DisplayName: ev.DisplayName,
			},
		})

	case *event.NewUserJoined:
		if e.roster.AddUser(ev.UserID, ev.DisplayName, ev.PictureURL) {
			e.fireNewUser(ev.UserID, ev.DisplayName)
		}

	case *event.UserProfileUpdate:
		e.roster.ApplyProfileUpdate(ev.UserID, ev.DisplayName, ev.PictureURL)

	case *event.UnreadStatusUpdate:
		if !e.roster.Known(ev.UserID) {
			return
		}
		if ev.HasUnread {
			// Refused by the roster when the conversation is open.
			e.roster.MarkUnread(ev.UserID)
		} else {
			e.roster.MarkRead(ev.UserID)
		}

	case *event.ProcessingStarted:
		if !e.roster.Known(ev.UserID) {
			return
		}
		e.activity.Start(ev.UserID, ev.MessageID, e.clock.Now())

	case *event.Thinking:
		if !e.roster.Known(ev.UserID) {
			return
		}
		e.activity.Think(ev.UserID, e.clock.Now())

	case *event.SearchingProducts:
		if !e.roster.Known(ev.UserID) {
			return
		}
		e.activity.Search(ev.UserID, ev.ProductsFound, e.clock.Now())

	case *event.ProcessingPaused:
		if !e.roster.Known(ev.UserID) {
			return
		}
		e.activity.Pause(ev.UserID, ev.Reason, ev.MessageID, e.clock.Now())

	case *event.ProcessingResumed:
		if !e.roster.Known(ev.UserID) {
			return
		}
		// While the operator is typing in this conversation, a backend
		// resume is suppressed so the local pause does not flicker away.
		if ev.UserID == e.roster.Open() && e.activity.IsPausedForTyping(ev.UserID) {
			e.logger.Debug("resume suppressed during admin typing", "user_id", ev.UserID)
			return
		}
		e.activity.Resume(ev.UserID, ev.MessageID, e.clock.Now())

	case *event.ResponsePendingReview:
		if !e.roster.Known(ev.UserID) {
			return
		}
		e.activity.PendingReview(ev.UserID, ev.ResponseID, ev.MessageID, ev.Response, e.clock.Now())
		if ev.UserID == e.roster.Open() {
			e.pendingReview = &domain.PendingReview{
				ResponseID: ev.ResponseID,
				MessageID:  ev.MessageID,
				Content:    ev.Response,
				UserID:     ev.UserID,
			}
		}

	case *event.ResponseResolved:
		if !e.roster.Known(ev.UserID) {
			return
		}
		// A pending review for a different response means this event is
		// from an older cycle; leave the newer state alone.
		if a, ok := e.activity.Get(ev.UserID); ok &&
			a.Type == domain.ActivityPendingReview && a.ResponseID != ev.ResponseID {
			e.logger.Debug("stale response resolution ignored",
				"user_id", ev.UserID,
				"response_id", ev.ResponseID)
			return
		}
		e.activity.Clear(ev.UserID)
		if e.pendingReview != nil && e.pendingReview.ResponseID == ev.ResponseID {
			e.pendingReview = nil
		}
		if ev.UserID == e.roster.Open() {
			if ev.Outcome == event.OutcomeRejected {
				e.setStatusLocked("Response rejected", statusTTL)
			} else {
				e.setStatusLocked("Response sent", statusTTL)
			}
		}

	case *event.ProcessingError:
		if !e.roster.Known(ev.UserID) {
			return
		}
		e.activity.Fail(ev.UserID, ev.Error, ev.MessageID, e.clock.Now())
		if ev.UserID == e.roster.Open() && e.pendingReview != nil && e.pendingReview.UserID == ev.UserID {
			e.pendingReview = nil
		}

	case *event.ProcessingCancelled:
		if !e.roster.Known(ev.UserID) {
			return
		}
		e.activity.Clear(ev.UserID)
		if ev.UserID == e.roster.Open() {
			e.setStatusLocked("Processing cancelled", statusTTL)
		}

	case *event.AdminTypingStatus:
		// Our own echoes never mutate local typing state.
		if ev.AdminID == e.adminID {
			return
		}
		if ev.UserID != e.roster.Open() {
			return
		}
		if ev.IsTyping {
			e.setStatusLocked("Operator "+ev.AdminID+" is typing…", 0)
			e.status.remoteTyping = ev.AdminID
		} else if e.status.remoteTyping != "" && e.status.remoteTyping == ev.AdminID {
			e.clearStatusLocked()
		}
	}
}

// applyIncomingLocked appends a message through dedupe, updates the
// roster, and maintains read state relative to the open conversation.
func (e *Engine) applyIncomingLocked(msg domain.Message) {
	if !e.timeline.Append(msg) {
		e.metrics.DuplicatesDropped.Inc()
		return
	}

	displayName := ""
	if msg.SenderProfile != nil {
		displayName = msg.SenderProfile.DisplayName
	}
	created := e.roster.UpsertFromMessage(msg.UserID, displayName, msg.Content, msg.Timestamp)
	if created {
		e.fireNewUser(msg.UserID, displayName)
	}

	if msg.UserID == e.roster.Open() {
		e.roster.MarkRead(msg.UserID)
		userID := msg.UserID
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			if err := e.backend.MarkRead(ctx, userID); err != nil {
				e.logger.Warn("auto mark-read failed", "user_id", userID, "error", err)
			}
		}()
	} else {
		e.roster.MarkUnread(msg.UserID)
	}
}

// fireNewUser invokes the new-conversation callback outside the lock.
func (e *Engine) fireNewUser(userID, displayName string) {
	if e.onNewUser == nil {
		return
	}
	go e.onNewUser(userID, displayName)
}
