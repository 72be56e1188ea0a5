// ABOUTME: Human-in-the-loop review workflow: approve, reject, and cancel commands.
// ABOUTME: Successful commands clear state after a grace delay; failures fall back to push emission.

package engine

import (
	"context"

	"github.com/2389/coven-console/internal/domain"
)

// Approve accepts the open conversation's drafted reply.
func (e *Engine) Approve() error {
	e.mu.Lock()
	pr := e.pendingReview
	if pr == nil {
		e.mu.Unlock()
		return ErrNoPendingReview
	}
	target := *pr
	e.setStatusLocked("Approving response…", 0)
	e.mu.Unlock()
	e.notifyChanged()

	go e.runReviewCommand("approve", target.UserID,
		func(ctx context.Context) error {
			return e.backend.ApproveResponse(ctx, target.UserID, target.ResponseID)
		},
		func() error {
			return e.emitter.ApproveResponse(target.UserID, target.ResponseID)
		},
		func() {
			e.clearResolvedReviewLocked(target.UserID, target.ResponseID)
		},
		"Response approved")
	return nil
}

// Reject discards the open conversation's drafted reply with a reason.
func (e *Engine) Reject(reason string) error {
	e.mu.Lock()
	pr := e.pendingReview
	if pr == nil {
		e.mu.Unlock()
		return ErrNoPendingReview
	}
	target := *pr
	e.setStatusLocked("Rejecting response…", 0)
	e.mu.Unlock()
	e.notifyChanged()

	go e.runReviewCommand("reject", target.UserID,
		func(ctx context.Context) error {
			return e.backend.RejectResponse(ctx, target.UserID, target.ResponseID, reason)
		},
		func() error {
			return e.emitter.RejectResponse(target.UserID, target.ResponseID, reason)
		},
		func() {
			e.clearResolvedReviewLocked(target.UserID, target.ResponseID)
		},
		"Response rejected")
	return nil
}

// Cancel aborts the agent's current work on the open conversation. The
// target message is the one the activity entry records while the agent
// is working; otherwise the most recent user message. With neither, the
// call fails locally and the backend is never contacted.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	open := e.roster.Open()
	if open == "" {
		e.mu.Unlock()
		return ErrNoOpenConversation
	}

	messageID, ok := e.cancelTargetLocked(open)
	if !ok {
		e.mu.Unlock()
		return ErrNoCancelTarget
	}
	e.setStatusLocked("Cancelling…", 0)
	e.mu.Unlock()
	e.notifyChanged()

	go e.runReviewCommand("cancel", open,
		func(ctx context.Context) error {
			return e.backend.CancelProcessing(ctx, open, messageID)
		},
		func() error {
			return e.emitter.CancelProcessing(open, messageID)
		},
		func() {
			e.activity.ClearIfWorking(open, messageID)
		},
		"Processing cancelled")
	return nil
}

// cancelTargetLocked resolves the message id a cancel should aim at.
// Must be called with mu held.
func (e *Engine) cancelTargetLocked(userID string) (string, bool) {
	if a, ok := e.activity.Get(userID); ok && a.MessageID != "" {
		switch a.Type {
		case domain.ActivityProcessing, domain.ActivityThinking, domain.ActivitySearching:
			return a.MessageID, true
		}
	}
	return e.timeline.LastUserMessageID(userID)
}

// runReviewCommand executes one review command: backend call, then
// either a grace-delayed guarded clear on success, or an error status
// plus a fallback push emission on failure. The grace delay keeps the
// local state up long enough for the backend's own terminal event to
// arrive first, so the view does not flicker.
func (e *Engine) runReviewCommand(name, userID string, call func(context.Context) error, fallback func() error, clear func(), doneText string) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := call(ctx); err != nil {
		e.metrics.CommandFailures.WithLabelValues(name).Inc()
		e.logger.Warn("review command failed, using fallback emission",
			"command", name,
			"user_id", userID,
			"error", err)

		// The push channel is an independent path to the same backend
		// action; re-issue the intent there.
		if emitErr := fallback(); emitErr != nil {
			e.logger.Error("fallback emission failed", "command", name, "error", emitErr)
		} else {
			e.metrics.FallbackEmissions.Inc()
		}

		e.mu.Lock()
		if e.roster.Open() == userID {
			e.setStatusLocked(name+" failed: "+err.Error()+" [Fallback]", statusTTL)
		}
		e.mu.Unlock()
		e.notifyChanged()
		return
	}

	e.clock.AfterFunc(graceDelay, func() {
		e.mu.Lock()
		clear()
		if e.roster.Open() == userID {
			e.setStatusLocked(doneText, statusTTL)
		}
		e.mu.Unlock()
		e.notifyChanged()
	})
}

// clearResolvedReviewLocked drops the pending-review view and activity
// entry, but only while they still refer to the resolved response.
// Must be called with mu held.
func (e *Engine) clearResolvedReviewLocked(userID, responseID string) {
	e.activity.ClearIfResponse(userID, responseID)
	if e.pendingReview != nil && e.pendingReview.ResponseID == responseID {
		e.pendingReview = nil
	}
}
