// ABOUTME: Admin-typing coordinator: mutual exclusion between operator input and agent work.
// ABOUTME: Focus pauses the agent locally and starts the elapsed counter; blur releases both.

package engine

import "github.com/2389/coven-console/internal/domain"

// Focus marks the operator as typing in the open conversation: announces
// it over the push channel, starts the elapsed counter, and locally
// pauses the agent for that conversation.
func (e *Engine) Focus() error {
	e.mu.Lock()
	open := e.roster.Open()
	if open == "" {
		e.mu.Unlock()
		return ErrNoOpenConversation
	}
	if e.typing.visible {
		e.mu.Unlock()
		return nil
	}

	e.typing.visible = true
	e.typing.elapsed = 0
	e.typing.epoch++
	e.scheduleTypingTickLocked(e.typing.epoch)

	// Pause preserves any message id already recorded for this
	// conversation's processing cycle.
	e.activity.Pause(open, domain.PauseReasonAdminTyping, nil, e.clock.Now())
	adminID := e.adminID
	e.mu.Unlock()

	go func() {
		if err := e.emitter.TypingStart(open, adminID); err != nil {
			e.logger.Warn("typing start emission failed", "user_id", open, "error", err)
		}
	}()

	e.notifyChanged()
	return nil
}

// Blur ends the operator's typing: announces the stop, discards the
// counter, and lifts the local pause if it is still ours.
func (e *Engine) Blur() {
	e.mu.Lock()
	stopped := e.blurLocked()
	e.mu.Unlock()

	if stopped {
		e.notifyChanged()
	}
}

// blurLocked runs the blur sequence. Returns false when the operator was
// not typing (the stop emission must fire exactly once per focus).
// Must be called with mu held.
func (e *Engine) blurLocked() bool {
	if !e.typing.visible {
		return false
	}

	open := e.roster.Open()
	adminID := e.adminID
	e.releaseTypingLocked()

	// Only lift a pause this console created. A pause the backend issued
	// for its own reasons stays.
	if open != "" {
		e.activity.ClearIfPausedForTyping(open)
	}

	go func() {
		if err := e.emitter.TypingStop(open, adminID); err != nil {
			e.logger.Warn("typing stop emission failed", "user_id", open, "error", err)
		}
	}()
	return true
}

// releaseTypingLocked discards the typing timer and resets the
// indicator without emitting anything or touching the activity map.
// Used by blur (which adds those steps) and by conversation switching
// (which deliberately does not). Must be called with mu held.
func (e *Engine) releaseTypingLocked() {
	if e.typing.timer != nil {
		e.typing.timer.Stop()
		e.typing.timer = nil
	}
	e.typing.epoch++
	e.typing.visible = false
	e.typing.elapsed = 0
}

// scheduleTypingTickLocked arms the next 1-second tick. The epoch check
// makes a tick that raced with blur or a conversation switch a no-op.
// Must be called with mu held.
func (e *Engine) scheduleTypingTickLocked(epoch int) {
	e.typing.timer = e.clock.AfterFunc(typingTick, func() {
		e.mu.Lock()
		if e.typing.epoch != epoch || !e.typing.visible {
			e.mu.Unlock()
			return
		}
		e.typing.elapsed++
		e.scheduleTypingTickLocked(epoch)
		e.mu.Unlock()
		e.notifyChanged()
	})
}
