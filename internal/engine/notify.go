// ABOUTME: Change-notification fan-out so UIs re-render when engine state moves.
// ABOUTME: Non-blocking: a slow subscriber coalesces notifications instead of stalling handlers.

package engine

import (
	"context"

	"github.com/google/uuid"
)

// Subscribe registers for change notifications. The returned channel
// receives a signal (capacity one, coalesced) whenever engine state
// changes. The subscription is removed when ctx is cancelled.
func (e *Engine) Subscribe(ctx context.Context) (<-chan struct{}, string) {
	subID := uuid.New().String()
	ch := make(chan struct{}, 1)

	e.subMu.Lock()
	e.subscribers[subID] = ch
	e.subMu.Unlock()

	go func() {
		<-ctx.Done()
		e.Unsubscribe(subID)
	}()

	return ch, subID
}

// Unsubscribe removes a subscription and closes its channel.
func (e *Engine) Unsubscribe(subID string) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	ch, ok := e.subscribers[subID]
	if !ok {
		return
	}
	delete(e.subscribers, subID)
	close(ch)
}

// notifyChanged signals every subscriber that state moved. A subscriber
// with a pending signal is skipped; one wake-up covers any number of
// changes.
func (e *Engine) notifyChanged() {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	for _, ch := range e.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
