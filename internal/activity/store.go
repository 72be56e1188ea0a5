// ABOUTME: Map of conversation id to current agent activity, with typed transitions.
// ABOUTME: Transitions are last-write-wins; guarded clears protect against stale events.

package activity

import (
	"sync"
	"time"

	"github.com/2389/coven-console/internal/domain"
)

// Store holds at most one Activity per conversation. All mutation goes
// through the transition methods below; there is no way to hold a
// reference into the map.
type Store struct {
	mu      sync.RWMutex
	entries map[string]domain.Activity
}

// New creates an empty activity store.
func New() *Store {
	return &Store{entries: make(map[string]domain.Activity)}
}

// Start records that the agent picked up a message.
func (s *Store) Start(userID, messageID string, at time.Time) {
	s.set(userID, domain.Activity{
		Type:      domain.ActivityProcessing,
		MessageID: messageID,
		Timestamp: at,
	})
}

// Think marks the agent as reasoning. The message id from the current
// entry is carried over.
func (s *Store) Think(userID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = domain.Activity{
		Type:      domain.ActivityThinking,
		MessageID: s.entries[userID].MessageID,
		Timestamp: at,
	}
}

// Search marks the agent as querying the catalog.
func (s *Store) Search(userID string, productsFound int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = domain.Activity{
		Type:          domain.ActivitySearching,
		MessageID:     s.entries[userID].MessageID,
		ProductsFound: productsFound,
		Timestamp:     at,
	}
}

// Pause suspends the agent with a reason. A nil messageID preserves
// whatever message id the current entry already recorded.
func (s *Store) Pause(userID, reason string, messageID *string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgID := s.entries[userID].MessageID
	if messageID != nil {
		msgID = *messageID
	}
	s.entries[userID] = domain.Activity{
		Type:      domain.ActivityPaused,
		Reason:    reason,
		MessageID: msgID,
		Timestamp: at,
	}
}

// Resume puts the conversation back into processing. Callers decide
// whether a resume should be suppressed (see IsPausedForTyping).
func (s *Store) Resume(userID string, messageID *string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgID := s.entries[userID].MessageID
	if messageID != nil {
		msgID = *messageID
	}
	s.entries[userID] = domain.Activity{
		Type:      domain.ActivityProcessing,
		MessageID: msgID,
		Timestamp: at,
	}
}

// PendingReview records a drafted reply awaiting operator action.
func (s *Store) PendingReview(userID, responseID, messageID, content string, at time.Time) {
	s.set(userID, domain.Activity{
		Type:       domain.ActivityPendingReview,
		ResponseID: responseID,
		MessageID:  messageID,
		Content:    content,
		Timestamp:  at,
	})
}

// Fail records a processing error.
func (s *Store) Fail(userID, errMsg string, messageID *string, at time.Time) {
	var msgID string
	if messageID != nil {
		msgID = *messageID
	}
	s.set(userID, domain.Activity{
		Type:      domain.ActivityError,
		Error:     errMsg,
		MessageID: msgID,
		Timestamp: at,
	})
}

// Clear returns the conversation to idle. Returns the entry that was
// removed, if any.
func (s *Store) Clear(userID string) (domain.Activity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.entries[userID]
	if ok {
		delete(s.entries, userID)
	}
	return a, ok
}

// ClearIfPausedForTyping clears the entry only when it is still the pause
// this console created on focus. Stale clears are refused.
func (s *Store) ClearIfPausedForTyping(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.entries[userID]
	if !ok || a.Type != domain.ActivityPaused || a.Reason != domain.PauseReasonAdminTyping {
		return false
	}
	delete(s.entries, userID)
	return true
}

// ClearIfResponse clears the entry only when it is a pending review for
// the given response id. A mismatched id means a newer cycle already
// replaced the entry; the clear is refused.
func (s *Store) ClearIfResponse(userID, responseID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.entries[userID]
	if !ok || a.Type != domain.ActivityPendingReview || a.ResponseID != responseID {
		return false
	}
	delete(s.entries, userID)
	return true
}

// ClearIfWorking clears the entry only while the agent is still working
// (processing, thinking, or searching) on the given message id.
func (s *Store) ClearIfWorking(userID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.entries[userID]
	if !ok || a.MessageID != messageID {
		return false
	}
	switch a.Type {
	case domain.ActivityProcessing, domain.ActivityThinking, domain.ActivitySearching:
		delete(s.entries, userID)
		return true
	default:
		return false
	}
}

// IsPausedForTyping reports whether the conversation is paused with the
// admin-typing reason.
func (s *Store) IsPausedForTyping(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.entries[userID]
	return ok && a.Type == domain.ActivityPaused && a.Reason == domain.PauseReasonAdminTyping
}

// Get returns the current activity for a conversation. ok is false when
// the conversation is idle.
func (s *Store) Get(userID string) (domain.Activity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.entries[userID]
	return a, ok
}

// Snapshot returns a copy of the whole activity map.
func (s *Store) Snapshot() map[string]domain.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Activity, len(s.entries))
	for id, a := range s.entries {
		out[id] = a
	}
	return out
}

// Len returns how many conversations are non-idle.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) set(userID string, a domain.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = a
}
