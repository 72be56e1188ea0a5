// ABOUTME: Ordered, deduplicated message logs keyed by conversation.
// ABOUTME: Convergent under redelivery: a message id is appended at most once per timeline.

package timeline

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-console/internal/domain"
)

// PendingSend tracks one optimistic operator message from local insert
// until the backend assigns its real id. ServerID stays empty until the
// send resolves.
type PendingSend struct {
	TempID   string
	ServerID string
	Content  string
}

// conversationLog is one conversation's message history plus its send
// bookkeeping.
type conversationLog struct {
	messages []domain.Message
	seen     map[string]struct{}
	pending  map[string]*PendingSend
}

// Store holds all conversation timelines.
type Store struct {
	mu     sync.RWMutex
	logs   map[string]*conversationLog
	logger *slog.Logger
}

// New creates an empty timeline store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logs:   make(map[string]*conversationLog),
		logger: logger.With("component", "timeline"),
	}
}

// logFor returns the log for a conversation, creating it if needed.
// Must be called with mu held.
func (s *Store) logFor(userID string) *conversationLog {
	l, ok := s.logs[userID]
	if !ok {
		l = &conversationLog{
			seen:    make(map[string]struct{}),
			pending: make(map[string]*PendingSend),
		}
		s.logs[userID] = l
	}
	return l
}

// Append adds a message to its conversation's timeline. Returns false if
// the message id was already present (redelivered event).
func (s *Store) Append(msg domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.logFor(msg.UserID)
	if _, dup := l.seen[msg.MessageID]; dup {
		s.logger.Debug("duplicate message dropped",
			"user_id", msg.UserID,
			"message_id", msg.MessageID)
		return false
	}
	l.seen[msg.MessageID] = struct{}{}
	l.messages = append(l.messages, msg)
	return true
}

// Merge folds loaded history into a timeline through the same dedupe path
// as live events, then restores timestamp order. Returns how many
// messages were actually added.
func (s *Store) Merge(userID string, history []domain.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.logFor(userID)
	added := 0
	for _, msg := range history {
		if _, dup := l.seen[msg.MessageID]; dup {
			continue
		}
		l.seen[msg.MessageID] = struct{}{}
		l.messages = append(l.messages, msg)
		added++
	}
	if added > 0 {
		sort.SliceStable(l.messages, func(i, j int) bool {
			return l.messages[i].Timestamp.Before(l.messages[j].Timestamp)
		})
	}
	return added
}

// Messages returns a copy of one conversation's timeline.
func (s *Store) Messages(userID string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.logs[userID]
	if !ok {
		return nil
	}
	out := make([]domain.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// BeginSend appends an optimistic admin message with a generated
// temporary id and records the pending send. Returns the temporary id
// used for later reconciliation.
func (s *Store) BeginSend(userID, content string, at time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tempID := "tmp-" + uuid.New().String()
	l := s.logFor(userID)
	l.seen[tempID] = struct{}{}
	l.messages = append(l.messages, domain.Message{
		MessageID: tempID,
		UserID:    userID,
		Role:      domain.RoleAdmin,
		Content:   content,
		Timestamp: at,
		Source:    "admin_console",
	})
	l.pending[tempID] = &PendingSend{TempID: tempID, Content: content}
	return tempID
}

// ResolveSend replaces a pending send's temporary id with the
// server-assigned id and timestamp. Matching is by temporary id, never by
// content, so duplicate text stays unambiguous. If the server id already
// arrived through the push channel, the optimistic entry is dropped
// instead of duplicated.
func (s *Store) ResolveSend(userID, tempID, serverID string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logs[userID]
	if !ok {
		return false
	}
	p, ok := l.pending[tempID]
	if !ok {
		return false
	}
	p.ServerID = serverID
	delete(l.pending, tempID)
	delete(l.seen, tempID)

	if _, exists := l.seen[serverID]; exists {
		// The push channel already delivered the real message.
		s.removeLocked(l, tempID)
		return true
	}

	l.seen[serverID] = struct{}{}
	for i := range l.messages {
		if l.messages[i].MessageID == tempID {
			l.messages[i].MessageID = serverID
			if !at.IsZero() {
				l.messages[i].Timestamp = at
			}
			break
		}
	}
	return true
}

// AbortSend rolls back an optimistic message after a failed backend call.
// Returns the original content so the caller can restore the input field.
func (s *Store) AbortSend(userID, tempID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logs[userID]
	if !ok {
		return "", false
	}
	p, ok := l.pending[tempID]
	if !ok {
		return "", false
	}
	delete(l.pending, tempID)
	delete(l.seen, tempID)
	s.removeLocked(l, tempID)
	return p.Content, true
}

// removeLocked deletes a message by id from the ordered slice. Must be
// called with mu held.
func (s *Store) removeLocked(l *conversationLog, messageID string) {
	for i := range l.messages {
		if l.messages[i].MessageID == messageID {
			l.messages = append(l.messages[:i], l.messages[i+1:]...)
			return
		}
	}
}

// LastUserMessageID returns the id of the most recent role=user message
// in a conversation, used as the cancel-target fallback.
func (s *Store) LastUserMessageID(userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.logs[userID]
	if !ok {
		return "", false
	}
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].Role == domain.RoleUser {
			return l.messages[i].MessageID, true
		}
	}
	return "", false
}

// Contains reports whether a message id is present in a timeline.
func (s *Store) Contains(userID, messageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.logs[userID]
	if !ok {
		return false
	}
	_, ok = l.seen[messageID]
	return ok
}
