// ABOUTME: Thread-safe conversation directory sorted by recency, with unread tracking.
// ABOUTME: All mutation goes through typed methods; callers never touch the maps directly.

package roster

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/2389/coven-console/internal/clock"
	"github.com/2389/coven-console/internal/domain"
)

// isNewWindow is how long a conversation keeps its "new" badge after
// creation.
const isNewWindow = 10 * time.Second

// Store holds the conversation roster and the unread set. A conversation
// is never unread while it is the open conversation; that guard lives
// here rather than in every caller.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
	unread        map[string]struct{}
	open          string

	clock  clock.Clock
	logger *slog.Logger
}

// New creates an empty roster store.
func New(clk clock.Clock, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		conversations: make(map[string]*domain.Conversation),
		unread:        make(map[string]struct{}),
		clock:         clk,
		logger:        logger.With("component", "roster"),
	}
}

// SetOpen switches the open conversation. The newly open conversation is
// always removed from the unread set.
func (s *Store) SetOpen(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = userID
	if userID != "" {
		delete(s.unread, userID)
	}
}

// Open returns the currently open conversation, or "" when none is open.
func (s *Store) Open() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// UpsertFromMessage creates a conversation for userID if absent, or bumps
// recency and preview on an existing one. Returns true when a new entry
// was created, so the caller can fire a new-user notification.
func (s *Store) UpsertFromMessage(userID, displayName, preview string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.conversations[userID]; ok {
		if at.After(conv.LastActive) {
			conv.LastActive = at
		}
		conv.LastPreview = preview
		if displayName != "" {
			conv.DisplayName = displayName
		}
		return false
	}

	s.createLocked(&domain.Conversation{
		UserID:      userID,
		DisplayName: displayName,
		AIEnabled:   true,
		LastActive:  at,
		LastPreview: preview,
		IsNew:       true,
	})
	s.logger.Info("conversation created from message", "user_id", userID)
	return true
}

// AddUser creates a conversation from a join announcement. Redelivered
// announcements for a known user only patch the profile. Returns true
// when a new entry was created.
func (s *Store) AddUser(userID, displayName, pictureURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.conversations[userID]; ok {
		if displayName != "" {
			conv.DisplayName = displayName
		}
		if pictureURL != "" {
			conv.PictureURL = pictureURL
		}
		return false
	}

	s.createLocked(&domain.Conversation{
		UserID:      userID,
		DisplayName: displayName,
		PictureURL:  pictureURL,
		AIEnabled:   true,
		LastActive:  s.clock.Now(),
		IsNew:       true,
	})
	s.logger.Info("conversation created from join", "user_id", userID)
	return true
}

// createLocked inserts a conversation and schedules the isNew expiry.
// Must be called with mu held.
func (s *Store) createLocked(conv *domain.Conversation) {
	s.conversations[conv.UserID] = conv
	userID := conv.UserID
	s.clock.AfterFunc(isNewWindow, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.conversations[userID]; ok {
			c.IsNew = false
		}
	})
}

// Seed loads conversations fetched from the backend at startup. Existing
// entries win over seeded ones, and seeding never fires isNew timers or
// notifications.
func (s *Store) Seed(convs []domain.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conv := range convs {
		if _, ok := s.conversations[conv.UserID]; ok {
			continue
		}
		c := conv
		c.IsNew = false
		s.conversations[c.UserID] = &c
	}
}

// ApplyProfileUpdate patches displayName and/or pictureUrl without
// touching recency ordering. Unknown users are ignored.
func (s *Store) ApplyProfileUpdate(userID string, displayName, pictureURL *string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[userID]
	if !ok {
		return false
	}
	if displayName != nil {
		conv.DisplayName = *displayName
	}
	if pictureURL != nil {
		conv.PictureURL = *pictureURL
	}
	return true
}

// SetAIEnabled flips the per-conversation agent toggle.
func (s *Store) SetAIEnabled(userID string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[userID]
	if !ok {
		return false
	}
	conv.AIEnabled = enabled
	return true
}

// Get returns a copy of one conversation.
func (s *Store) Get(userID string) (domain.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[userID]
	if !ok {
		return domain.Conversation{}, false
	}
	return *conv, true
}

// Known reports whether a conversation exists for userID.
func (s *Store) Known(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.conversations[userID]
	return ok
}

// List returns copies of all conversations, most recently active first.
func (s *Store) List() []domain.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(s.conversations)
}

// Search filters conversations by a case-insensitive match against
// display name or user id. It never mutates the roster.
func (s *Store) Search(query string) []domain.Conversation {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return s.List()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make(map[string]*domain.Conversation)
	for id, conv := range s.conversations {
		if strings.Contains(strings.ToLower(conv.DisplayName), query) ||
			strings.Contains(strings.ToLower(conv.UserID), query) {
			matched[id] = conv
		}
	}
	return s.sortedLocked(matched)
}

// sortedLocked copies and sorts conversations by recency. Must be called
// with mu held (read or write).
func (s *Store) sortedLocked(src map[string]*domain.Conversation) []domain.Conversation {
	out := make([]domain.Conversation, 0, len(src))
	for _, conv := range src {
		out = append(out, *conv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActive.Equal(out[j].LastActive) {
			return out[i].LastActive.After(out[j].LastActive)
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// MarkUnread flags a conversation as having unseen messages. Refused for
// the open conversation.
func (s *Store) MarkUnread(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userID == s.open {
		return false
	}
	s.unread[userID] = struct{}{}
	return true
}

// MarkRead clears the unread flag.
func (s *Store) MarkRead(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unread, userID)
}

// HasUnread reports whether a conversation has unseen messages.
func (s *Store) HasUnread(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.unread[userID]
	return ok
}

// Unread returns the unread conversation ids, sorted for stable output.
func (s *Store) Unread() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.unread))
	for id := range s.unread {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of tracked conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
