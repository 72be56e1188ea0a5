// ABOUTME: Core data model shared by roster, timeline, activity, and the engine.
// ABOUTME: These types mirror the backend payloads; nothing here touches the network.

package domain

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleModel Role = "model"
	RoleAI    Role = "ai"
)

// Conversation is one end-user's entry in the roster.
type Conversation struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	PictureURL  string    `json:"pictureUrl"`
	AIEnabled   bool      `json:"aiEnabled"`
	LastActive  time.Time `json:"lastActive"`
	LastPreview string    `json:"lastPreview"`
	IsNew       bool      `json:"isNew"`
}

// Message is a single timeline entry.
type Message struct {
	MessageID     string         `json:"messageId"`
	UserID        string         `json:"userId"`
	Role          Role           `json:"role"`
	Content       string         `json:"content"`
	Timestamp     time.Time      `json:"timestamp"`
	Source        string         `json:"source,omitempty"`
	SenderProfile *SenderProfile `json:"senderProfile,omitempty"`
}

// SenderProfile is optional author metadata attached to a message.
type SenderProfile struct {
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl,omitempty"`
}

// ActivityType is the agent's current processing state for one conversation.
type ActivityType string

const (
	ActivityProcessing    ActivityType = "processing"
	ActivityThinking      ActivityType = "thinking"
	ActivitySearching     ActivityType = "searching"
	ActivityPaused        ActivityType = "paused"
	ActivityPendingReview ActivityType = "pending_review"
	ActivityError         ActivityType = "error"
)

// PauseReasonAdminTyping marks a pause the console itself created when the
// operator focused the input. Only pauses carrying this reason may be
// cleared locally.
const PauseReasonAdminTyping = "admin_typing"

// Activity is one conversation's agent state. A conversation with no
// Activity entry is idle.
type Activity struct {
	Type          ActivityType `json:"type"`
	MessageID     string       `json:"messageId,omitempty"`
	ResponseID    string       `json:"responseId,omitempty"`
	Content       string       `json:"content,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	ProductsFound int          `json:"productsFound,omitempty"`
	Error         string       `json:"error,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// PendingReview is the denormalized draft-reply view for the open
// conversation. It exists so the review surface never scans the activity
// map.
type PendingReview struct {
	ResponseID string `json:"responseId"`
	MessageID  string `json:"messageId"`
	Content    string `json:"content"`
	UserID     string `json:"userId"`
}

// AdminTypingInfo is the local operator's own typing indicator. It is
// never derived from the push channel.
type AdminTypingInfo struct {
	Visible        bool `json:"visible"`
	ElapsedSeconds int  `json:"elapsedSeconds"`
}
