// ABOUTME: Typed payloads for every inbound push event, forming a closed tagged union.
// ABOUTME: Optional wire fields are pointers so a missing value is distinguishable from empty.

package event

import "github.com/2389/coven-console/internal/domain"

// Event is the closed union of push events. Every payload struct embeds
// the marker method so the engine's dispatch switch is exhaustive over a
// known set.
type Event interface {
	// User returns the conversation the event belongs to.
	User() string

	isEvent()
}

// NewMessage carries a full message for an existing or new conversation.
type NewMessage struct {
	UserID  string         `json:"userId"`
	Message domain.Message `json:"message"`
}

// AdminNewUserMessage announces a message from a user the console may not
// know yet, with just enough profile data to create a roster entry.
type AdminNewUserMessage struct {
	UserID         string `json:"userId"`
	DisplayName    string `json:"displayName"`
	MessageContent string `json:"messageContent"`
	MessageID      string `json:"messageId"`
}

// NewUserJoined announces a brand-new end user.
type NewUserJoined struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl"`
}

// UserProfileUpdate patches profile fields on an existing conversation.
type UserProfileUpdate struct {
	UserID      string  `json:"userId"`
	DisplayName *string `json:"displayName,omitempty"`
	PictureURL  *string `json:"pictureUrl,omitempty"`
}

// UnreadStatusUpdate sets or clears the unread flag for a conversation.
type UnreadStatusUpdate struct {
	UserID    string `json:"userId"`
	HasUnread bool   `json:"hasUnread"`
}

// ProcessingStarted reports the agent picked up a user message.
type ProcessingStarted struct {
	UserID    string `json:"userId"`
	MessageID string `json:"messageId"`
	Message   string `json:"message,omitempty"`
}

// Thinking reports the agent is reasoning about a reply.
type Thinking struct {
	UserID string `json:"userId"`
}

// SearchingProducts reports the agent is querying the catalog.
type SearchingProducts struct {
	UserID        string `json:"userId"`
	ProductsFound int    `json:"productsFound"`
}

// ProcessingPaused reports the agent suspended work, e.g. because an
// operator is typing.
type ProcessingPaused struct {
	UserID    string  `json:"userId"`
	Reason    string  `json:"reason"`
	MessageID *string `json:"messageId,omitempty"`
}

// ProcessingResumed reports the agent picked work back up.
type ProcessingResumed struct {
	UserID    string  `json:"userId"`
	MessageID *string `json:"messageId,omitempty"`
}

// ResponsePendingReview carries a drafted reply awaiting operator review.
type ResponsePendingReview struct {
	UserID     string `json:"userId"`
	ResponseID string `json:"responseId"`
	Response   string `json:"response"`
	MessageID  string `json:"messageId"`
}

// ResolveOutcome distinguishes the terminal events that clear a pending
// response. They share a payload shape and differ only in wording.
type ResolveOutcome string

const (
	OutcomeSent            ResolveOutcome = "sent"
	OutcomeApproved        ResolveOutcome = "approved"
	OutcomeApprovedAndSent ResolveOutcome = "approved_and_sent"
	OutcomeRejected        ResolveOutcome = "rejected"
)

// ResponseResolved reports that a drafted reply reached a terminal state.
type ResponseResolved struct {
	UserID     string         `json:"userId"`
	ResponseID string         `json:"responseId"`
	Outcome    ResolveOutcome `json:"-"`
}

// ProcessingError reports the agent failed while handling a message.
type ProcessingError struct {
	UserID    string  `json:"userId"`
	MessageID *string `json:"messageId,omitempty"`
	Error     string  `json:"error"`
}

// ProcessingCancelled reports processing was aborted, usually by an
// operator.
type ProcessingCancelled struct {
	UserID    string `json:"userId"`
	MessageID string `json:"messageId"`
}

// AdminTypingStatus reports another operator's typing state on a
// conversation. The console ignores its own echoes by adminId.
type AdminTypingStatus struct {
	UserID   string `json:"userId"`
	AdminID  string `json:"adminId"`
	IsTyping bool   `json:"isTyping"`
}

func (e *NewMessage) User() string            { return e.UserID }
func (e *AdminNewUserMessage) User() string   { return e.UserID }
func (e *NewUserJoined) User() string         { return e.UserID }
func (e *UserProfileUpdate) User() string     { return e.UserID }
func (e *UnreadStatusUpdate) User() string    { return e.UserID }
func (e *ProcessingStarted) User() string     { return e.UserID }
func (e *Thinking) User() string              { return e.UserID }
func (e *SearchingProducts) User() string     { return e.UserID }
func (e *ProcessingPaused) User() string      { return e.UserID }
func (e *ProcessingResumed) User() string     { return e.UserID }
func (e *ResponsePendingReview) User() string { return e.UserID }
func (e *ResponseResolved) User() string      { return e.UserID }
func (e *ProcessingError) User() string       { return e.UserID }
func (e *ProcessingCancelled) User() string   { return e.UserID }
func (e *AdminTypingStatus) User() string     { return e.UserID }

func (*NewMessage) isEvent()            {}
func (*AdminNewUserMessage) isEvent()   {}
func (*NewUserJoined) isEvent()         {}
func (*UserProfileUpdate) isEvent()     {}
func (*UnreadStatusUpdate) isEvent()    {}
func (*ProcessingStarted) isEvent()     {}
func (*Thinking) isEvent()              {}
func (*SearchingProducts) isEvent()     {}
func (*ProcessingPaused) isEvent()      {}
func (*ProcessingResumed) isEvent()     {}
func (*ResponsePendingReview) isEvent() {}
func (*ResponseResolved) isEvent()      {}
func (*ProcessingError) isEvent()       {}
func (*ProcessingCancelled) isEvent()   {}
func (*AdminTypingStatus) isEvent()     {}
