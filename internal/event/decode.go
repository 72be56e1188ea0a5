// ABOUTME: Decodes the wire envelope {event, data} into the typed event union.
// ABOUTME: Unknown event names are reported as ErrUnknownEvent so callers can skip them.

package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Wire event names, as emitted by the gateway's push channel.
const (
	nameNewMessage            = "new_message"
	nameAdminNewUserMessage   = "admin_new_user_message"
	nameNewUserJoined         = "new_user_joined"
	nameUserProfileUpdate     = "user_profile_update"
	nameUnreadStatusUpdate    = "unread_status_update"
	nameProcessingStarted     = "ai_processing_started"
	nameThinking              = "ai_thinking"
	nameSearchingProducts     = "ai_searching_products"
	nameProcessingPaused      = "ai_processing_paused"
	nameProcessingResumed     = "ai_processing_resumed"
	nameResponsePendingReview = "ai_response_pending_review"
	nameResponseSent          = "ai_response_sent"
	nameResponseApproved      = "ai_response_approved"
	nameResponseApprovedSent  = "ai_response_approved_and_sent"
	nameResponseRejected      = "ai_response_rejected"
	nameProcessingError       = "ai_processing_error"
	nameProcessingCancelled   = "ai_processing_cancelled"
	nameAdminTypingStatus     = "admin_typing_status"
)

// ErrUnknownEvent marks an envelope whose event name the console does not
// consume. These are skipped, not treated as failures.
var ErrUnknownEvent = errors.New("unknown event name")

// Envelope is the transport frame around every push event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode parses a raw envelope frame into a typed event.
func Decode(frame []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("parsing envelope: %w", err)
	}
	return DecodePayload(env.Event, env.Data)
}

// DecodePayload parses an event payload given its wire name.
func DecodePayload(name string, data []byte) (Event, error) {
	ev, err := newForName(name)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("parsing %s payload: %w", name, err)
	}
	if ev.User() == "" {
		return nil, fmt.Errorf("%s payload missing userId", name)
	}
	return ev, nil
}

// newForName allocates the payload struct for a wire name. The four
// terminal response events share ResponseResolved, tagged by outcome.
func newForName(name string) (Event, error) {
	switch name {
	case nameNewMessage:
		return &NewMessage{}, nil
	case nameAdminNewUserMessage:
		return &AdminNewUserMessage{}, nil
	case nameNewUserJoined:
		return &NewUserJoined{}, nil
	case nameUserProfileUpdate:
		return &UserProfileUpdate{}, nil
	case nameUnreadStatusUpdate:
		return &UnreadStatusUpdate{}, nil
	case nameProcessingStarted:
		return &ProcessingStarted{}, nil
	case nameThinking:
		return &Thinking{}, nil
	case nameSearchingProducts:
		return &SearchingProducts{}, nil
	case nameProcessingPaused:
		return &ProcessingPaused{}, nil
	case nameProcessingResumed:
		return &ProcessingResumed{}, nil
	case nameResponsePendingReview:
		return &ResponsePendingReview{}, nil
	case nameResponseSent:
		return &ResponseResolved{Outcome: OutcomeSent}, nil
	case nameResponseApproved:
		return &ResponseResolved{Outcome: OutcomeApproved}, nil
	case nameResponseApprovedSent:
		return &ResponseResolved{Outcome: OutcomeApprovedAndSent}, nil
	case nameResponseRejected:
		return &ResponseResolved{Outcome: OutcomeRejected}, nil
	case nameProcessingError:
		return &ProcessingError{}, nil
	case nameProcessingCancelled:
		return &ProcessingCancelled{}, nil
	case nameAdminTypingStatus:
		return &AdminTypingStatus{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}
