// ABOUTME: Maps typed events back to their wire names, for logs and metrics labels.

package event

// Name returns the wire name of a typed event. ResponseResolved reports
// the specific terminal event it was decoded from.
func Name(ev Event) string {
	switch e := ev.(type) {
	case *NewMessage:
		return nameNewMessage
	case *AdminNewUserMessage:
		return nameAdminNewUserMessage
	case *NewUserJoined:
		return nameNewUserJoined
	case *UserProfileUpdate:
		return nameUserProfileUpdate
	case *UnreadStatusUpdate:
		return nameUnreadStatusUpdate
	case *ProcessingStarted:
		return nameProcessingStarted
	case *Thinking:
		return nameThinking
	case *SearchingProducts:
		return nameSearchingProducts
	case *ProcessingPaused:
		return nameProcessingPaused
	case *ProcessingResumed:
		return nameProcessingResumed
	case *ResponsePendingReview:
		return nameResponsePendingReview
	case *ResponseResolved:
		switch e.Outcome {
		case OutcomeApproved:
			return nameResponseApproved
		case OutcomeApprovedAndSent:
			return nameResponseApprovedSent
		case OutcomeRejected:
			return nameResponseRejected
		default:
			return nameResponseSent
		}
	case *ProcessingError:
		return nameProcessingError
	case *ProcessingCancelled:
		return nameProcessingCancelled
	case *AdminTypingStatus:
		return nameAdminTypingStatus
	default:
		return "unknown"
	}
}
