// ABOUTME: Tests for push-event reduction: dedupe, activity lifecycle, unread flow.
// ABOUTME: Exercises redelivery, out-of-order arrival, and stale-event guards.

package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-console/internal/domain"
	"github.com/2389/coven-console/internal/event"
)

func newMessageEvent(userID, messageID, content string, ts time.Time) *event.NewMessage {
	return &event.NewMessage{
		UserID: userID,
		Message: domain.Message{
			MessageID: messageID,
			UserID:    userID,
			Role:      domain.RoleUser,
			Content:   content,
			Timestamp: ts,
		},
	}
}

func TestHandleEvent_DuplicateMessagesConverge(t *testing.T) {
	rig := newTestRig(t)

	m1 := newMessageEvent("U1", "M1", "hello", t0)
	m2 := newMessageEvent("U1", "M2", "again", t0.Add(time.Second))

	// Redelivered and out of order.
	rig.engine.HandleEvent(m2)
	rig.engine.HandleEvent(m1)
	rig.engine.HandleEvent(m1)
	rig.engine.HandleEvent(m2)

	msgs := rig.engine.Messages("U1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "M1", msgs[0].MessageID)
	assert.Equal(t, "M2", msgs[1].MessageID)
}

func TestHandleEvent_EnvelopeUserIDKeysConversation(t *testing.T) {
	rig := newTestRig(t)

	// Wire frames routinely omit userId inside the nested message; the
	// envelope field is authoritative.
	ev, err := event.Decode([]byte(`{"event":"new_message","data":{"userId":"U1","message":{"messageId":"M1","role":"user","content":"hi"}}}`))
	require.NoError(t, err)
	rig.engine.HandleEvent(ev)

	msgs := rig.engine.Messages("U1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "M1", msgs[0].MessageID)
	assert.Equal(t, "U1", msgs[0].UserID)

	convs := rig.engine.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, "U1", convs[0].UserID, "no ghost entry under an empty id")
}

func TestHandleEvent_MismatchedMessageUserIDDropped(t *testing.T) {
	rig := newTestRig(t)
	rig.seedConversation("U1")
	rig.seedConversation("U2")

	rig.engine.HandleEvent(&event.NewMessage{
		UserID: "U1",
		Message: domain.Message{
			MessageID: "M-x",
			UserID:    "U2",
			Role:      domain.RoleUser,
			Content:   "crossed wires",
			Timestamp: t0,
		},
	})

	assert.Len(t, rig.engine.Messages("U1"), 1, "only the seed message")
	assert.Len(t, rig.engine.Messages("U2"), 1, "only the seed message")
}

func TestHandleEvent_AdminNewUserMessageIdempotent(t *testing.T) {
	var notified atomic.Int32
	rig := newTestRig(t, WithNewUserNotifier(func(userID, displayName string) {
		notified.Add(1)
	}))

	ev := &event.AdminNewUserMessage{
		UserID:         "U9",
		MessageID:      "M9",
		MessageContent: "first contact",
		DisplayName:    "Niners",
	}
	rig.engine.HandleEvent(ev)
	rig.engine.HandleEvent(ev)
	rig.engine.HandleEvent(ev)

	convs := rig.engine.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, "Niners", convs[0].DisplayName)
	assert.Len(t, rig.engine.Messages("U9"), 1)

	assert.Eventually(t, func() bool {
		return notified.Load() == 1
	}, waitFor, pollEvery, "one notification per new conversation")
}

func TestHandleEvent_IncomingMessageUnreadFlow(t *testing.T) {
	rig := newTestRig(t)
	rig.seedConversation("U1")
	rig.seedConversation("U2")
	rig.engine.Open("U1")

	// Message to the non-open conversation marks it unread.
	rig.engine.HandleEvent(newMessageEvent("U2", "M2", "ping", t0.Add(time.Second)))
	assert.Contains(t, rig.engine.Unread(), "U2")

	// Message to the open conversation never marks unread and triggers a
	// backend mark-read.
	before := rig.backend.markReadCount("U1")
	rig.engine.HandleEvent(newMessageEvent("U1", "M3", "pong", t0.Add(time.Second)))
	assert.NotContains(t, rig.engine.Unread(), "U1")
	assert.Eventually(t, func() bool {
		return rig.backend.markReadCount("U1") == before+1
	}, waitFor, pollEvery)

	// Switching to U2 clears its unread flag.
	rig.engine.Open("U2")
	assert.NotContains(t, rig.engine.Unread(), "U2")
}

func TestHandleEvent_UnreadStatusUpdate(t *testing.T) {
	rig := newTestRig(t)
	rig.seedConversation("U1")
	rig.seedConversation("U2")
	rig.engine.Open("U1")

	rig.engine.HandleEvent(&event.UnreadStatusUpdate{UserID: "U2", HasUnread: true})
	assert.Contains(t, rig.engine.Unread(), "U2")

	rig.engine.HandleEvent(&event.UnreadStatusUpdate{UserID: "U2", HasUnread: false})
	assert.NotContains(t, rig.engine.Unread(), "U2")

	// Open conversation refuses the unread flag.
	rig.engine.HandleEvent(&event.UnreadStatusUpdate{UserID: "U1", HasUnread: true})
	assert.NotContains(t, rig.engine.Unread(), "U1")

	// Unknown conversations are ignored entirely.
	rig.engine.HandleEvent(&event.UnreadStatusUpdate{UserID: "ghost", HasUnread: true})
	assert.NotContains(t, rig.engine.Unread(), "ghost")
}

func TestHandleEvent_ActivityLifecycle(t *testing.T) {
	rig := newTestRig(t)
	rig.seedConversation("U1")
	rig.engine.Open("U1")

	mid := "M1"
	rig.engine.HandleEvent(&event.ProcessingStarted{UserID: "U1", MessageID: mid})
	a, ok := rig.engine.ActivityFor("U1")
	require.True(t, ok)
	assert.Equal(t, domain.ActivityProcessing, a.Type)
	assert.Equal(t, mid, a.MessageID)

	rig.engine.HandleEvent(&event.Thinking{UserID: "U1"})
	a, _ = rig.engine.ActivityFor("U1")
	assert.Equal(t, domain.ActivityThinking, a.Type)
	assert.Equal(t, mid, a.MessageID, "message id carries across phases")

	rig.engine.HandleEvent(&event.SearchingProducts{UserID: "U1", ProductsFound: 4})
	a, _ = rig.engine.ActivityFor("U1")
	assert.Equal(t, domain.ActivitySearching, a.Type)
	assert.Equal(t, 4, a.ProductsFound)

	rig.engine.HandleEvent(&event.ResponsePendingReview{
		UserID: "U1", ResponseID: "R1", MessageID: mid, Response: "Drafted reply",
	})
	a, _ = rig.engine.ActivityFor("U1")
	assert.Equal(t, domain.ActivityPendingReview, a.Type)
	pr := rig.engine.PendingReview()
	require.NotNil(t, pr)
	assert.Equal(t, "R1", pr.ResponseID)
	assert.Equal(t, "Drafted reply", pr.Content)

	rig.engine.HandleEvent(&event.ResponseResolved{
		UserID: "U1", ResponseID: "R1", Outcome: event.OutcomeRejected,
	})
	_, ok = rig.engine.ActivityFor("U1")
	assert.False(t, ok, "terminal event clears the activity entry")
	assert.Nil(t, rig.engine.PendingReview())
	assert.Equal(t, "Response rejected", rig.engine.Status())

	rig.clock.Advance(statusTTL)
	assert.Empty(t, rig.engine.Status(), "transient status expires")
}

func TestHandleEvent_SingleActivityEntryPerConversation(t *testing.T) {
	rig := newTestRig(t)
	rig.seedConversation("U1")

	rig.engine.HandleEvent(&event.ProcessingStarted{UserID: "U1", MessageID: "M1"})
	rig.engine.HandleEvent(&event.Thinking{UserID: "U1"})
	rig.engine.HandleEvent(&event.SearchingProducts{UserID: "U1", ProductsFound: 2})

	assert.Len(t, rig.engine.ActivitySnapshot(), 1)
}

func TestHandleEvent_UnknownConversationActivityIgnored(t *testing.T) {
	rig := newTestRig(t)

	rig.engine.HandleEvent(&event.ProcessingStarted{UserID: "ghost", MessageID: "M1"})
	_, ok := rig.engine.ActivityFor("ghost")
	assert.False(t, ok)
	assert.Empty(t, rig.engine.Conversations())
}

func TestHandleEvent_ResumeSuppressedWhileAdminTyping(t *testing.T) {
	rig := newTestRig(t)
	rig.seedConversation("U1")
	rig.engine.Open("U1")

	rig.engine.HandleEvent(&event.ProcessingStarted{UserID: "U1", MessageID: "M1"})
	require.NoError(t, rig.engine.Focus())

	a, _ := rig.engine.ActivityFor("U1")
	require.Equal(t, domain.ActivityPaused, a.Type)
	require.Equal(t, domain.PauseReasonAdminTyping, a.Reason)

	rig.engine.HandleEvent(&event.ProcessingResumed{UserID: "U1"})
	a, _ = rig.engine.ActivityFor("U1")
	assert.Equal(t, domain.ActivityPaused, a.Type, "resume must not race the local typing pause")

	// After blur the same resume applies normally.
	rig.engine.Blur()
	rig.engine.HandleEvent(&event.ProcessingResumed{UserID: "U1"})
	a, _ = rig.engine.ActivityFor("U1")
	assert.Equal(t, domain.ActivityProcessing, a.Type)
}

func TestHandleEvent_ResumeAppliesToBackgroundConversation(t *testing.T) {
	rig := newTestRig(t)
	rig.seedConversation("U1")
	rig.seedConversation("U2")
	rig.engine.Open("U1")
	require.NoError(t, rig.engine.Focus())

	// U2 was paused by the backend; resume is not suppressed there.
	rig.engine.HandleEvent(&event.ProcessingPaused{UserID: "U2", Reason: "manual"})
	rig.engine.HandleEvent(&event.ProcessingResumed{UserID: "U2"})
	a, _ := rig.engine.ActivityFor("U2")
	assert.Equal(t, domain.ActivityProcessing, a.Type)
}

func TestHandleEvent_StaleResolutionIgnored(t *testing.T) {
	rig := newTestRig(t)
	rig.seedConversation("U1")
	rig.engine.Open("U1")

	rig.engine.HandleEvent(&event.ResponsePendingReview{
		UserID: "U1", ResponseID: "R2", MessageID: "M2", Response: "newer draft",
	})

	// Terminal event for a previous response cycle.
	rig.engine.HandleEvent(&event.ResponseResolved{
		UserID: "U1", ResponseID: "R1", Outcome: event.OutcomeSent,
	})

	a, ok := rig.engine.ActivityFor("U1")
	require.True(t, ok)
	assert.Equal(t, domain.ActivityPendingReview, a.Type)
	require.NotNil(t, rig.engine.PendingReview())
	assert.Equal(t, "R2", rig.engine.PendingReview().ResponseID)
}

func TestHandleEvent_ProcessingErrorDropsReviewView(t *testing.T) {
	rig := newTestRig(t)
	rig.seedConversation("U1")
	rig.engine.Open("U1")

	rig.engine.HandleEvent(&event.ResponsePendingReview{
		UserID: "U1", ResponseID: "R1", MessageID: "M1", Response: "draft",
	})
	rig.engine.HandleEvent(&event.ProcessingError{UserID: "U1", Error: "model timeout"})

	a, ok := rig.engine.ActivityFor("U1")
	require.True(t, ok)
	assert.Equal(t, domain.ActivityError, a.Type)
	assert.Nil(t, rig.engine.PendingReview())
}

func TestHandleEvent_OtherOperatorTyping(t *testing.T) {
	rig := newTestRig(t)
	rig.seedConversation("U1")
	rig.engine.Open("U1")

	// Own echo is ignored.
	rig.engine.HandleEvent(&event.AdminTypingStatus{UserID: "U1", AdminID: "admin-1", IsTyping: true})
	assert.Empty(t, rig.engine.Status())

	rig.engine.HandleEvent(&event.AdminTypingStatus{UserID: "U1", AdminID: "admin-2", IsTyping: true})
	assert.Equal(t, "Operator admin-2 is typing…", rig.engine.Status())
	assert.False(t, rig.engine.TypingInfo().Visible, "remote typing never flips the local indicator")

	// Sticky until the matching stop arrives.
	rig.clock.Advance(time.Minute)
	assert.Equal(t, "Operator admin-2 is typing…", rig.engine.Status())

	rig.engine.HandleEvent(&event.AdminTypingStatus{UserID: "U1", AdminID: "admin-2", IsTyping: false})
	assert.Empty(t, rig.engine.Status())
}

func TestHandleEvent_TypingStopOnlyClearsOwnIndicator(t *testing.T) {
	rig := newTestRig(t)
	rig.seedConversation("U1")
	rig.engine.Open("U1")

	rig.engine.HandleEvent(&event.AdminTypingStatus{UserID: "U1", AdminID: "admin-2", IsTyping: true})
	require.NotEmpty(t, rig.engine.Status())

	// A different operator's stop leaves the indicator alone.
	rig.engine.HandleEvent(&event.AdminTypingStatus{UserID: "U1", AdminID: "admin-3", IsTyping: false})
	assert.NotEmpty(t, rig.engine.Status())

	// Once another status replaces the indicator, the original
	// operator's stop must not wipe it.
	rig.engine.HandleEvent(&event.ResponsePendingReview{
		UserID: "U1", ResponseID: "R1", MessageID: "M1", Response: "draft",
	})
	rig.engine.HandleEvent(&event.ResponseResolved{
		UserID: "U1", ResponseID: "R1", Outcome: event.OutcomeSent,
	})
	require.Equal(t, "Response sent", rig.engine.Status())

	rig.engine.HandleEvent(&event.AdminTypingStatus{UserID: "U1", AdminID: "admin-2", IsTyping: false})
	assert.Equal(t, "Response sent", rig.engine.Status())
}

func TestHandleEvent_ProfileUpdateKeepsRosterOrder(t *testing.T) {
	rig := newTestRig(t)
	rig.engine.HandleEvent(newMessageEvent("U1", "M1", "older", t0))
	rig.engine.HandleEvent(newMessageEvent("U2", "M2", "newer", t0.Add(time.Minute)))

	name := "Renamed"
	rig.engine.HandleEvent(&event.UserProfileUpdate{UserID: "U1", DisplayName: &name})

	convs := rig.engine.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, "U2", convs[0].UserID, "profile edits do not bump recency")
	assert.Equal(t, "Renamed", convs[1].DisplayName)
}
