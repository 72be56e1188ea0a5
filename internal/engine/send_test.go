// ABOUTME: Tests for the optimistic send path: reconcile, rollback, and guards.
// ABOUTME: Covers the failed-send draft restore and the busy-send rejection.

package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-console/internal/api"
	"github.com/2389/coven-console/internal/domain"
	"github.com/2389/coven-console/internal/event"
)

func TestSend_OptimisticThenReconciled(t *testing.T) {
	rig := newTestRig(t)
	rig.seedConversation("U1")
	rig.engine.Open("U1")
	rig.backend.sendResult = &api.SendResult{MessageID: "SRV-1", Timestamp: t0.Add(time.Second)}

	rig.engine.SetDraft("hello")
	require.NoError(t, rig.engine.Send(rig.engine.Draft()))
	assert.Empty(t, rig.engine.Draft(), "draft clears on optimistic insert")

	// The message is visible immediately, under a temporary id.
	msgs := rig.engine.Messages("U1")
	require.Len(t, msgs, 2)
	optimistic := msgs[1]
	assert.Equal(t, domain.RoleAdmin, optimistic.Role)
	assert.Equal(t, "hello", optimistic.Content)
	assert.NotEqual(t, "SRV-1", optimistic.MessageID)

	assert.Eventually(t, func() bool {
		return !rig.engine.Sending()
	}, waitFor, pollEvery)

	msgs = rig.engine.Messages("U1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "SRV-1", msgs[1].MessageID, "server id replaces the temporary one")
	assert.Equal(t, t0.Add(time.Second), msgs[1].Timestamp)
}

func TestSend_FailureRollsBackAndRestoresDraft(t *testing.T) {
	rig := newTestRig(t)
	rig.seedConversation("U1")
	rig.engine.Open("U1")
	rig.backend.setErr("send", errors.New("connection refused"))

	require.NoError(t, rig.engine.Send("hello"))

	assert.Eventually(t, func() bool {
		return !rig.engine.Sending()
	}, waitFor, pollEvery)

	for _, m := range rig.engine.Messages("U1") {
		assert.NotEqual(t, "hello", m.Content, "failed message leaves no trace in the timeline")
	}
	assert.Equal(t, "hello", rig.engine.Draft(), "draft restored for retry")
	assert.Contains(t, rig.engine.Status(), "Send failed")
}

func TestSend_Guards(t *testing.T) {
	rig := newTestRig(t)
	assert.ErrorIs(t, rig.engine.Send("hi"), ErrNoOpenConversation)

	rig.seedConversation("U1")
	rig.engine.Open("U1")
	assert.ErrorIs(t, rig.engine.Send("   "), ErrEmptyMessage)
}

func TestSend_RejectsConcurrentSend(t *testing.T) {
	rig := newTestRig(t)
	rig.seedConversation("U1")
	rig.engine.Open("U1")

	gate := make(chan struct{})
	rig.backend.sendGate = gate

	require.NoError(t, rig.engine.Send("first"))
	assert.True(t, rig.engine.Sending())
	assert.ErrorIs(t, rig.engine.Send("second"), ErrAlreadySending)

	close(gate)
	assert.Eventually(t, func() bool {
		return !rig.engine.Sending()
	}, waitFor, pollEvery)
	assert.Equal(t, 1, rig.backend.sendCount())
}

func TestSend_StopsTypingFirst(t *testing.T) {
	rig := newTestRig(t)
	rig.seedConversation("U1")
	rig.engine.Open("U1")
	require.NoError(t, rig.engine.Focus())

	require.NoError(t, rig.engine.Send("on my way"))

	assert.False(t, rig.engine.TypingInfo().Visible)
	assert.Eventually(t, func() bool {
		return rig.emitter.stopCount() == 1
	}, waitFor, pollEvery)
	_, paused := rig.engine.ActivityFor("U1")
	assert.False(t, paused, "typing pause lifted before the message goes out")
}

func TestSend_PushDeliversBeforeResponse(t *testing.T) {
	rig := newTestRig(t)
	rig.seedConversation("U1")
	rig.engine.Open("U1")

	gate := make(chan struct{})
	rig.backend.sendGate = gate
	rig.backend.sendResult = &api.SendResult{MessageID: "SRV-9", Timestamp: t0.Add(time.Second)}

	require.NoError(t, rig.engine.Send("hello"))

	// The push channel echoes the confirmed message before the HTTP
	// response comes back.
	rig.engine.HandleEvent(&event.NewMessage{
		UserID: "U1",
		Message: domain.Message{
			MessageID: "SRV-9",
			UserID:    "U1",
			Role:      domain.RoleAdmin,
			Content:   "hello",
			Timestamp: t0.Add(time.Second),
		},
	})

	close(gate)
	assert.Eventually(t, func() bool {
		return !rig.engine.Sending()
	}, waitFor, pollEvery)

	count := 0
	for _, m := range rig.engine.Messages("U1") {
		if m.Content == "hello" {
			count++
			assert.Equal(t, "SRV-9", m.MessageID)
		}
	}
	assert.Equal(t, 1, count, "push echo and reconciliation converge on one entry")
}
