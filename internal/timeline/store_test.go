// ABOUTME: Tests for timeline dedupe, history merge, and optimistic send reconciliation.
// ABOUTME: Verifies convergence under redelivery and rollback on failed sends.

package timeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-console/internal/domain"
)

var t0 = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func userMsg(id, content string, at time.Time) domain.Message {
	return domain.Message{
		MessageID: id,
		UserID:    "U1",
		Role:      domain.RoleUser,
		Content:   content,
		Timestamp: at,
	}
}

func TestAppend_DropsDuplicateIDs(t *testing.T) {
	s := New(nil)

	assert.True(t, s.Append(userMsg("M1", "hello", t0)))
	assert.False(t, s.Append(userMsg("M1", "hello", t0)))
	assert.False(t, s.Append(userMsg("M1", "different text, same id", t0)))

	msgs := s.Messages("U1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestAppend_NoSharedIDsUnderAnyDeliveryOrder(t *testing.T) {
	s := New(nil)

	// Deliver a batch twice, second time reversed.
	var batch []domain.Message
	for i := 0; i < 5; i++ {
		batch = append(batch, userMsg(fmt.Sprintf("M%d", i), fmt.Sprintf("msg %d", i), t0.Add(time.Duration(i)*time.Second)))
	}
	for _, m := range batch {
		s.Append(m)
	}
	for i := len(batch) - 1; i >= 0; i-- {
		s.Append(batch[i])
	}

	msgs := s.Messages("U1")
	require.Len(t, msgs, 5)
	seen := make(map[string]bool)
	for _, m := range msgs {
		assert.False(t, seen[m.MessageID], "duplicate id %s", m.MessageID)
		seen[m.MessageID] = true
	}
}

func TestMerge_DeduplicatesAgainstLiveMessages(t *testing.T) {
	s := New(nil)

	// Live event arrives before history load.
	s.Append(userMsg("M2", "live", t0.Add(2*time.Second)))

	added := s.Merge("U1", []domain.Message{
		userMsg("M1", "old", t0),
		userMsg("M2", "live", t0.Add(2*time.Second)),
	})
	assert.Equal(t, 1, added)

	msgs := s.Messages("U1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "M1", msgs[0].MessageID, "merge restores timestamp order")
	assert.Equal(t, "M2", msgs[1].MessageID)
}

func TestBeginSend_ResolveReplacesTempID(t *testing.T) {
	s := New(nil)

	tempID := s.BeginSend("U1", "hello", t0)
	require.NotEmpty(t, tempID)

	serverTime := t0.Add(time.Second)
	require.True(t, s.ResolveSend("U1", tempID, "SRV-1", serverTime))

	msgs := s.Messages("U1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "SRV-1", msgs[0].MessageID)
	assert.Equal(t, serverTime, msgs[0].Timestamp)
	assert.False(t, s.Contains("U1", tempID))
}

func TestResolveSend_MatchesByTempIDNotContent(t *testing.T) {
	s := New(nil)

	// Two sends with identical text.
	first := s.BeginSend("U1", "same text", t0)
	second := s.BeginSend("U1", "same text", t0.Add(time.Second))

	require.True(t, s.ResolveSend("U1", second, "SRV-2", t0.Add(2*time.Second)))

	msgs := s.Messages("U1")
	require.Len(t, msgs, 2)
	assert.Equal(t, first, msgs[0].MessageID, "first send stays pending under its temp id")
	assert.Equal(t, "SRV-2", msgs[1].MessageID)
}

func TestResolveSend_DropsTempWhenPushBeatTheResponse(t *testing.T) {
	s := New(nil)

	tempID := s.BeginSend("U1", "hello", t0)

	// The push channel delivers the confirmed message before the REST
	// response resolves.
	s.Append(domain.Message{MessageID: "SRV-1", UserID: "U1", Role: domain.RoleAdmin, Content: "hello", Timestamp: t0})

	require.True(t, s.ResolveSend("U1", tempID, "SRV-1", t0))

	msgs := s.Messages("U1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "SRV-1", msgs[0].MessageID)
}

func TestAbortSend_RollsBackAndReturnsContent(t *testing.T) {
	s := New(nil)

	tempID := s.BeginSend("U1", "hello", t0)
	content, ok := s.AbortSend("U1", tempID)
	require.True(t, ok)
	assert.Equal(t, "hello", content)
	assert.Empty(t, s.Messages("U1"), "timeline must not keep the failed message")

	_, ok = s.AbortSend("U1", tempID)
	assert.False(t, ok, "second abort is a no-op")
}

func TestLastUserMessageID(t *testing.T) {
	s := New(nil)

	_, ok := s.LastUserMessageID("U1")
	assert.False(t, ok)

	s.Append(userMsg("M1", "first", t0))
	s.Append(domain.Message{MessageID: "A1", UserID: "U1", Role: domain.RoleAdmin, Content: "reply", Timestamp: t0.Add(time.Second)})
	s.Append(userMsg("M2", "second", t0.Add(2*time.Second)))

	id, ok := s.LastUserMessageID("U1")
	require.True(t, ok)
	assert.Equal(t, "M2", id, "admin messages are not cancel targets")
}
