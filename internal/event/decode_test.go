// ABOUTME: Tests for push-event decoding into the typed union.
// ABOUTME: Covers wire-name mapping, optional fields, and unknown/malformed frames.

package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_NewMessage(t *testing.T) {
	frame := []byte(`{"event":"new_message","data":{"userId":"U1","message":{"messageId":"M1","userId":"U1","role":"user","content":"hi","timestamp":"2026-09-01T10:00:00Z"}}}`)

	ev, err := Decode(frame)
	require.NoError(t, err)

	msg, ok := ev.(*NewMessage)
	require.True(t, ok)
	assert.Equal(t, "U1", msg.UserID)
	assert.Equal(t, "M1", msg.Message.MessageID)
	assert.Equal(t, "hi", msg.Message.Content)
}

func TestDecode_ProcessingPaused_OptionalMessageID(t *testing.T) {
	ev, err := DecodePayload("ai_processing_paused", []byte(`{"userId":"U1","reason":"admin_typing"}`))
	require.NoError(t, err)

	paused, ok := ev.(*ProcessingPaused)
	require.True(t, ok)
	assert.Equal(t, "admin_typing", paused.Reason)
	assert.Nil(t, paused.MessageID, "absent messageId must stay nil, not empty string")

	ev, err = DecodePayload("ai_processing_paused", []byte(`{"userId":"U1","reason":"manual","messageId":"M9"}`))
	require.NoError(t, err)
	paused = ev.(*ProcessingPaused)
	require.NotNil(t, paused.MessageID)
	assert.Equal(t, "M9", *paused.MessageID)
}

func TestDecode_TerminalResponseEvents_ShareResolvedType(t *testing.T) {
	cases := map[string]ResolveOutcome{
		"ai_response_sent":              OutcomeSent,
		"ai_response_approved":          OutcomeApproved,
		"ai_response_approved_and_sent": OutcomeApprovedAndSent,
		"ai_response_rejected":          OutcomeRejected,
	}

	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			ev, err := DecodePayload(name, []byte(`{"userId":"U1","responseId":"R1"}`))
			require.NoError(t, err)

			resolved, ok := ev.(*ResponseResolved)
			require.True(t, ok)
			assert.Equal(t, want, resolved.Outcome)
			assert.Equal(t, "R1", resolved.ResponseID)
		})
	}
}

func TestDecode_UnknownEventName(t *testing.T) {
	_, err := Decode([]byte(`{"event":"ai_did_a_backflip","data":{"userId":"U1"}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownEvent))
}

func TestDecode_MissingUserID(t *testing.T) {
	_, err := DecodePayload("ai_thinking", []byte(`{}`))
	require.Error(t, err)
}

func TestDecode_MalformedEnvelope(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestDecode_AdminTypingStatus(t *testing.T) {
	ev, err := DecodePayload("admin_typing_status", []byte(`{"userId":"U1","adminId":"other-admin","isTyping":true}`))
	require.NoError(t, err)

	typing := ev.(*AdminTypingStatus)
	assert.Equal(t, "other-admin", typing.AdminID)
	assert.True(t, typing.IsTyping)
}
