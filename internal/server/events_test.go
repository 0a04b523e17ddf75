package server

import (
	"encoding/json"
	"testing"

	"github.com/Tyrowin/talkroom/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeChat(t *testing.T, payload []byte) ChatMessage {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(payload, &env))
	require.Equal(t, EventChatMessage, env.Event)

	var msg ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	return msg
}

func TestRoute_ChatMessageIsStampedAndReachesSender(t *testing.T) {
	hub := newTestHub()
	sender := NewClient(nil, hub, "a", nil, ClientLimits{})

	msg, err := hub.route(sender, []byte(`{"event":"chatMessage","data":{"text":"hi","user":"Ann","userId":3}}`))
	require.NoError(t, err)

	assert.False(t, msg.SkipSender)
	assert.Same(t, sender, msg.Sender)

	chat := decodeChat(t, msg.Payload)
	assert.Equal(t, ChatMessage{MessageID: "msg-1", Text: "hi", User: "Ann", UserID: 3, Time: "14:07"}, chat)
}

func TestRoute_ChatMessageUsesSessionIdentity(t *testing.T) {
	hub := newTestHub()
	sender := NewClient(nil, hub, "a", &users.User{ID: 7, Name: "Alice"}, ClientLimits{})

	msg, err := hub.route(sender, []byte(`{"event":"chatMessage","data":{"text":"hi","user":"Mallory","userId":99}}`))
	require.NoError(t, err)

	chat := decodeChat(t, msg.Payload)
	assert.Equal(t, "Alice", chat.User)
	assert.Equal(t, int64(7), chat.UserID)
}

func TestRoute_ChatMessageOverridesClientStamps(t *testing.T) {
	hub := newTestHub()

	msg, err := hub.route(nil, []byte(`{"event":"chatMessage","data":{"text":"hi","messageId":"forged","time":"00:00"}}`))
	require.NoError(t, err)

	chat := decodeChat(t, msg.Payload)
	assert.Equal(t, "msg-1", chat.MessageID)
	assert.Equal(t, "14:07", chat.Time)
}

func TestRoute_Typing(t *testing.T) {
	hub := newTestHub()
	sender := NewClient(nil, hub, "a", nil, ClientLimits{})

	msg, err := hub.route(sender, []byte(`{"event":"typing","data":{"user":"Ann","userId":3}}`))
	require.NoError(t, err)
	assert.True(t, msg.SkipSender)
	assert.JSONEq(t, `{"event":"typing","data":{"user":"Ann","userId":3}}`, string(msg.Payload))
}

func TestRoute_StopTypingHasNoData(t *testing.T) {
	hub := newTestHub()

	msg, err := hub.route(nil, []byte(`{"event":"stopTyping","data":{"ignored":true}}`))
	require.NoError(t, err)
	assert.True(t, msg.SkipSender)
	assert.JSONEq(t, `{"event":"stopTyping"}`, string(msg.Payload))
}

func TestRoute_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `hello`, errMalformedEvent},
		{"unknown event", `{"event":"joinRoom"}`, errUnknownEvent},
		{"chat without data", `{"event":"chatMessage"}`, errMalformedEvent},
		{"chat bad data", `{"event":"chatMessage","data":"hi"}`, errMalformedEvent},
		{"empty text", `{"event":"chatMessage","data":{"text":"   "}}`, errEmptyMessage},
		{"typing bad data", `{"event":"typing","data":[1]}`, errMalformedEvent},
	}

	hub := newTestHub()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := hub.route(nil, []byte(tt.raw))
			require.ErrorIs(t, err, tt.want)
		})
	}
}
