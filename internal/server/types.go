package server

import (
	"encoding/json"
	"strings"
)

// Socket event names.
const (
	EventChatMessage = "chatMessage"
	EventTyping      = "typing"
	EventStopTyping  = "stopTyping"
)

// Envelope is the JSON frame carried by every socket message, in both
// directions. Data is omitted for events without a payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ChatMessage is the chatMessage payload. MessageID and Time are assigned by
// the hub; values sent by clients are overwritten.
type ChatMessage struct {
	MessageID string `json:"messageId,omitempty"`
	Text      string `json:"text"`
	User      string `json:"user"`
	UserID    int64  `json:"userId"`
	Time      string `json:"time,omitempty"`
}

// TypingPayload is the typing payload.
type TypingPayload struct {
	User   string `json:"user"`
	UserID int64  `json:"userId"`
}

// BroadcastMessage encapsulates an encoded envelope being broadcast by the
// hub. When SkipSender is set the originating client does not receive it.
type BroadcastMessage struct {
	Sender     *Client
	Payload    []byte
	SkipSender bool
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
