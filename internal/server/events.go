package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	errMalformedEvent = errors.New("malformed event")
	errUnknownEvent   = errors.New("unknown event")
	errEmptyMessage   = errors.New("empty chat message")
)

// timeLayout renders the HH:MM stamp added to chat messages.
const timeLayout = "15:04"

// route decodes a raw frame from sender and builds the broadcast it triggers.
//
//	chatMessage  -> every client, sender included, with time and messageId
//	typing       -> every client except the sender
//	stopTyping   -> every client except the sender, no payload
func (h *Hub) route(sender *Client, raw []byte) (BroadcastMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return BroadcastMessage{}, fmt.Errorf("%w: %v", errMalformedEvent, err)
	}

	switch env.Event {
	case EventChatMessage:
		return h.routeChat(sender, env.Data)
	case EventTyping:
		return h.routeTyping(sender, env.Data)
	case EventStopTyping:
		return h.encode(sender, Envelope{Event: EventStopTyping}, true)
	default:
		return BroadcastMessage{}, fmt.Errorf("%w: %q", errUnknownEvent, env.Event)
	}
}

func (h *Hub) routeChat(sender *Client, data json.RawMessage) (BroadcastMessage, error) {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return BroadcastMessage{}, fmt.Errorf("%w: chatMessage: %v", errMalformedEvent, err)
	}
	if strings.TrimSpace(msg.Text) == "" {
		return BroadcastMessage{}, errEmptyMessage
	}

	if u := sender.User(); u != nil {
		msg.User, msg.UserID = u.Name, u.ID
	}
	msg.Time = h.now().In(h.loc).Format(timeLayout)
	msg.MessageID = h.newID()

	body, err := json.Marshal(msg)
	if err != nil {
		return BroadcastMessage{}, err
	}
	return h.encode(sender, Envelope{Event: EventChatMessage, Data: body}, false)
}

func (h *Hub) routeTyping(sender *Client, data json.RawMessage) (BroadcastMessage, error) {
	var p TypingPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return BroadcastMessage{}, fmt.Errorf("%w: typing: %v", errMalformedEvent, err)
		}
	}
	if u := sender.User(); u != nil {
		p.User, p.UserID = u.Name, u.ID
	}

	body, err := json.Marshal(p)
	if err != nil {
		return BroadcastMessage{}, err
	}
	return h.encode(sender, Envelope{Event: EventTyping, Data: body}, true)
}

func (h *Hub) encode(sender *Client, env Envelope, skipSender bool) (BroadcastMessage, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return BroadcastMessage{}, err
	}
	return BroadcastMessage{Sender: sender, Payload: payload, SkipSender: skipSender}, nil
}
