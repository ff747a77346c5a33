package ws

import (
	"encoding/json"

	"github.com/vedran77/pulsesync/internal/domain"
)

// Event types - Client → Server
const (
	EventTypePing = "ping"
	EventTypePong = "pong"
)

// Event types - Server → Client
const (
	EventTypeMessageNew     = "message.new"
	EventTypeMessageEdited  = "message.edited"
	EventTypeMessageUpdated = "message.updated"
	EventTypeMessageDeleted = "message.deleted"
	EventTypeDMNew          = "dm.new"
	EventTypeDMEdited       = "dm.edited"
	EventTypeDMDeleted      = "dm.deleted"
	EventTypeTyping         = "typing"
	EventTypePresence       = "presence"
	EventTypeError          = "error"
)

// Envelope is the base frame for all WebSocket messages.
type Envelope struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Timestamp      int64           `json:"ts,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToEvent maps a server frame to a cache event. ok is false for frames that
// carry no message snapshot: typing, presence, control frames and
// deletions announced by id only.
func (e Envelope) ToEvent() (ev domain.Event, ok bool, err error) {
	var eventType domain.EventType
	switch e.Type {
	case EventTypeMessageNew, EventTypeDMNew:
		eventType = domain.EventMessageNew
	case EventTypeMessageEdited, EventTypeDMEdited, EventTypeMessageUpdated, EventTypeMessageDeleted, EventTypeDMDeleted:
		eventType = domain.EventMessageUpdated
	default:
		return domain.Event{}, false, nil
	}

	var msg domain.Message
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &msg); err != nil {
			return domain.Event{}, false, err
		}
	}
	if msg.ConversationID == "" {
		msg.ConversationID = e.ConversationID
	}

	if e.Type == EventTypeMessageDeleted || e.Type == EventTypeDMDeleted {
		if msg.SenderID == "" || msg.CreatedAt.IsZero() {
			return domain.Event{}, false, nil
		}
		msg.Deleted = true
	}

	return domain.Event{Type: eventType, Message: msg}, true, nil
}
