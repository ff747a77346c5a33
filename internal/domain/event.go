package domain

type EventType string

const (
	EventMessageNew     EventType = "message:new"
	EventMessageUpdated EventType = "message:updated"
)

// Event is a push notification. Message is always a full snapshot.
type Event struct {
	Type    EventType
	Message Message
}
