package domain

// Presence values reported by the backend.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// Participant is the denormalized profile of the other side of a conversation.
type Participant struct {
	ID          string  `json:"id"`
	Username    string  `json:"username,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Status      string  `json:"status,omitempty"`
}
