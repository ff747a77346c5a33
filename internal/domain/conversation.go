package domain

import "time"

type Conversation struct {
	ID            string       `json:"id"`
	ParticipantID string       `json:"participant_id"`
	Participant   Participant  `json:"participant"`
	LastMessage   *LastMessage `json:"last_message,omitempty"`
	LastMessageAt time.Time    `json:"last_message_at"`
	UnreadCount   int          `json:"unread_count"`
}

type LastMessage struct {
	ID        string    `json:"id"`
	Content   *string   `json:"content,omitempty"`
	FileURL   *string   `json:"file_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (c Conversation) Clone() Conversation {
	out := c
	out.Participant.AvatarURL = clonePtr(c.Participant.AvatarURL)
	if c.LastMessage != nil {
		lm := *c.LastMessage
		lm.Content = clonePtr(c.LastMessage.Content)
		lm.FileURL = clonePtr(c.LastMessage.FileURL)
		out.LastMessage = &lm
	}
	return out
}

// PageState tracks message pagination for one conversation.
type PageState struct {
	Loaded     bool
	HasMore    bool
	NextCursor string
}

// MessagePage is one page of a conversation's history, oldest first.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}
