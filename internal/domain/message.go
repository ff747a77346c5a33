package domain

import (
	"slices"
	"strings"
	"time"
)

type DeleteScope string

const (
	DeleteForMe       DeleteScope = "for_me"
	DeleteForEveryone DeleteScope = "for_everyone"
)

func (s DeleteScope) Valid() bool {
	return s == DeleteForMe || s == DeleteForEveryone
}

type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	ReceiverID     string     `json:"receiver_id,omitempty"`
	Content        *string    `json:"content,omitempty"`
	FileURL        *string    `json:"file_url,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	Reactions      Reactions  `json:"reactions,omitempty"`
	Pinned         bool       `json:"pinned"`
	Deleted        bool       `json:"deleted"`
	DeletedBy      []string   `json:"deleted_by,omitempty"`
	ReplyToID      *string    `json:"reply_to_id,omitempty"`
	// Read is local state, set when the conversation is marked as read.
	Read bool `json:"-"`
}

// Counterpart returns the side of the message that is not userID.
func (m *Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// HiddenFor reports whether userID deleted the message for themselves.
func (m *Message) HiddenFor(userID string) bool {
	return userID != "" && slices.Contains(m.DeletedBy, userID)
}

// Clone returns a deep copy so callers never share maps or slices with the store.
func (m Message) Clone() Message {
	out := m
	out.Content = clonePtr(m.Content)
	out.FileURL = clonePtr(m.FileURL)
	out.ReplyToID = clonePtr(m.ReplyToID)
	out.EditedAt = clonePtr(m.EditedAt)
	out.Reactions = m.Reactions.Clone()
	if m.DeletedBy != nil {
		out.DeletedBy = slices.Clone(m.DeletedBy)
	}
	return out
}

// Preview is the denormalized form stored on a conversation.
func (m *Message) Preview() *LastMessage {
	return &LastMessage{
		ID:        m.ID,
		Content:   clonePtr(m.Content),
		FileURL:   clonePtr(m.FileURL),
		CreatedAt: m.CreatedAt,
	}
}

// Reactions maps an emoji to the set of users who reacted with it.
type Reactions map[string][]string

// Normalize dedupes reactor ids, sorts them and drops empty emoji entries.
func (r Reactions) Normalize() Reactions {
	if r == nil {
		return nil
	}
	out := make(Reactions, len(r))
	for emoji, users := range r {
		emoji = strings.TrimSpace(emoji)
		if emoji == "" {
			continue
		}
		cleaned := dedupeNonEmpty(append(out[emoji], users...))
		if len(cleaned) == 0 {
			continue
		}
		slices.Sort(cleaned)
		out[emoji] = cleaned
	}
	return out
}

func (r Reactions) Clone() Reactions {
	if r == nil {
		return nil
	}
	out := make(Reactions, len(r))
	for emoji, users := range r {
		out[emoji] = slices.Clone(users)
	}
	return out
}

func (r Reactions) Has(emoji, userID string) bool {
	return slices.Contains(r[emoji], userID)
}

// EmojisOf returns every emoji userID reacted with, sorted.
func (r Reactions) EmojisOf(userID string) []string {
	var out []string
	for emoji, users := range r {
		if slices.Contains(users, userID) {
			out = append(out, emoji)
		}
	}
	slices.Sort(out)
	return out
}

func dedupeNonEmpty(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
