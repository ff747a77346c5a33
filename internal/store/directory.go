package store

import (
	"slices"
	"strings"

	"github.com/vedran77/pulsesync/internal/domain"
)

// Directory holds one conversation summary per participant, ordered by
// LastMessageAt descending. It is not safe for concurrent use.
type Directory struct {
	convs         map[string]*domain.Conversation
	byParticipant map[string]string
	order         []string
	unread        *UnreadTracker
}

func NewDirectory(unread *UnreadTracker) *Directory {
	if unread == nil {
		unread = NewUnreadTracker()
	}
	return &Directory{
		convs:         make(map[string]*domain.Conversation),
		byParticipant: make(map[string]string),
		unread:        unread,
	}
}

func (d *Directory) Unread() *UnreadTracker {
	return d.unread
}

// ReplaceAll swaps in a full listing. When the listing names the same
// participant twice the most recently active entry wins.
func (d *Directory) ReplaceAll(conversations []domain.Conversation) {
	d.convs = make(map[string]*domain.Conversation, len(conversations))
	d.byParticipant = make(map[string]string, len(conversations))

	for _, c := range conversations {
		if c.ID == "" {
			continue
		}
		if c.ParticipantID == "" {
			c.ParticipantID = c.Participant.ID
		}
		if c.ParticipantID == "" {
			continue
		}
		if c.Participant.ID == "" {
			c.Participant.ID = c.ParticipantID
		}
		if c.UnreadCount < 0 {
			c.UnreadCount = 0
		}
		if c.LastMessage != nil && c.LastMessageAt.IsZero() {
			c.LastMessageAt = c.LastMessage.CreatedAt
		}
		if old, ok := d.convs[c.ID]; ok {
			delete(d.byParticipant, old.ParticipantID)
		}
		if prevID, ok := d.byParticipant[c.ParticipantID]; ok {
			if d.convs[prevID].LastMessageAt.After(c.LastMessageAt) {
				continue
			}
			delete(d.convs, prevID)
		}
		stored := c.Clone()
		d.convs[c.ID] = &stored
		d.byParticipant[c.ParticipantID] = c.ID
	}

	sum := 0
	for _, c := range d.convs {
		sum += c.UnreadCount
	}
	d.unread.reset(sum)
	d.resort()
}

// UpsertFromMessage records message activity on its conversation,
// synthesizing the conversation on first contact. Unread grows only when the
// conversation's participant authored the message. ok is false when the
// counterpart cannot be determined without guessing.
func (d *Directory) UpsertFromMessage(m domain.Message, currentUserID string) (created, ok bool) {
	return d.upsert(m, currentUserID, true)
}

// TrackMessage is UpsertFromMessage without the unread increment. It is used
// for messages that were already stored.
func (d *Directory) TrackMessage(m domain.Message, currentUserID string) (created, ok bool) {
	return d.upsert(m, currentUserID, false)
}

func (d *Directory) upsert(m domain.Message, currentUserID string, countUnread bool) (bool, bool) {
	conv, created := d.resolve(m, currentUserID)
	if conv == nil {
		return false, false
	}

	moved := advance(conv, m)
	if countUnread && m.SenderID == conv.ParticipantID && !m.Read {
		d.setUnread(conv, conv.UnreadCount+1)
	}
	if moved || created {
		d.resort()
	}
	return created, true
}

func (d *Directory) resolve(m domain.Message, currentUserID string) (*domain.Conversation, bool) {
	if conv, ok := d.convs[m.ConversationID]; ok {
		return conv, false
	}
	if currentUserID == "" {
		return nil, false
	}
	counterpart := m.Counterpart(currentUserID)
	if counterpart == "" || counterpart == currentUserID {
		return nil, false
	}
	if id, ok := d.byParticipant[counterpart]; ok {
		return d.convs[id], false
	}
	if m.ConversationID == "" {
		return nil, false
	}

	conv := &domain.Conversation{
		ID:            m.ConversationID,
		ParticipantID: counterpart,
		Participant: domain.Participant{
			ID:     counterpart,
			Status: domain.PresenceOnline,
		},
	}
	d.convs[conv.ID] = conv
	d.byParticipant[counterpart] = conv.ID
	return conv, true
}

// advance moves the preview forward. An older message never replaces a
// newer preview, but the current preview is refreshed in place.
func advance(conv *domain.Conversation, m domain.Message) bool {
	if conv.LastMessage != nil && conv.LastMessage.ID == m.ID {
		conv.LastMessage = m.Preview()
		return false
	}
	if m.CreatedAt.Before(conv.LastMessageAt) {
		return false
	}
	conv.LastMessage = m.Preview()
	conv.LastMessageAt = m.CreatedAt
	return true
}

// MarkRead zeroes the conversation's unread count and returns the prior value.
func (d *Directory) MarkRead(conversationID string) (int, bool) {
	conv, ok := d.convs[conversationID]
	if !ok {
		return 0, false
	}
	prev := conv.UnreadCount
	d.setUnread(conv, 0)
	return prev, true
}

func (d *Directory) setUnread(conv *domain.Conversation, n int) {
	if n < 0 {
		n = 0
	}
	d.unread.adjust(n - conv.UnreadCount)
	conv.UnreadCount = n
}

func (d *Directory) Get(id string) (domain.Conversation, bool) {
	conv, ok := d.convs[id]
	if !ok {
		return domain.Conversation{}, false
	}
	return conv.Clone(), true
}

func (d *Directory) ByParticipant(participantID string) (domain.Conversation, bool) {
	id, ok := d.byParticipant[participantID]
	if !ok {
		return domain.Conversation{}, false
	}
	return d.Get(id)
}

// List returns the conversations, most recently active first.
func (d *Directory) List() []domain.Conversation {
	out := make([]domain.Conversation, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.convs[id].Clone())
	}
	return out
}

func (d *Directory) Len() int {
	return len(d.convs)
}

// UnreadSum recounts unread across all conversations.
func (d *Directory) UnreadSum() int {
	sum := 0
	for _, c := range d.convs {
		sum += c.UnreadCount
	}
	return sum
}

func (d *Directory) resort() {
	order := make([]string, 0, len(d.convs))
	for id := range d.convs {
		order = append(order, id)
	}
	slices.SortFunc(order, func(a, b string) int {
		ca, cb := d.convs[a], d.convs[b]
		if c := cb.LastMessageAt.Compare(ca.LastMessageAt); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	d.order = order
}
