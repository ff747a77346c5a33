package store

import (
	"slices"
	"sort"

	"github.com/vedran77/pulsesync/internal/domain"
)

type thread struct {
	// messages is sorted by CreatedAt, then ID.
	messages []*domain.Message
	page     domain.PageState
}

// Timeline holds every known message, grouped by conversation and kept in
// CreatedAt order. It is not safe for concurrent use.
type Timeline struct {
	threads map[string]*thread
	byID    map[string]*domain.Message
}

func NewTimeline() *Timeline {
	return &Timeline{
		threads: make(map[string]*thread),
		byID:    make(map[string]*domain.Message),
	}
}

func (t *Timeline) thread(conversationID string) *thread {
	th, ok := t.threads[conversationID]
	if !ok {
		th = &thread{}
		t.threads[conversationID] = th
	}
	return th
}

// LoadPage merges a fetched page. Fetched records replace stored ones with
// the same id entirely.
func (t *Timeline) LoadPage(conversationID string, messages []domain.Message, nextCursor string, hasMore bool) {
	if conversationID == "" {
		return
	}
	th := t.thread(conversationID)
	for _, m := range messages {
		if m.ID == "" {
			continue
		}
		if m.ConversationID == "" {
			m.ConversationID = conversationID
		}
		if m.ConversationID != conversationID {
			continue
		}
		fresh := normalizeMessage(m)
		if existing, ok := t.byID[m.ID]; ok {
			if existing.ConversationID != conversationID {
				continue
			}
			// Local read state survives a refetch.
			fresh.Read = fresh.Read || existing.Read
			*existing = fresh
			continue
		}
		stored := &fresh
		t.byID[m.ID] = stored
		th.messages = append(th.messages, stored)
	}
	sort.SliceStable(th.messages, func(i, j int) bool {
		return less(th.messages[i], th.messages[j])
	})
	th.page = domain.PageState{
		Loaded:     true,
		HasMore:    hasMore,
		NextCursor: nextCursor,
	}
}

// Upsert inserts m at its sorted position or merges it into the stored copy.
// It reports whether m was new. Records without an id or conversation are ignored.
func (t *Timeline) Upsert(m domain.Message) bool {
	if m.ID == "" || m.ConversationID == "" {
		return false
	}
	if existing, ok := t.byID[m.ID]; ok {
		*existing = MergeMessage(*existing, m)
		return false
	}

	stored := normalizeMessage(m)
	ptr := &stored
	th := t.thread(m.ConversationID)
	idx := sort.Search(len(th.messages), func(i int) bool {
		return !less(th.messages[i], ptr)
	})
	th.messages = slices.Insert(th.messages, idx, ptr)
	t.byID[m.ID] = ptr
	return true
}

// MarkDeleted applies a deletion locally. ForMe hides the message from
// userID only; ForEveryone clears its content for all viewers.
func (t *Timeline) MarkDeleted(id, userID string, scope domain.DeleteScope) bool {
	m, ok := t.byID[id]
	if !ok {
		return false
	}
	switch scope {
	case domain.DeleteForMe:
		if userID == "" {
			return false
		}
		if !slices.Contains(m.DeletedBy, userID) {
			m.DeletedBy = normalizeUsers(append(slices.Clone(m.DeletedBy), userID))
		}
	case domain.DeleteForEveryone:
		m.Deleted = true
		m.Content = nil
		m.FileURL = nil
	default:
		return false
	}
	return true
}

// Query returns the conversation as viewerID sees it, oldest first.
func (t *Timeline) Query(conversationID, viewerID string) []domain.Message {
	th, ok := t.threads[conversationID]
	if !ok {
		return []domain.Message{}
	}
	out := make([]domain.Message, 0, len(th.messages))
	for _, m := range th.messages {
		if m.HiddenFor(viewerID) {
			continue
		}
		out = append(out, m.Clone())
	}
	return out
}

func (t *Timeline) Get(id string) (domain.Message, bool) {
	m, ok := t.byID[id]
	if !ok {
		return domain.Message{}, false
	}
	return m.Clone(), true
}

func (t *Timeline) Has(id string) bool {
	_, ok := t.byID[id]
	return ok
}

// MarkRead flags every stored message of the conversation as read.
func (t *Timeline) MarkRead(conversationID string) {
	th, ok := t.threads[conversationID]
	if !ok {
		return
	}
	for _, m := range th.messages {
		m.Read = true
	}
}

func (t *Timeline) Page(conversationID string) domain.PageState {
	th, ok := t.threads[conversationID]
	if !ok {
		return domain.PageState{}
	}
	return th.page
}

// Latest returns the newest stored message of the conversation.
func (t *Timeline) Latest(conversationID string) (domain.Message, bool) {
	th, ok := t.threads[conversationID]
	if !ok || len(th.messages) == 0 {
		return domain.Message{}, false
	}
	return th.messages[len(th.messages)-1].Clone(), true
}

func (t *Timeline) Len(conversationID string) int {
	th, ok := t.threads[conversationID]
	if !ok {
		return 0
	}
	return len(th.messages)
}

func less(a, b *domain.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
