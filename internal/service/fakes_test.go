package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vedran77/pulsesync/internal/domain"
	"github.com/vedran77/pulsesync/internal/port"
)

const (
	me    = "u1"
	other = "u2"
)

var errBackend = errors.New("backend unavailable")

func strPtr(value string) *string {
	return &value
}

func at(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func incoming(id, conversationID, sender string, sec int64) domain.Message {
	return domain.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       sender,
		ReceiverID:     me,
		Content:        strPtr("body " + id),
		CreatedAt:      at(sec),
	}
}

func messageIDs(messages []domain.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.ID)
	}
	return out
}

type staticIdentity string

func (s staticIdentity) CurrentUserID() (string, bool) {
	return string(s), s != ""
}

// fakeTransport plays the backend: it keeps its own copy of every message
// and answers mutations with the stored result.
type fakeTransport struct {
	mu sync.Mutex

	user          string
	conversations []domain.Conversation
	pages         map[string]domain.MessagePage
	messages      map[string]domain.Message
	err           error
	addErr        error

	calls     []string
	listCalls int
	nextID    int
}

func newFakeTransport(user string) *fakeTransport {
	return &fakeTransport{
		user:     user,
		pages:    make(map[string]domain.MessagePage),
		messages: make(map[string]domain.Message),
	}
}

func (f *fakeTransport) seed(messages ...domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range messages {
		f.messages[m.ID] = m.Clone()
	}
}

func (f *fakeTransport) setPage(conversationID, cursor string, page domain.MessagePage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[conversationID+"|"+cursor] = page
	for _, m := range page.Messages {
		f.messages[m.ID] = m.Clone()
	}
}

func (f *fakeTransport) setConversations(conversations ...domain.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations = conversations
}

func (f *fakeTransport) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeTransport) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeTransport) listed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeTransport) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeTransport) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if err := f.record("list"); err != nil {
		return nil, err
	}
	out := make([]domain.Conversation, 0, len(f.conversations))
	for _, c := range f.conversations {
		out = append(out, c.Clone())
	}
	return out, nil
}

func (f *fakeTransport) ListMessages(ctx context.Context, conversationID, cursor string, limit int) (*domain.MessagePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("messages " + conversationID + " " + cursor); err != nil {
		return nil, err
	}
	page := f.pages[conversationID+"|"+cursor]
	return &page, nil
}

func (f *fakeTransport) SendMessage(ctx context.Context, req port.SendRequest) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("send " + req.ReceiverID); err != nil {
		return nil, err
	}
	return f.create(req, nil), nil
}

func (f *fakeTransport) Reply(ctx context.Context, replyToID string, req port.SendRequest) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("reply " + replyToID); err != nil {
		return nil, err
	}
	return f.create(req, &replyToID), nil
}

func (f *fakeTransport) create(req port.SendRequest, replyToID *string) *domain.Message {
	f.nextID++
	conversationID := "c-" + req.ReceiverID
	for _, c := range f.conversations {
		if c.ParticipantID == req.ReceiverID {
			conversationID = c.ID
		}
	}
	m := domain.Message{
		ID:             fmt.Sprintf("s%d", f.nextID),
		ConversationID: conversationID,
		SenderID:       f.user,
		ReceiverID:     req.ReceiverID,
		Content:        req.Content,
		FileURL:        req.FileURL,
		ReplyToID:      replyToID,
		CreatedAt:      at(int64(10_000 + f.nextID)),
	}
	f.messages[m.ID] = m
	out := m.Clone()
	return &out
}

func (f *fakeTransport) mutate(call, id string, fn func(m *domain.Message)) (*domain.Message, error) {
	if err := f.record(call); err != nil {
		return nil, err
	}
	m, ok := f.messages[id]
	if !ok {
		return nil, errors.New("not found")
	}
	m = m.Clone()
	fn(&m)
	f.messages[id] = m
	out := m.Clone()
	return &out, nil
}

func (f *fakeTransport) AddReaction(ctx context.Context, messageID, emoji string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		f.record("add " + emoji)
		return nil, f.addErr
	}
	return f.mutate("add "+emoji, messageID, func(m *domain.Message) {
		if m.Reactions == nil {
			m.Reactions = domain.Reactions{}
		}
		m.Reactions[emoji] = append(m.Reactions[emoji], f.user)
	})
}

func (f *fakeTransport) RemoveReaction(ctx context.Context, messageID, emoji string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutate("remove "+emoji, messageID, func(m *domain.Message) {
		if m.Reactions == nil {
			m.Reactions = domain.Reactions{}
		}
		users := slices.DeleteFunc(m.Reactions[emoji], func(id string) bool { return id == f.user })
		if len(users) == 0 {
			delete(m.Reactions, emoji)
		} else {
			m.Reactions[emoji] = users
		}
	})
}

func (f *fakeTransport) SetPinned(ctx context.Context, messageID string, pinned bool) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutate(fmt.Sprintf("pin %t", pinned), messageID, func(m *domain.Message) {
		m.Pinned = pinned
	})
}

func (f *fakeTransport) DeleteMessage(ctx context.Context, messageID string, scope domain.DeleteScope) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutate("delete "+string(scope), messageID, func(m *domain.Message) {
		if scope == domain.DeleteForEveryone {
			m.Deleted = true
			return
		}
		m.DeletedBy = append(m.DeletedBy, f.user)
	})
}

func (f *fakeTransport) MarkRead(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("read " + conversationID)
}

// fakePush hands each Listen call the next scripted session.
type fakePush struct {
	mu       sync.Mutex
	sessions []func(ctx context.Context, handle func(context.Context, domain.Event)) error
	listens  int
}

func (p *fakePush) Listen(ctx context.Context, handle func(context.Context, domain.Event)) error {
	p.mu.Lock()
	p.listens++
	var session func(context.Context, func(context.Context, domain.Event)) error
	if len(p.sessions) > 0 {
		session = p.sessions[0]
		p.sessions = p.sessions[1:]
	}
	p.mu.Unlock()

	if session == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return session(ctx, handle)
}

func (p *fakePush) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listens
}

type change struct {
	kind           string
	conversationID string
	focus          bool
	unread         int
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []change
}

func (n *recordingNotifier) NotifyMessages(conversationID string, focus bool) {
	n.add(change{kind: "messages", conversationID: conversationID, focus: focus})
}

func (n *recordingNotifier) NotifyConversations() {
	n.add(change{kind: "conversations"})
}

func (n *recordingNotifier) NotifyUnread(total int) {
	n.add(change{kind: "unread", unread: total})
}

func (n *recordingNotifier) add(c change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, c)
}

func (n *recordingNotifier) ofKind(kind string) []change {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []change
	for _, c := range n.changes {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = nil
}

func newTestSync(user string) (*SyncService, *fakeTransport, *recordingNotifier) {
	transport := newFakeTransport(user)
	s := NewSyncService(transport, &fakePush{}, staticIdentity(user))
	notifier := &recordingNotifier{}
	s.SetNotifier(notifier)
	return s, transport, notifier
}

func knownConversation(id, participant string, sec int64, unread int) domain.Conversation {
	return domain.Conversation{
		ID:            id,
		ParticipantID: participant,
		Participant:   domain.Participant{ID: participant, Username: participant},
		LastMessageAt: at(sec),
		UnreadCount:   unread,
	}
}
