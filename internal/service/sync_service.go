package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vedran77/pulsesync/internal/domain"
	"github.com/vedran77/pulsesync/internal/metrics"
	"github.com/vedran77/pulsesync/internal/port"
	"github.com/vedran77/pulsesync/internal/store"
	"github.com/vedran77/pulsesync/pkg/logger"
	"github.com/vedran77/pulsesync/pkg/validator"
)

const (
	defaultPageSize = 50
	minBackoff      = time.Second
	maxBackoff      = 30 * time.Second
)

var ErrConversationNotFound = errors.New("conversation not found")

// Notifier tells views that cached state changed.
type Notifier interface {
	NotifyMessages(conversationID string, focus bool)
	NotifyConversations()
	NotifyUnread(total int)
}

// SyncService owns the message timeline and the conversation directory and
// applies REST pages, push events and confirmed mutations to them through
// the same merge path.
type SyncService struct {
	mu        sync.Mutex
	timeline  *store.Timeline
	directory *store.Directory
	active    string
	unreadSet bool

	transport port.Transport
	push      port.Push
	identity  port.Identity
	notifier  Notifier
	metrics   *metrics.Metrics

	refetch    singleflight.Group
	pageSize   int
	minBackoff time.Duration
	maxBackoff time.Duration
	log        zerolog.Logger
}

func NewSyncService(transport port.Transport, push port.Push, identity port.Identity) *SyncService {
	s := &SyncService{
		timeline:   store.NewTimeline(),
		transport:  transport,
		push:       push,
		identity:   identity,
		pageSize:   defaultPageSize,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		log:        logger.Component("sync"),
	}
	unread := store.NewUnreadTracker()
	unread.OnChange(func(total int) {
		s.unreadSet = true
		s.metrics.SetUnread(total)
	})
	s.directory = store.NewDirectory(unread)
	return s
}

// SetNotifier sets the change notifier (optional dependency).
func (s *SyncService) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetMetrics sets the metrics sink (optional dependency).
func (s *SyncService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

func (s *SyncService) SetPageSize(n int) {
	if n > 0 {
		s.pageSize = n
	}
}

// pending collects what a locked section changed so notifications go out
// after the lock is released.
type pending struct {
	messages      map[string]bool
	conversations bool
	unread        bool
	total         int
}

func (p *pending) touch(conversationID string, focus bool) {
	if p.messages == nil {
		p.messages = make(map[string]bool)
	}
	p.messages[conversationID] = focus
}

// lockedChanges must be called with s.mu held.
func (s *SyncService) lockedChanges(p *pending) {
	if s.unreadSet {
		p.unread = true
		p.total = s.directory.Unread().Total()
		s.unreadSet = false
	}
	if p.conversations {
		s.metrics.SetConversations(s.directory.Len())
	}
}

func (s *SyncService) emit(p pending) {
	if s.notifier == nil {
		return
	}
	for id, focus := range p.messages {
		s.notifier.NotifyMessages(id, focus)
	}
	if p.conversations {
		s.notifier.NotifyConversations()
	}
	if p.unread {
		s.notifier.NotifyUnread(p.total)
	}
}

// currentUser returns the signed-in user id or "".
func (s *SyncService) currentUser() string {
	if s.identity == nil {
		return ""
	}
	id, ok := s.identity.CurrentUserID()
	if !ok {
		return ""
	}
	return id
}

// SetActive marks the conversation on screen. Changes to any other
// conversation are announced without focus.
func (s *SyncService) SetActive(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = conversationID
}

func (s *SyncService) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// LoadConversations replaces the directory with a fresh listing. Concurrent
// callers share one request.
func (s *SyncService) LoadConversations(ctx context.Context) error {
	_, err, shared := s.refetch.Do("conversations", func() (any, error) {
		s.metrics.Refetch()
		convs, err := s.transport.ListConversations(ctx)
		if err != nil {
			s.metrics.TransportError("list_conversations")
			return nil, fmt.Errorf("listing conversations: %w", err)
		}

		valid := make([]domain.Conversation, 0, len(convs))
		for _, c := range convs {
			if errs := validator.ValidateConversation(&c); errs.HasErrors() {
				s.log.Warn().Str("conversation_id", c.ID).Str("reason", errs.Error()).Msg("skipping invalid conversation")
				continue
			}
			valid = append(valid, c)
		}

		var p pending
		s.mu.Lock()
		s.directory.ReplaceAll(valid)
		p.conversations = true
		s.lockedChanges(&p)
		s.mu.Unlock()

		s.emit(p)
		s.log.Debug().Int("conversations", len(valid)).Msg("conversation list refreshed")
		return nil, nil
	})
	if shared {
		s.log.Debug().Msg("joined in-flight conversation refetch")
	}
	return err
}

// LoadMessages fetches the newest page of a conversation.
func (s *SyncService) LoadMessages(ctx context.Context, conversationID string) error {
	return s.loadPage(ctx, conversationID, "")
}

// LoadOlder fetches the next page back in history. It reports false without
// calling the backend when the history is exhausted.
func (s *SyncService) LoadOlder(ctx context.Context, conversationID string) (bool, error) {
	page := s.Page(conversationID)
	if !page.Loaded {
		return true, s.loadPage(ctx, conversationID, "")
	}
	if !page.HasMore || page.NextCursor == "" {
		return false, nil
	}
	return true, s.loadPage(ctx, conversationID, page.NextCursor)
}

func (s *SyncService) loadPage(ctx context.Context, conversationID, cursor string) error {
	page, err := s.transport.ListMessages(ctx, conversationID, cursor, s.pageSize)
	if err != nil {
		s.metrics.TransportError("list_messages")
		return fmt.Errorf("listing messages: %w", err)
	}

	valid := make([]domain.Message, 0, len(page.Messages))
	for _, m := range page.Messages {
		if m.ConversationID == "" {
			m.ConversationID = conversationID
		}
		if errs := validator.ValidateMessage(&m); errs.HasErrors() {
			s.log.Warn().Str("message_id", m.ID).Str("reason", errs.Error()).Msg("skipping invalid message")
			continue
		}
		valid = append(valid, m)
	}

	me := s.currentUser()
	var p pending
	s.mu.Lock()
	s.timeline.LoadPage(conversationID, valid, page.NextCursor, page.NextCursor != "")
	if latest, ok := s.timeline.Latest(conversationID); ok {
		if created, tracked := s.directory.TrackMessage(latest, me); tracked {
			p.conversations = true
			if created {
				s.log.Debug().Str("conversation_id", conversationID).Msg("conversation created from page")
			}
		}
	}
	p.touch(conversationID, conversationID == s.active)
	s.lockedChanges(&p)
	s.mu.Unlock()

	s.emit(p)
	return nil
}

// HandleEvent applies a push event. Invalid and duplicate events are
// dropped silently. When the event's conversation is unknown and the
// counterpart cannot be determined, the listing is refetched instead.
func (s *SyncService) HandleEvent(ctx context.Context, ev domain.Event) error {
	eventType := string(ev.Type)
	if ev.Type != domain.EventMessageNew && ev.Type != domain.EventMessageUpdated {
		s.metrics.PushEvent(eventType, metrics.OutcomeInvalid)
		s.log.Warn().Str("type", eventType).Msg("ignoring unknown push event")
		return nil
	}
	if errs := validator.ValidateMessage(&ev.Message); errs.HasErrors() {
		s.metrics.PushEvent(eventType, metrics.OutcomeInvalid)
		s.log.Warn().Str("type", eventType).Str("reason", errs.Error()).Msg("ignoring invalid push event")
		return nil
	}

	res := s.apply(ev.Message)
	switch {
	case res.duplicate:
		s.metrics.PushEvent(eventType, metrics.OutcomeDuplicate)
		return nil
	case !res.tracked:
		s.metrics.PushEvent(eventType, metrics.OutcomeDeferred)
		s.log.Info().
			Str("message_id", ev.Message.ID).
			Str("conversation_id", ev.Message.ConversationID).
			Msg("push event for unknown conversation, refetching list")
		return s.LoadConversations(ctx)
	default:
		s.metrics.PushEvent(eventType, metrics.OutcomeApplied)
		return nil
	}
}

type applyResult struct {
	message   domain.Message
	inserted  bool
	duplicate bool
	tracked   bool
}

// apply is the single write path for message snapshots. Unread grows the
// first time a snapshot inserts a message, whichever event carried it, so
// the count does not depend on delivery order.
func (s *SyncService) apply(m domain.Message) applyResult {
	me := s.currentUser()
	var p pending

	s.mu.Lock()
	before, existed := s.timeline.Get(m.ID)
	inserted := s.timeline.Upsert(m)
	stored, _ := s.timeline.Get(m.ID)
	if existed && reflect.DeepEqual(before, stored) {
		s.mu.Unlock()
		return applyResult{message: stored, duplicate: true, tracked: true}
	}

	var tracked bool
	if inserted {
		_, tracked = s.directory.UpsertFromMessage(stored, me)
	} else {
		_, tracked = s.directory.TrackMessage(stored, me)
	}
	p.touch(stored.ConversationID, stored.ConversationID == s.active)
	p.conversations = tracked
	s.lockedChanges(&p)
	s.mu.Unlock()

	s.emit(p)
	return applyResult{message: stored, inserted: inserted, tracked: tracked}
}

// applyDeletion records a confirmed deletion. snapshot may be nil when the
// backend answers without a body.
func (s *SyncService) applyDeletion(snapshot *domain.Message, id, userID string, scope domain.DeleteScope) domain.Message {
	var p pending

	s.mu.Lock()
	if snapshot != nil {
		s.timeline.Upsert(*snapshot)
	}
	s.timeline.MarkDeleted(id, userID, scope)
	stored, ok := s.timeline.Get(id)
	if ok {
		p.conversations = true
		s.directory.TrackMessage(stored, userID)
		p.touch(stored.ConversationID, stored.ConversationID == s.active)
	}
	s.lockedChanges(&p)
	s.mu.Unlock()

	s.emit(p)
	return stored
}

func (s *SyncService) applyRead(conversationID string) {
	var p pending

	s.mu.Lock()
	s.directory.MarkRead(conversationID)
	s.timeline.MarkRead(conversationID)
	p.conversations = true
	p.touch(conversationID, conversationID == s.active)
	s.lockedChanges(&p)
	s.mu.Unlock()

	s.emit(p)
}

// Run keeps the cache in sync until ctx is done: it refetches the listing,
// listens for push events, and reconnects with backoff when the push
// connection drops. Events may be missed while disconnected, so every
// reconnect starts with a refetch.
func (s *SyncService) Run(ctx context.Context) error {
	backoff := s.minBackoff
	for {
		if err := s.LoadConversations(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("initial conversation fetch failed")
		}

		started := time.Now()
		err := s.push.Listen(ctx, s.handlePush)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) > s.maxBackoff {
			backoff = s.minBackoff
		}
		s.log.Warn().Err(err).Dur("retry_in", backoff).Msg("push connection lost")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, s.maxBackoff)
	}
}

func (s *SyncService) handlePush(ctx context.Context, ev domain.Event) {
	if err := s.HandleEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("type", string(ev.Type)).Msg("applying push event")
	}
}

// Conversations returns the directory, most recently active first.
func (s *SyncService) Conversations() []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.directory.List()
}

func (s *SyncService) Conversation(id string) (domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.directory.Get(id)
}

// Messages returns the conversation as the current user sees it.
func (s *SyncService) Messages(conversationID string) []domain.Message {
	me := s.currentUser()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Query(conversationID, me)
}

func (s *SyncService) Message(id string) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Get(id)
}

func (s *SyncService) UnreadTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.directory.Unread().Total()
}

func (s *SyncService) Page(conversationID string) domain.PageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Page(conversationID)
}
