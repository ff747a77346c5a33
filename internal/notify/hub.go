package notify

import (
	"context"

	"github.com/vedran77/pulsesync/pkg/logger"
)

const (
	subscriberBufSize = 64
	broadcastBufSize  = 256
)

type ChangeKind string

const (
	ChangeMessages      ChangeKind = "messages"
	ChangeConversations ChangeKind = "conversations"
	ChangeUnread        ChangeKind = "unread"
)

// Change tells views that part of the cache moved. Focus is set only for
// the conversation currently on screen; other views must not scroll or
// steal focus because of it.
type Change struct {
	Kind           ChangeKind `json:"kind"`
	ConversationID string     `json:"conversation_id,omitempty"`
	Focus          bool       `json:"focus,omitempty"`
	Unread         int        `json:"unread,omitempty"`
}

// Subscriber receives changes until it is closed or the hub stops.
type Subscriber struct {
	hub     *Hub
	changes chan Change
}

func (s *Subscriber) Changes() <-chan Change {
	return s.changes
}

func (s *Subscriber) Close() {
	select {
	case s.hub.unregister <- s:
	case <-s.hub.done:
	}
}

// Hub fans cache changes out to subscribed views.
type Hub struct {
	subscribers map[*Subscriber]struct{}

	register   chan *Subscriber
	unregister chan *Subscriber
	broadcast  chan Change
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		broadcast:   make(chan Change, broadcastBufSize),
		done:        make(chan struct{}),
	}
}

// Run starts the Hub's main event loop. Call this in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	log := logger.Component("notify")
	defer func() {
		for s := range h.subscribers {
			delete(h.subscribers, s)
			close(s.changes)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.register:
			h.subscribers[s] = struct{}{}
			log.Debug().Int("subscribers", len(h.subscribers)).Msg("subscriber added")

		case s := <-h.unregister:
			if _, ok := h.subscribers[s]; ok {
				delete(h.subscribers, s)
				close(s.changes)
				log.Debug().Int("subscribers", len(h.subscribers)).Msg("subscriber removed")
			}

		case change := <-h.broadcast:
			for s := range h.subscribers {
				select {
				case s.changes <- change:
				default:
					// Subscriber buffer full - drop it
					delete(h.subscribers, s)
					close(s.changes)
					log.Warn().Str("kind", string(change.Kind)).Msg("dropping slow subscriber")
				}
			}
		}
	}
}

// Subscribe registers a new subscriber. It returns nil once the hub has stopped.
func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{hub: h, changes: make(chan Change, subscriberBufSize)}
	select {
	case h.register <- s:
		return s
	case <-h.done:
		return nil
	}
}

func (h *Hub) publish(change Change) {
	select {
	case h.broadcast <- change:
	case <-h.done:
	default:
		logger.Warn().Str("component", "notify").Str("kind", string(change.Kind)).Msg("broadcast queue full, change dropped")
	}
}

func (h *Hub) NotifyMessages(conversationID string, focus bool) {
	h.publish(Change{Kind: ChangeMessages, ConversationID: conversationID, Focus: focus})
}

func (h *Hub) NotifyConversations() {
	h.publish(Change{Kind: ChangeConversations})
}

func (h *Hub) NotifyUnread(total int) {
	h.publish(Change{Kind: ChangeUnread, Unread: total})
}
