package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/vedran77/pulsesync/internal/domain"
	"github.com/vedran77/pulsesync/internal/port"
	"github.com/vedran77/pulsesync/pkg/validator"
)

var (
	ErrMessageNotFound   = errors.New("message not found")
	ErrNotMessageOwner   = errors.New("only the message sender can perform this action")
	ErrNoIdentity        = errors.New("no signed-in user")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidResponse   = errors.New("invalid response from backend")
	ErrCannotMessageSelf = errors.New("cannot send a message to yourself")
	ErrInvalidScope      = fmt.Errorf("%w: delete scope", ErrInvalidInput)
)

// MessageService turns user intents into backend calls and applies the
// confirmed results to the cache. Nothing is applied when a call fails and
// calls are never retried.
type MessageService struct {
	sync  *SyncService
	locks *keyedLocks
}

func NewMessageService(sync *SyncService) *MessageService {
	return &MessageService{
		sync:  sync,
		locks: newKeyedLocks(),
	}
}

type SendMessageInput struct {
	Content string `json:"content"`
	FileURL string `json:"file_url,omitempty"`
}

func (in SendMessageInput) request(receiverID string) port.SendRequest {
	req := port.SendRequest{ReceiverID: receiverID}
	if strings.TrimSpace(in.Content) != "" {
		content := in.Content
		req.Content = &content
	}
	if strings.TrimSpace(in.FileURL) != "" {
		fileURL := strings.TrimSpace(in.FileURL)
		req.FileURL = &fileURL
	}
	return req
}

// Send posts a new message to receiverID. The conversation is created
// locally on first contact.
func (s *MessageService) Send(ctx context.Context, receiverID string, input SendMessageInput) (*domain.Message, error) {
	me, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if receiverID == me {
		return nil, ErrCannotMessageSelf
	}

	req := input.request(receiverID)
	if errs := validator.ValidateSend(receiverID, req.Content, req.FileURL); errs.HasErrors() {
		return nil, invalidInput(errs)
	}

	msg, err := s.sync.transport.SendMessage(ctx, req)
	if err != nil {
		s.sync.metrics.TransportError("send")
		return nil, fmt.Errorf("sending message: %w", err)
	}
	return s.applyConfirmed(msg)
}

// Reply answers replyToID in its conversation.
func (s *MessageService) Reply(ctx context.Context, replyToID string, input SendMessageInput) (*domain.Message, error) {
	me, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	original, ok := s.sync.Message(replyToID)
	if !ok {
		return nil, ErrMessageNotFound
	}

	receiverID := original.Counterpart(me)
	req := input.request(receiverID)
	if errs := validator.ValidateSend(receiverID, req.Content, req.FileURL); errs.HasErrors() {
		return nil, invalidInput(errs)
	}

	msg, err := s.sync.transport.Reply(ctx, replyToID, req)
	if err != nil {
		s.sync.metrics.TransportError("reply")
		return nil, fmt.Errorf("replying to message: %w", err)
	}
	if msg != nil && msg.ReplyToID == nil {
		msg.ReplyToID = &replyToID
	}
	return s.applyConfirmed(msg)
}

// React toggles emoji for the current user. A user holds at most one
// reaction per message: reacting with the held emoji removes it, reacting
// with a different one removes the old emoji first, then adds the new one.
// When the add fails, the removal of the old emoji stays committed in the
// cache since the backend already confirmed it.
func (s *MessageService) React(ctx context.Context, messageID, emoji string) (*domain.Message, error) {
	me, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if errs := validator.ValidateEmoji(emoji); errs.HasErrors() {
		return nil, invalidInput(errs)
	}

	release, err := s.locks.acquire(ctx, messageID)
	if err != nil {
		return nil, err
	}
	defer release()

	msg, ok := s.sync.Message(messageID)
	if !ok {
		return nil, ErrMessageNotFound
	}

	held := msg.Reactions.EmojisOf(me)
	for _, old := range held {
		if old == emoji {
			continue
		}
		if _, err := s.removeReaction(ctx, messageID, old); err != nil {
			return nil, err
		}
	}
	if slices.Contains(held, emoji) {
		return s.removeReaction(ctx, messageID, emoji)
	}

	updated, err := s.sync.transport.AddReaction(ctx, messageID, emoji)
	if err != nil {
		s.sync.metrics.TransportError("add_reaction")
		return nil, fmt.Errorf("adding reaction: %w", err)
	}
	return s.applyConfirmed(updated)
}

// Unreact removes emoji for the current user. It is a no-op when the user
// holds no such reaction.
func (s *MessageService) Unreact(ctx context.Context, messageID, emoji string) (*domain.Message, error) {
	me, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if errs := validator.ValidateEmoji(emoji); errs.HasErrors() {
		return nil, invalidInput(errs)
	}

	release, err := s.locks.acquire(ctx, messageID)
	if err != nil {
		return nil, err
	}
	defer release()

	msg, ok := s.sync.Message(messageID)
	if !ok {
		return nil, ErrMessageNotFound
	}
	if !msg.Reactions.Has(emoji, me) {
		return &msg, nil
	}
	return s.removeReaction(ctx, messageID, emoji)
}

func (s *MessageService) removeReaction(ctx context.Context, messageID, emoji string) (*domain.Message, error) {
	updated, err := s.sync.transport.RemoveReaction(ctx, messageID, emoji)
	if err != nil {
		s.sync.metrics.TransportError("remove_reaction")
		return nil, fmt.Errorf("removing reaction: %w", err)
	}
	return s.applyConfirmed(updated)
}

// TogglePin flips the pinned flag.
func (s *MessageService) TogglePin(ctx context.Context, messageID string) (*domain.Message, error) {
	if _, err := s.requireUser(); err != nil {
		return nil, err
	}

	release, err := s.locks.acquire(ctx, messageID)
	if err != nil {
		return nil, err
	}
	defer release()

	msg, ok := s.sync.Message(messageID)
	if !ok {
		return nil, ErrMessageNotFound
	}

	updated, err := s.sync.transport.SetPinned(ctx, messageID, !msg.Pinned)
	if err != nil {
		s.sync.metrics.TransportError("pin")
		return nil, fmt.Errorf("pinning message: %w", err)
	}
	return s.applyConfirmed(updated)
}

// Delete removes a message for the current user only, or for every
// participant when the current user wrote it.
func (s *MessageService) Delete(ctx context.Context, messageID string, scope domain.DeleteScope) (*domain.Message, error) {
	me, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if errs := validator.ValidateScope(scope); errs.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidScope, errs.Error())
	}

	release, err := s.locks.acquire(ctx, messageID)
	if err != nil {
		return nil, err
	}
	defer release()

	msg, ok := s.sync.Message(messageID)
	if !ok {
		return nil, ErrMessageNotFound
	}
	if scope == domain.DeleteForEveryone && msg.SenderID != me {
		return nil, ErrNotMessageOwner
	}

	updated, err := s.sync.transport.DeleteMessage(ctx, messageID, scope)
	if err != nil {
		s.sync.metrics.TransportError("delete")
		return nil, fmt.Errorf("deleting message: %w", err)
	}
	if updated != nil {
		if errs := validator.ValidateMessage(updated); errs.HasErrors() || updated.ID != messageID {
			updated = nil
		}
	}

	stored := s.sync.applyDeletion(updated, messageID, me, scope)
	return &stored, nil
}

// MarkRead clears the conversation's unread count once the backend
// acknowledges it.
func (s *MessageService) MarkRead(ctx context.Context, conversationID string) error {
	if _, ok := s.sync.Conversation(conversationID); !ok {
		return ErrConversationNotFound
	}
	if err := s.sync.transport.MarkRead(ctx, conversationID); err != nil {
		s.sync.metrics.TransportError("mark_read")
		return fmt.Errorf("marking conversation read: %w", err)
	}
	s.sync.applyRead(conversationID)
	return nil
}

func (s *MessageService) applyConfirmed(msg *domain.Message) (*domain.Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidResponse)
	}
	if errs := validator.ValidateMessage(msg); errs.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, errs.Error())
	}
	res := s.sync.apply(*msg)
	return &res.message, nil
}

func (s *MessageService) requireUser() (string, error) {
	me := s.sync.currentUser()
	if me == "" {
		return "", ErrNoIdentity
	}
	return me, nil
}

func invalidInput(errs validator.ValidationErrors) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, errs.Error())
}
