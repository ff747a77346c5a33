package port

import (
	"context"

	"github.com/vedran77/pulsesync/internal/domain"
)

// Identity supplies the signed-in user. ok is false while nobody is signed in.
type Identity interface {
	CurrentUserID() (userID string, ok bool)
}

type SendRequest struct {
	ReceiverID string  `json:"receiver_id"`
	Content    *string `json:"content,omitempty"`
	FileURL    *string `json:"file_url,omitempty"`
}

// Transport is the request/response side of the backend. Every mutation
// returns the message as the backend stored it.
type Transport interface {
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID, cursor string, limit int) (*domain.MessagePage, error)
	SendMessage(ctx context.Context, req SendRequest) (*domain.Message, error)
	Reply(ctx context.Context, replyToID string, req SendRequest) (*domain.Message, error)
	AddReaction(ctx context.Context, messageID, emoji string) (*domain.Message, error)
	RemoveReaction(ctx context.Context, messageID, emoji string) (*domain.Message, error)
	SetPinned(ctx context.Context, messageID string, pinned bool) (*domain.Message, error)
	DeleteMessage(ctx context.Context, messageID string, scope domain.DeleteScope) (*domain.Message, error)
	MarkRead(ctx context.Context, conversationID string) error
}

// Push delivers server events. Listen blocks until ctx is done or the
// connection drops; delivery is at-least-once and unordered.
type Push interface {
	Listen(ctx context.Context, handle func(context.Context, domain.Event)) error
}
