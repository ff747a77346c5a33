package store

import (
	"slices"

	"github.com/vedran77/pulsesync/internal/domain"
)

// MergeMessage folds an incoming snapshot into the stored message.
//
// Precedence:
//   - ID, ConversationID, SenderID and CreatedAt never change once set.
//   - Content, FileURL, ReplyToID and EditedAt take the incoming value when present.
//   - ReceiverID takes the incoming value when non-empty.
//   - Reactions and DeletedBy are replaced wholesale when present.
//   - Pinned always takes the incoming value.
//   - Deleted and Read only ever go from false to true.
//   - A deleted message carries no content or attachment.
func MergeMessage(existing, incoming domain.Message) domain.Message {
	out := existing.Clone()
	in := incoming.Clone()

	if out.ID == "" {
		out.ID = in.ID
	}
	if out.ConversationID == "" {
		out.ConversationID = in.ConversationID
	}
	if out.SenderID == "" {
		out.SenderID = in.SenderID
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = in.CreatedAt
	}

	if in.ReceiverID != "" {
		out.ReceiverID = in.ReceiverID
	}
	if in.Content != nil {
		out.Content = in.Content
	}
	if in.FileURL != nil {
		out.FileURL = in.FileURL
	}
	if in.ReplyToID != nil {
		out.ReplyToID = in.ReplyToID
	}
	if in.EditedAt != nil {
		out.EditedAt = in.EditedAt
	}
	if in.Reactions != nil {
		out.Reactions = in.Reactions.Normalize()
	}
	if in.DeletedBy != nil {
		out.DeletedBy = normalizeUsers(in.DeletedBy)
	}

	out.Pinned = in.Pinned
	out.Deleted = out.Deleted || in.Deleted
	out.Read = out.Read || in.Read

	if out.Deleted {
		out.Content = nil
		out.FileURL = nil
	}
	return out
}

// normalizeMessage brings a record from the wire into the stored shape.
func normalizeMessage(m domain.Message) domain.Message {
	out := m.Clone()
	out.Reactions = out.Reactions.Normalize()
	if out.DeletedBy != nil {
		out.DeletedBy = normalizeUsers(out.DeletedBy)
	}
	if out.Deleted {
		out.Content = nil
		out.FileURL = nil
	}
	return out
}

func normalizeUsers(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
