package validator

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/vedran77/pulsesync/internal/domain"
)

const (
	maxContentLength = 4000
	maxEmojiLength   = 32
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

// Error joins the messages in field order so the output is stable.
func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, v[field]))
	}
	return strings.Join(parts, "; ")
}

// ValidateSend checks an outgoing message. Either content or an attachment is required.
func ValidateSend(receiverID string, content, fileURL *string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(receiverID) == "" {
		errs.Add("receiver_id", "Receiver is required")
	}

	hasContent := content != nil && strings.TrimSpace(*content) != ""
	hasFile := fileURL != nil && strings.TrimSpace(*fileURL) != ""
	if !hasContent && !hasFile {
		errs.Add("content", "Message content or a file is required")
	}
	if content != nil && utf8.RuneCountInString(*content) > maxContentLength {
		errs.Add("content", "Message is too long")
	}
	if hasFile {
		validateFileURL(*fileURL, errs)
	}

	return errs
}

func ValidateEmoji(emoji string) ValidationErrors {
	errs := make(ValidationErrors)

	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		errs.Add("emoji", "Emoji is required")
	} else if len(emoji) > maxEmojiLength {
		errs.Add("emoji", "Emoji is too long")
	} else if strings.ContainsAny(emoji, " /?#") {
		errs.Add("emoji", "Emoji contains invalid characters")
	}

	return errs
}

func ValidateScope(scope domain.DeleteScope) ValidationErrors {
	errs := make(ValidationErrors)
	if !scope.Valid() {
		errs.Add("scope", "Scope must be for_me or for_everyone")
	}
	return errs
}

// ValidateMessage checks a message received from the backend before it
// reaches the store.
func ValidateMessage(m *domain.Message) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(m.ID) == "" {
		errs.Add("id", "Message ID is required")
	}
	if strings.TrimSpace(m.ConversationID) == "" {
		errs.Add("conversation_id", "Conversation ID is required")
	}
	if strings.TrimSpace(m.SenderID) == "" {
		errs.Add("sender_id", "Sender is required")
	}
	if m.CreatedAt.IsZero() {
		errs.Add("created_at", "Creation time is required")
	}
	for emoji := range m.Reactions {
		if strings.TrimSpace(emoji) == "" {
			errs.Add("reactions", "Reaction emoji cannot be empty")
			break
		}
	}

	return errs
}

// ValidateConversation checks a listing entry.
func ValidateConversation(c *domain.Conversation) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(c.ID) == "" {
		errs.Add("id", "Conversation ID is required")
	}
	if strings.TrimSpace(c.ParticipantID) == "" && strings.TrimSpace(c.Participant.ID) == "" {
		errs.Add("participant_id", "Participant is required")
	}
	if c.UnreadCount < 0 {
		errs.Add("unread_count", "Unread count cannot be negative")
	}

	return errs
}

func validateFileURL(raw string, errs ValidationErrors) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		errs.Add("file_url", "Invalid file URL")
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errs.Add("file_url", "File URL must use http or https")
	}
}
