package command

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vedran77/pulsesync/internal/domain"
)

const previewLength = 60

func writeJSON(cmd *cobra.Command, v any) {
	_ = json.NewEncoder(cmd.OutOrStdout()).Encode(v)
}

func (c *CommandContext) currentUser() string {
	id, _ := c.Session.CurrentUserID()
	return id
}

func printConversations(cmd *cobra.Command, convs []domain.Conversation) {
	if len(convs) == 0 {
		cmd.Println("No conversations")
		return
	}
	for _, conv := range convs {
		name := conv.Participant.DisplayName
		if name == "" {
			name = conv.Participant.Username
		}
		if name == "" {
			name = conv.ParticipantID
		}
		unread := ""
		if conv.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d)", conv.UnreadCount)
		}
		preview := ""
		if conv.LastMessage != nil {
			preview = previewText(conv.LastMessage.Content, conv.LastMessage.FileURL)
		}
		cmd.Printf("%s  %s%s  %s\n", conv.ID, name, unread, preview)
	}
}

func printMessages(cmd *cobra.Command, messages []domain.Message, me string) {
	if len(messages) == 0 {
		cmd.Println("No messages")
		return
	}
	for _, m := range messages {
		cmd.Println(formatMessage(m, me))
	}
}

func formatMessage(m domain.Message, me string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s: ", m.ID, m.CreatedAt.Local().Format(time.DateTime), author(m.SenderID, me))
	switch {
	case m.Deleted:
		b.WriteString("(deleted)")
	default:
		b.WriteString(previewText(m.Content, m.FileURL))
	}
	if m.ReplyToID != nil {
		fmt.Fprintf(&b, " ↩ %s", *m.ReplyToID)
	}
	if m.EditedAt != nil && !m.Deleted {
		b.WriteString(" (edited)")
	}
	if m.Pinned {
		b.WriteString(" 📌")
	}
	if len(m.Reactions) > 0 {
		b.WriteString("  ")
		b.WriteString(formatReactions(m.Reactions))
	}
	return b.String()
}

func author(senderID, me string) string {
	if senderID != "" && senderID == me {
		return "you"
	}
	return senderID
}

func previewText(content, fileURL *string) string {
	if content != nil && *content != "" {
		text := strings.Join(strings.Fields(*content), " ")
		if r := []rune(text); len(r) > previewLength {
			return string(r[:previewLength-1]) + "…"
		}
		return text
	}
	if fileURL != nil && *fileURL != "" {
		return "[file] " + *fileURL
	}
	return ""
}

func formatReactions(r domain.Reactions) string {
	emojis := make([]string, 0, len(r))
	for emoji := range r {
		emojis = append(emojis, emoji)
	}
	sort.Strings(emojis)

	parts := make([]string, 0, len(emojis))
	for _, emoji := range emojis {
		parts = append(parts, fmt.Sprintf("%s %d", emoji, len(r[emoji])))
	}
	return strings.Join(parts, " ")
}
