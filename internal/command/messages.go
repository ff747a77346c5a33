package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMessagesCmd creates the messages command.
func NewMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages <conversation-id>",
		Short: "Show a conversation's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			pages, _ := cmd.Flags().GetInt("pages")
			if pages < 1 {
				return writeCommandError(cmd, fmt.Errorf("--pages must be at least 1"))
			}

			conversationID := args[0]
			if err := ctx.Sync.LoadConversations(cmd.Context()); err != nil {
				return writeCommandError(cmd, err)
			}
			ctx.Sync.SetActive(conversationID)
			for i := 0; i < pages; i++ {
				more, err := ctx.Sync.LoadOlder(cmd.Context(), conversationID)
				if err != nil {
					return writeCommandError(cmd, err)
				}
				if !more {
					break
				}
			}

			messages := ctx.Sync.Messages(conversationID)
			page := ctx.Sync.Page(conversationID)
			if ctx.JSONMode {
				writeJSON(cmd, map[string]any{
					"messages": messages,
					"has_more": page.HasMore,
				})
				return nil
			}
			printMessages(cmd, messages, ctx.currentUser())
			if page.HasMore {
				cmd.Println("(older messages available, use --pages)")
			}
			return nil
		},
	}

	cmd.Flags().Int("pages", 1, "number of pages to load")
	return cmd
}
