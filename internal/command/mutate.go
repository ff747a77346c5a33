package command

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/vedran77/pulsesync/internal/domain"
	"github.com/vedran77/pulsesync/internal/service"
)

const lookupPages = 5

func printResult(cmd *cobra.Command, ctx *CommandContext, msg *domain.Message) {
	if ctx.JSONMode {
		writeJSON(cmd, msg)
		return
	}
	cmd.Println(formatMessage(*msg, ctx.currentUser()))
}

// NewSendCmd creates the send command.
func NewSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <user-id> [message...]",
		Short: "Send a direct message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			fileURL, _ := cmd.Flags().GetString("file")

			if err := ctx.Sync.LoadConversations(cmd.Context()); err != nil {
				return writeCommandError(cmd, err)
			}
			msg, err := ctx.Messages.Send(cmd.Context(), args[0], service.SendMessageInput{
				Content: strings.Join(args[1:], " "),
				FileURL: fileURL,
			})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			printResult(cmd, ctx, msg)
			return nil
		},
	}

	cmd.Flags().String("file", "", "attachment url")
	return cmd
}

// NewReplyCmd creates the reply command.
func NewReplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reply <conversation-id> <message-id> <message...>",
		Short: "Reply to a message",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.loadMessage(cmd.Context(), args[0], args[1], lookupPages); err != nil {
				return writeCommandError(cmd, err)
			}
			msg, err := ctx.Messages.Reply(cmd.Context(), args[1], service.SendMessageInput{
				Content: strings.Join(args[2:], " "),
			})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			printResult(cmd, ctx, msg)
			return nil
		},
	}

	return cmd
}

// NewReactCmd creates the react command.
func NewReactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "react <conversation-id> <message-id> <emoji>",
		Short: "React to a message, replacing your previous reaction",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.loadMessage(cmd.Context(), args[0], args[1], lookupPages); err != nil {
				return writeCommandError(cmd, err)
			}
			msg, err := ctx.Messages.React(cmd.Context(), args[1], args[2])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			printResult(cmd, ctx, msg)
			return nil
		},
	}

	return cmd
}

// NewUnreactCmd creates the unreact command.
func NewUnreactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unreact <conversation-id> <message-id> <emoji>",
		Short: "Remove your reaction from a message",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.loadMessage(cmd.Context(), args[0], args[1], lookupPages); err != nil {
				return writeCommandError(cmd, err)
			}
			msg, err := ctx.Messages.Unreact(cmd.Context(), args[1], args[2])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			printResult(cmd, ctx, msg)
			return nil
		},
	}

	return cmd
}

// NewPinCmd creates the pin command.
func NewPinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin <conversation-id> <message-id>",
		Short: "Toggle the pinned flag of a message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.loadMessage(cmd.Context(), args[0], args[1], lookupPages); err != nil {
				return writeCommandError(cmd, err)
			}
			msg, err := ctx.Messages.TogglePin(cmd.Context(), args[1])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			printResult(cmd, ctx, msg)
			return nil
		},
	}

	return cmd
}

// NewDeleteCmd creates the delete command.
func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <conversation-id> <message-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a message for yourself or for everyone",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			everyone, _ := cmd.Flags().GetBool("everyone")
			scope := domain.DeleteForMe
			if everyone {
				scope = domain.DeleteForEveryone
			}

			if err := ctx.loadMessage(cmd.Context(), args[0], args[1], lookupPages); err != nil {
				return writeCommandError(cmd, err)
			}
			msg, err := ctx.Messages.Delete(cmd.Context(), args[1], scope)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			printResult(cmd, ctx, msg)
			return nil
		},
	}

	cmd.Flags().Bool("everyone", false, "delete for every participant (own messages only)")
	return cmd
}

// NewReadCmd creates the read command.
func NewReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <conversation-id>",
		Short: "Mark a conversation as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.Sync.LoadConversations(cmd.Context()); err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.Messages.MarkRead(cmd.Context(), args[0]); err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				writeJSON(cmd, map[string]any{"conversation_id": args[0], "unread": ctx.Sync.UnreadTotal()})
				return nil
			}
			cmd.Printf("Marked %s as read. unread: %d\n", args[0], ctx.Sync.UnreadTotal())
			return nil
		},
	}

	return cmd
}
