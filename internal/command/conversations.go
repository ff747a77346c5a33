package command

import (
	"github.com/spf13/cobra"
)

// NewConversationsCmd creates the conversations command.
func NewConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.Sync.LoadConversations(cmd.Context()); err != nil {
				return writeCommandError(cmd, err)
			}

			convs := ctx.Sync.Conversations()
			if ctx.JSONMode {
				writeJSON(cmd, map[string]any{
					"conversations": convs,
					"unread":        ctx.Sync.UnreadTotal(),
				})
				return nil
			}
			printConversations(cmd, convs)
			cmd.Printf("unread: %d\n", ctx.Sync.UnreadTotal())
			return nil
		},
	}

	return cmd
}
