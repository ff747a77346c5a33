package command

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vedran77/pulsesync/internal/config"
	"github.com/vedran77/pulsesync/pkg/logger"
)

const AppName = "pulsesync"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

// NewRootCmd creates the root command.
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Pulse DM sync client",
		Long:          "pulsesync keeps a local cache of your Pulse direct messages in sync with the backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Init(cfg.Env)
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logger.Log = logger.Log.Level(zerolog.DebugLevel)
			} else {
				logger.Log = logger.Log.Level(zerolog.InfoLevel)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().Bool("debug", false, "log debug output")

	cmd.AddCommand(
		NewWatchCmd(),
		NewConversationsCmd(),
		NewMessagesCmd(),
		NewSendCmd(),
		NewReplyCmd(),
		NewReactCmd(),
		NewUnreactCmd(),
		NewPinCmd(),
		NewDeleteCmd(),
		NewReadCmd(),
	)

	return cmd
}

func Execute() error {
	return NewRootCmd(Version).Execute()
}
