package command

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vedran77/pulsesync/internal/notify"
	"github.com/vedran77/pulsesync/pkg/logger"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the cache in sync and report changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			active, _ := cmd.Flags().GetString("active")
			ctx.Sync.SetActive(active)

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := ctx.watch(runCtx, cmd); err != nil {
				return writeCommandError(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().String("active", "", "conversation shown with focus")
	return cmd
}

func (c *CommandContext) watch(ctx context.Context, cmd *cobra.Command) error {
	hub := notify.NewHub()
	c.Sync.SetNotifier(hub)
	log := logger.Component("watch")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	sub := hub.Subscribe()
	if sub == nil {
		// hub stopped before we could subscribe: the context is already done
		return g.Wait()
	}
	g.Go(func() error {
		for change := range sub.Changes() {
			c.printChange(cmd, change)
		}
		return nil
	})

	g.Go(func() error {
		return c.Sync.Run(ctx)
	})

	if addr := c.Config.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", c.Metrics.Handler())
		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status": "ok"}`))
		})
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info().Str("addr", addr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *CommandContext) printChange(cmd *cobra.Command, change notify.Change) {
	if c.JSONMode {
		writeJSON(cmd, change)
		return
	}
	switch change.Kind {
	case notify.ChangeUnread:
		cmd.Printf("unread: %d\n", change.Unread)
	case notify.ChangeConversations:
		printConversations(cmd, c.Sync.Conversations())
	case notify.ChangeMessages:
		marker := ""
		if change.Focus {
			marker = " *"
		}
		cmd.Printf("messages changed in %s%s\n", change.ConversationID, marker)
		if change.Focus {
			printMessages(cmd, c.Sync.Messages(change.ConversationID), c.currentUser())
		}
	}
}
