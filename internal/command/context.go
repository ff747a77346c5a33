package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vedran77/pulsesync/internal/config"
	"github.com/vedran77/pulsesync/internal/identity"
	"github.com/vedran77/pulsesync/internal/metrics"
	"github.com/vedran77/pulsesync/internal/service"
	"github.com/vedran77/pulsesync/internal/transport/rest"
	"github.com/vedran77/pulsesync/internal/transport/ws"
)

// CommandContext carries the wired services for one command run.
type CommandContext struct {
	Config   *config.Config
	Session  *identity.Session
	Sync     *service.SyncService
	Messages *service.MessageService
	Metrics  *metrics.Metrics
	JSONMode bool
}

// GetContext loads the configuration and wires the sync stack.
func GetContext(cmd *cobra.Command) (*CommandContext, error) {
	jsonMode, _ := cmd.Flags().GetBool("json")
	cfg := config.Load()

	session := identity.NewSession("")
	if cfg.Token != "" {
		s, err := identity.FromToken(cfg.Token)
		if err != nil {
			return nil, fmt.Errorf("reading PULSE_TOKEN: %w", err)
		}
		session = s
	}

	transport, err := rest.NewClient(cfg.APIURL, cfg.Token,
		rest.WithTimeout(cfg.HTTPTimeout),
		rest.WithRateLimit(cfg.RateLimit),
	)
	if err != nil {
		return nil, err
	}
	push, err := ws.NewClient(cfg.PushURL, cfg.Token)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	sync := service.NewSyncService(transport, push, session)
	sync.SetMetrics(m)
	sync.SetPageSize(cfg.PageSize)

	return &CommandContext{
		Config:   cfg,
		Session:  session,
		Sync:     sync,
		Messages: service.NewMessageService(sync),
		Metrics:  m,
		JSONMode: jsonMode,
	}, nil
}

// loadMessage pages back through a conversation until id is cached.
func (c *CommandContext) loadMessage(ctx context.Context, conversationID, id string, maxPages int) error {
	if err := c.Sync.LoadConversations(ctx); err != nil {
		return err
	}
	for page := 0; page < maxPages; page++ {
		if _, ok := c.Sync.Message(id); ok {
			return nil
		}
		more, err := c.Sync.LoadOlder(ctx, conversationID)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	if _, ok := c.Sync.Message(id); !ok {
		return fmt.Errorf("%w: %s", service.ErrMessageNotFound, id)
	}
	return nil
}
