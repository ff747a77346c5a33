package ws

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/vedran77/pulsesync/internal/domain"
	"github.com/vedran77/pulsesync/internal/port"
	"github.com/vedran77/pulsesync/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 1 << 20
)

// Client is the push side of the backend. Each Listen call owns one
// connection.
type Client struct {
	url          string
	token        string
	pingInterval time.Duration
	log          zerolog.Logger
}

var _ port.Push = (*Client)(nil)

func NewClient(pushURL, token string) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(pushURL))
	if err != nil {
		return nil, fmt.Errorf("invalid push url: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return nil, fmt.Errorf("push url must use ws:// or wss://")
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("push url must include a host")
	}
	return &Client{
		url:          parsed.String(),
		token:        token,
		pingInterval: pingInterval,
		log:          logger.Component("push"),
	}, nil
}

// dialURL puts the token in the query; the backend authenticates the
// handshake from ?token=.
func (c *Client) dialURL() string {
	u, _ := url.Parse(c.url)
	q := u.Query()
	if c.token != "" {
		q.Set("token", c.token)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Listen dials the backend and hands every message event to handle until
// the connection drops or ctx is done.
func (c *Client) Listen(ctx context.Context, handle func(context.Context, domain.Event)) error {
	conn, _, err := websocket.Dial(ctx, c.dialURL(), nil)
	if err != nil {
		return fmt.Errorf("dialing push: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.pingLoop(ctx, conn)

	c.log.Info().Msg("push connected")
	for {
		var env Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return errors.New("push connection closed by server")
			}
			return fmt.Errorf("reading push: %w", err)
		}
		c.dispatch(ctx, conn, env, handle)
	}
}

func (c *Client) dispatch(ctx context.Context, conn *websocket.Conn, env Envelope, handle func(context.Context, domain.Event)) {
	switch env.Type {
	case EventTypePing:
		writeCtx, cancel := context.WithTimeout(ctx, writeWait)
		defer cancel()
		if err := wsjson.Write(writeCtx, conn, Envelope{Type: EventTypePong, Timestamp: time.Now().Unix()}); err != nil {
			c.log.Warn().Err(err).Msg("pong write failed")
		}
		return
	case EventTypePong, EventTypeTyping, EventTypePresence:
		return
	case EventTypeError:
		c.log.Warn().RawJSON("payload", env.Payload).Msg("push error frame")
		return
	}

	ev, ok, err := env.ToEvent()
	if err != nil {
		c.log.Warn().Err(err).Str("type", env.Type).Msg("undecodable push payload")
		return
	}
	if !ok {
		c.log.Debug().Str("type", env.Type).Msg("ignoring push frame")
		return
	}
	handle(ctx, ev)
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					c.log.Warn().Err(err).Msg("ping failed")
					conn.Close(websocket.StatusGoingAway, "ping timeout")
				}
				return
			}
		}
	}
}
