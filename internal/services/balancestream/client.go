// Package balancestream receives balance snapshots pushed by the
// backend when a background sync completes. Unlike the price channel
// this is not a continuous tick stream: an event fires only when the
// backend finished recomputing the user's balances.
package balancestream

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/transport"
)

const (
	eventJoin   = "balances:join"
	eventUpdate = "balance:update"

	snapshotBuffer = 8
)

type joinWire struct {
	UserID string `json:"userId"`
}

type socket interface {
	On(event string, h transport.Handler)
	OnConnect(fn func())
	Connect(ctx context.Context)
	Disconnect()
	Connected() bool
	Emit(event string, v any) error
}

// Client owns the per-user balance push channel.
type Client struct {
	sock   socket
	logger *zap.Logger
	userID string

	snapshots chan domain.BalanceSnapshot
}

// New creates a balance stream client on top of the given socket.
func New(sock socket, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		sock:      sock,
		logger:    logger,
		snapshots: make(chan domain.BalanceSnapshot, snapshotBuffer),
	}

	sock.On(eventUpdate, c.handlePush)
	sock.OnConnect(c.join)

	return c
}

// Connect opens the channel and joins the private room scoped to
// userID, so pushes are only received by their owner. Idempotent; the
// room is re-joined on every reconnect.
func (c *Client) Connect(ctx context.Context, userID string) {
	c.userID = userID
	c.sock.Connect(ctx)
}

// Disconnect tears the channel down and clears the status flags. Safe
// to call repeatedly.
func (c *Client) Disconnect() {
	c.sock.Disconnect()
}

// Connected reports whether the balance channel is live.
func (c *Client) Connected() bool {
	return c.sock.Connected()
}

// Snapshots delivers every pushed snapshot. Each push carries the full
// backend-computed state, so when the consumer lags the oldest queued
// snapshot is dropped in favour of the newer one.
func (c *Client) Snapshots() <-chan domain.BalanceSnapshot {
	return c.snapshots
}

func (c *Client) handlePush(data json.RawMessage) {
	var snap domain.BalanceSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Warn("malformed balance push", zap.Error(err))
		return
	}

	for {
		select {
		case c.snapshots <- snap:
			return
		default:
		}
		// full: evict the oldest, it is superseded anyway
		select {
		case <-c.snapshots:
		default:
		}
	}
}

func (c *Client) join() {
	if c.userID == "" {
		return
	}
	if err := c.sock.Emit(eventJoin, joinWire{UserID: c.userID}); err != nil {
		c.logger.Warn("join balance room failed", zap.String("user", c.userID), zap.Error(err))
	}
}
