// Package pricestream maintains the live market price map fed by the
// gateway's price channel: a bulk snapshot on connect, incremental
// per-instrument ticks afterwards.
package pricestream

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/transport"
)

// Wire events understood by the price channel.
const (
	eventSnapshot    = "prices:snapshot"
	eventUpdate      = "price:update"
	eventStatus      = "connection:status"
	eventSubscribe   = "subscribe"
	eventUnsubscribe = "unsubscribe"
)

type priceWire struct {
	Symbol    string                 `json:"symbol"`
	Price     decimal.Decimal        `json:"price"`
	Change24h *decimal.Decimal       `json:"change24h,omitempty"`
	Exchange  string                 `json:"exchange,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Prices    []domain.ExchangeQuote `json:"prices,omitempty"`
}

type symbolsWire struct {
	Symbols []string `json:"symbols"`
}

type socket interface {
	On(event string, h transport.Handler)
	OnConnect(fn func())
	Connect(ctx context.Context)
	Disconnect()
	Connected() bool
	Emit(event string, v any) error
}

// Client owns the live price map. Updates for the same instrument are
// applied in receipt order, last write wins per key. The client never
// fails the caller on transport trouble; the dashboard keeps serving
// stale prices instead.
type Client struct {
	sock        socket
	logger      *zap.Logger
	quoteAssets map[string]struct{}

	mu sync.RWMutex
	// prices is keyed by instrument symbol ("BTC/USDT").
	prices map[string]domain.InstrumentPrice
	// book is the asset x exchange quote book behind the
	// multi-exchange view: asset -> exchange -> quote.
	book     map[string]map[string]domain.ExchangeQuote
	liveness map[string]bool
	subs     map[string]struct{}

	onUpdate func()
}

// New creates a price stream client on top of the given socket.
// quoteAssets lists the stable/fiat proxies a quote must match to count
// toward valuation, in preference order (e.g. USDT, USD).
func New(sock socket, quoteAssets []string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	qa := make(map[string]struct{}, len(quoteAssets))
	for _, q := range quoteAssets {
		qa[q] = struct{}{}
	}

	c := &Client{
		sock:        sock,
		logger:      logger,
		quoteAssets: qa,
		prices:      make(map[string]domain.InstrumentPrice),
		book:        make(map[string]map[string]domain.ExchangeQuote),
		liveness:    make(map[string]bool),
		subs:        make(map[string]struct{}),
	}

	sock.On(eventSnapshot, c.handleSnapshot)
	sock.On(eventUpdate, c.handleUpdate)
	sock.On(eventStatus, c.handleStatus)
	sock.OnConnect(c.resubscribe)

	return c
}

// OnUpdate registers the dirty trigger invoked after every applied
// price change. Must be set before Connect.
func (c *Client) OnUpdate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// Connect opens the price channel. Idempotent; errors are observed on
// the socket diagnostics channel, not returned.
func (c *Client) Connect(ctx context.Context) {
	c.sock.Connect(ctx)
}

// Disconnect tears the channel down and resets the live map and all
// liveness flags. Safe to call when not connected.
func (c *Client) Disconnect() {
	c.sock.Disconnect()

	c.mu.Lock()
	c.prices = make(map[string]domain.InstrumentPrice)
	c.book = make(map[string]map[string]domain.ExchangeQuote)
	c.liveness = make(map[string]bool)
	c.mu.Unlock()
}

// Connected reports whether the price channel is live.
func (c *Client) Connected() bool {
	return c.sock.Connected()
}

// Status returns the connection status including per-exchange liveness
// flags when the upstream reports them.
func (c *Client) Status() domain.ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := domain.ConnectionStatus{Connected: c.sock.Connected()}
	if len(c.liveness) > 0 {
		st.Exchanges = make(map[string]bool, len(c.liveness))
		for ex, up := range c.liveness {
			st.Exchanges[ex] = up
		}
	}
	return st
}

// Subscribe requests server-side push for the given instruments. It is
// idempotent and a no-op when the connection is not open or the list
// is empty. It never blocks on network acknowledgement.
func (c *Client) Subscribe(symbols []string) {
	if len(symbols) == 0 || !c.sock.Connected() {
		return
	}

	c.mu.Lock()
	fresh := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := c.subs[s]; ok {
			continue
		}
		c.subs[s] = struct{}{}
		fresh = append(fresh, s)
	}
	c.mu.Unlock()

	if len(fresh) == 0 {
		return
	}
	if err := c.sock.Emit(eventSubscribe, symbolsWire{Symbols: fresh}); err != nil {
		c.logger.Warn("subscribe failed", zap.Strings("symbols", fresh), zap.Error(err))
	}
}

// Unsubscribe mirrors Subscribe.
func (c *Client) Unsubscribe(symbols []string) {
	if len(symbols) == 0 || !c.sock.Connected() {
		return
	}

	c.mu.Lock()
	gone := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := c.subs[s]; !ok {
			continue
		}
		delete(c.subs, s)
		gone = append(gone, s)
	}
	c.mu.Unlock()

	if len(gone) == 0 {
		return
	}
	if err := c.sock.Emit(eventUnsubscribe, symbolsWire{Symbols: gone}); err != nil {
		c.logger.Warn("unsubscribe failed", zap.Strings("symbols", gone), zap.Error(err))
	}
}

// Price returns the current entry for an instrument symbol.
func (c *Client) Price(symbol string) (domain.InstrumentPrice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[symbol]
	return p, ok
}

// QuotesFor builds the multi-exchange view for an asset: every live
// quote against a supported quote currency, ordered by the caller's
// exchange hint first (the snapshot's own "which exchanges hold this
// asset" order), then lexicographically for determinism.
func (c *Client) QuotesFor(asset string, hint []string) domain.MultiExchangePrice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return buildMultiExchange(asset, c.book[asset], hint)
}

// handleSnapshot replaces the live map wholesale with the bulk state
// sent on connect.
func (c *Client) handleSnapshot(data json.RawMessage) {
	var entries []priceWire
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn("malformed price snapshot", zap.Error(err))
		return
	}

	c.mu.Lock()
	c.prices = make(map[string]domain.InstrumentPrice, len(entries))
	c.book = make(map[string]map[string]domain.ExchangeQuote)
	for _, e := range entries {
		c.applyLocked(e)
	}
	fn := c.onUpdate
	c.mu.Unlock()

	c.logger.Debug("applied bulk price snapshot", zap.Int("instruments", len(entries)))
	if fn != nil {
		fn()
	}
}

// handleUpdate merges a single-instrument tick.
func (c *Client) handleUpdate(data json.RawMessage) {
	var e priceWire
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("malformed price update", zap.Error(err))
		return
	}

	c.mu.Lock()
	applied := c.applyLocked(e)
	fn := c.onUpdate
	c.mu.Unlock()

	if applied && fn != nil {
		fn()
	}
}

func (c *Client) handleStatus(data json.RawMessage) {
	var flags map[string]bool
	if err := json.Unmarshal(data, &flags); err != nil {
		c.logger.Warn("malformed connection status", zap.Error(err))
		return
	}

	c.mu.Lock()
	for ex, up := range flags {
		c.liveness[ex] = up
	}
	fn := c.onUpdate
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// applyLocked merges one wire entry. Entries with non-positive prices
// violate the price invariant and are dropped.
func (c *Client) applyLocked(e priceWire) bool {
	pair, err := domain.ParsePair(e.Symbol)
	if err != nil {
		c.logger.Debug("dropping tick with unparseable symbol", zap.String("symbol", e.Symbol))
		return false
	}
	if !e.Price.IsPositive() {
		c.logger.Debug("dropping non-positive tick", zap.String("symbol", e.Symbol))
		return false
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	c.prices[e.Symbol] = domain.InstrumentPrice{
		Pair:      pair,
		Symbol:    e.Symbol,
		Price:     e.Price,
		Change24h: e.Change24h,
		Exchange:  e.Exchange,
		Timestamp: ts,
	}

	if _, supported := c.quoteAssets[pair.Quote]; !supported {
		return true
	}

	if e.Exchange != "" {
		c.bookPutLocked(pair.Base, domain.ExchangeQuote{
			Exchange:  e.Exchange,
			Price:     e.Price,
			Change24h: e.Change24h,
			Timestamp: ts,
		})
	}
	for _, q := range e.Prices {
		if q.Exchange == "" || !q.Price.IsPositive() {
			continue
		}
		if q.Timestamp.IsZero() {
			q.Timestamp = ts
		}
		c.bookPutLocked(pair.Base, q)
	}

	return true
}

func (c *Client) bookPutLocked(asset string, q domain.ExchangeQuote) {
	byExchange, ok := c.book[asset]
	if !ok {
		byExchange = make(map[string]domain.ExchangeQuote)
		c.book[asset] = byExchange
	}
	byExchange[q.Exchange] = q
}

// resubscribe replays the active subscription set after a reconnect so
// the server-side push scope survives connection churn.
func (c *Client) resubscribe() {
	c.mu.RLock()
	symbols := make([]string, 0, len(c.subs))
	for s := range c.subs {
		symbols = append(symbols, s)
	}
	c.mu.RUnlock()

	if len(symbols) == 0 {
		return
	}
	sort.Strings(symbols)
	if err := c.sock.Emit(eventSubscribe, symbolsWire{Symbols: symbols}); err != nil {
		c.logger.Warn("resubscribe failed", zap.Error(err))
	}
}
