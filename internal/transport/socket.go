// Package transport provides the reconnecting websocket client both
// stream channels are built on. Messages are JSON envelopes of the
// form {"event": ..., "data": ...}.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/pkg/backoff"
)

const (
	handshakeTimeout = 10 * time.Second
	diagnosticsDepth = 32
)

// Handler consumes the data payload of one inbound event. Handlers run
// on the read-loop goroutine, so all state they mutate is effectively
// single-writer.
type Handler func(data json.RawMessage)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Socket is a websocket connection that authenticates with a bearer
// token, dispatches inbound events to registered handlers, and
// reconnects with a bounded backoff when the link drops. Transport
// failures are never returned to data-path callers; they surface on
// the Diagnostics channel instead.
type Socket struct {
	url    string
	token  string
	logger *zap.Logger
	policy *backoff.Policy

	mu        sync.Mutex
	conn      *websocket.Conn
	running   bool
	connected bool
	cancel    context.CancelFunc

	handlers  map[string]Handler
	onConnect func()

	diags chan error
}

// NewSocket creates a client for the given channel URL. The token is
// re-sent as-is on every reconnect.
func NewSocket(url, token string, policy *backoff.Policy, logger *zap.Logger) *Socket {
	if policy == nil {
		policy = backoff.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Socket{
		url:      url,
		token:    token,
		logger:   logger,
		policy:   policy,
		handlers: make(map[string]Handler),
		diags:    make(chan error, diagnosticsDepth),
	}
}

// On registers a handler for an inbound event. Must be called before
// Connect.
func (s *Socket) On(event string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = h
}

// OnConnect registers a hook invoked after every successful dial,
// including reconnects. Must be called before Connect.
func (s *Socket) OnConnect(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnect = fn
}

// Connect starts the connection manager. It is idempotent: a second
// call while the manager runs is a no-op. Dial failures are reported
// on Diagnostics, never returned.
func (s *Socket) Connect(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.run(runCtx)
}

// Disconnect tears the connection down and resets the status flags.
// Safe to call repeatedly and when not connected.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.connected = false

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Connected reports whether a live connection is currently open.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.connected
}

// Diagnostics exposes transport errors for observation. The channel is
// buffered; when nobody drains it, errors are dropped, not blocked on.
func (s *Socket) Diagnostics() <-chan error {
	return s.diags
}

// Emit marshals v and writes it as the data payload of the given
// event. It fails when no connection is open.
func (s *Socket) Emit(event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s payload", event)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || !s.connected {
		return errors.Errorf("emit %s: connection is not open", event)
	}
	if err := s.conn.WriteJSON(envelope{Event: event, Data: payload}); err != nil {
		return errors.Wrapf(err, "write %s", event)
	}
	return nil
}

// run dials, reads until the link drops, then redials under the
// backoff policy until the attempts are exhausted or ctx is cancelled.
func (s *Socket) run(ctx context.Context) {
	for {
		if err := s.dial(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("stream connection failed, giving up until next Connect",
				zap.String("url", s.url), zap.Error(err))
			s.report(err)
			s.shutdown()
			return
		}

		s.readLoop(ctx)

		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		running := s.running
		s.connected = false
		s.mu.Unlock()
		if !running {
			return
		}
	}
}

// dial opens the websocket with bounded retries.
func (s *Socket) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	attempt := 0
	return s.policy.Do(ctx, func(ctx context.Context) error {
		attempt++

		conn, resp, err := dialer.DialContext(ctx, s.url, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			s.logger.Debug("stream dial failed",
				zap.String("url", s.url),
				zap.Int("attempt", attempt),
				zap.Error(err))
			s.report(errors.Wrapf(err, "dial %s (attempt %d)", s.url, attempt))
			return err
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.conn = conn
		s.connected = true
		hook := s.onConnect
		s.mu.Unlock()

		s.logger.Info("stream connected", zap.String("url", s.url))
		if hook != nil {
			hook()
		}
		return nil
	})
}

// readLoop dispatches inbound envelopes until the connection drops.
func (s *Socket) readLoop(ctx context.Context) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.report(errors.Wrap(err, "read stream message"))
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.report(errors.Wrap(err, "decode stream envelope"))
			continue
		}

		s.mu.Lock()
		h := s.handlers[env.Event]
		s.mu.Unlock()

		if h != nil {
			h(env.Data)
		}
	}
}

func (s *Socket) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.connected = false
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *Socket) report(err error) {
	select {
	case s.diags <- err:
	default:
		// nobody is draining diagnostics, drop
	}
}
