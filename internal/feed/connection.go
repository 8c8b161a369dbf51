package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// defaultHeartbeatInterval is used when the config does not set one.
	defaultHeartbeatInterval = 30 * time.Second

	// defaultHandshakeTimeout bounds the dial plus subscribe handshake.
	defaultHandshakeTimeout = 15 * time.Second
)

// State is the connection lifecycle state. Owned exclusively by the
// Connection; other components observe it only through State().
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ConnectionConfig tunes a single feed connection.
type ConnectionConfig struct {
	HeartbeatInterval time.Duration
	HandshakeTimeout  time.Duration
	Backoff           Backoff

	// OnDisconnect, when set, is called once each time an established
	// transport drops and reconnection begins. It is not called for failed
	// reconnect attempts or for Disconnect.
	OnDisconnect func(reason string)
}

// Connection owns one venue's streaming transport and runs the
// connect / heartbeat / reconnect state machine. Inbound frames are
// normalized by the venue Adapter and handed to the QuoteSink; a transport
// close triggers reconnection with exponential backoff, retried until
// Disconnect. A single malformed message never terminates the connection.
type Connection struct {
	adapter Adapter
	sink    QuoteSink
	cfg     ConnectionConfig
	logger  *slog.Logger

	// readWait is the read deadline window; reset on every inbound frame and
	// on protocol pongs.
	readWait time.Duration

	mu           sync.Mutex
	state        State
	conn         *websocket.Conn
	reconnecting bool
	closed       bool

	closeOnce sync.Once
	done      chan struct{}
}

// NewConnection creates a feed connection for the given venue adapter. Quotes
// flow into sink; the connection is not opened until Connect.
func NewConnection(adapter Adapter, sink QuoteSink, cfg ConnectionConfig, logger *slog.Logger) *Connection {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = NewBackoff()
	}
	return &Connection{
		adapter:  adapter,
		sink:     sink,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "feed"), slog.String("venue", adapter.Venue())),
		readWait: 2 * cfg.HeartbeatInterval,
		done:     make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the venue, performs the subscription handshake, and starts
// the message and heartbeat loops. On failure the state is restored
// (Disconnected for an initial connect, Reconnecting when called from the
// reconnect supervisor) and the error is returned to the caller; Connect
// never retries on its own.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("feed %s: connection closed", c.adapter.Venue())
	}
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	prev := c.state
	c.state = StateConnecting
	c.mu.Unlock()

	restore := func() {
		c.mu.Lock()
		if prev == StateReconnecting {
			c.state = StateReconnecting
		} else {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.adapter.URL(), nil)
	if err != nil {
		restore()
		return fmt.Errorf("feed %s: connect: %w", c.adapter.Venue(), err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(c.readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.readWait))
	})

	for _, frame := range c.adapter.SubscribeFrames() {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			_ = conn.Close()
			restore()
			return fmt.Errorf("feed %s: subscribe: %w", c.adapter.Venue(), err)
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("feed %s: connection closed", c.adapter.Venue())
	}
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	go c.readLoop(conn)
	go c.heartbeatLoop(conn)

	c.logger.Info("feed connected", slog.String("url", c.adapter.URL()))
	return nil
}

// Disconnect cancels the heartbeat and reconnect tasks, closes the transport,
// and transitions to Disconnected. Safe to call from any state and more than
// once.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	c.closeOnce.Do(func() { close(c.done) })

	if conn != nil {
		_ = conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}

// readLoop receives frames until the transport closes, normalizing each one
// and feeding the sink. On close it hands over to the reconnect supervisor.
func (c *Connection) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("feed disconnected", slog.String("error", err.Error()))
			c.scheduleReconnect(conn, err.Error())
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(c.readWait))
		c.handleMessage(raw)
	}
}

// handleMessage normalizes one raw frame. Protocol errors are logged and the
// frame dropped; the loop continues.
func (c *Connection) handleMessage(raw []byte) {
	quotes, err := c.adapter.Parse(raw)
	if err != nil {
		c.logger.Warn("feed message dropped",
			slog.String("error", err.Error()),
			slog.Int("bytes", len(raw)),
		)
		return
	}
	for _, q := range quotes {
		c.sink(context.Background(), q)
	}
}

// heartbeatLoop sends the venue keep-alive at a fixed interval while this
// transport is current. A send failure only ends the loop: the read loop's
// close detection is the authority on connection loss.
func (c *Connection) heartbeatLoop(conn *websocket.Conn) {
	frame, app := c.adapter.HeartbeatFrame()

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		current := c.conn
		c.mu.Unlock()
		if current != conn {
			return
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		var err error
		if app {
			err = conn.WriteMessage(websocket.TextMessage, frame)
		} else {
			err = conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			c.logger.Debug("heartbeat send failed", slog.String("error", err.Error()))
			return
		}
	}
}

// scheduleReconnect transitions to Reconnecting and starts the backoff
// supervisor. Idempotent: a close event while already reconnecting is a
// no-op, so at most one supervisor runs at a time.
func (c *Connection) scheduleReconnect(old *websocket.Conn, reason string) {
	c.mu.Lock()
	if c.closed || c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.state = StateReconnecting
	if c.conn == old {
		c.conn = nil
	}
	c.mu.Unlock()

	_ = old.Close()
	if c.cfg.OnDisconnect != nil {
		c.cfg.OnDisconnect(reason)
	}
	go c.reconnectLoop()
}

// reconnectLoop retries Connect with exponential backoff until it succeeds or
// the connection is disconnected.
func (c *Connection) reconnectLoop() {
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	for attempt := 0; ; attempt++ {
		delay := c.cfg.Backoff.Next(attempt)
		c.logger.Info("reconnecting",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)

		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
		err := c.Connect(ctx)
		cancel()
		if err == nil {
			c.logger.Info("reconnected", slog.Int("attempts", attempt+1))
			return
		}
		c.logger.Warn("reconnect failed",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}
}
