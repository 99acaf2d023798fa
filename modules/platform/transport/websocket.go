package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"fred-chat/modules/platform/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512 * 1024
)

// ErrNotOpen is returned when sending on a connection that is not open
var ErrNotOpen = errors.New("connection not open")

// State is the lifecycle state of a connection
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// FrameHandler receives every inbound text frame, in arrival order
type FrameHandler func(conn *Connection, data []byte)

// CloseHandler is called once when a connection stops reading.
// err is nil when the connection was closed locally or normally.
type CloseHandler func(conn *Connection, err error)

// Connection is one WebSocket to the chat backend
type Connection struct {
	id      string
	ws      *websocket.Conn
	mu      sync.Mutex
	writeMu sync.Mutex
	state   State
	local   bool
	done    chan struct{}
}

// ID returns the connection identifier
func (c *Connection) ID() string {
	return c.id
}

// State returns the current state
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the read pump has exited
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Send encodes v as one JSON text frame
func (c *Connection) Send(v interface{}) error {
	if c.State() != StateOpen {
		return ErrNotOpen
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(v); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Close closes the connection; the read pump reports a nil cause
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == StateClosing || c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosing
	c.local = true
	c.mu.Unlock()

	c.writeMu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	return c.ws.Close()
}

// readPump pumps frames from the socket to the handler
func (c *Connection) readPump(onFrame func() FrameHandler, onClose func() CloseHandler, log *logger.Logger) {
	var cause error
	defer func() {
		c.mu.Lock()
		local := c.local
		c.state = StateClosed
		c.mu.Unlock()
		c.ws.Close()
		close(c.done)

		if local {
			cause = nil
		}
		if handler := onClose(); handler != nil {
			handler(c, cause)
		}
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) &&
				(closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway) {
				log.Debug("websocket %s closed by peer: %v", c.id, err)
			} else {
				log.Debug("websocket %s read ended: %v", c.id, err)
				cause = err
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		if msgType != websocket.TextMessage {
			continue
		}
		if handler := onFrame(); handler != nil {
			handler(c, data)
		}
	}
}

// keepalive sends pings until the connection is done
func (c *Connection) keepalive(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Options configures a Manager
type Options struct {
	URL          string
	Header       http.Header
	Dialer       *websocket.Dialer
	PingInterval time.Duration
	Logger       *logger.Logger
}

// Manager owns at most one connection for a chat view
type Manager struct {
	opts Options

	dialMu  sync.Mutex
	mu      sync.Mutex
	current *Connection
	dialing bool

	onFrame FrameHandler
	onClose CloseHandler
}

// NewManager creates a connection manager
func NewManager(opts Options) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = pingPeriod
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Manager{opts: opts}
}

// SetFrameHandler sets the callback for inbound frames
func (m *Manager) SetFrameHandler(handler FrameHandler) {
	m.mu.Lock()
	m.onFrame = handler
	m.mu.Unlock()
}

// SetCloseHandler sets the callback for connection termination
func (m *Manager) SetCloseHandler(handler CloseHandler) {
	m.mu.Lock()
	m.onClose = handler
	m.mu.Unlock()
}

// URL returns the endpoint this manager dials
func (m *Manager) URL() string {
	return m.opts.URL
}

// State returns the state of the current connection
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dialing {
		return StateConnecting
	}
	if m.current == nil {
		return StateClosed
	}
	return m.current.State()
}

// Current returns the current connection, nil if none was opened
func (m *Manager) Current() *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// EnsureConnection returns the open connection, dialing a new one if the
// previous connection is closing or closed. Concurrent callers share one dial.
func (m *Manager) EnsureConnection(ctx context.Context) (*Connection, error) {
	m.dialMu.Lock()
	defer m.dialMu.Unlock()

	m.mu.Lock()
	if m.current != nil && m.current.State() == StateOpen {
		conn := m.current
		m.mu.Unlock()
		return conn, nil
	}
	m.current = nil
	m.dialing = true
	m.mu.Unlock()

	ws, resp, err := m.opts.Dialer.DialContext(ctx, m.opts.URL, m.opts.Header)

	m.mu.Lock()
	m.dialing = false
	m.mu.Unlock()

	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s (status %d): %w", m.opts.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", m.opts.URL, err)
	}

	conn := &Connection{
		id:    uuid.New().String(),
		ws:    ws,
		state: StateOpen,
		done:  make(chan struct{}),
	}

	m.mu.Lock()
	m.current = conn
	m.mu.Unlock()

	m.opts.Logger.Debug("websocket %s open to %s", conn.id, m.opts.URL)

	go conn.readPump(m.frameHandler, m.closeHandler, m.opts.Logger)
	go conn.keepalive(m.opts.PingInterval)

	return conn, nil
}

// Close closes the connection left open by this manager
func (m *Manager) Close() error {
	m.mu.Lock()
	conn := m.current
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (m *Manager) frameHandler() FrameHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onFrame
}

func (m *Manager) closeHandler() CloseHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onClose
}

// WebSocketURL maps an http(s) API base to the ws(s) URL of path
func WebSocketURL(apiBase, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(apiBase, "/") + path)
	if err != nil {
		return "", fmt.Errorf("invalid api base %q: %w", apiBase, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, apiBase)
	}
	return u.String(), nil
}
