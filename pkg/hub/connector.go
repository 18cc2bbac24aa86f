package hub

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/peersync/errors"
)

// Conn is one live duplex connection to the hub.
type Conn interface {
	// Send writes one message frame.
	Send(ctx context.Context, data []byte) error
	// Done is closed when the connection ends for any reason.
	Done() <-chan struct{}
	// Err returns why the connection ended, once Done is closed.
	Err() error
	Close() error
}

// Connector builds connections from resolved configuration.
type Connector interface {
	Connect(ctx context.Context, cfg *EndpointConfig) (Conn, error)
}

// WebsocketSettings tunes the websocket transport.
type WebsocketSettings struct {
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	MaxMessageSize   int64
}

// DefaultWebsocketSettings returns settings suited to a long-lived hub connection.
func DefaultWebsocketSettings() WebsocketSettings {
	return WebsocketSettings{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     15 * time.Second,
		ReadTimeout:      45 * time.Second,
		WriteTimeout:     10 * time.Second,
		MaxMessageSize:   4 * 1024 * 1024,
	}
}

// WebsocketConnector dials the hub over gorilla/websocket.
type WebsocketConnector struct {
	settings WebsocketSettings
	dialer   *websocket.Dialer
	// OnMessage, if set, receives every inbound data frame.
	OnMessage func(data []byte)
}

// NewWebsocketConnector creates a connector with the given settings.
func NewWebsocketConnector(settings WebsocketSettings) *WebsocketConnector {
	def := DefaultWebsocketSettings()
	if settings.HandshakeTimeout <= 0 {
		settings.HandshakeTimeout = def.HandshakeTimeout
	}
	if settings.PingInterval <= 0 {
		settings.PingInterval = def.PingInterval
	}
	if settings.ReadTimeout <= 0 {
		settings.ReadTimeout = def.ReadTimeout
	}
	if settings.WriteTimeout <= 0 {
		settings.WriteTimeout = def.WriteTimeout
	}
	if settings.MaxMessageSize <= 0 {
		settings.MaxMessageSize = def.MaxMessageSize
	}
	return &WebsocketConnector{
		settings: settings,
		dialer: &websocket.Dialer{
			HandshakeTimeout: settings.HandshakeTimeout,
		},
	}
}

// Connect implements Connector.
func (c *WebsocketConnector) Connect(ctx context.Context, cfg *EndpointConfig) (Conn, error) {
	ws, resp, err := c.dialer.DialContext(ctx, cfg.URL.String(), cfg.Header)
	if err != nil {
		if resp != nil {
			return nil, errors.ConnectFailed(cfg.Endpoint, err).WithDetail("status", resp.StatusCode)
		}
		return nil, errors.ConnectFailed(cfg.Endpoint, err)
	}

	conn := &wsConn{
		ws:       ws,
		settings: c.settings,
		done:     make(chan struct{}),
		onMsg:    c.OnMessage,
	}
	ws.SetReadLimit(c.settings.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
	})

	go conn.readPump()
	go conn.pingLoop()
	return conn, nil
}

type wsConn struct {
	ws       *websocket.Conn
	settings WebsocketSettings
	onMsg    func([]byte)

	writeMu sync.Mutex

	done    chan struct{}
	errMu   sync.Mutex
	err     error
	endOnce sync.Once
}

func (c *wsConn) end(err error) {
	c.endOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		close(c.done)
		c.ws.Close()
	})
}

func (c *wsConn) readPump() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.end(err)
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
		if c.onMsg != nil {
			c.onMsg(data)
		}
	}
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(c.settings.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.settings.WriteTimeout)
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, deadline)
			c.writeMu.Unlock()
			if err != nil {
				c.end(err)
				return
			}
		}
	}
}

func (c *wsConn) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return errors.NotConnected()
	default:
	}

	deadline := time.Now().Add(c.settings.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		// A websocket write deadline cannot be recovered from.
		c.end(err)
		return err
	}
	return nil
}

func (c *wsConn) Done() <-chan struct{} {
	return c.done
}

func (c *wsConn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	c.end(nil)
	return nil
}
