package hub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/pkg/bus"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/sirupsen/logrus"
)

// Options configures a Manager.
type Options struct {
	Endpoint  string
	Resolver  Resolver
	Connector Connector
	Policy    RetryPolicy
	Bus       bus.Publisher
	// Resets delivers requests to restart the retry schedule from attempt 0.
	Resets <-chan models.RetryReset
	Logger *logrus.Entry
}

// Manager owns the lifecycle of the single hub connection. The connection
// state is only written by the manager itself.
type Manager struct {
	resolver  Resolver
	connector Connector
	bus       bus.Publisher
	logger    *logrus.Entry
	scheduler *RetryScheduler
	resets    <-chan models.RetryReset
	kick      chan struct{}

	mu       sync.Mutex
	state    models.ConnectionState
	endpoint string
	cached   *EndpointConfig
	conn     Conn
	session  *models.SessionInfo
	started  bool

	disposed atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewManager creates a disconnected manager. Call Start to begin connecting.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Policy.Schedule == nil {
		opts.Policy = DefaultRetryPolicy()
	}
	if opts.Resolver == nil {
		opts.Resolver = NewTokenResolver("")
	}
	if opts.Connector == nil {
		opts.Connector = NewWebsocketConnector(DefaultWebsocketSettings())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		resolver:  opts.Resolver,
		connector: opts.Connector,
		bus:       opts.Bus,
		logger:    opts.Logger,
		scheduler: NewRetryScheduler(opts.Policy),
		resets:    opts.Resets,
		kick:      make(chan struct{}, 1),
		state:     models.StateDisconnected,
		endpoint:  opts.Endpoint,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the connection loop. Calling it more than once is a no-op.
func (m *Manager) Start() error {
	if m.disposed.Load() {
		return errors.Disposed()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	m.started = true
	m.wg.Add(1)
	go m.run()
	return nil
}

// State returns the current connection state.
func (m *Manager) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Endpoint returns the configured endpoint string.
func (m *Manager) Endpoint() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoint
}

// Session returns the session of the live connection, or nil.
func (m *Manager) Session() *models.SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// SetEndpoint replaces the endpoint. The cached configuration is invalidated
// only when the string differs from the current one; a live connection to the
// old endpoint is closed and the loop reconnects without delay.
func (m *Manager) SetEndpoint(endpoint string) bool {
	m.mu.Lock()
	if m.endpoint == endpoint {
		m.mu.Unlock()
		return false
	}
	old := m.endpoint
	m.endpoint = endpoint
	m.cached = nil
	conn := m.conn
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"from": old,
		"to":   endpoint,
	}).Info("Hub endpoint changed")

	select {
	case m.kick <- struct{}{}:
	default:
	}
	if conn != nil {
		conn.Close()
	}
	return true
}

// Send writes a frame on the live connection.
func (m *Manager) Send(ctx context.Context, data []byte) error {
	if m.disposed.Load() {
		return errors.Disposed()
	}
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return errors.NotConnected()
	}
	return conn.Send(ctx, data)
}

// Disposed reports whether Dispose has been called.
func (m *Manager) Disposed() bool {
	return m.disposed.Load()
}

// Dispose stops reconnecting, closes any live connection and waits for the
// loop to exit. Safe to call any number of times.
func (m *Manager) Dispose() {
	if m.disposed.Swap(true) {
		return
	}
	m.cancel()

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn != nil {
		conn.Close()
	}

	m.wg.Wait()
	m.clearConn()
	m.setState(models.StateDisconnected)
	m.logger.Debug("Connection manager disposed")
}

func (m *Manager) run() {
	defer m.wg.Done()

	// retrying is the state held across failed attempts of the current
	// episode: Connecting before the first session, Reconnecting after a drop
	// and Disconnected once the episode escalated.
	retrying := models.StateConnecting
	// lost is set by escalation and reported on the next session.
	lost := false

	for {
		if m.ctx.Err() != nil {
			return
		}
		m.setState(retrying)

		conn, cfg, err := m.connect()
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}
			reason := err.Error()
			delay, attempt, notify := m.scheduler.Next()
			m.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay,
				"error":   reason,
			}).Warn("Hub connection attempt failed")

			switch {
			case notify:
				lost = true
				retrying = models.StateDisconnected
				m.setState(retrying)
				m.publish(models.Disconnected{Attempt: attempt, Reason: reason})
				m.logger.WithField("attempt", attempt).Error("Hub connection lost")
			case retrying == models.StateReconnecting:
				m.publish(models.Reconnecting{Reason: reason, Attempt: attempt, Delay: delay})
			}
			if !m.wait(delay) {
				return
			}
			continue
		}

		m.scheduler.Reset()
		m.mu.Lock()
		m.conn = conn
		m.session = cfg.Session
		m.mu.Unlock()
		m.setState(models.StateConnected)
		m.publish(models.Reconnected{Session: cfg.Session, Recovered: lost})
		m.logger.WithFields(logrus.Fields{
			"endpoint":  cfg.Endpoint,
			"recovered": lost,
		}).Info("Connected to hub")
		lost = false

		if !m.hold(conn) {
			conn.Close()
			return
		}

		reason := "connection closed"
		if err := conn.Err(); err != nil {
			reason = err.Error()
		}
		m.clearConn()
		if m.ctx.Err() != nil {
			return
		}

		m.publish(models.ConnectionClosed{Reason: reason})
		retrying = models.StateReconnecting
		m.setState(retrying)

		delay, attempt, _ := m.scheduler.Next()
		m.publish(models.Reconnecting{Reason: reason, Attempt: attempt, Delay: delay})
		m.logger.WithFields(logrus.Fields{
			"reason": reason,
			"delay":  delay,
		}).Warn("Hub connection dropped, reconnecting")

		if !m.wait(delay) {
			return
		}
	}
}

// connect resolves the endpoint, reusing the cached configuration when the
// endpoint string is unchanged, and dials it.
func (m *Manager) connect() (Conn, *EndpointConfig, error) {
	m.mu.Lock()
	endpoint := m.endpoint
	cfg := m.cached
	m.mu.Unlock()

	if cfg == nil || cfg.Endpoint != endpoint {
		resolved, err := m.resolver.Resolve(m.ctx, endpoint)
		if err != nil {
			return nil, nil, err
		}
		cfg = resolved
		m.mu.Lock()
		if m.endpoint == endpoint {
			m.cached = cfg
		}
		m.mu.Unlock()
	}

	conn, err := m.connector.Connect(m.ctx, cfg)
	if err != nil {
		if errors.GetCode(err) == "" {
			err = errors.ConnectFailed(endpoint, err)
		}
		return nil, nil, err
	}

	m.mu.Lock()
	stale := m.endpoint != endpoint
	m.mu.Unlock()
	if stale {
		conn.Close()
		return nil, nil, errors.New(errors.ErrCodeConnectFailed, "endpoint changed while connecting")
	}
	return conn, cfg, nil
}

// hold blocks while conn is live. It returns false if the manager is disposed.
func (m *Manager) hold(conn Conn) bool {
	for {
		select {
		case <-m.ctx.Done():
			return false
		case <-conn.Done():
			return true
		case <-m.resets:
			m.scheduler.Reset()
		}
	}
}

// wait sleeps for delay. A retry reset or endpoint change ends the wait early
// and restarts the schedule. It returns false if the manager is disposed.
func (m *Manager) wait(delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-m.ctx.Done():
		return false
	case <-timer.C:
		return true
	case r := <-m.resets:
		m.scheduler.Reset()
		m.logger.WithField("reason", r.Reason).Info("Retry schedule reset")
		return true
	case <-m.kick:
		m.scheduler.Reset()
		return true
	}
}

func (m *Manager) clearConn() {
	m.mu.Lock()
	m.conn = nil
	m.session = nil
	m.mu.Unlock()
}

func (m *Manager) setState(to models.ConnectionState) {
	m.mu.Lock()
	from := m.state
	if from == to {
		m.mu.Unlock()
		return
	}
	m.state = to
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"from": from.String(),
		"to":   to.String(),
	}).Debug("Connection state changed")
	m.publish(models.ConnectionStateChanged{From: from, To: to})
}

func (m *Manager) publish(msg any) {
	if m.bus != nil {
		m.bus.Publish(msg)
	}
}
