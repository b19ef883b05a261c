package transport

import (
	"context"
	"sync"
	"time"

	"github.com/hazlamahedich/shop-widget-go/internal/domain/widget"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/observability/logging"
	"github.com/hazlamahedich/shop-widget-go/pkg/config"
)

// ManagerOptions configures a connection manager
type ManagerOptions struct {
	URL                  string
	SessionID            string
	Kind                 Kind
	HeartbeatInterval    time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int

	// Dial overrides the kind's dialer. Tests inject failing dialers.
	Dial Dialer

	// OnEvent receives every non-heartbeat inbound event
	OnEvent func(widget.Event)
	// OnStatus receives every status transition
	OnStatus func(widget.ConnectionStatus)
}

// Manager owns one realtime connection per session. Reconnection is
// strictly serialized: a new connect first ensures any existing
// transport is closed, so two live transports never coexist.
type Manager struct {
	opts   ManagerOptions
	dial   Dialer
	logger *logging.ChanneledLogger

	mu             sync.Mutex
	closed         bool
	attempts       int
	status         widget.ConnectionStatus
	current        Transport
	reconnectTimer *time.Timer
	heartbeat      *time.Ticker
	heartbeatStop  chan struct{}
}

// NewManager creates a connection manager. Defaults are filled from
// package config when options are zero.
func NewManager(opts ManagerOptions, logger *logging.ChanneledLogger) *Manager {
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = config.HeartbeatInterval
	}
	if opts.ReconnectInterval == 0 {
		opts.ReconnectInterval = config.ReconnectInterval
	}
	if opts.MaxReconnectAttempts == 0 {
		opts.MaxReconnectAttempts = config.MaxReconnectAttempts
	}
	if opts.Kind == "" {
		opts.Kind = KindWebSocket
	}

	m := &Manager{
		opts:   opts,
		dial:   opts.Dial,
		logger: logger,
		status: widget.StatusDisconnected,
	}
	if m.dial == nil {
		dial, err := DialerFor(opts.Kind)
		if err != nil {
			// Unsupported host environment: the one construction failure
			// this layer surfaces, reported as terminal error status on
			// the first Connect rather than thrown.
			m.dial = func(context.Context, string, string) (Transport, error) { return nil, err }
			m.attempts = opts.MaxReconnectAttempts
		} else {
			m.dial = dial
		}
	}
	return m
}

// Status returns the current connection status
func (m *Manager) Status() widget.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connect starts the connection loop. Safe to call again after a
// disconnect; a live transport is closed first.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.teardownLocked(false)
	m.mu.Unlock()

	m.connect(ctx)
}

func (m *Manager) connect(ctx context.Context) {
	m.setStatus(widget.StatusConnecting)

	t, err := m.dial(ctx, m.opts.URL, m.opts.SessionID)
	if err != nil {
		m.onDialFailure(ctx, err)
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		t.Close(true)
		return
	}
	m.current = t
	m.attempts = 0
	m.mu.Unlock()

	m.setStatus(widget.StatusConnected)
	if t.Bidirectional() {
		m.startHeartbeat(t)
	}
	go m.pump(ctx, t)
}

func (m *Manager) onDialFailure(ctx context.Context, err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.attempts++
	attempts := m.attempts
	exhausted := attempts >= m.opts.MaxReconnectAttempts
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Transport().Warn("Transport dial failed",
			"attempt", attempts, "max", m.opts.MaxReconnectAttempts, "error", err)
	}

	if exhausted {
		m.setStatus(widget.StatusError)
		return
	}
	m.setStatus(widget.StatusDisconnected)
	m.scheduleReconnect(ctx)
}

// pump delivers inbound events until the transport dies, replying to
// server pings and filtering heartbeat traffic before delivery.
func (m *Manager) pump(ctx context.Context, t Transport) {
	for event := range t.Events() {
		if m.isClosed() {
			break
		}
		if event.Type == widget.EventPing {
			t.Send(widget.Event{Type: widget.EventPong})
			continue
		}
		if event.IsHeartbeat() {
			continue
		}
		if m.opts.OnEvent != nil {
			m.opts.OnEvent(event)
		}
	}

	m.stopHeartbeat()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.current == t {
		m.current = nil
	}
	m.attempts++
	attempts := m.attempts
	exhausted := attempts >= m.opts.MaxReconnectAttempts
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Transport().Info("Transport closed by peer", "attempt", attempts)
	}

	if exhausted {
		m.setStatus(widget.StatusError)
		return
	}
	m.setStatus(widget.StatusDisconnected)
	m.scheduleReconnect(ctx)
}

func (m *Manager) scheduleReconnect(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
	}
	m.reconnectTimer = time.AfterFunc(m.opts.ReconnectInterval, func() {
		// The closed flag makes an already-scheduled timer a no-op.
		if m.isClosed() {
			return
		}
		m.connect(ctx)
	})
}

func (m *Manager) startHeartbeat(t Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.heartbeat = time.NewTicker(m.opts.HeartbeatInterval)
	m.heartbeatStop = make(chan struct{})
	ticker, stop := m.heartbeat, m.heartbeatStop

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := t.Send(widget.Event{Type: widget.EventPing}); err != nil && m.logger != nil {
					m.logger.Transport().Debug("Heartbeat send failed", "error", err)
				}
			case <-stop:
				return
			}
		}
	}()
}

func (m *Manager) stopHeartbeat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.heartbeat != nil {
		m.heartbeat.Stop()
		m.heartbeat = nil
	}
	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
}

// Close permanently tears down the manager: flips the closed flag,
// cancels all timers, and closes the live transport with a normal
// closure. No reconnect fires afterward, even one already scheduled.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.teardownLocked(true)
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Transport().Info("Connection manager closed",
			"sessionId", logging.SanitizeSessionID(m.opts.SessionID))
	}
}

// teardownLocked cancels timers and closes the live transport. Callers
// hold m.mu.
func (m *Manager) teardownLocked(normal bool) {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	if m.heartbeat != nil {
		m.heartbeat.Stop()
		m.heartbeat = nil
	}
	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
	if m.current != nil {
		m.current.Close(normal)
		m.current = nil
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) setStatus(status widget.ConnectionStatus) {
	m.mu.Lock()
	if m.closed && status != widget.StatusDisconnected {
		m.mu.Unlock()
		return
	}
	prev := m.status
	m.status = status
	attempts := m.attempts
	m.mu.Unlock()

	if prev == status {
		return
	}
	if m.logger != nil {
		m.logger.LogConnectionTransition(string(prev), string(status), attempts, m.opts.SessionID)
	}
	if m.opts.OnStatus != nil {
		m.opts.OnStatus(status)
	}
}
