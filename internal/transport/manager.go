package transport

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tablesender/internal/config"
	"tablesender/internal/monitoring"
)

// State is the connection manager's lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateDiscovering
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

// String returns the string representation of a connection state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateDiscovering:
		return "discovering"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is broadcast to subscribers on every state transition.
type Status struct {
	State    State
	Endpoint *Endpoint
	Err      error
}

// Manager owns the websocket lifecycle: endpoint resolution, connect, loss
// detection, fixed-delay retry and a bounded attempt count. Retry is
// deliberately simple (no backoff growth, no jitter): the client is supervised
// by an operator who can trigger a manual rescan once attempts are exhausted.
type Manager struct {
	reconnect config.ReconnectConfig
	fixed     *Endpoint
	disc      *Discoverer
	metrics   *monitoring.Metrics

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	endpoint *Endpoint
	attempts int
	timer    *time.Timer
	// gen invalidates read loops and pending reconnect timers from a previous
	// connection lifecycle after Disconnect or Rescan.
	gen int

	// writeMu serializes writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	statusFns []func(Status)
	frameFn   func([]byte)
}

// NewManager creates a connection manager. fixed may be nil, in which case the
// manager resolves an endpoint through discovery.
func NewManager(cfg config.ReconnectConfig, fixed *Endpoint, disc *Discoverer, metrics *monitoring.Metrics) *Manager {
	return &Manager{
		reconnect: cfg,
		fixed:     fixed,
		disc:      disc,
		metrics:   metrics,
		state:     StateDisconnected,
	}
}

// OnStatus registers a connectivity subscriber. Must be called before Connect.
func (m *Manager) OnStatus(fn func(Status)) {
	m.statusFns = append(m.statusFns, fn)
}

// OnFrame registers the inbound frame handler. Must be called before Connect.
func (m *Manager) OnFrame(fn func([]byte)) {
	m.frameFn = fn
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Endpoint returns the last known good endpoint, or nil.
func (m *Manager) Endpoint() *Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endpoint == nil {
		return nil
	}
	ep := *m.endpoint
	return &ep
}

// Connect starts the connection lifecycle from the Disconnected state. It
// returns immediately; progress is reported through status subscribers. Once
// the manager has parked in Failed, only Rescan starts a new cycle.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	gen := m.gen
	m.mu.Unlock()
	go m.establish(gen)
}

// Disconnect closes the socket and stops any pending reconnect.
func (m *Manager) Disconnect() {
	conn := m.teardown()
	if conn != nil {
		conn.Close()
	}
	m.setState(StateDisconnected, nil)
}

// Rescan tears down any live socket and in-flight probes, discards the cached
// discovery result and starts a fresh discovery cycle. This is the only way
// out of the Failed state.
func (m *Manager) Rescan() {
	conn := m.teardown()
	if conn != nil {
		conn.Close()
	}
	if m.disc != nil {
		m.disc.Reset()
	}
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()
	go m.establish(gen)
}

// Send transmits a message if the connection is up. It returns false when the
// manager is not in the Connected state: messages are never queued for later
// delivery, the caller is expected to rely on a fresh snapshot instead.
func (m *Manager) Send(v any) bool {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		log.Printf("transport: send dropped, not connected")
		m.metrics.CountSendFailure()
		return false
	}

	m.writeMu.Lock()
	err := conn.WriteJSON(v)
	m.writeMu.Unlock()
	if err != nil {
		log.Printf("transport: write failed: %v", err)
		m.metrics.CountSendFailure()
		// The read loop observes the closed socket and drives the retry.
		conn.Close()
		return false
	}
	return true
}

// teardown invalidates the current lifecycle and returns the socket to close,
// if any.
func (m *Manager) teardown() *websocket.Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.attempts = 0
	return conn
}

// valid reports whether gen is still the current connection cycle. Goroutines
// from a torn-down cycle use it to bail out instead of touching shared state.
func (m *Manager) valid(gen int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

func (m *Manager) establish(gen int) {
	ep := m.fixed
	if ep == nil {
		if !m.valid(gen) {
			return
		}
		m.setState(StateDiscovering, nil)
		found, ok := m.disc.Discover(context.Background())
		if !ok {
			// A rescan cancels the running sweep; only the current cycle may
			// report the failure.
			if m.valid(gen) {
				m.setState(StateFailed, nil)
			}
			return
		}
		ep = &found
	}
	m.dial(gen, *ep)
}

func (m *Manager) dial(gen int, ep Endpoint) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.endpoint = &ep
	m.timer = nil
	m.mu.Unlock()

	m.setState(StateConnecting, nil)
	log.Printf("transport: connecting to %s", ep.URL())

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(ep.URL(), nil)
	if err != nil {
		log.Printf("transport: connect failed: %v", err)
		m.connectionLost(gen, err)
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.attempts = 0
	m.mu.Unlock()

	log.Printf("transport: connected to %s", ep.URL())
	m.setState(StateConnected, nil)
	go m.readLoop(conn, gen)
}

func (m *Manager) readLoop(conn *websocket.Conn, gen int) {
	var readErr error
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("transport: read error: %v", err)
			}
			readErr = err
			break
		}
		if m.frameFn != nil {
			m.frameFn(data)
		}
	}
	m.connectionLost(gen, readErr)
}

// connectionLost drives the retry policy: a fixed delay between attempts and a
// bounded consecutive attempt count, after which the manager parks in Failed.
func (m *Manager) connectionLost(gen int, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	if m.attempts >= m.reconnect.MaxAttempts {
		m.mu.Unlock()
		log.Printf("transport: giving up after %d attempts", m.reconnect.MaxAttempts)
		m.setState(StateFailed, err)
		return
	}
	m.attempts++
	attempt := m.attempts
	ep := *m.endpoint
	m.timer = time.AfterFunc(m.reconnect.Delay.Std(), func() {
		m.dial(gen, ep)
	})
	m.mu.Unlock()

	log.Printf("transport: reconnect attempt %d/%d in %s", attempt, m.reconnect.MaxAttempts, m.reconnect.Delay.Std())
	m.metrics.CountReconnect()
	m.setState(StateReconnecting, err)
}

func (m *Manager) setState(s State, err error) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	var ep *Endpoint
	if m.endpoint != nil {
		cp := *m.endpoint
		ep = &cp
	}
	fns := m.statusFns
	m.mu.Unlock()

	m.metrics.SetConnectionState(int(s))
	for _, fn := range fns {
		fn(Status{State: s, Endpoint: ep, Err: err})
	}
}
