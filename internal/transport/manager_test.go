package transport

import (
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablesender/internal/config"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// backend is a minimal websocket server for driving the manager.
type backend struct {
	server *httptest.Server

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.mu.Lock()
		b.conns = append(b.conns, conn)
		b.mu.Unlock()
		// Drain inbound messages so pings and intents don't back up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *backend) endpoint(t *testing.T) Endpoint {
	t.Helper()
	addr := b.server.Listener.Addr().(*net.TCPAddr)
	return Endpoint{Scheme: "ws", Host: "127.0.0.1", Port: addr.Port}
}

// closeAll closes the server side of every accepted connection. httptest's
// Close does not touch hijacked websocket connections.
func (b *backend) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, conn := range b.conns {
		conn.Close()
	}
}

func (b *backend) push(t *testing.T, frame string) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.conns, "no client connected")
	conn := b.conns[len(b.conns)-1]
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// statusLog records every transition broadcast by the manager.
type statusLog struct {
	mu       sync.Mutex
	statuses []Status
}

func (l *statusLog) record(st Status) {
	l.mu.Lock()
	l.statuses = append(l.statuses, st)
	l.mu.Unlock()
}

func (l *statusLog) count(s State) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, st := range l.statuses {
		if st.State == s {
			n++
		}
	}
	return n
}

func fastReconnect() config.ReconnectConfig {
	return config.ReconnectConfig{MaxAttempts: 5, Delay: config.Duration(20 * time.Millisecond)}
}

func TestManagerConnectAndReceive(t *testing.T) {
	b := newBackend(t)
	ep := b.endpoint(t)

	frames := make(chan []byte, 1)
	log := &statusLog{}

	m := NewManager(fastReconnect(), &ep, nil, nil)
	m.OnStatus(log.record)
	m.OnFrame(func(data []byte) { frames <- data })
	m.Connect()
	defer m.Disconnect()

	assert.Eventually(t, func() bool { return m.State() == StateConnected }, 2*time.Second, 10*time.Millisecond)

	b.push(t, `{"orders":[]}`)
	select {
	case data := <-frames:
		assert.JSONEq(t, `{"orders":[]}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("frame never delivered")
	}

	require.NotNil(t, m.Endpoint())
	assert.Equal(t, ep.URL(), m.Endpoint().URL())
}

func TestManagerSendWhileDisconnected(t *testing.T) {
	ep := Endpoint{Scheme: "ws", Host: "127.0.0.1", Port: 1}
	m := NewManager(fastReconnect(), &ep, nil, nil)

	assert.False(t, m.Send(map[string]string{"action": "getState"}),
		"sends while disconnected are dropped, not queued")
}

func TestManagerSendWhileConnected(t *testing.T) {
	b := newBackend(t)
	ep := b.endpoint(t)

	m := NewManager(fastReconnect(), &ep, nil, nil)
	m.Connect()
	defer m.Disconnect()

	require.Eventually(t, func() bool { return m.State() == StateConnected }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, m.Send(map[string]string{"action": "getState"}))
}

func TestManagerReconnectExhaustion(t *testing.T) {
	b := newBackend(t)
	ep := b.endpoint(t)

	log := &statusLog{}
	m := NewManager(fastReconnect(), &ep, nil, nil)
	m.OnStatus(log.record)
	m.Connect()

	require.Eventually(t, func() bool { return m.State() == StateConnected }, 2*time.Second, 10*time.Millisecond)

	// Kill the backend for good; every retry must fail.
	b.server.Close()
	b.closeAll()

	require.Eventually(t, func() bool { return m.State() == StateFailed }, 5*time.Second, 10*time.Millisecond)

	// Exactly MaxAttempts reconnection attempts, then the manager parks.
	assert.Equal(t, 5, log.count(StateReconnecting))

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, StateFailed, m.State(), "no further attempts after Failed")
	assert.Equal(t, 5, log.count(StateReconnecting))

	assert.False(t, m.Send(map[string]string{"action": "getState"}))
}

func TestManagerStaleDiscoveryFailureIgnored(t *testing.T) {
	cfg := config.DiscoveryConfig{
		Port:         deadPort(t),
		Subnet:       "127.0.0.1/32",
		ProbeTimeout: config.Duration(100 * time.Millisecond),
		Stagger:      config.Duration(time.Millisecond),
	}
	disc := NewDiscoverer(cfg)
	log := &statusLog{}

	m := NewManager(fastReconnect(), nil, disc, nil)
	m.OnStatus(log.record)

	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	// Hold the discovery cycle open so the teardown lands mid-sweep.
	disc.runMu.Lock()

	done := make(chan struct{})
	go func() {
		m.establish(gen)
		close(done)
	}()

	require.Eventually(t, func() bool { return log.count(StateDiscovering) == 1 }, 2*time.Second, 5*time.Millisecond)

	// A rescan arrives while the sweep is still running: the old cycle's
	// generation is invalidated and its probe context cancelled.
	m.teardown()
	disc.Reset()
	disc.runMu.Unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stale discovery cycle never returned")
	}

	assert.Equal(t, 0, log.count(StateFailed), "invalidated cycle must not report Failed")
	assert.Equal(t, StateDiscovering, m.State())
}

func TestManagerConnectDoesNotLeaveFailed(t *testing.T) {
	b := newBackend(t)
	ep := b.endpoint(t)

	log := &statusLog{}
	m := NewManager(fastReconnect(), &ep, nil, nil)
	m.OnStatus(log.record)
	m.Connect()
	require.Eventually(t, func() bool { return m.State() == StateConnected }, 2*time.Second, 10*time.Millisecond)

	b.server.Close()
	b.closeAll()
	require.Eventually(t, func() bool { return m.State() == StateFailed }, 5*time.Second, 10*time.Millisecond)

	// Only Rescan restarts a parked manager.
	before := log.count(StateConnecting)
	m.Connect()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateFailed, m.State())
	assert.Equal(t, before, log.count(StateConnecting))
}

func TestManagerRecoversAcrossReconnect(t *testing.T) {
	b := newBackend(t)
	ep := b.endpoint(t)

	m := NewManager(fastReconnect(), &ep, nil, nil)
	m.Connect()
	defer m.Disconnect()

	require.Eventually(t, func() bool { return m.State() == StateConnected }, 2*time.Second, 10*time.Millisecond)

	// Drop the client connection server-side; the backend stays up, so the
	// first retry should succeed.
	b.mu.Lock()
	b.conns[0].Close()
	b.mu.Unlock()

	require.Eventually(t, func() bool { return m.State() != StateConnected }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return m.State() == StateConnected }, 2*time.Second, 10*time.Millisecond)
}

func TestManagerDisconnectStopsRetry(t *testing.T) {
	b := newBackend(t)
	ep := b.endpoint(t)

	m := NewManager(fastReconnect(), &ep, nil, nil)
	m.Connect()
	require.Eventually(t, func() bool { return m.State() == StateConnected }, 2*time.Second, 10*time.Millisecond)

	b.server.Close()
	m.Disconnect()

	assert.Equal(t, StateDisconnected, m.State())
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, StateDisconnected, m.State(), "no reconnect after explicit disconnect")
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateDisconnected: "disconnected",
		StateDiscovering:  "discovering",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateReconnecting: "reconnecting",
		StateFailed:       "failed",
		State(99):         "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}
