package transport

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"tablesender/internal/config"
)

// Discoverer locates a reachable backend when no fixed address is configured.
// It probes localhost first, then races probes across the configured subnet on
// the fixed port. The first probe to open wins and every other in-flight probe
// is closed. A successful result is cached for the process lifetime until
// Reset is called.
type Discoverer struct {
	cfg config.DiscoveryConfig

	// runMu serializes discovery cycles: one invocation at a time.
	runMu sync.Mutex

	mu     sync.Mutex
	cached *Endpoint
	cancel context.CancelFunc
}

// NewDiscoverer creates a discoverer for the given probe configuration.
func NewDiscoverer(cfg config.DiscoveryConfig) *Discoverer {
	return &Discoverer{cfg: cfg}
}

// Discover resolves a backend endpoint. Absence of a backend is a normal
// outcome, reported as false; Discover never returns an error.
func (d *Discoverer) Discover(ctx context.Context) (Endpoint, bool) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	if d.cached != nil {
		ep := *d.cached
		d.mu.Unlock()
		return ep, true
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()
	defer cancel()

	local := Endpoint{Scheme: "ws", Host: "localhost", Port: d.cfg.Port}
	log.Printf("discovery: probing %s", local.Addr())
	if probe(runCtx, local, d.cfg.ProbeTimeout.Std()) {
		d.store(local)
		return local, true
	}

	candidates := subnetCandidates(d.cfg.Subnet, d.cfg.Port)
	if len(candidates) == 0 {
		log.Printf("discovery: no candidates in subnet %q", d.cfg.Subnet)
		return Endpoint{}, false
	}

	log.Printf("discovery: sweeping %d candidates in %s", len(candidates), d.cfg.Subnet)
	ep, ok := raceProbes(runCtx, candidates, d.cfg.ProbeTimeout.Std(), d.cfg.Stagger.Std())
	if ok {
		log.Printf("discovery: backend found at %s", ep.Addr())
		d.store(ep)
	} else {
		log.Printf("discovery: no backend found")
	}
	return ep, ok
}

// Reset cancels any in-flight probe sweep and clears the cached result so the
// next Discover call starts a fresh cycle.
func (d *Discoverer) Reset() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.cached = nil
	d.mu.Unlock()
}

func (d *Discoverer) store(ep Endpoint) {
	d.mu.Lock()
	d.cached = &ep
	d.mu.Unlock()
}

// probe checks whether a candidate accepts connections. The socket is closed
// immediately; the real websocket handshake happens in the connection manager.
func probe(ctx context.Context, ep Endpoint, timeout time.Duration) bool {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", ep.Addr())
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// raceProbes opens probes concurrently with a small stagger between starts to
// avoid a connection-count burst. A single-assignment guard picks exactly one
// winner even if two probes succeed near-simultaneously; the shared cancel
// closes every loser.
func raceProbes(ctx context.Context, candidates []Endpoint, timeout, stagger time.Duration) (Endpoint, bool) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once   sync.Once
		winner Endpoint
		won    = make(chan struct{})
		wg     sync.WaitGroup
	)

	for i, cand := range candidates {
		wg.Add(1)
		go func(delay time.Duration, cand Endpoint) {
			defer wg.Done()
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-raceCtx.Done():
					return
				}
			}
			if probe(raceCtx, cand, timeout) {
				once.Do(func() {
					winner = cand
					close(won)
					cancel()
				})
			}
		}(time.Duration(i)*stagger, cand)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-won:
		return winner, true
	case <-done:
		// A winner may have been declared just as the last probe finished.
		select {
		case <-won:
			return winner, true
		default:
		}
		return Endpoint{}, false
	}
}

// subnetCandidates expands a CIDR range into probe endpoints, skipping the
// network and broadcast addresses.
func subnetCandidates(cidr string, port int) []Endpoint {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		log.Printf("discovery: invalid subnet %q: %v", cidr, err)
		return nil
	}

	var hosts []string
	for addr := ip.Mask(ipnet.Mask); ipnet.Contains(addr); incIP(addr) {
		hosts = append(hosts, addr.String())
	}
	if len(hosts) > 2 {
		hosts = hosts[1 : len(hosts)-1]
	}

	out := make([]Endpoint, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, Endpoint{Scheme: "ws", Host: h, Port: port})
	}
	return out
}

func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] > 0 {
			break
		}
	}
}
