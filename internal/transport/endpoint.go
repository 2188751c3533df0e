package transport

import (
	"fmt"
	"net/url"
	"strconv"
)

// Endpoint is a backend address candidate produced by configuration or
// discovery.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
}

// URL returns the websocket URL for the endpoint.
func (e Endpoint) URL() string {
	return fmt.Sprintf("%s://%s:%d", e.Scheme, e.Host, e.Port)
}

// Addr returns the host:port pair used for connection probes.
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// ParseEndpoint parses a fixed backend URL from configuration.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid server url %q: %w", raw, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return Endpoint{}, fmt.Errorf("invalid server url %q: scheme must be ws or wss", raw)
	}
	if u.Hostname() == "" {
		return Endpoint{}, fmt.Errorf("invalid server url %q: missing host", raw)
	}

	port := 80
	if u.Scheme == "wss" {
		port = 443
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return Endpoint{}, fmt.Errorf("invalid server url %q: bad port", raw)
		}
	}

	return Endpoint{Scheme: u.Scheme, Host: u.Hostname(), Port: port}, nil
}
