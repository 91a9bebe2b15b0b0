package poweb

import (
	"fmt"
	"time"
)

const (
	// defaultLocalPort is the default port for a gateway running on the same
	// device as the client (loopback, no TLS).
	defaultLocalPort = 276

	// defaultRemotePort is the default port for a gateway reachable over the
	// public internet (TLS on).
	defaultRemotePort = 443

	// DefaultPingInterval is how often the collection socket sends a
	// WebSocket PING to keep NAT bindings alive and detect silent
	// disconnects, per spec.
	DefaultPingInterval = 5 * time.Second

	// DefaultDialTimeout bounds how long opening the collection WebSocket
	// may take before it is treated as a failed connection attempt.
	DefaultDialTimeout = 15 * time.Second
)

// EndpointConfig is the immutable configuration of a PoWeb gateway endpoint.
// It is constructed once, via NewLocalEndpoint, NewRemoteEndpoint, or
// NewEndpoint, and never mutated afterwards.
type EndpointConfig struct {
	Host   string
	Port   int
	UseTLS bool

	// PingInterval configures the keep-alive ping sent on the collection
	// WebSocket. Zero disables pinging.
	PingInterval time.Duration

	// DialTimeout bounds the WebSocket handshake for a collection session.
	DialTimeout time.Duration
}

// NewLocalEndpoint builds the configuration for a gateway running on the
// local device: loopback host, plain (non-TLS) transport, default port 276.
func NewLocalEndpoint() EndpointConfig {
	return EndpointConfig{
		Host:         "127.0.0.1",
		Port:         defaultLocalPort,
		UseTLS:       false,
		PingInterval: DefaultPingInterval,
		DialTimeout:  DefaultDialTimeout,
	}
}

// NewRemoteEndpoint builds the configuration for a gateway reachable over the
// public internet at the given host, using TLS on the default port 443.
func NewRemoteEndpoint(host string) EndpointConfig {
	return EndpointConfig{
		Host:         host,
		Port:         defaultRemotePort,
		UseTLS:       true,
		PingInterval: DefaultPingInterval,
		DialTimeout:  DefaultDialTimeout,
	}
}

// NewEndpoint builds a fully custom endpoint configuration, for gateways that
// don't fit either preset (e.g. a remote gateway on a non-standard port).
func NewEndpoint(host string, port int, useTLS bool) EndpointConfig {
	return EndpointConfig{
		Host:         host,
		Port:         port,
		UseTLS:       useTLS,
		PingInterval: DefaultPingInterval,
		DialTimeout:  DefaultDialTimeout,
	}
}

// BaseHTTPURL returns the base URL under which the unary HTTP endpoints are
// reachable: "{scheme}://{host}:{port}/v1".
func (c *EndpointConfig) BaseHTTPURL() string {
	return fmt.Sprintf("%s://%s:%d/v1", c.httpScheme(), c.Host, c.Port)
}

// BaseWebSocketURL returns the base URL under which the WebSocket endpoints
// are reachable: "{ws|wss}://{host}:{port}/v1".
func (c *EndpointConfig) BaseWebSocketURL() string {
	return fmt.Sprintf("%s://%s:%d/v1", c.wsScheme(), c.Host, c.Port)
}

func (c *EndpointConfig) httpScheme() string {
	if c.UseTLS {
		return "https"
	}
	return "http"
}

func (c *EndpointConfig) wsScheme() string {
	if c.UseTLS {
		return "wss"
	}
	return "ws"
}
