package poweb

import (
	"log/slog"
	"time"

	"github.com/relaycorp/relaynet-poweb-go/internal/transport"
)

// Client binds to a single PoWeb gateway endpoint and issues the pre-
// registration, registration, parcel delivery and parcel collection
// operations against it. A Client owns exactly one underlying transport;
// create one Client per endpoint and reuse it across calls.
type Client struct {
	cfg       EndpointConfig
	transport *transport.Transport
	logger    *slog.Logger
}

// New builds a Client bound to cfg. It does not connect to anything until an
// operation is called.
func New(cfg EndpointConfig, opts ...ClientOption) *Client {
	c := &Client{
		cfg:    cfg,
		logger: slog.Default(),
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}

	c.transport = transport.New(cfg.BaseHTTPURL(), cfg.BaseWebSocketURL(), dialTimeout, cfg.PingInterval, false)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientOption customises a Client built by New.
type ClientOption func(*Client)

// WithLogger overrides the slog.Logger stored on the client; without this
// option the client holds slog.Default(). None of the client's operations
// write to this logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// withInsecureTransport rebuilds the client's transport with TLS
// verification disabled. It exists only so the module's own tests can dial
// an httptest.NewTLSServer using its self-signed certificate.
func withInsecureTransport(c *Client) {
	dialTimeout := c.cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	c.transport = transport.New(c.cfg.BaseHTTPURL(), c.cfg.BaseWebSocketURL(), dialTimeout, c.cfg.PingInterval, true)
}

// readTimeout bounds how long the collection engine waits for the next
// frame before treating the read as timed out. It is derived from the
// endpoint's configured ping interval so a silently dead peer is detected
// within roughly two missed pings; if pinging is disabled (PingInterval <=
// 0), no read deadline is applied.
func (c *Client) readTimeout() time.Duration {
	if c.cfg.PingInterval <= 0 {
		return 0
	}
	return 2 * c.cfg.PingInterval
}

// WithInsecureSkipVerify is a ClientOption for tests only: it disables TLS
// certificate verification on the client's transport.
func WithInsecureSkipVerify() ClientOption {
	return withInsecureTransport
}

// Close releases the resources held by the client's transport. It does not
// affect any in-flight ParcelCollectionStream; callers should Close those
// first.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Endpoint returns the configuration the client was built with.
func (c *Client) Endpoint() EndpointConfig {
	return c.cfg
}
