package poweb_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relaycorp/relaynet-poweb-go/poweb"
)

func TestNewLocalEndpoint(t *testing.T) {
	cfg := poweb.NewLocalEndpoint()

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 276, cfg.Port)
	assert.False(t, cfg.UseTLS)
	assert.Equal(t, poweb.DefaultPingInterval, cfg.PingInterval)
	assert.Equal(t, poweb.DefaultDialTimeout, cfg.DialTimeout)
	assert.Equal(t, "http://127.0.0.1:276/v1", cfg.BaseHTTPURL())
	assert.Equal(t, "ws://127.0.0.1:276/v1", cfg.BaseWebSocketURL())
}

func TestNewRemoteEndpoint(t *testing.T) {
	cfg := poweb.NewRemoteEndpoint("gw.example.test")

	assert.Equal(t, "gw.example.test", cfg.Host)
	assert.Equal(t, 443, cfg.Port)
	assert.True(t, cfg.UseTLS)
	assert.Equal(t, "https://gw.example.test:443/v1", cfg.BaseHTTPURL())
	assert.Equal(t, "wss://gw.example.test:443/v1", cfg.BaseWebSocketURL())
}

func TestNewEndpoint_CustomPortNoTLS(t *testing.T) {
	cfg := poweb.NewEndpoint("gw.internal", 8276, false)

	assert.Equal(t, "gw.internal", cfg.Host)
	assert.Equal(t, 8276, cfg.Port)
	assert.False(t, cfg.UseTLS)
	assert.Equal(t, "http://gw.internal:8276/v1", cfg.BaseHTTPURL())
	assert.Equal(t, "ws://gw.internal:8276/v1", cfg.BaseWebSocketURL())
}

func TestNewEndpoint_CustomPortWithTLS(t *testing.T) {
	cfg := poweb.NewEndpoint("gw.internal", 8443, true)

	assert.Equal(t, "https://gw.internal:8443/v1", cfg.BaseHTTPURL())
	assert.Equal(t, "wss://gw.internal:8443/v1", cfg.BaseWebSocketURL())
}

func TestEndpointConfig_PingIntervalCanBeDisabled(t *testing.T) {
	cfg := poweb.NewLocalEndpoint()
	cfg.PingInterval = 0

	assert.Equal(t, time.Duration(0), cfg.PingInterval)
}
