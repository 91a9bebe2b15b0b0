// Package transport holds the single HTTP/WebSocket client a PoWeb Client
// owns, and provides the two primitives the rest of the module builds on:
// a unary POST and a framed, bidirectional WebSocket session.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Response is the result of a unary POST.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Session is a bidirectional, framed WebSocket session. It is closed
// automatically when the block passed to WSConnect returns.
type Session struct {
	conn *websocket.Conn
}

// ReadMessage reads the next WebSocket frame, returning its type
// (websocket.BinaryMessage or websocket.TextMessage) and payload.
func (s *Session) ReadMessage() (messageType int, payload []byte, err error) {
	return s.conn.ReadMessage()
}

// SetReadDeadline sets the deadline for future ReadMessage calls.
func (s *Session) SetReadDeadline(deadline time.Time) error {
	return s.conn.SetReadDeadline(deadline)
}

// SetPongHandler registers a callback invoked whenever a PONG control frame
// is received, letting the caller extend the read deadline in response to a
// live peer.
func (s *Session) SetPongHandler(h func(appData string) error) {
	s.conn.SetPongHandler(h)
}

// WriteBinary writes a single BINARY frame.
func (s *Session) WriteBinary(payload []byte) error {
	return s.conn.WriteMessage(websocket.BinaryMessage, payload)
}

// WriteText writes a single TEXT frame.
func (s *Session) WriteText(payload []byte) error {
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a close frame with the given code and reason, then closes the
// underlying connection. It is idempotent: calling it more than once is
// harmless.
func (s *Session) Close(code int, reason string) error {
	deadline := time.Now().Add(2 * time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	return s.conn.Close()
}

// CloseError reports the close code and reason observed when the remote end
// closed the connection. It wraps the *websocket.CloseError the gorilla
// library returns, exposing just the two fields the collection engine cares
// about.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("connection closed (code: %d, reason: %s)", e.Code, e.Reason)
}

// AsCloseError extracts a *CloseError from a gorilla websocket error, or
// returns nil, false if err is not a close event.
func AsCloseError(err error) (*CloseError, bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return &CloseError{Code: ce.Code, Reason: ce.Text}, true
	}
	return nil, false
}

// Transport owns the dialer/client configuration for a single PoWeb
// endpoint. Ownership is exclusive to the Client that created it; Close
// releases any resources held for reuse (idle HTTP connections).
type Transport struct {
	baseHTTPURL string
	baseWSURL   string
	dialer      websocket.Dialer
	httpClient  *http.Client
	pingInterval time.Duration
}

// New builds a Transport for the given base URLs. skipTLSVerify exists only
// for tests against a local httptest TLS server with a self-signed
// certificate.
func New(baseHTTPURL, baseWSURL string, dialTimeout, pingInterval time.Duration, skipTLSVerify bool) *Transport {
	var tlsConfig *tls.Config
	if skipTLSVerify {
		tlsConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // test-only knob
	}

	return &Transport{
		baseHTTPURL: baseHTTPURL,
		baseWSURL:   baseWSURL,
		dialer: websocket.Dialer{
			HandshakeTimeout: dialTimeout,
			TLSClientConfig:  tlsConfig,
		},
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		},
		pingInterval: pingInterval,
	}
}

// Close releases any pooled resources held by the transport. It is
// idempotent.
func (t *Transport) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

// Post issues a unary POST to path (relative to the base HTTP URL) and
// returns the raw response. It does not interpret status codes; that is the
// error mapper's job.
func (t *Transport) Post(ctx context.Context, path string, body []byte, contentType string, authorization string) (*Response, error) {
	url := t.baseHTTPURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}

// WSConnect opens a WebSocket to path (relative to the base WebSocket URL),
// sending requestHeaders, and invokes block with the resulting Session. The
// session is closed when block returns, whether or not it returned an error;
// WSConnect itself never attempts to close(NORMAL) on behalf of the caller —
// that is left to the caller's own protocol state machine.
func (t *Transport) WSConnect(ctx context.Context, path string, requestHeaders http.Header, block func(*Session) error) error {
	url := t.baseWSURL + path

	conn, _, err := t.dialer.DialContext(ctx, url, requestHeaders)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", url, err)
	}

	session := &Session{conn: conn}

	stopPing := t.startPinging(conn)
	defer stopPing()

	defer conn.Close()

	return block(session)
}

// startPinging launches a goroutine sending WebSocket PING control frames
// every pingInterval, to keep NAT bindings alive and let the peer detect a
// silent disconnect. The returned function stops the goroutine.
func (t *Transport) startPinging(conn *websocket.Conn) func() {
	if t.pingInterval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(t.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(t.pingInterval)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
