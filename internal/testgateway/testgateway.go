// Package testgateway implements a scriptable double of a PoWeb gateway, for
// driving the module's own tests against a real HTTP/WebSocket server rather
// than mocking the transport. It routes requests with gorilla/mux behind a
// small logging middleware, and scripts its collection socket around the
// PoWeb collection protocol: a handshake challenge, zero or more parcel
// deliveries, and a close.
package testgateway

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/relaycorp/relaynet-poweb-go/internal/wire"
)

// Frame is one step of a scripted collection session, run after the
// challenge has been sent and the client's Response read: a binary frame, a
// text frame, a close, or an abrupt disconnect. A zero Frame is skipped.
type Frame struct {
	// Binary, when non-nil, is written as a single BINARY frame.
	Binary []byte

	// Text, when non-empty, is written as a single TEXT frame — used to
	// script a malformed-delivery response the client should reject.
	Text string

	// Close, when non-nil, ends the session with the given code/reason
	// instead of sending a data frame.
	Close *CloseInstruction

	// AbruptDisconnect ends the underlying TCP connection without sending a
	// close control frame at all, to exercise the EOF reconnection path.
	AbruptDisconnect bool
}

// CloseInstruction scripts a close control frame.
type CloseInstruction struct {
	Code   int
	Reason string
}

// Session scripts a single collection WebSocket connection: the nonce to
// challenge with, and the frames to send after receiving the Response.
// Observed holds what the client actually sent, filled in as the session
// runs.
type Session struct {
	Nonce  []byte
	Frames []Frame

	mu               sync.Mutex
	ObservedResponse *wire.Response
	ObservedAcks     []string
}

func (s *Session) recordResponse(r wire.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ObservedResponse = &r
}

func (s *Session) recordAck(deliveryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ObservedAcks = append(s.ObservedAcks, deliveryID)
}

// Acks returns the delivery IDs acknowledged so far, in receipt order.
func (s *Session) Acks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ObservedAcks...)
}

// Gateway is an httptest-backed double of a PoWeb gateway. Script successive
// calls to the collection endpoint by pushing Sessions onto the queue before
// starting a collection against it; each connection pops the next one. Unary
// endpoint responses are configured directly via the exported fields.
type Gateway struct {
	Server *httptest.Server

	PreRegistrationResponse UnaryResponse
	RegistrationResponse    UnaryResponse
	DeliveryResponse        UnaryResponse

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions []*Session
}

// UnaryResponse scripts the response to one of the three unary endpoints.
type UnaryResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// New starts a Gateway backed by an in-process httptest.Server. tlsEnabled
// chooses between httptest.NewServer (plain HTTP/WS) and
// httptest.NewTLSServer (HTTPS/WSS), matching whichever scheme the test
// needs to exercise.
func New(tlsEnabled bool) *Gateway {
	g := &Gateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		PreRegistrationResponse: UnaryResponse{StatusCode: http.StatusOK, ContentType: "application/vnd.relaynet.node-registration.authorization"},
		RegistrationResponse:    UnaryResponse{StatusCode: http.StatusOK, ContentType: "application/vnd.relaynet.node-registration.registration"},
		DeliveryResponse:        UnaryResponse{StatusCode: http.StatusOK},
	}

	router := mux.NewRouter()
	router.Use(loggingMiddleware)
	router.HandleFunc("/v1/pre-registrations", g.handlePreRegistration).Methods(http.MethodPost)
	router.HandleFunc("/v1/nodes", g.handleRegistration).Methods(http.MethodPost)
	router.HandleFunc("/v1/parcels", g.handleDelivery).Methods(http.MethodPost)
	router.HandleFunc("/v1/parcel-collection", g.handleCollection)

	if tlsEnabled {
		g.Server = httptest.NewTLSServer(router)
	} else {
		g.Server = httptest.NewServer(router)
	}
	return g
}

// Close shuts down the underlying httptest.Server.
func (g *Gateway) Close() {
	g.Server.Close()
}

// QueueSession schedules a collection session script for the next WebSocket
// connection the gateway receives.
func (g *Gateway) QueueSession(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions = append(g.sessions, s)
}

func (g *Gateway) popSession() *Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sessions) == 0 {
		return nil
	}
	s := g.sessions[0]
	g.sessions = g.sessions[1:]
	return s
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("test gateway request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func writeUnary(w http.ResponseWriter, resp UnaryResponse) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != nil {
		_, _ = w.Write(resp.Body)
	}
}

func (g *Gateway) handlePreRegistration(w http.ResponseWriter, r *http.Request) {
	writeUnary(w, g.PreRegistrationResponse)
}

func (g *Gateway) handleRegistration(w http.ResponseWriter, r *http.Request) {
	writeUnary(w, g.RegistrationResponse)
}

func (g *Gateway) handleDelivery(w http.ResponseWriter, r *http.Request) {
	writeUnary(w, g.DeliveryResponse)
}

func (g *Gateway) handleCollection(w http.ResponseWriter, r *http.Request) {
	session := g.popSession()
	if session == nil {
		http.Error(w, "no session scripted", http.StatusServiceUnavailable)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("test gateway upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	challenge := wire.EncodeChallenge(wire.Challenge{Nonce: session.Nonce})
	if err := conn.WriteMessage(websocket.BinaryMessage, challenge); err != nil {
		return
	}

	_, payload, err := conn.ReadMessage()
	if err != nil {
		return
	}
	response, err := wire.DecodeResponse(payload)
	if err == nil {
		session.recordResponse(response)
	}

	for _, frame := range session.Frames {
		switch {
		case frame.AbruptDisconnect:
			return

		case frame.Close != nil:
			deadline := time.Now().Add(2 * time.Second)
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(frame.Close.Code, frame.Close.Reason), deadline)
			return

		case frame.Text != "":
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame.Text)); err != nil {
				return
			}

		case frame.Binary != nil:
			if err := conn.WriteMessage(websocket.BinaryMessage, frame.Binary); err != nil {
				return
			}
			// After a delivery, read the ACK (or the next protocol frame)
			// before moving on, so ACK ordering can be observed.
			_, ackPayload, ackErr := conn.ReadMessage()
			if ackErr == nil {
				session.recordAck(string(ackPayload))
			}
		}
	}
}

// DeliveryFrame is a convenience constructor for a scripted Parcel Delivery
// frame.
func DeliveryFrame(deliveryID string, parcelSerialized []byte) Frame {
	return Frame{Binary: wire.EncodeParcelDelivery(wire.ParcelDelivery{
		DeliveryID:        deliveryID,
		ParcelSerialized: parcelSerialized,
	})}
}

// CloseFrame is a convenience constructor for a scripted close frame.
func CloseFrame(code int, reason string) Frame {
	return Frame{Close: &CloseInstruction{Code: code, Reason: reason}}
}
