package poweb

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/relaycorp/relaynet-poweb-go/internal/transport"
	"github.com/relaycorp/relaynet-poweb-go/internal/wire"
)

const collectionPath = "/v1/parcel-collection"

// backoff delays for the two retryable keep-alive reconnection causes: an
// INTERNAL_ERROR close (or an abrupt disconnect) gets the longer delay,
// a read timeout against a silently dead peer gets the shorter one.
const (
	reconnectBackoffAbruptDisconnect = 3 * time.Second
	reconnectBackoffReadTimeout      = 500 * time.Millisecond
)

// CollectParcels starts a parcel collection session against the gateway,
// returning a lazily-driven stream of ParcelCollection values. signers must
// be non-empty; if it is empty, CollectParcels fails immediately with a
// NonceSignerError and no WebSocket is opened.
//
// mode controls whether the gateway holds the session open indefinitely
// (StreamingModeKeepAlive, the default when mode is empty) or drains queued
// parcels and closes (StreamingModeCloseUponCompletion).
func (c *Client) CollectParcels(signers []NonceSigner, mode StreamingMode) (*ParcelCollectionStream, error) {
	if len(signers) == 0 {
		return nil, &NonceSignerError{Message: "At least one nonce signer must be specified"}
	}

	if mode == "" {
		mode = StreamingModeKeepAlive
	}

	return &ParcelCollectionStream{
		client:   c,
		signers:  signers,
		mode:     mode,
		itemCh:   make(chan *ParcelCollection),
		cancelCh: make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// ParcelCollectionStream is a lazy, pull-based sequence of ParcelCollection
// values. Call Next repeatedly to drive the session forward;
// each call blocks until a parcel is collected, the session ends, or ctx is
// cancelled. Always call Close when done consuming, including when breaking
// out of the loop early, to release the underlying WebSocket.
type ParcelCollectionStream struct {
	client  *Client
	signers []NonceSigner
	mode    StreamingMode

	itemCh   chan *ParcelCollection
	cancelCh chan struct{}
	doneCh   chan struct{}

	startOnce sync.Once
	current   *ParcelCollection
	err       error
	closeOnce sync.Once
}

// Next advances the stream by one element, blocking until a parcel arrives,
// the session ends, or ctx is done. It returns false when there are no more
// elements — check Err to distinguish a clean end (nil) from a failure.
func (s *ParcelCollectionStream) Next(ctx context.Context) bool {
	s.start()
	s.current = nil

	select {
	case item, ok := <-s.itemCh:
		if !ok {
			return false
		}
		s.current = item
		return true

	case <-ctx.Done():
		_ = s.Close()
		return false

	case <-s.doneCh:
		// The session loop exited between the start of this call and now
		// (e.g. it terminated with an error before emitting anything further).
		select {
		case item, ok := <-s.itemCh:
			if ok {
				s.current = item
				return true
			}
		default:
		}
		return false
	}
}

// Collection returns the element most recently produced by Next. It is nil
// before the first call to Next and after Next returns false.
func (s *ParcelCollectionStream) Collection() *ParcelCollection {
	return s.current
}

// Err returns the error, if any, that caused the stream to end. It returns
// nil if the stream ended cleanly (the server closed normally, or the
// consumer cancelled via ctx or Close).
func (s *ParcelCollectionStream) Err() error {
	return s.err
}

// Close cancels the stream, closing the underlying session with code NORMAL
// if it's still open. It is idempotent and safe to call even if Next was
// never called.
func (s *ParcelCollectionStream) Close() error {
	s.start()
	s.closeOnce.Do(func() {
		close(s.cancelCh)
	})
	<-s.doneCh
	return nil
}

func (s *ParcelCollectionStream) start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

// run is the reconnection-spanning control loop: it repeatedly drives one
// session to completion, reconnecting from scratch when the session ended
// with a retryable cause in keep-alive mode.
func (s *ParcelCollectionStream) run() {
	defer close(s.doneCh)
	defer close(s.itemCh)

	for {
		outcome := s.driveOneSession()

		if outcome.reconnect {
			select {
			case <-time.After(outcome.backoff):
				continue
			case <-s.cancelCh:
				return
			}
		}

		s.err = outcome.err
		return
	}
}

// sessionOutcome reports how one WebSocket connection attempt ended.
type sessionOutcome struct {
	reconnect bool
	backoff   time.Duration
	err       error
}

func (s *ParcelCollectionStream) driveOneSession() sessionOutcome {
	headers := http.Header{}
	headers.Set(streamingModeHeaderName, s.mode.HeaderValue())

	dialCtx, cancelDial := context.WithCancel(context.Background())
	defer cancelDial()
	go func() {
		select {
		case <-s.cancelCh:
			cancelDial()
		case <-dialCtx.Done():
		}
	}()

	var outcome sessionOutcome

	dialErr := s.client.transport.WSConnect(dialCtx, collectionPath, headers, func(sess *transport.Session) error {
		outcome = s.driveSession(sess)
		return nil
	})
	if dialErr != nil {
		select {
		case <-s.cancelCh:
			// The dial was aborted because the stream was closed, not
			// because the gateway is unreachable.
			return sessionOutcome{err: nil}
		default:
		}
		url := s.client.cfg.BaseWebSocketURL() + collectionPath
		return sessionOutcome{err: mapConnectError(url, dialErr)}
	}

	return outcome
}

// driveSession runs the full handshake + streaming state machine over a
// single, already-open WebSocket connection.
func (s *ParcelCollectionStream) driveSession(sess *transport.Session) sessionOutcome {
	reader := newFrameReader(sess, s.client.readTimeout())
	defer reader.stop()

	// OPENING: wait for the handshake challenge.
	res, ok := s.awaitFrame(reader)
	if !ok {
		_ = sess.Close(closeNormalClosure, "")
		return sessionOutcome{err: nil}
	}
	if res.err != nil {
		return sessionOutcome{err: classifyHandshakeFailure(res.err)}
	}

	challenge, err := wire.DecodeChallenge(res.payload)
	if err != nil {
		_ = sess.Close(closePolicyViolation, "")
		return sessionOutcome{err: &ServerBindingError{Message: "Server sent an invalid handshake challenge"}}
	}

	// SIGNING: sign the nonce with every supplied signer, in call order.
	signatures := make([][]byte, len(s.signers))
	for i, signer := range s.signers {
		sig, signErr := signer.Sign(challenge.Nonce, NonceSignaturePurpose)
		if signErr != nil {
			return sessionOutcome{err: fmt.Errorf("signing nonce with signer %d: %w", i, signErr)}
		}
		signatures[i] = sig
	}

	responseFrame := wire.EncodeResponse(wire.Response{Signatures: signatures})
	if err := sess.WriteBinary(responseFrame); err != nil {
		return s.classifyStreamingFailure(sess, err)
	}

	trustedCertificates := make([][]byte, len(s.signers))
	for i, signer := range s.signers {
		trustedCertificates[i] = signer.Certificate()
	}

	// STREAMING: read deliveries until the session ends.
	return s.streamLoop(sess, reader, trustedCertificates)
}

// streamLoop implements the STREAMING state: it reads frames, emits parcel
// collections to the consumer, and drains the session's ack queue, until
// the session is cancelled or ends.
func (s *ParcelCollectionStream) streamLoop(sess *transport.Session, reader *frameReader, trustedCertificates [][]byte) sessionOutcome {
	ackCh := make(chan string, 64)

	reader.requestNext()

	for {
		select {
		case <-s.cancelCh:
			_ = sess.Close(closeNormalClosure, "")
			return sessionOutcome{err: nil}

		case id := <-ackCh:
			_ = sess.WriteText([]byte(id))

		case res := <-reader.results:
			if res.err != nil {
				return s.classifyStreamingFailure(sess, res.err)
			}

			delivery, err := wire.DecodeParcelDelivery(res.payload)
			if err != nil {
				_ = sess.Close(closePolicyViolation, "Invalid parcel delivery")
				return sessionOutcome{err: &ServerBindingError{Message: "Received invalid message from server"}}
			}

			item := &ParcelCollection{
				ParcelSerialized:    delivery.ParcelSerialized,
				TrustedCertificates: trustedCertificates,
				deliveryID:          delivery.DeliveryID,
				ackCh:               ackCh,
			}

			if !s.emit(item, ackCh, sess) {
				return sessionOutcome{err: nil}
			}

			reader.requestNext()
		}
	}
}

// emit hands item to the consumer, blocking until Next pulls it while still
// servicing the ack queue for previously-emitted parcels. It returns false
// if the stream was cancelled before the item could be delivered.
func (s *ParcelCollectionStream) emit(item *ParcelCollection, ackCh chan string, sess *transport.Session) bool {
	for {
		select {
		case s.itemCh <- item:
			return true
		case id := <-ackCh:
			_ = sess.WriteText([]byte(id))
		case <-s.cancelCh:
			_ = sess.Close(closeNormalClosure, "")
			return false
		}
	}
}

// awaitFrame waits for the first frame reader result, honouring
// cancellation. ok is false if the stream was cancelled before any frame
// arrived.
func (s *ParcelCollectionStream) awaitFrame(reader *frameReader) (frameResult, bool) {
	reader.requestNext()
	select {
	case res := <-reader.results:
		return res, true
	case <-s.cancelCh:
		return frameResult{}, false
	}
}

// classifyHandshakeFailure maps a read failure observed while waiting for
// the handshake challenge (OPENING state) to the public error taxonomy.
// Handshake failures are never retried, regardless of mode.
func classifyHandshakeFailure(err error) error {
	return &ServerConnectionError{Message: "Server closed the connection during the handshake"}
}

// classifyStreamingFailure maps a read failure observed during STREAMING to
// either a reconnect instruction (keep-alive only) or a terminal
// ServerConnectionError.
func (s *ParcelCollectionStream) classifyStreamingFailure(sess *transport.Session, err error) sessionOutcome {
	if closeErr, ok := transport.AsCloseError(err); ok {
		switch {
		case closeErr.Code == closeNormalClosure:
			return sessionOutcome{err: nil}

		case s.mode == StreamingModeKeepAlive && closeErr.Code == closeInternalErr:
			return sessionOutcome{reconnect: true, backoff: reconnectBackoffAbruptDisconnect}

		default:
			return sessionOutcome{err: &ServerConnectionError{
				Message: fmt.Sprintf("Server closed the connection unexpectedly (code: %d, reason: %s)", closeErr.Code, closeErr.Reason),
			}}
		}
	}

	if s.mode == StreamingModeKeepAlive {
		if isTimeout(err) {
			return sessionOutcome{reconnect: true, backoff: reconnectBackoffReadTimeout}
		}
		// Abrupt end-of-stream (e.g. EOF) after a successful open.
		return sessionOutcome{reconnect: true, backoff: reconnectBackoffAbruptDisconnect}
	}

	return sessionOutcome{err: &ServerConnectionError{
		Message: fmt.Sprintf("Server closed the connection unexpectedly: %s", err.Error()),
	}}
}
