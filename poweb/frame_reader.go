package poweb

import (
	"errors"
	"net"
	"time"

	"github.com/relaycorp/relaynet-poweb-go/internal/transport"
)

// frameReader reads WebSocket frames from a session one at a time, strictly
// at the pace requestNext is called. This is what lets the collection
// engine's consumer-driven Next calls throttle the underlying socket reads:
// nothing is read ahead of what the consumer has asked for.
//
// If readTimeout is positive, it is applied as the read deadline before
// every read, so a silently dead peer surfaces as a net.Error with
// Timeout() == true rather than hanging forever; this is what feeds the
// read-timeout reconnection path in keep-alive mode.
type frameReader struct {
	requests    chan struct{}
	results     chan frameResult
	stopCh      chan struct{}
	readTimeout time.Duration
}

type frameResult struct {
	payload []byte
	err     error
}

func newFrameReader(sess *transport.Session, readTimeout time.Duration) *frameReader {
	r := &frameReader{
		requests:    make(chan struct{}, 1),
		results:     make(chan frameResult, 1),
		stopCh:      make(chan struct{}),
		readTimeout: readTimeout,
	}
	if readTimeout > 0 {
		// A PONG shows the peer is alive, so it extends the deadline of the
		// read in progress; only a peer that stops answering pings times out.
		sess.SetPongHandler(func(string) error {
			return sess.SetReadDeadline(time.Now().Add(readTimeout))
		})
	}
	go r.loop(sess)
	return r
}

func (r *frameReader) loop(sess *transport.Session) {
	for {
		select {
		case <-r.requests:
		case <-r.stopCh:
			return
		}

		if r.readTimeout > 0 {
			_ = sess.SetReadDeadline(time.Now().Add(r.readTimeout))
		}
		_, payload, err := sess.ReadMessage()

		select {
		case r.results <- frameResult{payload: payload, err: err}:
		case <-r.stopCh:
			return
		}

		if err != nil {
			return
		}
	}
}

// requestNext asks the reader goroutine to perform exactly one more read. It
// is a no-op if a request is already outstanding.
func (r *frameReader) requestNext() {
	select {
	case r.requests <- struct{}{}:
	default:
	}
}

func (r *frameReader) stop() {
	close(r.stopCh)
}

// isTimeout reports whether err is a network read timeout, the trigger for
// the short keep-alive reconnection backoff.
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
