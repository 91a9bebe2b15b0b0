package poweb

import "sync"

// ParcelCollection is a single parcel delivered by the gateway during a
// collection session. It is valid until the session ends; Ack is only
// honoured while the session is open.
type ParcelCollection struct {
	// ParcelSerialized is the opaque, application-layer parcel payload. The
	// client never interprets it.
	ParcelSerialized []byte

	// TrustedCertificates is the ordered sequence of certificates of the
	// signers supplied to CollectParcels, captured at call time: exactly
	// {signer_i.certificate} in input order for every emitted collection.
	// This is deliberately an ordered list, not a set.
	TrustedCertificates [][]byte

	deliveryID string
	ackCh      chan<- string
	ackOnce    sync.Once
}

// Ack acknowledges receipt of the parcel, causing the engine to send a TEXT
// frame carrying the delivery ID back to the gateway. It is idempotent from
// the caller's perspective: the engine sends at most one ACK for this
// collection no matter how many times Ack is called, though callers should
// call it at most once.
//
// Ack enqueues onto the session's shared, ordered ack queue, so ACKs for
// consecutive deliveries are sent to the gateway in the order Ack was
// called, not the order the deliveries were received. Ack is best-effort:
// if the session has already been cancelled or has ended, the ACK may be
// silently dropped.
func (p *ParcelCollection) Ack() {
	p.ackOnce.Do(func() {
		if p.ackCh == nil {
			return
		}
		select {
		case p.ackCh <- p.deliveryID:
		default:
			// The session's ack queue is full (the engine has stopped
			// draining it, e.g. cancellation in progress); drop the ACK
			// best-effort.
		}
	})
}
