// Package wire implements the binary framing for the three messages
// exchanged on the parcel collection WebSocket: the handshake challenge, the
// handshake response, and parcel delivery frames. This stands in for the
// external Awala messaging library referenced by the specification (no
// library in the retrieved examples or the broader ecosystem implements this
// wire format), so it is a small bespoke binary codec rather than a
// dependency.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidMessage is returned when a frame cannot be decoded into its
// expected shape.
var ErrInvalidMessage = errors.New("invalid message")

// frame tags identify the message kind within the first byte of every
// binary frame on the collection socket.
const (
	tagChallenge byte = 0x01
	tagResponse  byte = 0x02
	tagDelivery  byte = 0x03
)

// Challenge is sent by the gateway as the first binary frame of a collection
// session. Nonce proves, once signed back by the client, that each supplied
// signer holds the corresponding private key.
type Challenge struct {
	Nonce []byte
}

// EncodeChallenge serialises a Challenge to its wire representation.
func EncodeChallenge(c Challenge) []byte {
	return encodeTLV(tagChallenge, [][]byte{c.Nonce})
}

// DecodeChallenge parses a binary frame into a Challenge. It returns
// ErrInvalidMessage if the frame is malformed.
func DecodeChallenge(raw []byte) (Challenge, error) {
	fields, err := decodeTLV(tagChallenge, raw, 1)
	if err != nil {
		return Challenge{}, err
	}
	return Challenge{Nonce: fields[0]}, nil
}

// Response is sent by the client after signing the challenge's nonce with
// every supplied signer, in call order.
type Response struct {
	Signatures [][]byte
}

// EncodeResponse serialises a Response to its wire representation.
func EncodeResponse(r Response) []byte {
	return encodeTLV(tagResponse, r.Signatures)
}

// DecodeResponse parses a binary frame into a Response.
func DecodeResponse(raw []byte) (Response, error) {
	fields, err := decodeTLVAny(tagResponse, raw)
	if err != nil {
		return Response{}, err
	}
	return Response{Signatures: fields}, nil
}

// ParcelDelivery pairs an opaque, server-assigned delivery ID with the
// serialised parcel bytes. The delivery ID must be echoed back verbatim in
// an ACK frame to acknowledge receipt.
type ParcelDelivery struct {
	DeliveryID        string
	ParcelSerialized []byte
}

// EncodeParcelDelivery serialises a ParcelDelivery to its wire
// representation.
func EncodeParcelDelivery(d ParcelDelivery) []byte {
	return encodeTLV(tagDelivery, [][]byte{[]byte(d.DeliveryID), d.ParcelSerialized})
}

// DecodeParcelDelivery parses a binary frame into a ParcelDelivery.
func DecodeParcelDelivery(raw []byte) (ParcelDelivery, error) {
	fields, err := decodeTLV(tagDelivery, raw, 2)
	if err != nil {
		return ParcelDelivery{}, err
	}
	return ParcelDelivery{
		DeliveryID:        string(fields[0]),
		ParcelSerialized: fields[1],
	}, nil
}

// encodeTLV writes [tag][count:u16][len:u32 value]* for each field.
func encodeTLV(tag byte, fields [][]byte) []byte {
	size := 1 + 2
	for _, f := range fields {
		size += 4 + len(f)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, tag)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(fields)))
	for _, f := range fields {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(f)))
		buf = append(buf, f...)
	}
	return buf
}

// decodeTLVAny decodes a frame with the given tag and any number of fields.
func decodeTLVAny(wantTag byte, raw []byte) ([][]byte, error) {
	if len(raw) < 3 {
		return nil, fmt.Errorf("%w: frame too short", ErrInvalidMessage)
	}
	if raw[0] != wantTag {
		return nil, fmt.Errorf("%w: unexpected frame tag %d", ErrInvalidMessage, raw[0])
	}
	count := binary.BigEndian.Uint16(raw[1:3])
	offset := 3
	fields := make([][]byte, 0, count)
	for i := uint16(0); i < count; i++ {
		if offset+4 > len(raw) {
			return nil, fmt.Errorf("%w: truncated field length", ErrInvalidMessage)
		}
		l := binary.BigEndian.Uint32(raw[offset : offset+4])
		offset += 4
		if offset+int(l) > len(raw) {
			return nil, fmt.Errorf("%w: truncated field value", ErrInvalidMessage)
		}
		fields = append(fields, raw[offset:offset+int(l)])
		offset += int(l)
	}
	if offset != len(raw) {
		return nil, fmt.Errorf("%w: trailing bytes", ErrInvalidMessage)
	}
	return fields, nil
}

// decodeTLV decodes a frame with the given tag and exactly wantFields fields.
func decodeTLV(wantTag byte, raw []byte, wantFields int) ([][]byte, error) {
	fields, err := decodeTLVAny(wantTag, raw)
	if err != nil {
		return nil, err
	}
	if len(fields) != wantFields {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidMessage, wantFields, len(fields))
	}
	return fields, nil
}
