package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycorp/relaynet-poweb-go/internal/wire"
)

func TestChallengeRoundTrip(t *testing.T) {
	original := wire.Challenge{Nonce: []byte("some-nonce")}

	decoded, err := wire.DecodeChallenge(wire.EncodeChallenge(original))

	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestResponseRoundTrip(t *testing.T) {
	original := wire.Response{Signatures: [][]byte{
		[]byte("signature-1"),
		[]byte("signature-2"),
	}}

	decoded, err := wire.DecodeResponse(wire.EncodeResponse(original))

	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestResponseRoundTrip_SingleSigner(t *testing.T) {
	original := wire.Response{Signatures: [][]byte{[]byte("only-signature")}}

	decoded, err := wire.DecodeResponse(wire.EncodeResponse(original))

	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestParcelDeliveryRoundTrip(t *testing.T) {
	original := wire.ParcelDelivery{
		DeliveryID:       "the delivery id",
		ParcelSerialized: []byte("serialized parcel bytes"),
	}

	decoded, err := wire.DecodeParcelDelivery(wire.EncodeParcelDelivery(original))

	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestParcelDeliveryRoundTrip_EmptyParcel(t *testing.T) {
	original := wire.ParcelDelivery{DeliveryID: "id", ParcelSerialized: []byte{}}

	decoded, err := wire.DecodeParcelDelivery(wire.EncodeParcelDelivery(original))

	require.NoError(t, err)
	assert.Equal(t, original.DeliveryID, decoded.DeliveryID)
	assert.Empty(t, decoded.ParcelSerialized)
}

func TestDecodeChallenge_WrongTag(t *testing.T) {
	raw := wire.EncodeResponse(wire.Response{Signatures: [][]byte{[]byte("x")}})

	_, err := wire.DecodeChallenge(raw)

	assert.ErrorIs(t, err, wire.ErrInvalidMessage)
}

func TestDecodeChallenge_TooShort(t *testing.T) {
	_, err := wire.DecodeChallenge([]byte{0x01})

	assert.ErrorIs(t, err, wire.ErrInvalidMessage)
}

func TestDecodeChallenge_WrongFieldCount(t *testing.T) {
	raw := []byte{0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 0x01, 'a', 0x00, 0x00, 0x00, 0x01, 'b'}

	_, err := wire.DecodeChallenge(raw)

	assert.ErrorIs(t, err, wire.ErrInvalidMessage)
}

func TestDecodeParcelDelivery_TruncatedFieldLength(t *testing.T) {
	raw := wire.EncodeParcelDelivery(wire.ParcelDelivery{DeliveryID: "id", ParcelSerialized: []byte("payload")})
	truncated := raw[:11]

	_, err := wire.DecodeParcelDelivery(truncated)

	assert.ErrorIs(t, err, wire.ErrInvalidMessage)
}

func TestDecodeParcelDelivery_TruncatedFieldValue(t *testing.T) {
	raw := wire.EncodeParcelDelivery(wire.ParcelDelivery{DeliveryID: "id", ParcelSerialized: []byte("payload")})
	truncated := raw[:len(raw)-3]

	_, err := wire.DecodeParcelDelivery(truncated)

	assert.ErrorIs(t, err, wire.ErrInvalidMessage)
}

func TestDecodeParcelDelivery_TrailingBytes(t *testing.T) {
	raw := wire.EncodeParcelDelivery(wire.ParcelDelivery{DeliveryID: "id", ParcelSerialized: []byte("payload")})
	padded := append(raw, 0xFF)

	_, err := wire.DecodeParcelDelivery(padded)

	assert.ErrorIs(t, err, wire.ErrInvalidMessage)
}

func TestDecodeParcelDelivery_NotAFrame(t *testing.T) {
	_, err := wire.DecodeParcelDelivery([]byte("invalid"))

	assert.ErrorIs(t, err, wire.ErrInvalidMessage)
}
