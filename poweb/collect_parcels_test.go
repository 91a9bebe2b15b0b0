package poweb_test

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycorp/relaynet-poweb-go/internal/testgateway"
	"github.com/relaycorp/relaynet-poweb-go/poweb"
	"github.com/relaycorp/relaynet-poweb-go/powebtest"
)

func newTestClient(t *testing.T, gw *testgateway.Gateway) *poweb.Client {
	t.Helper()

	u, err := url.Parse(gw.Server.URL)
	require.NoError(t, err)

	host := u.Hostname()
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := poweb.NewEndpoint(host, port, true)
	cfg.DialTimeout = 2 * time.Second
	cfg.PingInterval = 0

	client := poweb.New(cfg, poweb.WithInsecureSkipVerify())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestSigner(t *testing.T) *powebtest.Ed25519Signer {
	t.Helper()
	signer, err := powebtest.NewEd25519Signer("test node")
	require.NoError(t, err)
	return signer
}

// A single delivered parcel is acknowledged and the session ends cleanly.
func TestCollectParcels_HappyPathAcknowledged(t *testing.T) {
	gw := testgateway.New(true)
	defer gw.Close()

	signer := newTestSigner(t)
	session := &testgateway.Session{
		Nonce: []byte("nonce"),
		Frames: []testgateway.Frame{
			testgateway.DeliveryFrame("the delivery id", []byte("the parcel serialized")),
			testgateway.CloseFrame(1000, ""),
		},
	}
	gw.QueueSession(session)

	client := newTestClient(t, gw)
	stream, err := client.CollectParcels([]poweb.NonceSigner{signer}, poweb.StreamingModeCloseUponCompletion)
	require.NoError(t, err)
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.True(t, stream.Next(ctx))
	collection := stream.Collection()
	assert.Equal(t, "the parcel serialized", string(collection.ParcelSerialized))
	collection.Ack()

	require.False(t, stream.Next(ctx))
	assert.NoError(t, stream.Err())

	require.NotNil(t, session.ObservedResponse)
	require.Len(t, session.ObservedResponse.Signatures, 1)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"the delivery id"}, session.Acks())
}

// An undecodable delivery frame surfaces as a binding error, not a panic or
// a hang.
func TestCollectParcels_MalformedDelivery(t *testing.T) {
	gw := testgateway.New(true)
	defer gw.Close()

	signer := newTestSigner(t)
	gw.QueueSession(&testgateway.Session{
		Nonce: []byte("nonce"),
		Frames: []testgateway.Frame{
			{Text: "invalid"},
		},
	})

	client := newTestClient(t, gw)
	stream, err := client.CollectParcels([]poweb.NonceSigner{signer}, poweb.StreamingModeCloseUponCompletion)
	require.NoError(t, err)
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.False(t, stream.Next(ctx))

	var bindingErr *poweb.ServerBindingError
	require.ErrorAs(t, stream.Err(), &bindingErr)
	assert.Equal(t, "Received invalid message from server", bindingErr.Error())
}

// Closing the stream after consuming only the first of two queued
// deliveries stops the session without acknowledging the second.
func TestCollectParcels_ConsumerCancellationAfterFirst(t *testing.T) {
	gw := testgateway.New(true)
	defer gw.Close()

	signer := newTestSigner(t)
	session := &testgateway.Session{
		Nonce: []byte("nonce"),
		Frames: []testgateway.Frame{
			testgateway.DeliveryFrame("first", []byte("parcel one")),
			testgateway.DeliveryFrame("second", []byte("parcel two")),
		},
	}
	gw.QueueSession(session)

	client := newTestClient(t, gw)
	stream, err := client.CollectParcels([]poweb.NonceSigner{signer}, poweb.StreamingModeKeepAlive)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.True(t, stream.Next(ctx))
	assert.Equal(t, "parcel one", string(stream.Collection().ParcelSerialized))

	require.NoError(t, stream.Close())

	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, len(session.Acks()), 1)
}

// In keep-alive mode, an INTERNAL_ERROR close triggers a reconnect rather
// than ending the stream.
func TestCollectParcels_KeepAliveReconnectsOnInternalError(t *testing.T) {
	gw := testgateway.New(true)
	defer gw.Close()

	signer := newTestSigner(t)
	gw.QueueSession(&testgateway.Session{
		Nonce:  []byte("nonce"),
		Frames: []testgateway.Frame{testgateway.CloseFrame(1011, "")},
	})
	gw.QueueSession(&testgateway.Session{
		Nonce:  []byte("nonce"),
		Frames: []testgateway.Frame{testgateway.CloseFrame(1000, "")},
	})

	client := newTestClient(t, gw)
	stream, err := client.CollectParcels([]poweb.NonceSigner{signer}, poweb.StreamingModeKeepAlive)
	require.NoError(t, err)
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.False(t, stream.Next(ctx))
	assert.NoError(t, stream.Err())
}

// In close-upon-completion mode, an abnormal close ends the stream with a
// ServerConnectionError instead of reconnecting.
func TestCollectParcels_CloseUponCompletionAbnormalClose(t *testing.T) {
	gw := testgateway.New(true)
	defer gw.Close()

	signer := newTestSigner(t)
	gw.QueueSession(&testgateway.Session{
		Nonce:  []byte("nonce"),
		Frames: []testgateway.Frame{testgateway.CloseFrame(1008, "Whoops")},
	})

	client := newTestClient(t, gw)
	stream, err := client.CollectParcels([]poweb.NonceSigner{signer}, poweb.StreamingModeCloseUponCompletion)
	require.NoError(t, err)
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.False(t, stream.Next(ctx))

	var connErr *poweb.ServerConnectionError
	require.ErrorAs(t, stream.Err(), &connErr)
	assert.True(t, strings.Contains(connErr.Error(), "code: 1008"))
	assert.True(t, strings.Contains(connErr.Error(), "Whoops"))
}

// CollectParcels rejects an empty signer list before opening any socket.
func TestCollectParcels_NoSigners(t *testing.T) {
	gw := testgateway.New(true)
	defer gw.Close()

	client := newTestClient(t, gw)
	stream, err := client.CollectParcels(nil, poweb.StreamingModeKeepAlive)
	require.Nil(t, stream)

	var signerErr *poweb.NonceSignerError
	require.ErrorAs(t, err, &signerErr)
	assert.Equal(t, "At least one nonce signer must be specified", signerErr.Error())
}
