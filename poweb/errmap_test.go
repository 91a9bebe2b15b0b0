package poweb

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapStatus_Success(t *testing.T) {
	for _, code := range []int{200, 201, 204, 299} {
		assert.NoError(t, mapStatus(httpResponseStatus{StatusCode: code}, false))
	}
}

func TestMapStatus_Redirect(t *testing.T) {
	err := mapStatus(httpResponseStatus{StatusCode: 302}, false)

	var bindingErr *ServerBindingError
	assert.ErrorAs(t, err, &bindingErr)
	assert.Equal(t, "Unexpected redirect", bindingErr.Message)
}

func TestMapStatus_422OnDelivery(t *testing.T) {
	err := mapStatus(httpResponseStatus{StatusCode: 422}, true)

	var rejected *RejectedParcelError
	assert.ErrorAs(t, err, &rejected)
}

func TestMapStatus_422OffDelivery(t *testing.T) {
	err := mapStatus(httpResponseStatus{StatusCode: 422}, false)

	var clientErr *ClientBindingError
	assert.ErrorAs(t, err, &clientErr)
	assert.Equal(t, 422, clientErr.Status)
}

func TestMapStatus_OtherClientError(t *testing.T) {
	err := mapStatus(httpResponseStatus{StatusCode: 403}, true)

	var clientErr *ClientBindingError
	assert.ErrorAs(t, err, &clientErr)
	assert.Equal(t, 403, clientErr.Status)
}

func TestMapStatus_ServerError(t *testing.T) {
	err := mapStatus(httpResponseStatus{StatusCode: 503}, false)

	var connErr *ServerConnectionError
	assert.ErrorAs(t, err, &connErr)
	assert.Contains(t, connErr.Error(), "503")
}

func TestMapStatus_Unexpected(t *testing.T) {
	err := mapStatus(httpResponseStatus{StatusCode: 100}, false)

	var bindingErr *ServerBindingError
	assert.ErrorAs(t, err, &bindingErr)
	assert.Contains(t, bindingErr.Error(), "100")
}

func TestMapConnectError_Nil(t *testing.T) {
	assert.NoError(t, mapConnectError("https://example.test/v1", nil))
}

func TestMapConnectError_DNSFailure(t *testing.T) {
	dnsErr := &net.DNSError{Err: "no such host", Name: "example.test", IsNotFound: true}

	err := mapConnectError("https://example.test/v1", dnsErr)

	var connErr *ServerConnectionError
	assert.ErrorAs(t, err, &connErr)
	assert.Equal(t, "Failed to resolve DNS", connErr.Message)
	assert.ErrorIs(t, err, dnsErr)
}

func TestMapConnectError_BadHandshake(t *testing.T) {
	err := mapConnectError("wss://example.test/v1/parcel-collection", errors.New("websocket: bad handshake"))

	var connErr *ServerConnectionError
	assert.ErrorAs(t, err, &connErr)
	assert.Equal(t, "Failed to upgrade connection to WebSocket", connErr.Message)
}

func TestMapConnectError_Generic(t *testing.T) {
	cause := errors.New("connection refused")

	err := mapConnectError("https://example.test/v1", cause)

	var connErr *ServerConnectionError
	assert.ErrorAs(t, err, &connErr)
	assert.Contains(t, connErr.Message, "https://example.test/v1")
	assert.ErrorIs(t, err, cause)
}
