package poweb

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// httpResponseStatus is the minimal shape the error mapper needs from a
// unary response.
type httpResponseStatus struct {
	StatusCode int
}

// mapStatus maps a completed HTTP response's status code to the public
// error taxonomy. It returns nil for a 2xx status.
//
// rejectedParcelOn422 is true only for the parcel delivery endpoint, the
// single endpoint where 422 maps to RejectedParcelError rather than
// ClientBindingError.
func mapStatus(resp httpResponseStatus, rejectedParcelOn422 bool) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil

	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return &ServerBindingError{Message: "Unexpected redirect"}

	case resp.StatusCode == 422 && rejectedParcelOn422:
		return &RejectedParcelError{Message: "The server rejected the parcel"}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientBindingError{Status: resp.StatusCode, Message: "The server reports that the request is invalid"}

	case resp.StatusCode >= 500 && resp.StatusCode < 600:
		return &ServerConnectionError{Message: fmt.Sprintf("The server responded with a %d status", resp.StatusCode)}

	default:
		return &ServerBindingError{Message: fmt.Sprintf("Unexpected status code %d", resp.StatusCode)}
	}
}

// mapConnectError maps a failure to even establish a unary HTTP connection
// or the collection WebSocket (DNS failure, refused connection, TLS/upgrade
// failure) to ServerConnectionError.
func mapConnectError(url string, err error) error {
	if err == nil {
		return nil
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &ServerConnectionError{Message: "Failed to resolve DNS", Cause: err}
	}

	if strings.Contains(err.Error(), "websocket: bad handshake") {
		return &ServerConnectionError{Message: "Failed to upgrade connection to WebSocket", Cause: err}
	}

	return &ServerConnectionError{Message: fmt.Sprintf("Failed to connect to %s", url), Cause: err}
}
