package poweb

import (
	"context"
	"fmt"
)

const (
	registrationPath = "/nodes"

	contentTypeRegistrationRequest = "application/vnd.relaynet.node-registration.request"
	contentTypeRegistration        = "application/vnd.relaynet.node-registration.registration"
)

// RegisterNode submits a serialised registration request — produced
// elsewhere from a PreRegistration's authorization plus the node's own key —
// to the gateway's registration endpoint, and returns the serialised
// registration (certificates and gateway address) the gateway issues back.
// Both request and response bodies are opaque to the client; it neither
// constructs nor parses them.
func (c *Client) RegisterNode(ctx context.Context, registrationRequestSerialized []byte) ([]byte, error) {
	resp, err := c.transport.Post(ctx, registrationPath, registrationRequestSerialized, contentTypeRegistrationRequest, "")
	if err != nil {
		return nil, mapConnectError(c.cfg.BaseHTTPURL()+registrationPath, err)
	}

	if mapErr := mapStatus(httpResponseStatus{StatusCode: resp.StatusCode}, false); mapErr != nil {
		return nil, mapErr
	}

	if resp.ContentType != contentTypeRegistration {
		return nil, &ServerBindingError{Message: fmt.Sprintf("Unexpected content type %q in registration response", resp.ContentType)}
	}

	return resp.Body, nil
}
