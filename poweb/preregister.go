package poweb

import (
	"context"
	"fmt"
)

const (
	preRegistrationPath = "/pre-registrations"

	contentTypePreRegistration  = "application/vnd.relaynet.node-pre-registration"
	contentTypeRegistrationAuth = "application/vnd.relaynet.node-registration.authorization"
)

// PreRegistration is the outcome of PreRegisterNode: the public key digest
// that was submitted, paired with the opaque registration authorization the
// gateway issued for it.
type PreRegistration struct {
	PublicKeySHA256Hex string
	Authorization      []byte
}

// PreRegisterNode submits the SHA-256 digest of a node's public key (as a
// lowercase hex string) to the gateway's pre-registration endpoint, and
// returns the authorization the gateway issues in response. The
// authorization is later embedded, unmodified, in the node's registration
// request.
func (c *Client) PreRegisterNode(ctx context.Context, publicKeySHA256Hex string) (*PreRegistration, error) {
	body := []byte(publicKeySHA256Hex)

	resp, err := c.transport.Post(ctx, preRegistrationPath, body, contentTypePreRegistration, "")
	if err != nil {
		return nil, mapConnectError(c.cfg.BaseHTTPURL()+preRegistrationPath, err)
	}

	if mapErr := mapStatus(httpResponseStatus{StatusCode: resp.StatusCode}, false); mapErr != nil {
		return nil, mapErr
	}

	if resp.ContentType != contentTypeRegistrationAuth {
		return nil, &ServerBindingError{Message: fmt.Sprintf("Unexpected content type %q in pre-registration response", resp.ContentType)}
	}

	return &PreRegistration{
		PublicKeySHA256Hex: publicKeySHA256Hex,
		Authorization:      resp.Body,
	}, nil
}
