package poweb

import (
	"context"
	"encoding/base64"
)

const (
	parcelDeliveryPath = "/parcels"

	contentTypeParcel = "application/vnd.relaynet.parcel"

	authorizationScheme = "Relaynet-Countersignature"
)

// DeliverParcel submits a parcel to the gateway for onward relaying.
// countersignature is the detached signature over parcelSerialized produced
// by the node's own key; the client encodes it into the Authorization
// header per spec but never computes it itself. A 422 response is reported
// as RejectedParcelError rather than the generic ClientBindingError other
// 4xx statuses receive.
func (c *Client) DeliverParcel(ctx context.Context, parcelSerialized []byte, countersignature []byte) error {
	authorization := authorizationScheme + " " + base64.StdEncoding.EncodeToString(countersignature)

	resp, err := c.transport.Post(ctx, parcelDeliveryPath, parcelSerialized, contentTypeParcel, authorization)
	if err != nil {
		return mapConnectError(c.cfg.BaseHTTPURL()+parcelDeliveryPath, err)
	}

	return mapStatus(httpResponseStatus{StatusCode: resp.StatusCode}, true)
}
