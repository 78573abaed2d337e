package backend

import (
	"context"
	"net/url"
)

// ShipmentClient tracks shipments by air waybill number.
type ShipmentClient interface {
	TrackByAWB(ctx context.Context, awb string) (*TrackingInfo, error)
}

// HTTPShipmentClient talks to the shipment tracking API over HTTP.
type HTTPShipmentClient struct {
	api httpAPI
}

func NewShipmentClient(baseURL, apiKey string) *HTTPShipmentClient {
	return &HTTPShipmentClient{api: newHTTPAPI("shipping", baseURL, apiKey)}
}

// TrackByAWB returns nil when the tracker has no record of the AWB.
func (c *HTTPShipmentClient) TrackByAWB(ctx context.Context, awb string) (*TrackingInfo, error) {
	var t TrackingInfo
	found, err := c.api.getJSON(ctx, "/track/"+url.PathEscape(awb), nil, &t)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &t, nil
}
