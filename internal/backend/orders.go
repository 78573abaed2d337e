package backend

import (
	"context"
	"net/url"
	"strconv"
)

// OrderClient looks up customer orders on the storefront.
type OrderClient interface {
	GetByOrderID(ctx context.Context, orderID string) (*Order, error)
	GetByPhone(ctx context.Context, phone string, limit int) ([]Order, error)
}

// OutboundNotifier delivers the outcome of an order confirmation back to
// the storefront so fulfilment can proceed or the order can be held.
type OutboundNotifier interface {
	ConfirmOrder(ctx context.Context, orderID string, confirmed bool, notes string) error
}

// HTTPOrderClient talks to the storefront order API over HTTP. It
// implements both OrderClient and OutboundNotifier.
type HTTPOrderClient struct {
	api httpAPI
}

func NewOrderClient(baseURL, apiKey string) *HTTPOrderClient {
	return &HTTPOrderClient{api: newHTTPAPI("orders", baseURL, apiKey)}
}

// GetByOrderID returns nil when no such order exists.
func (c *HTTPOrderClient) GetByOrderID(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	found, err := c.api.getJSON(ctx, "/orders/"+url.PathEscape(orderID), nil, &o)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &o, nil
}

// GetByPhone returns the customer's most recent orders, newest first.
func (c *HTTPOrderClient) GetByPhone(ctx context.Context, phone string, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 5
	}
	q := url.Values{}
	q.Set("phone", phone)
	q.Set("limit", strconv.Itoa(limit))

	var out struct {
		Orders []Order `json:"orders"`
	}
	found, err := c.api.getJSON(ctx, "/orders", q, &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return out.Orders, nil
}

func (c *HTTPOrderClient) ConfirmOrder(ctx context.Context, orderID string, confirmed bool, notes string) error {
	payload := map[string]any{
		"confirmed": confirmed,
	}
	if notes != "" {
		payload["notes"] = notes
	}
	return c.api.postJSON(ctx, "/orders/"+url.PathEscape(orderID)+"/confirmation", payload, nil)
}
