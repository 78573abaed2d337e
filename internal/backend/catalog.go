package backend

import (
	"context"
	"net/url"
	"strconv"
)

// CatalogClient looks up products in the storefront catalog.
type CatalogClient interface {
	Search(ctx context.Context, query string, limit int) ([]Product, error)
	GetProduct(ctx context.Context, productID string) (*Product, error)
}

// HTTPCatalogClient talks to the storefront catalog API over HTTP.
type HTTPCatalogClient struct {
	api httpAPI
}

func NewCatalogClient(baseURL, apiKey string) *HTTPCatalogClient {
	return &HTTPCatalogClient{api: newHTTPAPI("catalog", baseURL, apiKey)}
}

func (c *HTTPCatalogClient) Search(ctx context.Context, query string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 5
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	var out struct {
		Products []Product `json:"products"`
	}
	found, err := c.api.getJSON(ctx, "/products/search", q, &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return out.Products, nil
}

// GetProduct returns nil when the product does not exist.
func (c *HTTPCatalogClient) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var p Product
	found, err := c.api.getJSON(ctx, "/products/"+url.PathEscape(productID), nil, &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}
