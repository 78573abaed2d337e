package backend

import (
	"context"
	"net/url"
	"strconv"
)

// FAQSearcher answers policy and general questions from the knowledge base.
type FAQSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]FAQAnswer, error)
}

// HTTPFAQClient talks to the FAQ lookup service over HTTP.
type HTTPFAQClient struct {
	api httpAPI
}

func NewFAQClient(baseURL, apiKey string) *HTTPFAQClient {
	return &HTTPFAQClient{api: newHTTPAPI("faq", baseURL, apiKey)}
}

func (c *HTTPFAQClient) Search(ctx context.Context, query string, limit int) ([]FAQAnswer, error) {
	if limit <= 0 {
		limit = 3
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	var out struct {
		Results []FAQAnswer `json:"results"`
	}
	found, err := c.api.getJSON(ctx, "/faq/search", q, &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return out.Results, nil
}
