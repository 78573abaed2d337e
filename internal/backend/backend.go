// Package backend holds the HTTP clients for the external collaborators:
// the storefront catalog and order APIs, the shipment tracker, the FAQ
// semantic lookup service, and the voice platform.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultHTTPTimeout = 15 * time.Second

// APIError is a non-2xx response from a collaborator service.
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Service, e.StatusCode, e.Body)
}

// httpAPI bundles the pieces every collaborator client shares.
type httpAPI struct {
	service string
	baseURL string
	apiKey  string
	client  *http.Client
}

func newHTTPAPI(service, baseURL, apiKey string) httpAPI {
	return httpAPI{
		service: service,
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// getJSON issues a GET and decodes the response into out. A 404 returns
// (false, nil) so callers can translate absence into their own semantics.
func (a *httpAPI) getJSON(ctx context.Context, path string, query url.Values, out any) (bool, error) {
	u := a.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("building %s request: %w", a.service, err)
	}
	a.setHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%s request failed: %w", a.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, &APIError{Service: a.service, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decoding %s response: %w", a.service, err)
	}
	return true, nil
}

// postJSON issues a POST with a JSON body and decodes the response when
// out is non-nil.
func (a *httpAPI) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", a.service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s request: %w", a.service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	a.setHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", a.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Service: a.service, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s response: %w", a.service, err)
		}
	}
	return nil
}

func (a *httpAPI) setHeaders(req *http.Request) {
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
}
