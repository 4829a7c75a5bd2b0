// Raw HTTP helpers shared by the provider clients
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/drivetune/internal/shared"
)

// RequestOption mutates an outgoing request.
type RequestOption func(*http.Request)

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// WithBearer sets the Authorization header to a bearer token.
func WithBearer(token string) RequestOption {
	return WithHeader("Authorization", "Bearer "+token)
}

// APIClient performs GET requests and maps non-2xx responses to [shared.UpstreamError].
type APIClient struct {
	httpClient *http.Client
}

// NewAPIClient wraps client, defaulting to [http.DefaultClient].
func NewAPIClient(client *http.Client) *APIClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &APIClient{httpClient: client}
}

// Do sends a GET request to rawURL and returns the open response. Non-2xx responses are
// drained, closed and returned as *[shared.UpstreamError].
func (a *APIClient) Do(ctx context.Context, rawURL string, opts ...RequestOption) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for _, opt := range opts {
		opt(req)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, shared.NewUpstreamError(resp.StatusCode, body)
	}

	return resp, nil
}

// GetJSON decodes a successful response body into result.
func (a *APIClient) GetJSON(ctx context.Context, rawURL string, result any, opts ...RequestOption) error {
	resp, err := a.Do(ctx, rawURL, append([]RequestOption{WithHeader("Accept", "application/json")}, opts...)...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetText returns a successful response body as a string.
func (a *APIClient) GetText(ctx context.Context, rawURL string, opts ...RequestOption) (string, error) {
	resp, err := a.Do(ctx, rawURL, opts...)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return string(body), nil
}
