package printful

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL        = "https://api.printful.com"
	defaultRequestTimeout = 30 * time.Second

	// maxErrorSnippet bounds how much of an error body is kept for reporting.
	maxErrorSnippet = 512
)

// ErrMissingAPIKey indicates the provider credential is absent.
var ErrMissingAPIKey = errors.New("printful: api key is required")

// APIError carries the provider's error payload for a rejected request.
type APIError struct {
	Status  int
	Reason  string
	Message string
	Body    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("printful: api error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("printful: api error (%d): %s", e.Status, e.Body)
}

// Client is a minimal JSON client for the fulfillment provider API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
}

// ClientOption customises the client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL, primarily for tests.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithRequestTimeout bounds each upstream call with a deadline.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient constructs a provider client for the given API key.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	client := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		timeout:    defaultRequestTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// ListSyncProducts fetches one page of the store product listing. The caller
// detects the final page by a short result, not a total-count field.
func (c *Client) ListSyncProducts(ctx context.Context, offset, limit int) ([]SyncProduct, error) {
	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	var products []SyncProduct
	if err := c.do(ctx, http.MethodGet, "/store/products", query, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetSyncProduct fetches the detail of one store product, including its
// variant list.
func (c *Client) GetSyncProduct(ctx context.Context, productID int64) (SyncProductDetail, error) {
	var detail SyncProductDetail
	path := fmt.Sprintf("/store/products/%d", productID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &detail); err != nil {
		return SyncProductDetail{}, err
	}
	return detail, nil
}

// UpsertOrder submits the order as a create-or-replace keyed by its external
// id. Replaying the same external id produces exactly one logical order on
// the provider side, with the latest payload winning.
func (c *Client) UpsertOrder(ctx context.Context, req OrderRequest) (CreatedOrder, error) {
	query := url.Values{}
	query.Set("update_existing", "1")

	var created CreatedOrder
	if err := c.do(ctx, http.MethodPost, "/orders", query, req, &created); err != nil {
		return CreatedOrder{}, err
	}
	return created, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("printful: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("printful: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("printful: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("printful: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, payload)
	}

	var wrapped envelope
	if err := json.Unmarshal(payload, &wrapped); err != nil {
		return fmt.Errorf("printful: decode response: %w", err)
	}
	if wrapped.Error != nil && wrapped.Error.Message != "" {
		return newAPIError(resp.StatusCode, payload)
	}
	if out == nil || len(wrapped.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(wrapped.Result, out); err != nil {
		return fmt.Errorf("printful: decode result: %w", err)
	}
	return nil
}

func newAPIError(status int, payload []byte) *APIError {
	apiErr := &APIError{Status: status, Body: snippet(payload)}

	var wrapped envelope
	if err := json.Unmarshal(payload, &wrapped); err == nil && wrapped.Error != nil {
		apiErr.Reason = wrapped.Error.Reason
		apiErr.Message = wrapped.Error.Message
	}
	return apiErr
}

func snippet(payload []byte) string {
	s := strings.TrimSpace(string(payload))
	if len(s) > maxErrorSnippet {
		s = s[:maxErrorSnippet]
	}
	return s
}
