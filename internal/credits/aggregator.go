package credits

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

const defaultAggregatorBaseURL = "https://openrouter.ai/api/v1"

// ProvisionedKey is an aggregator API key issued for one user.
type ProvisionedKey struct {
	Hash     string   `json:"hash"`
	Key      string   `json:"key,omitempty"`
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Disabled bool     `json:"disabled"`
	Limit    *float64 `json:"limit"`
	Usage    float64  `json:"usage"`
}

// KeyInfo reports the spend state of a key.
type KeyInfo struct {
	Label     string   `json:"label"`
	Usage     float64  `json:"usage"`
	Limit     *float64 `json:"limit"`
	IsFreeKey bool     `json:"is_free_tier"`
}

// AggregatorClient talks to the OpenRouter provisioning API: key creation,
// limit updates, and spend reads for the pooled-credit source.
type AggregatorClient struct {
	baseURL         string
	provisioningKey string
	httpClient      *http.Client
}

// AggregatorOption configures an AggregatorClient.
type AggregatorOption func(*AggregatorClient)

// WithAggregatorBaseURL overrides the API endpoint, mainly for tests.
func WithAggregatorBaseURL(url string) AggregatorOption {
	return func(c *AggregatorClient) { c.baseURL = url }
}

// WithAggregatorHTTPClient overrides the HTTP client.
func WithAggregatorHTTPClient(hc *http.Client) AggregatorOption {
	return func(c *AggregatorClient) { c.httpClient = hc }
}

func NewAggregatorClient(provisioningKey string, opts ...AggregatorOption) *AggregatorClient {
	c := &AggregatorClient{
		baseURL:         defaultAggregatorBaseURL,
		provisioningKey: provisioningKey,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *AggregatorClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.provisioningKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("aggregator request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read aggregator response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := resp.Status
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
			msg = envelope.Error.Message
		}
		return fmt.Errorf("aggregator %s %s: %s", method, path, msg)
	}
	if out == nil {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode aggregator response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode aggregator payload: %w", err)
	}
	return nil
}

// CreateKey provisions a new key. limit is an optional USD spending cap.
func (c *AggregatorClient) CreateKey(ctx context.Context, name string, limit *float64) (*ProvisionedKey, error) {
	req := map[string]interface{}{"name": name}
	if limit != nil {
		req["limit"] = *limit
	}
	var key ProvisionedKey
	if err := c.do(ctx, http.MethodPost, "/keys", req, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// UpdateKeyLimit changes the spending cap on an existing key.
func (c *AggregatorClient) UpdateKeyLimit(ctx context.Context, keyHash string, limit float64) (*ProvisionedKey, error) {
	var key ProvisionedKey
	if err := c.do(ctx, http.MethodPatch, "/keys/"+keyHash, map[string]interface{}{"limit": limit}, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// DeleteKey revokes a provisioned key.
func (c *AggregatorClient) DeleteKey(ctx context.Context, keyHash string) error {
	return c.do(ctx, http.MethodDelete, "/keys/"+keyHash, nil, nil)
}

// ListKeys returns every provisioned key.
func (c *AggregatorClient) ListKeys(ctx context.Context) ([]ProvisionedKey, error) {
	var keys []ProvisionedKey
	if err := c.do(ctx, http.MethodGet, "/keys", nil, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// CurrentKeyInfo returns usage for the key the client authenticates with.
func (c *AggregatorClient) CurrentKeyInfo(ctx context.Context) (*KeyInfo, error) {
	var info KeyInfo
	if err := c.do(ctx, http.MethodGet, "/auth/key", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
