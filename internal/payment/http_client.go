package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"token-market/internal/observability"
)

// DefaultTimeout bounds one payment request.
const DefaultTimeout = 30 * time.Second

// HTTPClient implements Executor against an HTTP payment rail. The
// endpoint and auth token are injected at construction; nothing is
// read from ambient process state.
type HTTPClient struct {
	endpoint  string
	authToken string
	client    *http.Client
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a payment rail client.
func NewHTTPClient(endpoint, authToken string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:  endpoint,
		authToken: authToken,
		client:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Executor = (*HTTPClient)(nil)

type payRequest struct {
	Destination string `json:"destination"`
	AmountSats  int64  `json:"amount_sats"`
	Memo        string `json:"memo,omitempty"`
}

type payResponse struct {
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error,omitempty"`
}

// Pay sends one payment. Failed requests are not retried here: a
// replayed POST with no rail-side deduplication could pay a claim
// twice, so retry policy belongs to the caller, which tracks claim
// state.
func (c *HTTPClient) Pay(ctx context.Context, destinationHandle string, amountSats int64, memo string) (string, error) {
	if destinationHandle == "" {
		return "", fmt.Errorf("destination handle is required")
	}
	if amountSats <= 0 {
		return "", fmt.Errorf("amount must be positive, got %d", amountSats)
	}

	start := time.Now()
	defer func() {
		observability.RecordPaymentLatency(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(payRequest{
		Destination: destinationHandle,
		AmountSats:  amountSats,
		Memo:        memo,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var payResp payResponse
	if err := json.Unmarshal(respBody, &payResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if payResp.Error != "" {
		return "", fmt.Errorf("payment rejected: %s", payResp.Error)
	}
	if payResp.TransactionID == "" {
		return "", fmt.Errorf("payment rail returned no transaction id")
	}
	return payResp.TransactionID, nil
}
