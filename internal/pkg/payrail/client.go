package payrail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config holds payment rail API configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is the HTTP payment rail provider.
type Client struct {
	httpClient *http.Client
	config     Config
}

type transferPayload struct {
	Destination    string            `json:"destination"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	IdempotencyKey string            `json:"idempotency_key"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type transferResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewClient creates a payment rail client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

func (c *Client) Name() string {
	return "railhttp"
}

// Transfer sends a payout over the rail. A non-2xx with a parsed failure
// body is ErrTransferFailed; timeouts and unparseable outcomes are
// ErrUnconfirmed so the caller can retry with the same idempotency key.
func (c *Client) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(req.Destination) == "" {
		return nil, fmt.Errorf("validation error: destination must be non-empty")
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return nil, fmt.Errorf("validation error: idempotency_key must be non-empty")
	}
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("payrail client is not initialized")
	}
	if strings.TrimSpace(c.config.BaseURL) == "" {
		return nil, fmt.Errorf("payrail config error: base_url is empty")
	}

	payload := transferPayload{
		Destination:    req.Destination,
		Amount:         req.Amount,
		Currency:       "usd",
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transfer request: %w", err)
	}

	base := strings.TrimRight(c.config.BaseURL, "/")
	url := base + "/v1/transfers"

	timeout := c.config.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("payrail request build failed: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Timeout or transport failure: the transfer may or may not have
		// landed on the rail side.
		return nil, fmt.Errorf("%w: %v", ErrUnconfirmed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnconfirmed, err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: rail returned status %d", ErrUnconfirmed, resp.StatusCode)
	}

	var parsed transferResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: unparseable response: %v", ErrUnconfirmed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s", ErrTransferFailed, parsed.Error)
	}

	switch parsed.Status {
	case StatusConfirmed:
		return &TransferResult{ID: parsed.ID, Status: StatusConfirmed}, nil
	case StatusFailed:
		return nil, fmt.Errorf("%w: %s", ErrTransferFailed, parsed.Error)
	default:
		// "pending" or unknown status is not a confirmation.
		return nil, fmt.Errorf("%w: rail reported status %q", ErrUnconfirmed, parsed.Status)
	}
}
