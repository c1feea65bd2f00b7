package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// ErrRateLimited is returned when the node answers 429.
var ErrRateLimited = errors.New("rpc rate limited (429)")

// Client is a JSON-RPC client for a Solana node. Retries are off unless
// MaxRetries is set.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	maxRetries   int
	retryBackoff time.Duration
	logger       *logrus.Logger
	nextID       atomic.Uint64
}

// ClientConfig holds configuration for the RPC client
type ClientConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *logrus.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 250 * time.Millisecond
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:      cfg.BaseURL,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       cfg.Logger,
	}
}

// Call performs method with params and decodes the "result" member into
// result. A JSON-RPC error object is returned as *RPCError.
func (c *Client) Call(ctx context.Context, method string, params []any, result any) error {
	body := request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"backoff": backoff,
				"method":  method,
			}).Debug("retrying RPC call")

			select {
			case <-ctx.Done():
				return fmt.Errorf("rpc %s: %w", method, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		raw, err := c.doRequest(ctx, data)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		var resp response
		if err := json.Unmarshal(raw, &resp); err != nil {
			return fmt.Errorf("decode %s response: %w", method, err)
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	}

	return fmt.Errorf("rpc %s: %w", method, lastErr)
}

func (c *Client) doRequest(ctx context.Context, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// GetAccountInfo fetches one account. It returns nil, nil when the account
// does not exist.
func (c *Client) GetAccountInfo(ctx context.Context, address solana.PublicKey) (*AccountInfo, error) {
	params := []any{address.String(), accountOpts()}

	var result struct {
		Context Context          `json:"context"`
		Value   *rawAccountValue `json:"value"`
	}
	if err := c.Call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, nil
	}
	return result.Value.decode(address, result.Context.Slot)
}

// GetMultipleAccounts fetches several accounts in one round trip. The result
// has one entry per address, nil for accounts that do not exist.
func (c *Client) GetMultipleAccounts(ctx context.Context, addresses ...solana.PublicKey) ([]*AccountInfo, error) {
	keys := make([]string, 0, len(addresses))
	for _, a := range addresses {
		keys = append(keys, a.String())
	}
	params := []any{keys, accountOpts()}

	var result struct {
		Context Context            `json:"context"`
		Value   []*rawAccountValue `json:"value"`
	}
	if err := c.Call(ctx, "getMultipleAccounts", params, &result); err != nil {
		return nil, err
	}
	if len(result.Value) != len(addresses) {
		return nil, fmt.Errorf("getMultipleAccounts: asked for %d accounts, got %d", len(addresses), len(result.Value))
	}

	out := make([]*AccountInfo, len(addresses))
	for i, v := range result.Value {
		if v == nil {
			continue
		}
		info, err := v.decode(addresses[i], result.Context.Slot)
		if err != nil {
			return nil, err
		}
		out[i] = info
	}
	return out, nil
}

// GetHealth returns nil when the node reports itself healthy.
func (c *Client) GetHealth(ctx context.Context) error {
	var status string
	if err := c.Call(ctx, "getHealth", nil, &status); err != nil {
		return err
	}
	if status != "ok" {
		return fmt.Errorf("node health: %s", status)
	}
	return nil
}

func accountOpts() map[string]any {
	return map[string]any{
		"encoding":   "base64",
		"commitment": "confirmed",
	}
}
