// Package indexer is the REST client for the exchange indexer, which
// observes both chains and serves order, trade and transaction records.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

// DefaultOrigin is sent as the Origin header; the indexer uses it to
// identify clients.
const DefaultOrigin = "dualdex"

// Client implements domain.RemoteIndex plus the market read API.
type Client struct {
	baseURL    string
	origin     string
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.RWMutex
	contracts map[domain.ChainID]common.Address
}

var _ domain.RemoteIndex = (*Client)(nil)

// NewClient creates a client for the indexer at baseURL, e.g.
// "https://ticker.saturn.network/api/v2".
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		origin:     DefaultOrigin,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "indexer")),
		contracts:  make(map[domain.ChainID]common.Address),
	}
}

// WithOrigin overrides the Origin header.
func (c *Client) WithOrigin(origin string) *Client {
	if origin != "" {
		c.origin = origin
	}
	return c
}

// FindTransaction returns the indexed transaction, or ErrNotFound while the
// indexer has not seen it yet.
func (c *Client) FindTransaction(ctx context.Context, txID string, chain domain.ChainID) (domain.Transaction, error) {
	var rec APITransaction
	if err := c.getJSON(ctx, fmt.Sprintf("/transactions/%s/%s.json", chain, url.PathEscape(txID)), &rec); err != nil {
		return domain.Transaction{}, fmt.Errorf("indexer: transaction %s: %w", txID, err)
	}
	if rec.Tx == "" {
		return domain.Transaction{}, fmt.Errorf("indexer: transaction %s: %w", txID, domain.ErrNotFound)
	}
	return rec.ToDomain(), nil
}

// FindOrder returns the order created by txID.
func (c *Client) FindOrder(ctx context.Context, txID string, chain domain.ChainID) (domain.Order, error) {
	var rec APIOrder
	if err := c.getJSON(ctx, fmt.Sprintf("/orders/by_tx/%s/%s.json", chain, url.PathEscape(txID)), &rec); err != nil {
		return domain.Order{}, fmt.Errorf("indexer: order %s: %w", txID, err)
	}
	if rec.Transaction == "" {
		return domain.Order{}, fmt.Errorf("indexer: order %s: %w", txID, domain.ErrNotFound)
	}
	return rec.ToDomain(), nil
}

// FindTrade returns the trade executed by txID.
func (c *Client) FindTrade(ctx context.Context, txID string, chain domain.ChainID) (domain.Trade, error) {
	var rec APITrade
	if err := c.getJSON(ctx, fmt.Sprintf("/trades/by_tx/%s/%s.json", chain, url.PathEscape(txID)), &rec); err != nil {
		return domain.Trade{}, fmt.Errorf("indexer: trade %s: %w", txID, err)
	}
	if rec.Transaction == "" {
		return domain.Trade{}, fmt.Errorf("indexer: trade %s: %w", txID, domain.ErrNotFound)
	}
	return rec.ToDomain(), nil
}

// ContractAddressFor returns the exchange contract on chain. The contract
// list is fetched once and kept.
func (c *Client) ContractAddressFor(ctx context.Context, chain domain.ChainID) (common.Address, error) {
	c.mu.RLock()
	addr, ok := c.contracts[chain]
	c.mu.RUnlock()
	if ok {
		return addr, nil
	}

	var raw map[string]string
	if err := c.getJSON(ctx, "/orders/contracts.json", &raw); err != nil {
		return common.Address{}, fmt.Errorf("indexer: exchange contracts: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for name, hex := range raw {
		if common.IsHexAddress(hex) {
			c.contracts[domain.ChainID(strings.ToUpper(name))] = common.HexToAddress(hex)
		}
	}
	addr, ok = c.contracts[chain]
	if !ok {
		return common.Address{}, fmt.Errorf("indexer: exchange contract for %s: %w", chain, domain.ErrNotFound)
	}
	return addr, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.doGet(ctx, path)
	if err != nil {
		return err
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return domain.ErrNotFound
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Origin", c.origin)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		c.logger.DebugContext(ctx, "indexer request failed",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return nil, err
	}
	return body, nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
