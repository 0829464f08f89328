// Package gasprice resolves the gas price attached to submitted calls.
package gasprice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

// DefaultStationURL answers with the standard gas price in gwei.
const DefaultStationURL = "https://www.ethgasstationapi.com/api/standard"

// NodePricer is a chain node able to suggest a gas price.
type NodePricer interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Config describes the pricing policy. The first source that applies wins:
// Override, then Fixed for the chain, then the gas station for
// StationChains, then the node.
type Config struct {
	Override      *big.Int
	Fixed         map[domain.ChainID]*big.Int
	StationURL    string
	StationChains []domain.ChainID
	Timeout       time.Duration
}

// Oracle implements domain.GasPriceOracle.
type Oracle struct {
	cfg        Config
	nodes      map[domain.ChainID]NodePricer
	httpClient *http.Client
	logger     *slog.Logger
}

var _ domain.GasPriceOracle = (*Oracle)(nil)

// NewOracle creates an Oracle.
func NewOracle(cfg Config, logger *slog.Logger) *Oracle {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{
		cfg:        cfg,
		nodes:      make(map[domain.ChainID]NodePricer),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(slog.String("component", "gasprice")),
	}
}

// WithNode registers the node fallback for chain.
func (o *Oracle) WithNode(chain domain.ChainID, node NodePricer) *Oracle {
	o.nodes[chain] = node
	return o
}

// CurrentPrice returns the gas price in wei for chain.
func (o *Oracle) CurrentPrice(ctx context.Context, chain domain.ChainID) (*big.Int, error) {
	if o.cfg.Override != nil {
		return new(big.Int).Set(o.cfg.Override), nil
	}
	if p, ok := o.cfg.Fixed[chain]; ok && p != nil {
		return new(big.Int).Set(p), nil
	}
	if o.cfg.StationURL != "" && o.usesStation(chain) {
		p, err := o.fromStation(ctx)
		if err == nil {
			return p, nil
		}
		if _, ok := o.nodes[chain]; !ok {
			return nil, fmt.Errorf("gasprice: %s: %w", chain, err)
		}
		o.logger.WarnContext(ctx, "gas station unavailable, using node price",
			slog.String("chain", chain.String()),
			slog.String("error", err.Error()),
		)
	}
	if node, ok := o.nodes[chain]; ok {
		p, err := node.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("gasprice: %s: node: %w", chain, err)
		}
		return p, nil
	}
	if _, err := domain.ParseChain(chain.String()); err != nil {
		return nil, fmt.Errorf("gasprice: %w: %q", domain.ErrUnknownChain, chain)
	}
	return nil, fmt.Errorf("gasprice: %s: %w", chain, domain.ErrNoPriceSource)
}

func (o *Oracle) usesStation(chain domain.ChainID) bool {
	for _, c := range o.cfg.StationChains {
		if c == chain {
			return true
		}
	}
	return false
}

// fromStation reads the "standard" price in gwei. The endpoint answers either
// with a bare number or with an object carrying a "standard" field.
func (o *Oracle) fromStation(ctx context.Context) (*big.Int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.StationURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gas station: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gas station: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gas station: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	gwei, err := parseStation(body)
	if err != nil {
		return nil, fmt.Errorf("gas station: %w", err)
	}
	return gwei.Shift(9).Truncate(0).BigInt(), nil
}

func parseStation(body []byte) (decimal.Decimal, error) {
	var obj struct {
		Standard decimal.Decimal `json:"standard"`
	}
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(body, &obj); err != nil {
			return decimal.Decimal{}, fmt.Errorf("decode: %w", err)
		}
		if !obj.Standard.IsPositive() {
			return decimal.Decimal{}, fmt.Errorf("missing standard price")
		}
		return obj.Standard, nil
	}
	d, err := decimal.NewFromString(strings.Trim(trimmed, `"`))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode: %w", err)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("non-positive price %s", d)
	}
	return d, nil
}
