package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

// tokenTTL bounds how long a classification is shared. Deployed bytecode
// does not change, so this only reclaims memory for tokens nobody trades.
const tokenTTL = 30 * 24 * time.Hour

// tokenRecord is the JSON stored per token.
type tokenRecord struct {
	Chain    string `json:"chain"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Variant  string `json:"variant"`
}

// TokenCache implements domain.TokenCache.
//
// Key schema:
//
//	{prefix}:token:{chain}:{address} - JSON tokenRecord
type TokenCache struct {
	c *Client
}

// NewTokenCache creates a TokenCache backed by c.
func NewTokenCache(c *Client) *TokenCache {
	return &TokenCache{c: c}
}

func (tc *TokenCache) tokenKey(chain domain.ChainID, addr common.Address) string {
	return tc.c.key("token", chain.String(), strings.ToLower(addr.Hex()))
}

// Get returns domain.ErrNotFound on a miss.
func (tc *TokenCache) Get(ctx context.Context, chain domain.ChainID, addr common.Address) (domain.TokenDescriptor, error) {
	data, err := tc.c.rdb.Get(ctx, tc.tokenKey(chain, addr)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.TokenDescriptor{}, domain.ErrNotFound
		}
		return domain.TokenDescriptor{}, fmt.Errorf("redis: get token %s: %w", addr.Hex(), err)
	}
	return decodeToken(data)
}

// Set stores desc.
func (tc *TokenCache) Set(ctx context.Context, desc domain.TokenDescriptor) error {
	data, err := encodeToken(desc)
	if err != nil {
		return err
	}
	if err := tc.c.rdb.Set(ctx, tc.tokenKey(desc.Chain, desc.Address), data, tokenTTL).Err(); err != nil {
		return fmt.Errorf("redis: set token %s: %w", desc.Address.Hex(), err)
	}
	return nil
}

func encodeToken(desc domain.TokenDescriptor) ([]byte, error) {
	data, err := json.Marshal(tokenRecord{
		Chain:    desc.Chain.String(),
		Address:  desc.Address.Hex(),
		Decimals: desc.Decimals,
		Variant:  desc.Variant.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("redis: marshal token %s: %w", desc.Address.Hex(), err)
	}
	return data, nil
}

func decodeToken(data []byte) (domain.TokenDescriptor, error) {
	var rec tokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.TokenDescriptor{}, fmt.Errorf("redis: unmarshal token: %w", err)
	}
	variant, err := domain.ParseTokenVariant(rec.Variant)
	if err != nil {
		return domain.TokenDescriptor{}, fmt.Errorf("redis: token %s: %w", rec.Address, err)
	}
	return domain.TokenDescriptor{
		Chain:    domain.ChainID(rec.Chain),
		Address:  common.HexToAddress(rec.Address),
		Decimals: rec.Decimals,
		Variant:  variant,
	}, nil
}

// Compile-time interface check.
var _ domain.TokenCache = (*TokenCache)(nil)
