package token

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

type cacheKey struct {
	chain domain.ChainID
	addr  common.Address
}

// MemoryCache is the append-only, process-wide classification cache. Writes
// for the same key are idempotent so concurrent stores need no coordination.
type MemoryCache struct {
	m sync.Map // cacheKey -> domain.TokenDescriptor
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

// Lookup returns the cached descriptor, if any.
func (c *MemoryCache) Lookup(chain domain.ChainID, addr common.Address) (domain.TokenDescriptor, bool) {
	v, ok := c.m.Load(cacheKey{chain, addr})
	if !ok {
		return domain.TokenDescriptor{}, false
	}
	return v.(domain.TokenDescriptor), true
}

// Store records desc under its (chain, address) key.
func (c *MemoryCache) Store(desc domain.TokenDescriptor) {
	c.m.Store(cacheKey{desc.Chain, desc.Address}, desc)
}

// Get implements domain.TokenCache.
func (c *MemoryCache) Get(_ context.Context, chain domain.ChainID, addr common.Address) (domain.TokenDescriptor, error) {
	if desc, ok := c.Lookup(chain, addr); ok {
		return desc, nil
	}
	return domain.TokenDescriptor{}, domain.ErrNotFound
}

// Set implements domain.TokenCache.
func (c *MemoryCache) Set(_ context.Context, desc domain.TokenDescriptor) error {
	c.Store(desc)
	return nil
}

var _ domain.TokenCache = (*MemoryCache)(nil)
