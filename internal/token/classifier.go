// Package token classifies token contracts by the transfer protocol they
// implement and caches the result for the lifetime of the process.
package token

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

// fetchTimeout bounds one shared classification round trip.
const fetchTimeout = 30 * time.Second

// ContractReader is the slice of domain.Chain the classifier needs.
type ContractReader interface {
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
}

// Detect inspects deployed bytecode for the selectors that tell the two
// token protocols apart. A legacy transfer-hook selector wins when both are
// present.
//
// This is a substring heuristic over raw bytecode: a push of the same four
// bytes in an unrelated function will match too.
func Detect(code []byte) (domain.TokenVariant, bool) {
	h := hex.EncodeToString(code)
	switch {
	case strings.Contains(h, domain.LegacyTransferHookSelector):
		return domain.LegacyTransferHook, true
	case strings.Contains(h, domain.StandardApproveSelector):
		return domain.StandardApprove, true
	default:
		return 0, false
	}
}

// Classifier resolves token descriptors for one chain. Lookups go through
// the process-wide MemoryCache first, then an optional shared tier, and only
// then to the chain.
type Classifier struct {
	chain  domain.ChainID
	reader ContractReader
	mem    *MemoryCache
	shared domain.TokenCache
	group  singleflight.Group
	logger *slog.Logger
}

// NewClassifier creates a Classifier. mem must be shared by every classifier
// in the process; shared may be nil.
func NewClassifier(chain domain.ChainID, reader ContractReader, mem *MemoryCache, shared domain.TokenCache, logger *slog.Logger) *Classifier {
	if mem == nil {
		mem = NewMemoryCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		chain:  chain,
		reader: reader,
		mem:    mem,
		shared: shared,
		logger: logger.With(slog.String("component", "token_classifier"), slog.String("chain", chain.String())),
	}
}

// Classify returns the descriptor for addr, querying the chain at most once
// per address.
func (c *Classifier) Classify(ctx context.Context, addr common.Address) (domain.TokenDescriptor, error) {
	if desc, ok := c.mem.Lookup(c.chain, addr); ok {
		return desc, nil
	}

	// The shared fetch must not inherit one caller's cancellation; each
	// caller still stops waiting when its own ctx ends.
	ch := c.group.DoChan(addr.Hex(), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return c.fetch(fctx, addr)
	})
	select {
	case <-ctx.Done():
		return domain.TokenDescriptor{}, fmt.Errorf("token: classify %s: %w", addr.Hex(), ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.TokenDescriptor{}, res.Err
		}
		return res.Val.(domain.TokenDescriptor), nil
	}
}

func (c *Classifier) fetch(ctx context.Context, addr common.Address) (domain.TokenDescriptor, error) {
	if desc, ok := c.mem.Lookup(c.chain, addr); ok {
		return desc, nil
	}
	if desc, ok := c.fromShared(ctx, addr); ok {
		c.mem.Store(desc)
		return desc, nil
	}
	desc, err := c.query(ctx, addr)
	if err != nil {
		return domain.TokenDescriptor{}, err
	}
	c.mem.Store(desc)
	if c.shared != nil {
		if err := c.shared.Set(ctx, desc); err != nil {
			c.logger.WarnContext(ctx, "shared token cache write failed",
				slog.String("token", addr.Hex()),
				slog.String("error", err.Error()),
			)
		}
	}
	return desc, nil
}

func (c *Classifier) fromShared(ctx context.Context, addr common.Address) (domain.TokenDescriptor, bool) {
	if c.shared == nil {
		return domain.TokenDescriptor{}, false
	}
	desc, err := c.shared.Get(ctx, c.chain, addr)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.WarnContext(ctx, "shared token cache read failed",
				slog.String("token", addr.Hex()),
				slog.String("error", err.Error()),
			)
		}
		return domain.TokenDescriptor{}, false
	}
	return desc, true
}

func (c *Classifier) query(ctx context.Context, addr common.Address) (domain.TokenDescriptor, error) {
	code, err := c.reader.CodeAt(ctx, addr)
	if err != nil {
		return domain.TokenDescriptor{}, fmt.Errorf("token: get code %s on %s: %w", addr.Hex(), c.chain, err)
	}
	variant, ok := Detect(code)
	if !ok {
		return domain.TokenDescriptor{}, fmt.Errorf("token: %w: %s on %s", domain.ErrUnknownTokenType, addr.Hex(), c.chain)
	}
	decimals, err := c.reader.TokenDecimals(ctx, addr)
	if err != nil {
		return domain.TokenDescriptor{}, fmt.Errorf("token: decimals of %s on %s: %w", addr.Hex(), c.chain, err)
	}

	c.logger.DebugContext(ctx, "token classified",
		slog.String("token", addr.Hex()),
		slog.String("variant", variant.String()),
		slog.Int("decimals", int(decimals)),
	)
	return domain.TokenDescriptor{
		Chain:    c.chain,
		Address:  addr,
		Decimals: decimals,
		Variant:  variant,
	}, nil
}
