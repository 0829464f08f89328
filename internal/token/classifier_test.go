package token

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

type fakeReader struct {
	code      map[common.Address][]byte
	decimals  uint8
	codeCalls atomic.Int32
	decCalls  atomic.Int32
}

func (f *fakeReader) CodeAt(_ context.Context, addr common.Address) ([]byte, error) {
	f.codeCalls.Add(1)
	return f.code[addr], nil
}

func (f *fakeReader) TokenDecimals(_ context.Context, _ common.Address) (uint8, error) {
	f.decCalls.Add(1)
	return f.decimals, nil
}

func bytecode(t *testing.T, hexParts ...string) []byte {
	t.Helper()
	s := "6080604052"
	for _, p := range hexParts {
		s += "63" + p + "14"
	}
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

type failingCache struct{ sets int }

func (f *failingCache) Get(context.Context, domain.ChainID, common.Address) (domain.TokenDescriptor, error) {
	return domain.TokenDescriptor{}, errors.New("connection refused")
}

func (f *failingCache) Set(context.Context, domain.TokenDescriptor) error {
	f.sets++
	return errors.New("connection refused")
}

var (
	legacyAddr   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	standardAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	bothAddr     = common.HexToAddress("0x3333333333333333333333333333333333333333")
	noneAddr     = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func newReader(t *testing.T) *fakeReader {
	return &fakeReader{
		decimals: 18,
		code: map[common.Address][]byte{
			legacyAddr:   bytecode(t, "a9059cbb", domain.LegacyTransferHookSelector),
			standardAddr: bytecode(t, "a9059cbb", domain.StandardApproveSelector),
			bothAddr:     bytecode(t, domain.StandardApproveSelector, domain.LegacyTransferHookSelector),
			noneAddr:     bytecode(t, "a9059cbb"),
		},
	}
}

func TestDetect(t *testing.T) {
	r := newReader(t)
	v, ok := Detect(r.code[legacyAddr])
	require.True(t, ok)
	assert.Equal(t, domain.LegacyTransferHook, v)

	v, ok = Detect(r.code[standardAddr])
	require.True(t, ok)
	assert.Equal(t, domain.StandardApprove, v)

	v, ok = Detect(r.code[bothAddr])
	require.True(t, ok)
	assert.Equal(t, domain.LegacyTransferHook, v)

	_, ok = Detect(r.code[noneAddr])
	assert.False(t, ok)

	_, ok = Detect(nil)
	assert.False(t, ok)
}

func TestClassifier_CachesPerAddress(t *testing.T) {
	r := newReader(t)
	c := NewClassifier(domain.ChainETH, r, NewMemoryCache(), nil, nil)
	ctx := context.Background()

	first, err := c.Classify(ctx, standardAddr)
	require.NoError(t, err)
	second, err := c.Classify(ctx, standardAddr)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), r.codeCalls.Load())
	assert.Equal(t, int32(1), r.decCalls.Load())
	assert.Equal(t, domain.StandardApprove, first.Variant)
	assert.Equal(t, uint8(18), first.Decimals)
	assert.Equal(t, domain.ChainETH, first.Chain)
}

func TestClassifier_CacheIsKeyedByChain(t *testing.T) {
	r := newReader(t)
	mem := NewMemoryCache()
	eth := NewClassifier(domain.ChainETH, r, mem, nil, nil)
	etc := NewClassifier(domain.ChainETC, r, mem, nil, nil)
	ctx := context.Background()

	_, err := eth.Classify(ctx, legacyAddr)
	require.NoError(t, err)
	_, err = etc.Classify(ctx, legacyAddr)
	require.NoError(t, err)
	_, err = etc.Classify(ctx, legacyAddr)
	require.NoError(t, err)

	assert.Equal(t, int32(2), r.codeCalls.Load())
}

func TestClassifier_ConcurrentCallers(t *testing.T) {
	r := newReader(t)
	c := NewClassifier(domain.ChainETC, r, NewMemoryCache(), nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			desc, err := c.Classify(context.Background(), legacyAddr)
			assert.NoError(t, err)
			assert.Equal(t, domain.LegacyTransferHook, desc.Variant)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, r.codeCalls.Load(), int32(32))
	assert.GreaterOrEqual(t, r.codeCalls.Load(), int32(1))
}

// gatedReader blocks CodeAt until release is closed.
type gatedReader struct {
	*fakeReader
	started chan struct{}
	once    sync.Once
	release chan struct{}
	mu      sync.Mutex
	ctxErrs []error
}

func (g *gatedReader) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	g.mu.Lock()
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	g.mu.Unlock()
	return g.fakeReader.CodeAt(ctx, addr)
}

func TestClassifier_CancelledCallerDoesNotFailOthers(t *testing.T) {
	r := &gatedReader{fakeReader: newReader(t), started: make(chan struct{}), release: make(chan struct{})}
	c := NewClassifier(domain.ChainETH, r, NewMemoryCache(), nil, nil)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Classify(first, standardAddr)
		firstErr <- err
	}()
	<-r.started

	type result struct {
		desc domain.TokenDescriptor
		err  error
	}
	second := make(chan result, 1)
	go func() {
		desc, err := c.Classify(context.Background(), standardAddr)
		second <- result{desc, err}
	}()

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	time.Sleep(10 * time.Millisecond)
	close(r.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, domain.StandardApprove, res.desc.Variant)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, err := range r.ctxErrs {
		assert.NoError(t, err)
	}

	desc, ok := c.mem.Lookup(domain.ChainETH, standardAddr)
	require.True(t, ok)
	assert.Equal(t, domain.StandardApprove, desc.Variant)
}

func TestClassifier_UnknownTokenType(t *testing.T) {
	r := newReader(t)
	c := NewClassifier(domain.ChainETH, r, NewMemoryCache(), nil, nil)

	_, err := c.Classify(context.Background(), noneAddr)
	require.ErrorIs(t, err, domain.ErrUnknownTokenType)
	assert.Equal(t, int32(0), r.decCalls.Load())

	// Failures are not cached.
	_, err = c.Classify(context.Background(), noneAddr)
	require.ErrorIs(t, err, domain.ErrUnknownTokenType)
	assert.Equal(t, int32(2), r.codeCalls.Load())
}

func TestClassifier_SharedTierHit(t *testing.T) {
	r := newReader(t)
	shared := NewMemoryCache()
	shared.Store(domain.TokenDescriptor{
		Chain:    domain.ChainETH,
		Address:  standardAddr,
		Decimals: 6,
		Variant:  domain.StandardApprove,
	})
	c := NewClassifier(domain.ChainETH, r, NewMemoryCache(), shared, nil)

	desc, err := c.Classify(context.Background(), standardAddr)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), desc.Decimals)
	assert.Equal(t, int32(0), r.codeCalls.Load())
}

func TestClassifier_SharedTierFailureFallsBackToChain(t *testing.T) {
	r := newReader(t)
	shared := &failingCache{}
	c := NewClassifier(domain.ChainETH, r, NewMemoryCache(), shared, nil)

	desc, err := c.Classify(context.Background(), legacyAddr)
	require.NoError(t, err)
	assert.Equal(t, domain.LegacyTransferHook, desc.Variant)
	assert.Equal(t, 1, shared.sets)
}
