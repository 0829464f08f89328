package evm

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dualdex/internal/codec"
	"github.com/alanyoungcy/dualdex/internal/confirm"
	"github.com/alanyoungcy/dualdex/internal/domain"
	"github.com/alanyoungcy/dualdex/internal/wallet"
)

const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type fakeBackend struct {
	mu          sync.Mutex
	sent        []*types.Transaction
	callResult  []byte
	lastCall    ethereum.CallMsg
	receipt     *types.Receipt
	flaky       int // receipt lookups failing with a node error first
	missing     int // receipts reported NotFound before receipt
	receiptHits int
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.lastCall = msg
	return f.callResult, nil
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptHits++
	if f.receiptHits <= f.flaky {
		return nil, errors.New("connection reset by peer")
	}
	if f.receiptHits-f.flaky <= f.missing || f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) { return big.NewInt(7), nil }

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 5, nil }

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return big.NewInt(42), nil
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (f *fakeBackend) Close() {}

func newSigned(t *testing.T, backend Backend) *Client {
	t.Helper()
	key, err := wallet.Load(wallet.Source{PrivateKey: devKey})
	require.NoError(t, err)
	signer, err := wallet.NewSigner(key, big.NewInt(61))
	require.NoError(t, err)
	return New(domain.ChainETC, backend, signer, nil)
}

func TestPack_Selectors(t *testing.T) {
	token := common.HexToAddress("0xa1")
	exchange := common.HexToAddress("0xe1")

	data, err := Pack(domain.CallDescriptor{
		Kind:     domain.ContractLegacyToken,
		Function: codec.FnTransfer,
		Args:     []any{exchange, big.NewInt(1), []byte{1, 2, 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LegacyTransferHookSelector, hex.EncodeToString(data[:4]))

	data, err = Pack(domain.CallDescriptor{
		Kind:     domain.ContractStandardToken,
		Function: "approve",
		Args:     []any{exchange, big.NewInt(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StandardApproveSelector, hex.EncodeToString(data[:4]))

	_, err = Pack(domain.CallDescriptor{
		Kind:     domain.ContractExchange,
		Function: codec.FnSellEther,
		Args:     []any{token, big.NewInt(1), big.NewInt(2)},
	})
	require.NoError(t, err)

	_, err = Pack(domain.CallDescriptor{Kind: domain.ContractExchange, Function: "nope"})
	require.Error(t, err)
}

func TestSubmitCall(t *testing.T) {
	backend := &fakeBackend{}
	c := newSigned(t, backend)
	exchange := common.HexToAddress("0xe1")

	call := codec.New(0).Cancel(exchange, big.NewInt(9))
	call.GasPrice = big.NewInt(1_000_000)
	txID, err := c.SubmitCall(context.Background(), call)
	require.NoError(t, err)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	assert.Equal(t, tx.Hash().Hex(), txID)
	assert.Equal(t, uint64(5), tx.Nonce())
	assert.Equal(t, domain.DefaultGasLimit, tx.Gas())
	assert.Equal(t, int64(1_000_000), tx.GasPrice().Int64())
	assert.Equal(t, exchange, *tx.To())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(61)), tx)
	require.NoError(t, err)
	assert.Equal(t, c.Trader(), sender)
}

func TestSubmitCall_DefaultsGasPriceToNode(t *testing.T) {
	backend := &fakeBackend{}
	c := newSigned(t, backend)

	_, err := c.SubmitCall(context.Background(), codec.New(0).Cancel(common.HexToAddress("0xe1"), big.NewInt(1)))
	require.NoError(t, err)
	assert.Equal(t, int64(7), backend.sent[0].GasPrice().Int64())
}

func TestSubmitCall_ReadOnly(t *testing.T) {
	c := New(domain.ChainETH, &fakeBackend{}, nil, nil)
	_, err := c.SubmitCall(context.Background(), codec.New(0).Cancel(common.Address{}, big.NewInt(1)))
	require.ErrorIs(t, err, domain.ErrNoWallet)
	assert.Equal(t, common.Address{}, c.Trader())
}

func TestTokenReads(t *testing.T) {
	uint8Ty, _ := abi.NewType("uint8", "", nil)
	uint256Ty, _ := abi.NewType("uint256", "", nil)

	decimalsOut, err := abi.Arguments{{Type: uint8Ty}}.Pack(uint8(6))
	require.NoError(t, err)
	balanceOut, err := abi.Arguments{{Type: uint256Ty}}.Pack(big.NewInt(123_456))
	require.NoError(t, err)

	backend := &fakeBackend{callResult: decimalsOut}
	c := New(domain.ChainETH, backend, nil, nil)
	token := common.HexToAddress("0xa1")

	d, err := c.TokenDecimals(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), d)
	assert.Equal(t, token, *backend.lastCall.To)

	backend.callResult = balanceOut
	bal, err := c.TokenBalance(context.Background(), token, common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.Equal(t, int64(123_456), bal.Int64())

	q, err := c.BuyTokenAmount(context.Background(), common.HexToAddress("0xe1"), big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, int64(123_456), q.Int64())
}

func TestWaitForInclusionAndReceipt(t *testing.T) {
	backend := &fakeBackend{
		missing: 2,
		receipt: &types.Receipt{Status: 0, GasUsed: 400_000, BlockNumber: big.NewInt(99)},
	}
	c := New(domain.ChainETC, backend, nil, nil)
	c.receiptPoll = time.Millisecond

	require.NoError(t, c.WaitForInclusion(context.Background(), "0x01"))
	assert.Equal(t, 3, backend.receiptHits)

	r, err := c.Receipt(context.Background(), "0x01")
	require.NoError(t, err)
	assert.Equal(t, domain.Receipt{Status: 0, GasUsed: 400_000, BlockNumber: 99}, r)
}

type indexedFinder struct{}

func (indexedFinder) FindTransaction(_ context.Context, txID string, chain domain.ChainID) (domain.Transaction, error) {
	return domain.Transaction{Hash: txID, Chain: chain}, nil
}

func TestWaitForInclusion_RetriesNodeErrors(t *testing.T) {
	backend := &fakeBackend{
		flaky:   3,
		missing: 1,
		receipt: &types.Receipt{Status: 0, GasUsed: 21_000, BlockNumber: big.NewInt(7)},
	}
	c := New(domain.ChainETH, backend, nil, nil)
	c.receiptPoll = time.Millisecond

	require.NoError(t, c.WaitForInclusion(context.Background(), "0x01"))
	assert.Equal(t, 5, backend.receiptHits)
}

func TestAwait_FlakyNodeStillReportsRevert(t *testing.T) {
	backend := &fakeBackend{
		flaky:   2,
		receipt: &types.Receipt{Status: 0, GasUsed: 21_000, BlockNumber: big.NewInt(7)},
	}
	c := New(domain.ChainETH, backend, nil, nil)
	c.receiptPoll = time.Millisecond

	tracker := confirm.NewTracker(indexedFinder{}, confirm.Config{PollInterval: time.Millisecond}, nil)
	_, err := tracker.Await(context.Background(), domain.PendingTransaction{ID: "0x01", Chain: domain.ChainETH}, c)
	require.ErrorIs(t, err, domain.ErrTransactionReverted)
}

func TestWaitForInclusion_StopsOnContext(t *testing.T) {
	backend := &fakeBackend{flaky: 1 << 30}
	c := New(domain.ChainETH, backend, nil, nil)
	c.receiptPoll = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, c.WaitForInclusion(ctx, "0x01"), context.DeadlineExceeded)
}

func TestReceipt_RetriesNodeErrors(t *testing.T) {
	backend := &fakeBackend{
		flaky:   receiptAttempts - 1,
		receipt: &types.Receipt{Status: 1, GasUsed: 50_000, BlockNumber: big.NewInt(3)},
	}
	c := New(domain.ChainETH, backend, nil, nil)
	c.receiptPoll = time.Millisecond

	r, err := c.Receipt(context.Background(), "0x01")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.Status)

	backend = &fakeBackend{flaky: receiptAttempts}
	c = New(domain.ChainETH, backend, nil, nil)
	c.receiptPoll = time.Millisecond
	_, err = c.Receipt(context.Background(), "0x01")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, receiptAttempts, backend.receiptHits)
}

func TestReceipt_NotFound(t *testing.T) {
	c := New(domain.ChainETH, &fakeBackend{}, nil, nil)
	_, err := c.Receipt(context.Background(), "0x01")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

type countingLocker struct {
	keys     []string
	released int
}

func (l *countingLocker) Lock(_ context.Context, key string) (func(), error) {
	l.keys = append(l.keys, key)
	return func() { l.released++ }, nil
}

func TestSubmitCall_HoldsNonceLock(t *testing.T) {
	locker := &countingLocker{}
	c := newSigned(t, &fakeBackend{}).WithLocker(locker)

	_, err := c.SubmitCall(context.Background(), codec.New(0).Cancel(common.HexToAddress("0xe1"), big.NewInt(1)))
	require.NoError(t, err)
	require.Len(t, locker.keys, 1)
	assert.Equal(t, "nonce:ETC:"+c.Trader().Hex(), locker.keys[0])
	assert.Equal(t, 1, locker.released)
}
