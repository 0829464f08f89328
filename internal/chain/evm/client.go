// Package evm implements the chain collaborator over Ethereum JSON-RPC. The
// same client serves Ethereum and Ethereum Classic.
package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

const defaultReceiptPoll = 2 * time.Second

// receiptAttempts bounds Receipt retries on node errors.
const receiptAttempts = 3

// Backend is the subset of ethclient.Client used here.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	Close()
}

var _ Backend = (*ethclient.Client)(nil)

// TxSigner signs outgoing transactions.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// Locker serialises nonce allocation across processes sharing a wallet.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Client is a live handle on one chain, optionally bound to a wallet.
type Client struct {
	id          domain.ChainID
	backend     Backend
	signer      TxSigner
	receiptPoll time.Duration
	locker      Locker
	logger      *slog.Logger

	nonceMu sync.Mutex
}

var _ domain.Chain = (*Client)(nil)

// Dial connects to rpcURL. signer may be nil for a read-only handle.
func Dial(ctx context.Context, id domain.ChainID, rpcURL string, signer TxSigner, logger *slog.Logger) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dial %s: %w", id, err)
	}
	return New(id, rpc, signer, logger), nil
}

// New wraps an existing backend.
func New(id domain.ChainID, backend Backend, signer TxSigner, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		id:          id,
		backend:     backend,
		signer:      signer,
		receiptPoll: defaultReceiptPoll,
		logger:      logger.With(slog.String("component", "evm"), slog.String("chain", id.String())),
	}
}

// WithLocker adds a cross-process lock around nonce allocation.
func (c *Client) WithLocker(l Locker) *Client {
	c.locker = l
	return c
}

// Close releases the RPC connection.
func (c *Client) Close() { c.backend.Close() }

func (c *Client) ID() domain.ChainID { return c.id }

// Trader returns the wallet address, or the zero address for a read-only
// handle.
func (c *Client) Trader() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.Address()
}

// SubmitCall packs, signs and broadcasts call, returning the tx hash.
func (c *Client) SubmitCall(ctx context.Context, call domain.CallDescriptor) (string, error) {
	if c.signer == nil {
		return "", fmt.Errorf("evm: submit %s: %w", call.Function, domain.ErrNoWallet)
	}
	data, err := Pack(call)
	if err != nil {
		return "", err
	}

	gasPrice := call.GasPrice
	if gasPrice == nil {
		if gasPrice, err = c.backend.SuggestGasPrice(ctx); err != nil {
			return "", fmt.Errorf("evm: suggest gas price: %w", err)
		}
	}
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	gasLimit := call.GasLimit
	if gasLimit == 0 {
		gasLimit = domain.DefaultGasLimit
	}

	// Nonce allocation and broadcast must not interleave.
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()
	if c.locker != nil {
		unlock, err := c.locker.Lock(ctx, "nonce:"+c.id.String()+":"+c.signer.Address().Hex())
		if err != nil {
			return "", fmt.Errorf("evm: nonce lock: %w", err)
		}
		defer unlock()
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.signer.Address())
	if err != nil {
		return "", fmt.Errorf("evm: pending nonce: %w", err)
	}
	to := call.Contract
	signed, err := c.signer.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	}))
	if err != nil {
		return "", err
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("evm: send %s: %w", call.Function, err)
	}

	c.logger.DebugContext(ctx, "transaction sent",
		slog.String("tx", signed.Hash().Hex()),
		slog.Uint64("nonce", nonce),
		slog.String("gas_price", gasPrice.String()),
	)
	return signed.Hash().Hex(), nil
}

// SuggestGasPrice returns the node's gas price suggestion.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	p, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("evm: suggest gas price: %w", err)
	}
	return p, nil
}

func (c *Client) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	code, err := c.backend.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("evm: code at %s: %w", addr.Hex(), err)
	}
	return code, nil
}

func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := c.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("evm: balance of %s: %w", addr.Hex(), err)
	}
	return bal, nil
}

func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := c.call(ctx, standardTokenABI, token, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("evm: decimals of %s: unexpected type %T", token.Hex(), out[0])
	}
	return d, nil
}

func (c *Client) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return c.callUint(ctx, standardTokenABI, token, "balanceOf", owner)
}

func (c *Client) TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return c.callUint(ctx, standardTokenABI, token, "allowance", owner, spender)
}

// BuyTokenAmount asks the exchange how much ether buys amount tokens from
// orderID.
func (c *Client) BuyTokenAmount(ctx context.Context, exchange common.Address, amount, orderID *big.Int) (*big.Int, error) {
	return c.callUint(ctx, exchangeABI, exchange, "getBuyTokenAmount", amount, orderID)
}

// WaitForInclusion polls until txID has a receipt. Node errors are logged
// and retried; only ctx ends the wait.
func (c *Client) WaitForInclusion(ctx context.Context, txID string) error {
	hash := common.HexToHash(txID)
	for attempt := 1; ; attempt++ {
		_, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.WarnContext(ctx, "receipt poll failed, retrying",
				slog.String("tx", txID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.receiptPoll):
		}
	}
}

// Receipt fetches the receipt of an included transaction. Node errors are
// retried a few times before giving up.
func (c *Client) Receipt(ctx context.Context, txID string) (domain.Receipt, error) {
	hash := common.HexToHash(txID)
	var (
		r   *types.Receipt
		err error
	)
	for attempt := 1; ; attempt++ {
		r, err = c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			break
		}
		if errors.Is(err, ethereum.NotFound) {
			return domain.Receipt{}, fmt.Errorf("evm: receipt %s: %w", txID, domain.ErrNotFound)
		}
		if attempt >= receiptAttempts || ctx.Err() != nil {
			return domain.Receipt{}, fmt.Errorf("evm: receipt %s: %w", txID, err)
		}
		select {
		case <-ctx.Done():
			return domain.Receipt{}, fmt.Errorf("evm: receipt %s: %w", txID, ctx.Err())
		case <-time.After(c.receiptPoll):
		}
	}
	rcpt := domain.Receipt{Status: r.Status, GasUsed: r.GasUsed}
	if r.BlockNumber != nil {
		rcpt.BlockNumber = r.BlockNumber.Uint64()
	}
	return rcpt, nil
}

func (c *Client) call(ctx context.Context, parsed abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("evm: pack %s: %w", method, err)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("evm: call %s on %s: %w", method, to.Hex(), err)
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("evm: unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("evm: %s on %s returned nothing", method, to.Hex())
	}
	return out, nil
}

func (c *Client) callUint(ctx context.Context, parsed abi.ABI, to common.Address, method string, args ...any) (*big.Int, error) {
	out, err := c.call(ctx, parsed, to, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("evm: %s on %s: unexpected type %T", method, to.Hex(), out[0])
	}
	return v, nil
}
