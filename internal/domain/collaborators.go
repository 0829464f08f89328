package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Chain is a live handle on one blockchain, bound to the trader's wallet.
type Chain interface {
	ID() ChainID
	Trader() common.Address
	SubmitCall(ctx context.Context, call CallDescriptor) (string, error)
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	// BuyTokenAmount asks the exchange how much ether fills amount of order.
	BuyTokenAmount(ctx context.Context, exchange common.Address, amount, orderID *big.Int) (*big.Int, error)
	WaitForInclusion(ctx context.Context, txID string) error
	Receipt(ctx context.Context, txID string) (Receipt, error)
}

// RemoteIndex is the read side of the exchange indexer. Lookups of records
// that are not indexed yet return ErrNotFound.
type RemoteIndex interface {
	FindTransaction(ctx context.Context, txID string, chain ChainID) (Transaction, error)
	FindOrder(ctx context.Context, txID string, chain ChainID) (Order, error)
	FindTrade(ctx context.Context, txID string, chain ChainID) (Trade, error)
	ContractAddressFor(ctx context.Context, chain ChainID) (common.Address, error)
}

// GasPriceOracle resolves the gas price attached to every submitted call.
type GasPriceOracle interface {
	CurrentPrice(ctx context.Context, chain ChainID) (*big.Int, error)
}

// TokenCache is a shared tier for token classifications. Get returns
// ErrNotFound on a miss.
type TokenCache interface {
	Get(ctx context.Context, chain ChainID, addr common.Address) (TokenDescriptor, error)
	Set(ctx context.Context, desc TokenDescriptor) error
}

// TxObserver receives transaction lifecycle events. Observers must not
// block the trading flow; errors are logged and otherwise ignored.
type TxObserver interface {
	ObserveTx(ctx context.Context, evt TxEvent) error
}
