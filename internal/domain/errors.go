package domain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrUnknownChain  = errors.New("unknown chain")
	ErrNoWallet      = errors.New("no wallet configured for chain")
	ErrNoChainHandle = errors.New("no live chain handle")
	ErrLockHeld      = errors.New("lock already held")
	ErrNoPriceSource = errors.New("no gas price source configured")

	ErrPrecision                 = errors.New("precision error")
	ErrUnknownTokenType          = errors.New("unknown token type")
	ErrUnsupportedOrderType      = errors.New("unsupported order type")
	ErrUnsupportedOrderSide      = errors.New("unsupported order side")
	ErrInsufficientBalance       = errors.New("insufficient balance")
	ErrInsufficientAllowance     = errors.New("insufficient allowance")
	ErrInsufficientOrderCapacity = errors.New("insufficient order capacity")
	ErrSelfTrade                 = errors.New("cannot trade against your own order")
	ErrOrderInactive             = errors.New("order is no longer active")
	ErrTransactionReverted       = errors.New("transaction reverted")
)

// PrecisionError reports a numeric input that cannot be represented exactly.
type PrecisionError struct {
	Input  string
	Reason string
}

func (e *PrecisionError) Error() string {
	return fmt.Sprintf("precision error: %q: %s", e.Input, e.Reason)
}

func (e *PrecisionError) Unwrap() error { return ErrPrecision }

// InsufficientBalanceError carries the human-readable requested and available
// quantities. Token is EtherAddress for native balance checks.
type InsufficientBalanceError struct {
	Token     common.Address
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	if e.Token == EtherAddress {
		return fmt.Sprintf("insufficient ether balance: requested %s, available %s",
			e.Requested.String(), e.Available.String())
	}
	return fmt.Sprintf("insufficient balance for token %s: requested %s, available %s",
		e.Token.Hex(), e.Requested.String(), e.Available.String())
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InsufficientAllowanceError means the exchange may not move enough of the
// trader's tokens yet; an approve call is required first.
type InsufficientAllowanceError struct {
	Token     common.Address
	Spender   common.Address
	Requested decimal.Decimal
	Allowed   decimal.Decimal
}

func (e *InsufficientAllowanceError) Error() string {
	return fmt.Sprintf("insufficient allowance for token %s to spender %s: requested %s, allowed %s",
		e.Token.Hex(), e.Spender.Hex(), e.Requested.String(), e.Allowed.String())
}

func (e *InsufficientAllowanceError) Unwrap() error { return ErrInsufficientAllowance }

// InsufficientCapacityError is returned when a trade asks for more than the
// order has left.
type InsufficientCapacityError struct {
	OrderTx   string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("attempted to trade %s tokens but order %s only has %s available",
		e.Requested.String(), e.OrderTx, e.Available.String())
}

func (e *InsufficientCapacityError) Unwrap() error { return ErrInsufficientOrderCapacity }

// TransactionRevertedError is the terminal failure of the confirmation
// state machine.
type TransactionRevertedError struct {
	TxID    string
	Chain   ChainID
	Status  uint64
	GasUsed uint64
}

func (e *TransactionRevertedError) Error() string {
	return fmt.Sprintf("transaction %s on %s failed (status=%d gas_used=%d)",
		e.TxID, e.Chain, e.Status, e.GasUsed)
}

func (e *TransactionRevertedError) Unwrap() error { return ErrTransactionReverted }
