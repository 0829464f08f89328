package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ContractKind selects the ABI a call is encoded against.
type ContractKind int

const (
	ContractExchange ContractKind = iota + 1
	ContractStandardToken
	ContractLegacyToken
)

func (k ContractKind) String() string {
	switch k {
	case ContractExchange:
		return "exchange"
	case ContractStandardToken:
		return "standard_token"
	case ContractLegacyToken:
		return "legacy_token"
	default:
		return "unknown"
	}
}

// CallDescriptor is a fully resolved contract call ready for submission.
// Args are ABI-typed Go values (common.Address, *big.Int, []byte).
type CallDescriptor struct {
	Kind     ContractKind
	Contract common.Address
	Function string
	Args     []any
	Value    *big.Int // wei attached to the call; nil means zero
	GasLimit uint64
	GasPrice *big.Int
}

// Receipt is the subset of a transaction receipt the confirmation state
// machine inspects.
type Receipt struct {
	Status      uint64
	GasUsed     uint64
	BlockNumber uint64
}

// Transaction is the indexer's record of a mined transaction.
type Transaction struct {
	Chain       ChainID
	Hash        string
	BlockNumber int64
	From        common.Address
	To          common.Address
	GasPrice    decimal.Decimal
	GasUsed     uint64
	TxPrice     decimal.Decimal
	Value       decimal.Decimal
	CreatedAt   time.Time
}

// PendingTransaction tracks a submitted call until it reaches a terminal
// state.
type PendingTransaction struct {
	ID          string
	Chain       ChainID
	Operation   string // new_order, new_trade, cancel_order, await
	OpID        string // correlation id shared by every log line of one call
	SubmittedAt time.Time
}

// TxStatus is the terminal outcome recorded for a PendingTransaction.
type TxStatus string

const (
	TxStatusSubmitted TxStatus = "submitted"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

// TxEvent is emitted to observers as a transaction moves through its
// lifecycle. Err is set only for TxStatusFailed.
type TxEvent struct {
	Pending PendingTransaction
	Status  TxStatus
	Err     error
	At      time.Time
}
