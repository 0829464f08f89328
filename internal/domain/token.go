package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TokenVariant is the transfer protocol a token contract speaks.
type TokenVariant int

const (
	// LegacyTransferHook tokens notify the recipient contract on transfer, so
	// orders and trades ride on a transfer payload.
	LegacyTransferHook TokenVariant = iota + 1
	// StandardApprove tokens need an allowance before the exchange can pull
	// funds.
	StandardApprove
)

func (v TokenVariant) String() string {
	switch v {
	case LegacyTransferHook:
		return "legacy_transfer_hook"
	case StandardApprove:
		return "standard_approve"
	default:
		return "unknown"
	}
}

// ParseTokenVariant is the inverse of TokenVariant.String.
func ParseTokenVariant(s string) (TokenVariant, error) {
	switch s {
	case "legacy_transfer_hook":
		return LegacyTransferHook, nil
	case "standard_approve":
		return StandardApprove, nil
	default:
		return 0, fmt.Errorf("%w: variant %q", ErrUnknownTokenType, s)
	}
}

// TokenDescriptor is the classified, immutable view of a token contract.
type TokenDescriptor struct {
	Chain    ChainID
	Address  common.Address
	Decimals uint8
	Variant  TokenVariant
}

// Token is the indexer's market summary for a token.
type Token struct {
	Chain           ChainID
	Address         common.Address
	Name            string
	Symbol          string
	Decimals        uint8
	BestBuyPrice    decimal.Decimal
	BestSellPrice   decimal.Decimal
	BestBuyOrderTx  string
	BestSellOrderTx string
	Price24h        decimal.Decimal
	Volume24h       decimal.Decimal
	ChangePct       decimal.Decimal
}
