package domain

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Side indicates which way the order maker trades the token against ether.
type Side string

const (
	SideBuy  Side = "buy"  // maker sells ether for the token
	SideSell Side = "sell" // maker sells the token for ether
)

// ParseSide accepts "buy" or "sell" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOrderSide, s)
	}
}

// TokenSummary is the indexer's short description of a token.
type TokenSummary struct {
	Address  common.Address
	Decimals uint8
	Name     string
	Symbol   string
}

// Order is a point-in-time snapshot of an exchange order as seen by the
// indexer. It is never mutated locally.
type Order struct {
	ID            *big.Int // on-chain order id
	Contract      common.Address
	Chain         ChainID
	Side          Side
	BaseToken     TokenSummary // the token being bought or sold
	QuoteToken    TokenSummary // ether
	Balance       decimal.Decimal
	Price         decimal.Decimal
	Owner         common.Address
	Active        bool
	TransactionID string
	BlockNumber   int64
	CreatedAt     time.Time
}

// TradeIntent is a request to fill Amount of an order.
type TradeIntent struct {
	Order  Order
	Amount decimal.Decimal
}

// Trade is an executed fill as reported by the indexer.
type Trade struct {
	Chain           ChainID
	BlockNumber     int64
	Buyer           common.Address
	Seller          common.Address
	BuyToken        TokenSummary
	SellToken       TokenSummary
	BuyTokenAmount  decimal.Decimal
	SellTokenAmount decimal.Decimal
	Contract        common.Address
	OrderID         *big.Int
	OrderOwner      common.Address
	OrderTx         string
	OrderSide       Side
	Price           decimal.Decimal
	TransactionID   string
	CreatedAt       time.Time
}
