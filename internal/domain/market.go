package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Orderbook is the set of open orders for a token against ether.
type Orderbook struct {
	Buy  []Order
	Sell []Order
}

// Candle is one OHLCV bucket of a token's ether price.
type Candle struct {
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// MarketSnapshot bundles everything the indexer knows about one token
// market at a point in time.
type MarketSnapshot struct {
	Token     Token
	Orderbook Orderbook
	Trades    []Trade
	OHLCV     []Candle
	FetchedAt time.Time
}
