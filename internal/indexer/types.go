package indexer

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

// --------------------------------------------------------------------------
// Indexer DTOs. Numeric fields arrive as JSON numbers or strings; decimal
// accepts both.
// --------------------------------------------------------------------------

// APITokenSummary is the short token description embedded in orders and
// trades.
type APITokenSummary struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
}

// APIOrder is an order record.
type APIOrder struct {
	Active      bool            `json:"active"`
	Balance     decimal.Decimal `json:"balance"`
	Blockchain  string          `json:"blockchain"`
	BlockNumber int64           `json:"blocknumber"`
	BuyToken    APITokenSummary `json:"buytoken"`
	SellToken   APITokenSummary `json:"selltoken"`
	Contract    string          `json:"contract"`
	CreatedAt   decimal.Decimal `json:"created_at"`
	OrderID     decimal.Decimal `json:"order_id"`
	Owner       string          `json:"owner"`
	Price       decimal.Decimal `json:"price"`
	Transaction string          `json:"transaction"`
	Type        string          `json:"type"`
}

// APITrade is an executed trade record.
type APITrade struct {
	Blockchain      string          `json:"blockchain"`
	BlockNumber     int64           `json:"blocknumber"`
	Buyer           string          `json:"buyer"`
	Seller          string          `json:"seller"`
	BuyToken        APITokenSummary `json:"buytoken"`
	SellToken       APITokenSummary `json:"selltoken"`
	BuyTokenAmount  decimal.Decimal `json:"buytokenamount"`
	SellTokenAmount decimal.Decimal `json:"selltokenamount"`
	Contract        string          `json:"contract"`
	OrderID         decimal.Decimal `json:"order_id"`
	OrderOwner      string          `json:"order_owner"`
	CreatedAt       decimal.Decimal `json:"created_at"`
	OrderTx         string          `json:"order_tx"`
	OrderType       string          `json:"order_type"`
	Price           decimal.Decimal `json:"price"`
	Transaction     string          `json:"transaction"`
}

// APITransaction is a mined transaction record.
type APITransaction struct {
	Blockchain  string          `json:"blockchain"`
	BlockNumber int64           `json:"blocknumber"`
	CreatedAt   decimal.Decimal `json:"created_at"`
	GasPrice    decimal.Decimal `json:"gasprice"`
	GasUsed     decimal.Decimal `json:"gasused"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Tx          string          `json:"tx"`
	TxPrice     decimal.Decimal `json:"txprice"`
	Value       decimal.Decimal `json:"value"`
}

// APIToken is the market summary of a token.
type APIToken struct {
	Address         string          `json:"address"`
	BestBuyOrderTx  string          `json:"best_buy_order_tx"`
	BestBuyPrice    decimal.Decimal `json:"best_buy_price"`
	BestSellOrderTx string          `json:"best_sell_order_tx"`
	BestSellPrice   decimal.Decimal `json:"best_sell_price"`
	Blockchain      string          `json:"blockchain"`
	ChangePct       decimal.Decimal `json:"change_pct"`
	Decimals        uint8           `json:"decimals"`
	Name            string          `json:"name"`
	Symbol          string          `json:"symbol"`
	Price24h        decimal.Decimal `json:"price24hr"`
	Volume24h       decimal.Decimal `json:"volume24hr"`
}

// APIOrderbook groups open orders by side.
type APIOrderbook struct {
	BuyOrders  []APIOrder `json:"buy_orders"`
	SellOrders []APIOrder `json:"sell_orders"`
}

// APICandle is one OHLCV bucket.
type APICandle struct {
	Time   int64           `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// --------------------------------------------------------------------------
// Conversions
// --------------------------------------------------------------------------

func (s APITokenSummary) toDomain() domain.TokenSummary {
	return domain.TokenSummary{
		Address:  common.HexToAddress(s.Address),
		Decimals: s.Decimals,
		Name:     s.Name,
		Symbol:   s.Symbol,
	}
}

// ToDomain converts the record. For a buy order the maker buys the token, so
// the base token is the buy token; for a sell order it is the sell token.
func (o APIOrder) ToDomain() domain.Order {
	side := domain.Side(strings.ToLower(o.Type))
	base, quote := o.BuyToken, o.SellToken
	if side == domain.SideSell {
		base, quote = o.SellToken, o.BuyToken
	}
	return domain.Order{
		ID:            bigOf(o.OrderID),
		Contract:      common.HexToAddress(o.Contract),
		Chain:         domain.ChainID(strings.ToUpper(o.Blockchain)),
		Side:          side,
		BaseToken:     base.toDomain(),
		QuoteToken:    quote.toDomain(),
		Balance:       o.Balance,
		Price:         o.Price,
		Owner:         common.HexToAddress(o.Owner),
		Active:        o.Active,
		TransactionID: o.Transaction,
		BlockNumber:   o.BlockNumber,
		CreatedAt:     unixTime(o.CreatedAt.IntPart()),
	}
}

// ToDomain converts the record.
func (t APITrade) ToDomain() domain.Trade {
	return domain.Trade{
		Chain:           domain.ChainID(strings.ToUpper(t.Blockchain)),
		BlockNumber:     t.BlockNumber,
		Buyer:           common.HexToAddress(t.Buyer),
		Seller:          common.HexToAddress(t.Seller),
		BuyToken:        t.BuyToken.toDomain(),
		SellToken:       t.SellToken.toDomain(),
		BuyTokenAmount:  t.BuyTokenAmount,
		SellTokenAmount: t.SellTokenAmount,
		Contract:        common.HexToAddress(t.Contract),
		OrderID:         bigOf(t.OrderID),
		OrderOwner:      common.HexToAddress(t.OrderOwner),
		OrderTx:         t.OrderTx,
		OrderSide:       domain.Side(strings.ToLower(t.OrderType)),
		Price:           t.Price,
		TransactionID:   t.Transaction,
		CreatedAt:       unixTime(t.CreatedAt.IntPart()),
	}
}

// ToDomain converts the record.
func (t APITransaction) ToDomain() domain.Transaction {
	return domain.Transaction{
		Chain:       domain.ChainID(strings.ToUpper(t.Blockchain)),
		Hash:        t.Tx,
		BlockNumber: t.BlockNumber,
		From:        common.HexToAddress(t.From),
		To:          common.HexToAddress(t.To),
		GasPrice:    t.GasPrice,
		GasUsed:     uint64(t.GasUsed.IntPart()),
		TxPrice:     t.TxPrice,
		Value:       t.Value,
		CreatedAt:   unixTime(t.CreatedAt.IntPart()),
	}
}

// ToDomain converts the record.
func (t APIToken) ToDomain() domain.Token {
	return domain.Token{
		Chain:           domain.ChainID(strings.ToUpper(t.Blockchain)),
		Address:         common.HexToAddress(t.Address),
		Name:            t.Name,
		Symbol:          t.Symbol,
		Decimals:        t.Decimals,
		BestBuyPrice:    t.BestBuyPrice,
		BestSellPrice:   t.BestSellPrice,
		BestBuyOrderTx:  t.BestBuyOrderTx,
		BestSellOrderTx: t.BestSellOrderTx,
		Price24h:        t.Price24h,
		Volume24h:       t.Volume24h,
		ChangePct:       t.ChangePct,
	}
}

func ordersToDomain(in []APIOrder) []domain.Order {
	out := make([]domain.Order, 0, len(in))
	for i := range in {
		out = append(out, in[i].ToDomain())
	}
	return out
}

func bigOf(d decimal.Decimal) *big.Int {
	return d.Truncate(0).BigInt()
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// ToDomain converts the record.
func (c APICandle) ToDomain() domain.Candle {
	return domain.Candle{
		Time:   unixTime(c.Time),
		Open:   c.Open,
		High:   c.High,
		Low:    c.Low,
		Close:  c.Close,
		Volume: c.Volume,
	}
}

// ToDomain converts the record.
func (b APIOrderbook) ToDomain() domain.Orderbook {
	return domain.Orderbook{
		Buy:  ordersToDomain(b.BuyOrders),
		Sell: ordersToDomain(b.SellOrders),
	}
}
