// Package codec turns order and trade intents into the exact contract calls
// the exchange expects. It performs no I/O: token classification, balances
// and gas prices are resolved by the caller.
package codec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualdex/internal/domain"
	"github.com/alanyoungcy/dualdex/internal/fixedpoint"
)

// Exchange and token function names.
const (
	FnSellEther              = "sellEther"
	FnSellERC20Token         = "sellERC20Token"
	FnBuyOrderWithERC20Token = "buyOrderWithERC20Token"
	FnBuyOrderWithEth        = "buyOrderWithEth"
	FnCancelOrder            = "cancelOrder"
	FnTransfer               = "transfer"
)

// Codec builds call descriptors with a fixed gas budget.
type Codec struct {
	gasLimit uint64
}

// New returns a Codec attaching gasLimit to every call.
func New(gasLimit uint64) Codec {
	if gasLimit == 0 {
		gasLimit = domain.DefaultGasLimit
	}
	return Codec{gasLimit: gasLimit}
}

// GasLimit is the budget attached to every call.
func (c Codec) GasLimit() uint64 { return c.gasLimit }

// BuyOrder places an order selling ether for token. The call value is
// amount × price in wei and the price goes on-chain as a fraction of wei per
// token base unit.
func (c Codec) BuyOrder(token domain.TokenDescriptor, amount, price decimal.Decimal, exchange common.Address) (domain.CallDescriptor, error) {
	frac, err := fixedpoint.PriceFraction(price, token.Decimals)
	if err != nil {
		return domain.CallDescriptor{}, fmt.Errorf("codec: buy order price: %w", err)
	}
	value, err := fixedpoint.MulToChain(amount, price, domain.EtherDecimals)
	if err != nil {
		return domain.CallDescriptor{}, fmt.Errorf("codec: buy order value: %w", err)
	}
	return domain.CallDescriptor{
		Kind:     domain.ContractExchange,
		Contract: exchange,
		Function: FnSellEther,
		Args:     []any{token.Address, frac.Num, frac.Den},
		Value:    value,
		GasLimit: c.gasLimit,
	}, nil
}

// SellOrder places an order selling token for ether. The price is stored as
// the exact reciprocal fraction. Legacy transfer-hook tokens carry the order
// in a transfer payload; standard tokens call the exchange directly and need
// an allowance.
func (c Codec) SellOrder(token domain.TokenDescriptor, amount, price decimal.Decimal, exchange common.Address) (domain.CallDescriptor, error) {
	scaled, err := fixedpoint.ToChainAmount(amount, token.Decimals)
	if err != nil {
		return domain.CallDescriptor{}, fmt.Errorf("codec: sell order amount: %w", err)
	}
	frac, err := fixedpoint.ReciprocalPriceFraction(price, token.Decimals)
	if err != nil {
		return domain.CallDescriptor{}, fmt.Errorf("codec: sell order price: %w", err)
	}

	switch token.Variant {
	case domain.LegacyTransferHook:
		payload, err := SellOrderPayload(frac, domain.EtherAddress)
		if err != nil {
			return domain.CallDescriptor{}, fmt.Errorf("codec: sell order payload: %w", err)
		}
		return domain.CallDescriptor{
			Kind:     domain.ContractLegacyToken,
			Contract: token.Address,
			Function: FnTransfer,
			Args:     []any{exchange, scaled, []byte(payload)},
			GasLimit: c.gasLimit,
		}, nil
	case domain.StandardApprove:
		return domain.CallDescriptor{
			Kind:     domain.ContractExchange,
			Contract: exchange,
			Function: FnSellERC20Token,
			Args:     []any{token.Address, domain.EtherAddress, scaled, frac.Num, frac.Den},
			GasLimit: c.gasLimit,
		}, nil
	default:
		return domain.CallDescriptor{}, fmt.Errorf("codec: %w: %s", domain.ErrUnknownTokenType, token.Address.Hex())
	}
}

// TokenTrade fills a buy order by delivering tokens to it.
func (c Codec) TokenTrade(token domain.TokenDescriptor, intent domain.TradeIntent) (domain.CallDescriptor, error) {
	if intent.Order.Side != domain.SideBuy {
		return domain.CallDescriptor{}, fmt.Errorf("codec: token trade: %w: order %s is %q",
			domain.ErrUnsupportedOrderType, intent.Order.TransactionID, intent.Order.Side)
	}
	scaled, err := fixedpoint.ToChainAmount(intent.Amount, token.Decimals)
	if err != nil {
		return domain.CallDescriptor{}, fmt.Errorf("codec: token trade amount: %w", err)
	}

	switch token.Variant {
	case domain.LegacyTransferHook:
		payload, err := TradePayload(intent.Order.ID)
		if err != nil {
			return domain.CallDescriptor{}, fmt.Errorf("codec: trade payload: %w", err)
		}
		return domain.CallDescriptor{
			Kind:     domain.ContractLegacyToken,
			Contract: token.Address,
			Function: FnTransfer,
			Args:     []any{intent.Order.Contract, scaled, []byte(payload)},
			GasLimit: c.gasLimit,
		}, nil
	case domain.StandardApprove:
		return domain.CallDescriptor{
			Kind:     domain.ContractExchange,
			Contract: intent.Order.Contract,
			Function: FnBuyOrderWithERC20Token,
			Args:     []any{intent.Order.ID, token.Address, scaled},
			GasLimit: c.gasLimit,
		}, nil
	default:
		return domain.CallDescriptor{}, fmt.Errorf("codec: %w: %s", domain.ErrUnknownTokenType, token.Address.Hex())
	}
}

// EtherTradeAmount scales a trade against a sell order into token base
// units, the unit the exchange quotes ether cost in.
func (c Codec) EtherTradeAmount(intent domain.TradeIntent) (*big.Int, error) {
	if intent.Order.Side != domain.SideSell {
		return nil, fmt.Errorf("codec: ether trade: %w: order %s is %q",
			domain.ErrUnsupportedOrderType, intent.Order.TransactionID, intent.Order.Side)
	}
	scaled, err := fixedpoint.ToChainAmount(intent.Amount, intent.Order.BaseToken.Decimals)
	if err != nil {
		return nil, fmt.Errorf("codec: ether trade amount: %w", err)
	}
	return scaled, nil
}

// EtherTrade fills a sell order by paying requiredWei, as quoted by the
// exchange for the desired token amount.
func (c Codec) EtherTrade(order domain.Order, requiredWei *big.Int) domain.CallDescriptor {
	return domain.CallDescriptor{
		Kind:     domain.ContractExchange,
		Contract: order.Contract,
		Function: FnBuyOrderWithEth,
		Args:     []any{order.ID},
		Value:    requiredWei,
		GasLimit: c.gasLimit,
	}
}

// Cancel is a passthrough; no conversion is involved.
func (c Codec) Cancel(exchange common.Address, orderID *big.Int) domain.CallDescriptor {
	return domain.CallDescriptor{
		Kind:     domain.ContractExchange,
		Contract: exchange,
		Function: FnCancelOrder,
		Args:     []any{orderID},
		GasLimit: c.gasLimit,
	}
}
