package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/dualdex/internal/domain"
	"github.com/alanyoungcy/dualdex/internal/fixedpoint"
	"github.com/alanyoungcy/dualdex/internal/guard"
)

// NewTrade fills amount of the order created by orderTx and returns the
// trade once the indexer has recorded it.
//
// The order's own transaction is awaited first, so a trade may be placed
// against an order that is still being indexed.
func (c *Client) NewTrade(ctx context.Context, amount fixedpoint.Quantity, orderTx string) (domain.Trade, error) {
	if err := c.requireChain(); err != nil {
		return domain.Trade{}, err
	}
	amt, err := fixedpoint.Parse(amount)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("exchange: new trade: amount: %w", err)
	}

	opID := newOpID()
	log := c.logger.With(slog.String("op_id", opID), slog.String("order_tx", orderTx))

	orderPending := domain.PendingTransaction{ID: orderTx, Chain: c.id, Operation: OpAwait, OpID: opID}
	if _, err := c.tracker.Await(ctx, orderPending, nil); err != nil {
		return domain.Trade{}, fmt.Errorf("exchange: new trade: await order: %w", err)
	}
	order, err := c.index.FindOrder(ctx, orderTx, c.id)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("exchange: new trade: fetch order %s: %w", orderTx, err)
	}

	trader := c.chain.Trader()
	if err := guard.VerifyOrderTradable(order, trader); err != nil {
		return domain.Trade{}, err
	}
	intent := domain.TradeIntent{Order: order, Amount: amt}
	if err := guard.VerifyCapacity(intent); err != nil {
		return domain.Trade{}, err
	}

	var call domain.CallDescriptor
	switch order.Side {
	case domain.SideBuy:
		call, err = c.tokenTradeCall(ctx, intent)
	case domain.SideSell:
		call, err = c.etherTradeCall(ctx, intent)
	default:
		return domain.Trade{}, fmt.Errorf("exchange: new trade: %w: %q", domain.ErrUnsupportedOrderType, order.Side)
	}
	if err != nil {
		return domain.Trade{}, err
	}

	log.InfoContext(ctx, "placing trade",
		slog.String("order_side", string(order.Side)),
		slog.String("order_id", order.ID.String()),
		slog.String("amount", amt.String()),
	)

	pending, err := c.submit(ctx, OpNewTrade, opID, call)
	if err != nil {
		return domain.Trade{}, err
	}
	if _, err := c.confirm(ctx, pending, c.chain); err != nil {
		return domain.Trade{}, fmt.Errorf("exchange: new trade: %w", err)
	}
	trade, err := c.index.FindTrade(ctx, pending.ID, c.id)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("exchange: new trade: fetch %s: %w", pending.ID, err)
	}
	return trade, nil
}

// tokenTradeCall fills a buy order: the trader delivers tokens.
func (c *Client) tokenTradeCall(ctx context.Context, intent domain.TradeIntent) (domain.CallDescriptor, error) {
	tok, err := c.tokens.Classify(ctx, intent.Order.BaseToken.Address)
	if err != nil {
		return domain.CallDescriptor{}, fmt.Errorf("exchange: new trade: %w", err)
	}
	trader := c.chain.Trader()
	if err := guard.VerifyTokenBalance(ctx, c.chain, tok, trader, intent.Amount); err != nil {
		return domain.CallDescriptor{}, err
	}
	if tok.Variant == domain.StandardApprove {
		if err := guard.VerifyAllowance(ctx, c.chain, tok, trader, intent.Order.Contract, intent.Amount); err != nil {
			return domain.CallDescriptor{}, err
		}
	}
	call, err := c.codec.TokenTrade(tok, intent)
	if err != nil {
		return domain.CallDescriptor{}, fmt.Errorf("exchange: new trade: %w", err)
	}
	return call, nil
}

// etherTradeCall fills a sell order: the trader pays the ether the exchange
// quotes for the requested token amount.
func (c *Client) etherTradeCall(ctx context.Context, intent domain.TradeIntent) (domain.CallDescriptor, error) {
	decimals, err := c.chain.TokenDecimals(ctx, intent.Order.BaseToken.Address)
	if err != nil {
		return domain.CallDescriptor{}, fmt.Errorf("exchange: new trade: token decimals: %w", err)
	}
	intent.Order.BaseToken.Decimals = decimals

	scaled, err := c.codec.EtherTradeAmount(intent)
	if err != nil {
		return domain.CallDescriptor{}, fmt.Errorf("exchange: new trade: %w", err)
	}
	wei, err := c.chain.BuyTokenAmount(ctx, intent.Order.Contract, scaled, intent.Order.ID)
	if err != nil {
		return domain.CallDescriptor{}, fmt.Errorf("exchange: new trade: quote ether cost: %w", err)
	}
	cost := fixedpoint.ToHuman(wei, domain.EtherDecimals)
	if err := guard.VerifyEtherBalance(ctx, c.chain, c.chain.Trader(), cost); err != nil {
		return domain.CallDescriptor{}, err
	}
	return c.codec.EtherTrade(intent.Order, wei), nil
}
