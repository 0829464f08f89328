package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/dualdex/internal/domain"
	"github.com/alanyoungcy/dualdex/internal/fixedpoint"
	"github.com/alanyoungcy/dualdex/internal/guard"
)

// NewOrder places an order for amount of tokenAddr at price ether per token
// and returns the order once the indexer has recorded it.
//
// A buy order escrows amount × price ether. A sell order escrows the tokens,
// through a transfer payload for legacy transfer-hook tokens or through the
// exchange's allowance for standard tokens.
func (c *Client) NewOrder(ctx context.Context, tokenAddr common.Address, side domain.Side, amount, price fixedpoint.Quantity) (domain.Order, error) {
	if err := c.requireChain(); err != nil {
		return domain.Order{}, err
	}
	amt, err := fixedpoint.Parse(amount)
	if err != nil {
		return domain.Order{}, fmt.Errorf("exchange: new order: amount: %w", err)
	}
	px, err := fixedpoint.Parse(price)
	if err != nil {
		return domain.Order{}, fmt.Errorf("exchange: new order: price: %w", err)
	}

	opID := newOpID()
	log := c.logger.With(slog.String("op_id", opID))

	tok, err := c.tokens.Classify(ctx, tokenAddr)
	if err != nil {
		return domain.Order{}, fmt.Errorf("exchange: new order: %w", err)
	}
	contract, err := c.index.ContractAddressFor(ctx, c.id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("exchange: new order: exchange address: %w", err)
	}
	trader := c.chain.Trader()

	var call domain.CallDescriptor
	switch side {
	case domain.SideBuy:
		if err := guard.VerifyEtherBalance(ctx, c.chain, trader, amt.Mul(px)); err != nil {
			return domain.Order{}, err
		}
		call, err = c.codec.BuyOrder(tok, amt, px, contract)
	case domain.SideSell:
		if err := guard.VerifyTokenBalance(ctx, c.chain, tok, trader, amt); err != nil {
			return domain.Order{}, err
		}
		if tok.Variant == domain.StandardApprove {
			if err := guard.VerifyAllowance(ctx, c.chain, tok, trader, contract, amt); err != nil {
				return domain.Order{}, err
			}
		}
		call, err = c.codec.SellOrder(tok, amt, px, contract)
	default:
		return domain.Order{}, fmt.Errorf("exchange: new order: %w: %q", domain.ErrUnsupportedOrderSide, side)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("exchange: new order: %w", err)
	}

	log.InfoContext(ctx, "placing order",
		slog.String("side", string(side)),
		slog.String("token", tokenAddr.Hex()),
		slog.String("variant", tok.Variant.String()),
		slog.String("amount", amt.String()),
		slog.String("price", px.String()),
	)

	pending, err := c.submit(ctx, OpNewOrder, opID, call)
	if err != nil {
		return domain.Order{}, err
	}
	if _, err := c.confirm(ctx, pending, c.chain); err != nil {
		return domain.Order{}, fmt.Errorf("exchange: new order: %w", err)
	}
	order, err := c.index.FindOrder(ctx, pending.ID, c.id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("exchange: new order: fetch %s: %w", pending.ID, err)
	}
	return order, nil
}

// CancelOrder cancels orderID on the exchange contract and waits for
// confirmation.
func (c *Client) CancelOrder(ctx context.Context, orderID *big.Int, contract common.Address) (domain.Transaction, error) {
	if err := c.requireChain(); err != nil {
		return domain.Transaction{}, err
	}
	if orderID == nil || orderID.Sign() < 0 {
		return domain.Transaction{}, fmt.Errorf("exchange: cancel order: invalid order id %v", orderID)
	}

	opID := newOpID()
	c.logger.InfoContext(ctx, "cancelling order",
		slog.String("op_id", opID),
		slog.String("order_id", orderID.String()),
		slog.String("contract", contract.Hex()),
	)

	pending, err := c.submit(ctx, OpCancelOrder, opID, c.codec.Cancel(contract, orderID))
	if err != nil {
		return domain.Transaction{}, err
	}
	tx, err := c.confirm(ctx, pending, c.chain)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("exchange: cancel order: %w", err)
	}
	return tx, nil
}
