package exchange

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

// AwaitTransaction waits until txID is indexed. When this client holds a
// chain handle the receipt is checked first and a revert fails fast.
func (c *Client) AwaitTransaction(ctx context.Context, txID string) (domain.Transaction, error) {
	pending := domain.PendingTransaction{ID: txID, Chain: c.id, Operation: OpAwait, OpID: newOpID()}
	tx, err := c.confirm(ctx, pending, c.chain)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("exchange: await %s: %w", txID, err)
	}
	return tx, nil
}

// AwaitOrder waits for txID and returns the order it created.
func (c *Client) AwaitOrder(ctx context.Context, txID string) (domain.Order, error) {
	if _, err := c.AwaitTransaction(ctx, txID); err != nil {
		return domain.Order{}, err
	}
	order, err := c.index.FindOrder(ctx, txID, c.id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("exchange: await order %s: %w", txID, err)
	}
	return order, nil
}

// AwaitTrade waits for txID and returns the trade it executed.
func (c *Client) AwaitTrade(ctx context.Context, txID string) (domain.Trade, error) {
	if _, err := c.AwaitTransaction(ctx, txID); err != nil {
		return domain.Trade{}, err
	}
	trade, err := c.index.FindTrade(ctx, txID, c.id)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("exchange: await trade %s: %w", txID, err)
	}
	return trade, nil
}
