package indexer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

// TokenInfo returns the market summary of token.
func (c *Client) TokenInfo(ctx context.Context, chain domain.ChainID, token common.Address) (domain.Token, error) {
	var rec APIToken
	if err := c.getJSON(ctx, fmt.Sprintf("/tokens/show/%s/%s.json", chain, addrPath(token)), &rec); err != nil {
		return domain.Token{}, fmt.Errorf("indexer: token %s: %w", token.Hex(), err)
	}
	return rec.ToDomain(), nil
}

// OrdersForAddress returns every order owned by trader on any chain, buy
// orders first.
func (c *Client) OrdersForAddress(ctx context.Context, trader common.Address) ([]domain.Order, error) {
	var book APIOrderbook
	if err := c.getJSON(ctx, fmt.Sprintf("/orders/trader/%s.json", addrPath(trader)), &book); err != nil {
		return nil, fmt.Errorf("indexer: orders for %s: %w", trader.Hex(), err)
	}
	return append(ordersToDomain(book.BuyOrders), ordersToDomain(book.SellOrders)...), nil
}

// Orderbook returns the open orders for token against ether.
func (c *Client) Orderbook(ctx context.Context, chain domain.ChainID, token common.Address) (domain.Orderbook, error) {
	var book APIOrderbook
	path := fmt.Sprintf("/orders/%s/%s/%s/all.json", chain, addrPath(token), domain.EtherAddress.Hex())
	if err := c.getJSON(ctx, path, &book); err != nil {
		return domain.Orderbook{}, fmt.Errorf("indexer: orderbook %s:%s: %w", chain, token.Hex(), err)
	}
	return book.ToDomain(), nil
}

// OHLCV returns the last 24h of price candles for token.
func (c *Client) OHLCV(ctx context.Context, chain domain.ChainID, token common.Address) ([]domain.Candle, error) {
	var recs []APICandle
	if err := c.getJSON(ctx, fmt.Sprintf("/tokens/ohlcv/%s/%s/24h.json", chain, addrPath(token)), &recs); err != nil {
		return nil, fmt.Errorf("indexer: ohlcv %s:%s: %w", chain, token.Hex(), err)
	}
	out := make([]domain.Candle, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].ToDomain())
	}
	return out, nil
}

// TradeHistory returns past trades of token against ether.
func (c *Client) TradeHistory(ctx context.Context, chain domain.ChainID, token common.Address) ([]domain.Trade, error) {
	var recs []APITrade
	path := fmt.Sprintf("/trades/%s/%s/%s/all.json", chain, addrPath(token), domain.EtherAddress.Hex())
	if err := c.getJSON(ctx, path, &recs); err != nil {
		return nil, fmt.Errorf("indexer: trade history %s:%s: %w", chain, token.Hex(), err)
	}
	out := make([]domain.Trade, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].ToDomain())
	}
	return out, nil
}

// Snapshot fetches token info, orderbook, trade history and OHLCV
// concurrently. Any failure cancels the rest.
func (c *Client) Snapshot(ctx context.Context, chain domain.ChainID, token common.Address) (domain.MarketSnapshot, error) {
	var snap domain.MarketSnapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := c.TokenInfo(gctx, chain, token)
		snap.Token = t
		return err
	})
	g.Go(func() error {
		b, err := c.Orderbook(gctx, chain, token)
		snap.Orderbook = b
		return err
	})
	g.Go(func() error {
		tr, err := c.TradeHistory(gctx, chain, token)
		snap.Trades = tr
		return err
	})
	g.Go(func() error {
		k, err := c.OHLCV(gctx, chain, token)
		snap.OHLCV = k
		return err
	})

	if err := g.Wait(); err != nil {
		return domain.MarketSnapshot{}, err
	}
	snap.FetchedAt = time.Now().UTC()
	return snap, nil
}

// addrPath is the lower-case hex form the indexer uses in paths.
func addrPath(a common.Address) string {
	return strings.ToLower(a.Hex())
}
