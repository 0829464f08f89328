package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/dualdex/internal/domain"
	"github.com/alanyoungcy/dualdex/internal/fixedpoint"
	"github.com/alanyoungcy/dualdex/internal/wallet"
)

type command struct {
	usage     string
	needsDeps bool
	run       func(ctx context.Context, a *App, deps *Dependencies, args []string) error
}

var commands = map[string]command{
	"order":       {"place a limit order", true, runOrder},
	"trade":       {"fill part of an existing order", true, runTrade},
	"cancel":      {"cancel an order", true, runCancel},
	"await":       {"wait for a transaction to be indexed", true, runAwait},
	"orders":      {"list orders of a trader", true, runOrders},
	"book":        {"show orderbook, trades and 24h candles of a token", true, runBook},
	"events":      {"show recent transaction events from redis", true, runEvents},
	"journal":     {"show the transaction journal from postgres", true, runJournal},
	"audit":       {"show the audit log of submitted calls from postgres", true, runAudit},
	"encrypt-key": {"write an encrypted key file for the configured private key", false, runEncryptKey},
}

func commandNames() string {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// Usage writes the command list.
func Usage(w io.Writer) {
	names := strings.Split(commandNames(), ", ")
	fmt.Fprintln(w, "usage: dualdex [-config path] <command> [flags]")
	fmt.Fprintln(w, "\ncommands:")
	for _, n := range names {
		fmt.Fprintf(w, "  %-12s %s\n", n, commands[n].usage)
	}
}

func newFlagSet(name string, a *App) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.status)
	return fs
}

func chainFlag(fs *flag.FlagSet) *string {
	return fs.String("chain", "ETH", "blockchain (ETH or ETC)")
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAddress(flagName, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("-%s: invalid address %q", flagName, s)
	}
	return common.HexToAddress(s), nil
}

func runOrder(ctx context.Context, a *App, deps *Dependencies, args []string) error {
	fs := newFlagSet("order", a)
	chain := chainFlag(fs)
	tokenHex := fs.String("token", "", "token contract address")
	side := fs.String("side", "", "buy or sell")
	amount := fs.String("amount", "", "token amount")
	price := fs.String("price", "", "price in ether per token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := domain.ParseChain(*chain)
	if err != nil {
		return err
	}
	tok, err := parseAddress("token", *tokenHex)
	if err != nil {
		return err
	}
	s, err := domain.ParseSide(*side)
	if err != nil {
		return err
	}
	client, err := deps.Client(id)
	if err != nil {
		return err
	}
	order, err := client.NewOrder(ctx, tok, s, fixedpoint.Text(*amount), fixedpoint.Text(*price))
	if err != nil {
		return err
	}
	return a.print(order)
}

func runTrade(ctx context.Context, a *App, deps *Dependencies, args []string) error {
	fs := newFlagSet("trade", a)
	chain := chainFlag(fs)
	orderTx := fs.String("order-tx", "", "transaction that created the order")
	amount := fs.String("amount", "", "token amount to fill")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *orderTx == "" {
		return errors.New("-order-tx is required")
	}

	id, err := domain.ParseChain(*chain)
	if err != nil {
		return err
	}
	client, err := deps.Client(id)
	if err != nil {
		return err
	}
	trade, err := client.NewTrade(ctx, fixedpoint.Text(*amount), *orderTx)
	if err != nil {
		return err
	}
	return a.print(trade)
}

func runCancel(ctx context.Context, a *App, deps *Dependencies, args []string) error {
	fs := newFlagSet("cancel", a)
	chain := chainFlag(fs)
	orderID := fs.String("order-id", "", "numeric order id")
	contractHex := fs.String("contract", "", "exchange contract (default: the indexer's current one)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := domain.ParseChain(*chain)
	if err != nil {
		return err
	}
	oid, ok := new(big.Int).SetString(*orderID, 10)
	if !ok || oid.Sign() < 0 {
		return fmt.Errorf("-order-id: invalid order id %q", *orderID)
	}
	client, err := deps.Client(id)
	if err != nil {
		return err
	}

	var contract common.Address
	if *contractHex != "" {
		if contract, err = parseAddress("contract", *contractHex); err != nil {
			return err
		}
	} else if contract, err = client.Index().ContractAddressFor(ctx, id); err != nil {
		return err
	}

	tx, err := client.CancelOrder(ctx, oid, contract)
	if err != nil {
		return err
	}
	return a.print(tx)
}

func runAwait(ctx context.Context, a *App, deps *Dependencies, args []string) error {
	fs := newFlagSet("await", a)
	chain := chainFlag(fs)
	txID := fs.String("tx", "", "transaction hash")
	kind := fs.String("kind", "tx", "what the transaction created: tx, order or trade")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *txID == "" {
		return errors.New("-tx is required")
	}

	id, err := domain.ParseChain(*chain)
	if err != nil {
		return err
	}
	client, err := deps.Client(id)
	if err != nil {
		return err
	}

	var v any
	switch *kind {
	case "tx":
		v, err = client.AwaitTransaction(ctx, *txID)
	case "order":
		v, err = client.AwaitOrder(ctx, *txID)
	case "trade":
		v, err = client.AwaitTrade(ctx, *txID)
	default:
		return fmt.Errorf("-kind: unknown kind %q", *kind)
	}
	if err != nil {
		return err
	}
	return a.print(v)
}

func runOrders(ctx context.Context, a *App, deps *Dependencies, args []string) error {
	fs := newFlagSet("orders", a)
	addrHex := fs.String("address", "", "trader address (default: the configured wallet)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	trader := deps.Trader
	if *addrHex != "" {
		var err error
		if trader, err = parseAddress("address", *addrHex); err != nil {
			return err
		}
	}
	if trader == (common.Address{}) {
		return errors.New("-address is required without a wallet")
	}

	orders, err := deps.Index.OrdersForAddress(ctx, trader)
	if err != nil {
		return err
	}
	return a.print(orders)
}

func runBook(ctx context.Context, a *App, deps *Dependencies, args []string) error {
	fs := newFlagSet("book", a)
	chain := chainFlag(fs)
	tokenHex := fs.String("token", "", "token contract address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := domain.ParseChain(*chain)
	if err != nil {
		return err
	}
	tok, err := parseAddress("token", *tokenHex)
	if err != nil {
		return err
	}
	snap, err := deps.Index.Snapshot(ctx, id, tok)
	if err != nil {
		return err
	}
	return a.print(snap)
}

func runEvents(ctx context.Context, a *App, deps *Dependencies, args []string) error {
	fs := newFlagSet("events", a)
	chain := chainFlag(fs)
	count := fs.Int64("count", 20, "number of events")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if deps.TxStream == nil {
		return errors.New("redis is not enabled")
	}

	id, err := domain.ParseChain(*chain)
	if err != nil {
		return err
	}
	entries, err := deps.TxStream.Recent(ctx, id, *count)
	if err != nil {
		return err
	}
	return a.print(entries)
}

func runJournal(ctx context.Context, a *App, deps *Dependencies, args []string) error {
	fs := newFlagSet("journal", a)
	limit := fs.Int("limit", 50, "number of rows")
	txID := fs.String("tx", "", "show a single transaction")
	chain := chainFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if deps.Journal == nil {
		return errors.New("postgres is not enabled")
	}

	if *txID != "" {
		id, err := domain.ParseChain(*chain)
		if err != nil {
			return err
		}
		rec, err := deps.Journal.Get(ctx, id, *txID)
		if err != nil {
			return err
		}
		return a.print(rec)
	}
	recs, err := deps.Journal.ListRecent(ctx, domain.ListOpts{Limit: *limit})
	if err != nil {
		return err
	}
	return a.print(recs)
}

func runAudit(ctx context.Context, a *App, deps *Dependencies, args []string) error {
	fs := newFlagSet("audit", a)
	limit := fs.Int("limit", 50, "number of rows")
	offset := fs.Int("offset", 0, "rows to skip")
	since := fs.Duration("since", 0, "only entries newer than this, e.g. 24h")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if deps.Audit == nil {
		return errors.New("postgres is not enabled")
	}

	opts := domain.ListOpts{Limit: *limit, Offset: *offset}
	if *since > 0 {
		from := time.Now().UTC().Add(-*since)
		opts.Since = &from
	}
	entries, err := deps.Audit.List(ctx, opts)
	if err != nil {
		return err
	}
	return a.print(entries)
}

func runEncryptKey(_ context.Context, a *App, _ *Dependencies, args []string) error {
	fs := newFlagSet("encrypt-key", a)
	out := fs.String("out", "", "destination key file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("-out is required")
	}
	if a.cfg.Wallet.PrivateKey == "" || a.cfg.Wallet.KeyPassword == "" {
		return errors.New("wallet.private_key and wallet.key_password must be set")
	}

	data, err := wallet.Encrypt(a.cfg.Wallet.PrivateKey, a.cfg.Wallet.KeyPassword)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	fmt.Fprintf(a.status, "encrypted key written to %s\n", *out)
	return nil
}
