// Package exchange is the trading facade: it composes classification,
// pre-flight guards, call encoding, submission and confirmation into the
// three user-facing operations of the exchange.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/dualdex/internal/codec"
	"github.com/alanyoungcy/dualdex/internal/confirm"
	"github.com/alanyoungcy/dualdex/internal/domain"
	"github.com/alanyoungcy/dualdex/internal/token"
)

// Operation names recorded on every PendingTransaction.
const (
	OpNewOrder    = "new_order"
	OpNewTrade    = "new_trade"
	OpCancelOrder = "cancel_order"
	OpAwait       = "await"
)

// observerTimeout bounds one round of TxObserver callbacks.
const observerTimeout = 5 * time.Second

// Client trades on a single chain. Without a chain handle it can still
// await and look up transactions but every write fails with
// ErrNoChainHandle.
type Client struct {
	id        domain.ChainID
	chain     domain.Chain
	index     domain.RemoteIndex
	gas       domain.GasPriceOracle
	tokens    *token.Classifier
	codec     codec.Codec
	tracker   *confirm.Tracker
	observers []domain.TxObserver
	audit     domain.AuditStore
	logger    *slog.Logger
}

// Deps groups the collaborators of a Client. Chain and Gas may be nil.
type Deps struct {
	Chain   domain.Chain
	Index   domain.RemoteIndex
	Gas     domain.GasPriceOracle
	Tokens  *token.Classifier
	Tracker *confirm.Tracker
}

// NewClient creates a Client for chain id. gasLimit is attached to every
// submitted call.
func NewClient(id domain.ChainID, deps Deps, gasLimit uint64, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		id:      id,
		chain:   deps.Chain,
		index:   deps.Index,
		gas:     deps.Gas,
		tokens:  deps.Tokens,
		codec:   codec.New(gasLimit),
		tracker: deps.Tracker,
		logger:  logger.With(slog.String("component", "exchange"), slog.String("chain", id.String())),
	}
}

// WithObservers attaches transaction lifecycle observers. Observer errors
// are logged and never fail the trade.
func (c *Client) WithObservers(obs ...domain.TxObserver) *Client {
	for _, o := range obs {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
	return c
}

// WithAudit records every submitted call in the audit log.
func (c *Client) WithAudit(a domain.AuditStore) *Client {
	c.audit = a
	return c
}

// ChainID returns the chain this client trades on.
func (c *Client) ChainID() domain.ChainID { return c.id }

// Index exposes the indexer for read-only queries.
func (c *Client) Index() domain.RemoteIndex { return c.index }

func (c *Client) requireChain() error {
	if c.chain == nil {
		return fmt.Errorf("exchange: %s: %w", c.id, domain.ErrNoChainHandle)
	}
	return nil
}

func newOpID() string { return uuid.NewString() }

// submit prices the call, sends it and announces the pending transaction.
func (c *Client) submit(ctx context.Context, op, opID string, call domain.CallDescriptor) (domain.PendingTransaction, error) {
	if c.gas != nil {
		price, err := c.gas.CurrentPrice(ctx, c.id)
		if err != nil {
			return domain.PendingTransaction{}, fmt.Errorf("exchange: %s: gas price: %w", op, err)
		}
		call.GasPrice = price
	}

	txID, err := c.chain.SubmitCall(ctx, call)
	if err != nil {
		return domain.PendingTransaction{}, fmt.Errorf("exchange: %s: submit %s: %w", op, call.Function, err)
	}

	pending := domain.PendingTransaction{
		ID:          txID,
		Chain:       c.id,
		Operation:   op,
		OpID:        opID,
		SubmittedAt: time.Now().UTC(),
	}
	c.logger.InfoContext(ctx, "transaction submitted",
		slog.String("op", op),
		slog.String("op_id", opID),
		slog.String("tx", txID),
		slog.String("function", call.Function),
		slog.String("contract", call.Contract.Hex()),
	)
	c.emit(ctx, pending, domain.TxStatusSubmitted, nil)
	c.auditCall(ctx, pending, call)
	return pending, nil
}

// confirm runs the state machine and announces the terminal state.
func (c *Client) confirm(ctx context.Context, pending domain.PendingTransaction, chain domain.Chain) (domain.Transaction, error) {
	tx, err := c.tracker.Await(ctx, pending, chain)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionReverted) {
			c.emit(ctx, pending, domain.TxStatusFailed, err)
		} else {
			// Outcome unknown; the tx may still land.
			c.logger.InfoContext(ctx, "stopped waiting for confirmation",
				slog.String("tx", pending.ID),
				slog.String("error", err.Error()),
			)
		}
		return domain.Transaction{}, err
	}
	c.emit(ctx, pending, domain.TxStatusConfirmed, nil)
	return tx, nil
}

func (c *Client) emit(ctx context.Context, pending domain.PendingTransaction, status domain.TxStatus, cause error) {
	evt := domain.TxEvent{
		Pending: pending,
		Status:  status,
		Err:     cause,
		At:      time.Now().UTC(),
	}
	if len(c.observers) == 0 {
		return
	}
	// Observers run even when the caller's ctx is already done.
	octx, cancel := context.WithTimeout(context.WithoutCancel(ctx), observerTimeout)
	defer cancel()
	for _, o := range c.observers {
		if err := o.ObserveTx(octx, evt); err != nil {
			c.logger.WarnContext(ctx, "tx observer failed",
				slog.String("tx", pending.ID),
				slog.String("status", string(status)),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (c *Client) auditCall(ctx context.Context, pending domain.PendingTransaction, call domain.CallDescriptor) {
	if c.audit == nil {
		return
	}
	detail := map[string]any{
		"chain":    pending.Chain.String(),
		"op":       pending.Operation,
		"op_id":    pending.OpID,
		"tx":       pending.ID,
		"function": call.Function,
		"contract": call.Contract.Hex(),
	}
	if call.Value != nil {
		detail["value_wei"] = call.Value.String()
	}
	if err := c.audit.Log(ctx, "tx.submitted", detail); err != nil {
		c.logger.WarnContext(ctx, "audit log failed",
			slog.String("tx", pending.ID),
			slog.String("error", err.Error()),
		)
	}
}
