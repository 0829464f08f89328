// Package confirm drives a submitted transaction to a terminal state by
// combining the chain receipt with indexer polling.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

// DefaultPollInterval is the fixed delay between indexer lookups.
const DefaultPollInterval = 5 * time.Second

// TxFinder is the indexer lookup the tracker polls.
type TxFinder interface {
	FindTransaction(ctx context.Context, txID string, chain domain.ChainID) (domain.Transaction, error)
}

// Progress is shown to a human while the tracker waits on the indexer.
type Progress interface {
	Waiting(txID string, attempt int)
	Done(txID string)
}

// Config tunes a Tracker.
type Config struct {
	PollInterval time.Duration
	// GasExhaustionLimit marks a receipt whose gas used equals it as
	// reverted. Zero disables the check.
	GasExhaustionLimit uint64
	Progress           Progress
}

// Tracker confirms transactions. It is safe for concurrent use.
type Tracker struct {
	finder   TxFinder
	interval time.Duration
	gasLimit uint64
	progress Progress
	logger   *slog.Logger
}

// NewTracker creates a Tracker polling finder.
func NewTracker(finder TxFinder, cfg Config, logger *slog.Logger) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		finder:   finder,
		interval: cfg.PollInterval,
		gasLimit: cfg.GasExhaustionLimit,
		progress: cfg.Progress,
		logger:   logger.With(slog.String("component", "confirm")),
	}
}

// Await blocks until pending is confirmed by the indexer or the chain
// reports it reverted. A nil chain skips the receipt step, which is the
// case when confirming an id that was not submitted by this process.
//
// Indexer lookups are retried without bound; only ctx ends the wait early.
func (t *Tracker) Await(ctx context.Context, pending domain.PendingTransaction, chain domain.Chain) (domain.Transaction, error) {
	log := t.logger.With(
		slog.String("tx", pending.ID),
		slog.String("chain", pending.Chain.String()),
	)
	if pending.OpID != "" {
		log = log.With(slog.String("op_id", pending.OpID))
	}

	if chain != nil {
		if err := t.checkReceipt(ctx, pending, chain, log); err != nil {
			return domain.Transaction{}, err
		}
	}
	return t.pollIndexer(ctx, pending, log)
}

func (t *Tracker) checkReceipt(ctx context.Context, pending domain.PendingTransaction, chain domain.Chain, log *slog.Logger) error {
	if err := chain.WaitForInclusion(ctx, pending.ID); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("confirm: wait for %s: %w", pending.ID, ctx.Err())
		}
		log.WarnContext(ctx, "wait for inclusion failed, falling back to indexer",
			slog.String("error", err.Error()))
		return nil
	}

	rcpt, err := chain.Receipt(ctx, pending.ID)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("confirm: receipt for %s: %w", pending.ID, ctx.Err())
		}
		log.WarnContext(ctx, "receipt unavailable, falling back to indexer",
			slog.String("error", err.Error()))
		return nil
	}

	if rcpt.Status == 0 || (t.gasLimit > 0 && rcpt.GasUsed == t.gasLimit) {
		log.WarnContext(ctx, "transaction reverted",
			slog.Uint64("status", rcpt.Status),
			slog.Uint64("gas_used", rcpt.GasUsed),
		)
		return &domain.TransactionRevertedError{
			TxID:    pending.ID,
			Chain:   pending.Chain,
			Status:  rcpt.Status,
			GasUsed: rcpt.GasUsed,
		}
	}
	log.DebugContext(ctx, "transaction included", slog.Uint64("block", rcpt.BlockNumber))
	return nil
}

func (t *Tracker) pollIndexer(ctx context.Context, pending domain.PendingTransaction, log *slog.Logger) (domain.Transaction, error) {
	if t.progress != nil {
		defer t.progress.Done(pending.ID)
	}

	for attempt := 1; ; attempt++ {
		tx, err := t.finder.FindTransaction(ctx, pending.ID, pending.Chain)
		if err == nil {
			log.InfoContext(ctx, "transaction confirmed", slog.Int("attempts", attempt))
			return tx, nil
		}
		if ctx.Err() != nil {
			return domain.Transaction{}, fmt.Errorf("confirm: poll %s: %w", pending.ID, ctx.Err())
		}
		if !errors.Is(err, domain.ErrNotFound) {
			log.DebugContext(ctx, "indexer lookup failed", slog.String("error", err.Error()))
		}
		if t.progress != nil {
			t.progress.Waiting(pending.ID, attempt)
		}

		select {
		case <-ctx.Done():
			return domain.Transaction{}, fmt.Errorf("confirm: poll %s: %w", pending.ID, ctx.Err())
		case <-time.After(t.interval):
		}
	}
}
