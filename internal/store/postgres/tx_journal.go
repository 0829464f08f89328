package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

// TxJournal implements domain.TxJournal and records every lifecycle event
// it observes. One row per (chain, tx) holds the latest status.
type TxJournal struct {
	pool *pgxpool.Pool
}

// NewTxJournal creates a TxJournal.
func NewTxJournal(pool *pgxpool.Pool) *TxJournal {
	return &TxJournal{pool: pool}
}

const txJournalCols = `chain, tx_id, operation, op_id, status, error, submitted_at, updated_at`

// Record upserts the row for evt. A terminal status is never overwritten by
// a late "submitted".
func (j *TxJournal) Record(ctx context.Context, evt domain.TxEvent) error {
	const query = `
		INSERT INTO tx_journal (` + txJournalCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (chain, tx_id) DO UPDATE SET
			status     = EXCLUDED.status,
			error      = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
		WHERE tx_journal.status = 'submitted' OR EXCLUDED.status <> 'submitted'`

	var errText string
	if evt.Err != nil {
		errText = evt.Err.Error()
	}
	at := evt.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var submittedAt *time.Time
	if !evt.Pending.SubmittedAt.IsZero() {
		submittedAt = &evt.Pending.SubmittedAt
	}

	if _, err := j.pool.Exec(ctx, query,
		evt.Pending.Chain.String(), evt.Pending.ID, evt.Pending.Operation, evt.Pending.OpID,
		string(evt.Status), errText, submittedAt, at,
	); err != nil {
		return fmt.Errorf("postgres: record tx %s: %w", evt.Pending.ID, err)
	}
	return nil
}

// ObserveTx implements domain.TxObserver.
func (j *TxJournal) ObserveTx(ctx context.Context, evt domain.TxEvent) error {
	return j.Record(ctx, evt)
}

// Get returns the journaled row for txID.
func (j *TxJournal) Get(ctx context.Context, chain domain.ChainID, txID string) (domain.TxRecord, error) {
	row := j.pool.QueryRow(ctx,
		`SELECT `+txJournalCols+` FROM tx_journal WHERE chain = $1 AND tx_id = $2`,
		chain.String(), txID,
	)
	rec, err := scanTxRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TxRecord{}, fmt.Errorf("postgres: tx %s: %w", txID, domain.ErrNotFound)
		}
		return domain.TxRecord{}, fmt.Errorf("postgres: get tx %s: %w", txID, err)
	}
	return rec, nil
}

// ListRecent returns rows newest first.
func (j *TxJournal) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.TxRecord, error) {
	query, args := listQuery(`SELECT `+txJournalCols+` FROM tx_journal WHERE 1=1`, "updated_at", opts, nil)

	rows, err := j.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tx journal: %w", err)
	}
	defer rows.Close()

	var out []domain.TxRecord
	for rows.Next() {
		rec, err := scanTxRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan tx journal: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list tx journal rows: %w", err)
	}
	return out, nil
}

func scanTxRecord(row pgx.Row) (domain.TxRecord, error) {
	var (
		rec         domain.TxRecord
		chain       string
		status      string
		submittedAt *time.Time
	)
	if err := row.Scan(
		&chain, &rec.Pending.ID, &rec.Pending.Operation, &rec.Pending.OpID,
		&status, &rec.Error, &submittedAt, &rec.UpdatedAt,
	); err != nil {
		return domain.TxRecord{}, err
	}
	rec.Pending.Chain = domain.ChainID(chain)
	rec.Status = domain.TxStatus(status)
	if submittedAt != nil {
		rec.Pending.SubmittedAt = *submittedAt
	}
	return rec, nil
}

var (
	_ domain.TxJournal  = (*TxJournal)(nil)
	_ domain.TxObserver = (*TxJournal)(nil)
)
