package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TxRecord is a journaled transaction with its latest known status.
type TxRecord struct {
	Pending   PendingTransaction
	Status    TxStatus
	Error     string
	UpdatedAt time.Time
}

// TxJournal persists every transaction this client submits or awaits.
type TxJournal interface {
	Record(ctx context.Context, evt TxEvent) error
	Get(ctx context.Context, chain ChainID, txID string) (TxRecord, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]TxRecord, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
