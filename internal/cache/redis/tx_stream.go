package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

// streamMaxLen is the approximate cap enforced via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// TxEventRecord is the JSON payload written for every lifecycle event.
type TxEventRecord struct {
	TxID        string    `json:"tx"`
	Chain       string    `json:"chain"`
	Operation   string    `json:"operation"`
	OpID        string    `json:"op_id,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at,omitzero"`
	At          time.Time `json:"at"`
}

// StreamEntry is one stored event with its stream id.
type StreamEntry struct {
	ID     string
	Record TxEventRecord
}

// TxStream appends transaction events to a per-chain Redis stream and
// announces them on a Pub/Sub channel.
//
// Key schema:
//
//	{prefix}:tx:{chain} - stream, field "payload" holds a TxEventRecord
//	{prefix}:tx-events  - Pub/Sub channel carrying the same payload
type TxStream struct {
	c *Client
}

// NewTxStream creates a TxStream backed by c.
func NewTxStream(c *Client) *TxStream {
	return &TxStream{c: c}
}

func (ts *TxStream) streamKey(chain domain.ChainID) string { return ts.c.key("tx", chain.String()) }
func (ts *TxStream) channel() string                       { return ts.c.key("tx-events") }

// RecordOf flattens evt into its stored form.
func RecordOf(evt domain.TxEvent) TxEventRecord {
	rec := TxEventRecord{
		TxID:        evt.Pending.ID,
		Chain:       evt.Pending.Chain.String(),
		Operation:   evt.Pending.Operation,
		OpID:        evt.Pending.OpID,
		Status:      string(evt.Status),
		SubmittedAt: evt.Pending.SubmittedAt,
		At:          evt.At,
	}
	if evt.Err != nil {
		rec.Error = evt.Err.Error()
	}
	return rec
}

// ObserveTx implements domain.TxObserver.
func (ts *TxStream) ObserveTx(ctx context.Context, evt domain.TxEvent) error {
	payload, err := json.Marshal(RecordOf(evt))
	if err != nil {
		return fmt.Errorf("redis: marshal tx event: %w", err)
	}

	pipe := ts.c.rdb.Pipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: ts.streamKey(evt.Pending.Chain),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	})
	pipe.Publish(ctx, ts.channel(), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish tx event %s: %w", evt.Pending.ID, err)
	}
	return nil
}

// Recent returns up to count of the newest events for chain, newest first.
func (ts *TxStream) Recent(ctx context.Context, chain domain.ChainID, count int64) ([]StreamEntry, error) {
	msgs, err := ts.c.rdb.XRevRangeN(ctx, ts.streamKey(chain), "+", "-", count).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: read tx stream %s: %w", chain, err)
	}

	out := make([]StreamEntry, 0, len(msgs))
	for _, msg := range msgs {
		var data []byte
		switch v := msg.Values["payload"].(type) {
		case string:
			data = []byte(v)
		case []byte:
			data = v
		default:
			continue
		}
		var rec TxEventRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		out = append(out, StreamEntry{ID: msg.ID, Record: rec})
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.TxObserver = (*TxStream)(nil)
