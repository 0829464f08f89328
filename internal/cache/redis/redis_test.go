package redis

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

func TestKeys(t *testing.T) {
	c := Wrap(nil, "")
	tc := NewTokenCache(c)
	ts := NewTxStream(c)

	addr := common.HexToAddress("0xB9440022a095343B440D590fCD2d7A3794Bd76c8")
	assert.Equal(t, "dualdex:token:ETC:0xb9440022a095343b440d590fcd2d7a3794bd76c8", tc.tokenKey(domain.ChainETC, addr))
	assert.Equal(t, "dualdex:tx:ETH", ts.streamKey(domain.ChainETH))
	assert.Equal(t, "dualdex:tx-events", ts.channel())

	assert.Equal(t, "test:lock:x", Wrap(nil, "test").key("lock", "x"))
}

func TestTokenEncoding(t *testing.T) {
	desc := domain.TokenDescriptor{
		Chain:    domain.ChainETH,
		Address:  common.HexToAddress("0x01"),
		Decimals: 4,
		Variant:  domain.LegacyTransferHook,
	}
	data, err := encodeToken(desc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"variant":"legacy_transfer_hook"`)

	got, err := decodeToken(data)
	require.NoError(t, err)
	assert.Equal(t, desc, got)

	_, err = decodeToken([]byte(`{"variant":"erc777"}`))
	require.ErrorIs(t, err, domain.ErrUnknownTokenType)
}

func TestRecordOf(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := RecordOf(domain.TxEvent{
		Pending: domain.PendingTransaction{ID: "0xabc", Chain: domain.ChainETC, Operation: "new_order", OpID: "op"},
		Status:  domain.TxStatusFailed,
		Err:     errors.New("reverted"),
		At:      at,
	})
	assert.Equal(t, "0xabc", rec.TxID)
	assert.Equal(t, "ETC", rec.Chain)
	assert.Equal(t, "failed", rec.Status)
	assert.Equal(t, "reverted", rec.Error)
	assert.Equal(t, at, rec.At)
}
