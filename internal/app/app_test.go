package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dualdex/internal/config"
	"github.com/alanyoungcy/dualdex/internal/domain"
	"github.com/alanyoungcy/dualdex/internal/wallet"
)

const (
	devKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testApp(t *testing.T, cfg config.Config) (*App, *bytes.Buffer) {
	t.Helper()
	var out, status bytes.Buffer
	a := New(&cfg, quietLogger()).WithOutput(&out, &status)
	t.Cleanup(a.Close)
	return a, &out
}

func TestWireReadOnly(t *testing.T) {
	cfg := config.Defaults()
	deps, cleanup, err := Wire(context.Background(), &cfg, WireOptions{Logger: quietLogger()})
	require.NoError(t, err)
	defer cleanup()

	assert.Len(t, deps.Clients, 2)
	assert.Nil(t, deps.Journal)
	assert.Nil(t, deps.TxStream)
	assert.Nil(t, deps.Notifier)
	assert.Equal(t, [20]byte{}, [20]byte(deps.Trader))

	etc, err := deps.Client(domain.ChainETC)
	require.NoError(t, err)
	assert.Equal(t, domain.ChainETC, etc.ChainID())

	_, err = deps.Client(domain.ChainID("BTC"))
	assert.ErrorIs(t, err, domain.ErrUnknownChain)

	price, err := deps.Gas.CurrentPrice(context.Background(), domain.ChainETC)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), price.Int64())
}

func TestWireNotifierOnlyWithSenders(t *testing.T) {
	cfg := config.Defaults()
	cfg.Notify.DiscordWebhookURL = "http://127.0.0.1:1/hook"
	deps, cleanup, err := Wire(context.Background(), &cfg, WireOptions{Logger: quietLogger()})
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, deps.Notifier)
}

func TestRunUnknownCommand(t *testing.T) {
	a, _ := testApp(t, config.Defaults())
	err := a.Run(context.Background(), "launch", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "launch"`)
}

func TestRunOrderWithoutNode(t *testing.T) {
	a, _ := testApp(t, config.Defaults())
	err := a.Run(context.Background(), "order", []string{
		"-chain", "etc",
		"-token", "0xa000000000000000000000000000000000000001",
		"-side", "buy",
		"-amount", "1",
		"-price", "0.1",
	})
	assert.ErrorIs(t, err, domain.ErrNoChainHandle)
}

func TestRunOrderRejectsBadFlags(t *testing.T) {
	a, _ := testApp(t, config.Defaults())

	err := a.Run(context.Background(), "order", []string{"-token", "nope", "-side", "buy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-token: invalid address")

	err = a.Run(context.Background(), "order", []string{"-chain", "BTC"})
	assert.ErrorIs(t, err, domain.ErrUnknownChain)
}

func TestRunOrders(t *testing.T) {
	const orderJSON = `{"active":true,"balance":"5","blockchain":"ETC","buytoken":{"address":"0xa000000000000000000000000000000000000001","decimals":6,"symbol":"TKN"},"selltoken":{"address":"0x0000000000000000000000000000000000000000","decimals":18,"symbol":"ETC"},"contract":"0xe000000000000000000000000000000000000000","order_id":"7","owner":"0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266","price":"0.1","transaction":"0xorder","type":"BUY"}`

	var gotPath, gotOrigin string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotOrigin = r.Header.Get("Origin")
		_, _ = w.Write([]byte(`{"buy_orders":[` + orderJSON + `],"sell_orders":[]}`))
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.Indexer.BaseURL = srv.URL
	a, out := testApp(t, cfg)

	require.NoError(t, a.Run(context.Background(), "orders", []string{"-address", devAddress}))
	assert.Equal(t, "/orders/trader/0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266.json", gotPath)
	assert.Equal(t, "dualdex", gotOrigin)

	var orders []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "0xorder", orders[0]["TransactionID"])
}

func TestRunOrdersNeedsAddressWithoutWallet(t *testing.T) {
	a, _ := testApp(t, config.Defaults())
	err := a.Run(context.Background(), "orders", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-address is required")
}

func TestRunStoreCommandsNeedBackends(t *testing.T) {
	a, _ := testApp(t, config.Defaults())

	err := a.Run(context.Background(), "events", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis is not enabled")

	err = a.Run(context.Background(), "journal", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres is not enabled")

	err = a.Run(context.Background(), "audit", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres is not enabled")
}

type memAuditLog struct {
	entries []domain.AuditEntry
	opts    domain.ListOpts
}

func (m *memAuditLog) Log(_ context.Context, event string, detail map[string]any) error {
	m.entries = append(m.entries, domain.AuditEntry{ID: int64(len(m.entries) + 1), Event: event, Detail: detail})
	return nil
}

func (m *memAuditLog) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	m.opts = opts
	return m.entries, nil
}

func TestRunAudit(t *testing.T) {
	a, out := testApp(t, config.Defaults())
	store := &memAuditLog{}
	require.NoError(t, store.Log(context.Background(), "tx_submitted", map[string]any{"tx": "0xabc", "op": "new_order"}))

	before := time.Now().UTC()
	err := runAudit(context.Background(), a, &Dependencies{Audit: store}, []string{"-limit", "5", "-offset", "2", "-since", "1h"})
	require.NoError(t, err)

	assert.Equal(t, 5, store.opts.Limit)
	assert.Equal(t, 2, store.opts.Offset)
	require.NotNil(t, store.opts.Since)
	assert.WithinDuration(t, before.Add(-time.Hour), *store.opts.Since, time.Minute)

	var entries []domain.AuditEntry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "tx_submitted", entries[0].Event)
	assert.Equal(t, "0xabc", entries[0].Detail["tx"])
}

func TestRunEncryptKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.Wallet.PrivateKey = devKey
	cfg.Wallet.KeyPassword = "hunter2"
	a, _ := testApp(t, cfg)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, a.Run(context.Background(), "encrypt-key", []string{"-out", path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	key, err := wallet.Decrypt(data, "hunter2")
	require.NoError(t, err)

	signer, err := wallet.NewSigner(key, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, devAddress, signer.Address().Hex())
}

func TestLineProgress(t *testing.T) {
	var buf bytes.Buffer
	p := &lineProgress{w: &buf}
	p.Waiting("0xabc", 1)
	p.Waiting("0xabc", 2)
	p.Done("0xabc")
	assert.Equal(t, "awaiting transaction 0xabc\nawaiting transaction 0xabc (attempt 2)\ntransaction 0xabc indexed\n", buf.String())
}
