package gasprice

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

type nodeFunc func(ctx context.Context) (*big.Int, error)

func (f nodeFunc) SuggestGasPrice(ctx context.Context) (*big.Int, error) { return f(ctx) }

func station(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCurrentPrice_Policy(t *testing.T) {
	srv := station(t, http.StatusOK, "12.5")
	node := nodeFunc(func(context.Context) (*big.Int, error) { return big.NewInt(3), nil })
	ctx := context.Background()

	base := Config{
		Fixed:         map[domain.ChainID]*big.Int{domain.ChainETC: big.NewInt(1_000_000)},
		StationURL:    srv.URL,
		StationChains: []domain.ChainID{domain.ChainETH},
	}

	o := NewOracle(base, nil).WithNode(domain.ChainETH, node)
	p, err := o.CurrentPrice(ctx, domain.ChainETH)
	require.NoError(t, err)
	assert.Equal(t, "12500000000", p.String())

	p, err = o.CurrentPrice(ctx, domain.ChainETC)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), p.Int64())

	withOverride := base
	withOverride.Override = big.NewInt(99)
	o = NewOracle(withOverride, nil)
	for _, c := range domain.KnownChains {
		p, err := o.CurrentPrice(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, int64(99), p.Int64())
	}
}

func TestCurrentPrice_StationObject(t *testing.T) {
	srv := station(t, http.StatusOK, `{"standard": 20, "fast": 40}`)
	o := NewOracle(Config{StationURL: srv.URL, StationChains: []domain.ChainID{domain.ChainETH}}, nil)

	p, err := o.CurrentPrice(context.Background(), domain.ChainETH)
	require.NoError(t, err)
	assert.Equal(t, "20000000000", p.String())
}

func TestCurrentPrice_StationDownFallsBackToNode(t *testing.T) {
	srv := station(t, http.StatusBadGateway, "upstream")
	node := nodeFunc(func(context.Context) (*big.Int, error) { return big.NewInt(5), nil })
	o := NewOracle(Config{StationURL: srv.URL, StationChains: []domain.ChainID{domain.ChainETH}}, nil).
		WithNode(domain.ChainETH, node)

	p, err := o.CurrentPrice(context.Background(), domain.ChainETH)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Int64())

	_, err = NewOracle(Config{StationURL: srv.URL, StationChains: []domain.ChainID{domain.ChainETH}}, nil).
		CurrentPrice(context.Background(), domain.ChainETH)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestCurrentPrice_NoSource(t *testing.T) {
	_, err := NewOracle(Config{}, nil).CurrentPrice(context.Background(), domain.ChainETH)
	require.ErrorIs(t, err, domain.ErrNoPriceSource)
	assert.NotErrorIs(t, err, domain.ErrUnknownChain)
	assert.Equal(t, "gasprice: ETH: no gas price source configured", err.Error())

	_, err = NewOracle(Config{}, nil).CurrentPrice(context.Background(), domain.ChainID("BTC"))
	require.ErrorIs(t, err, domain.ErrUnknownChain)
	assert.NotErrorIs(t, err, domain.ErrNoPriceSource)

	boom := errors.New("rpc down")
	o := NewOracle(Config{}, nil).WithNode(domain.ChainETH, nodeFunc(func(context.Context) (*big.Int, error) { return nil, boom }))
	_, err = o.CurrentPrice(context.Background(), domain.ChainETH)
	require.ErrorIs(t, err, boom)
}

func TestCurrentPrice_ReturnsCopy(t *testing.T) {
	override := big.NewInt(10)
	o := NewOracle(Config{Override: override}, nil)
	p, err := o.CurrentPrice(context.Background(), domain.ChainETH)
	require.NoError(t, err)
	p.SetInt64(0)
	assert.Equal(t, int64(10), override.Int64())
}
