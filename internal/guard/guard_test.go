package guard

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

var (
	trader = common.HexToAddress("0x1111111111111111111111111111111111111111")
	maker  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	token  = domain.TokenDescriptor{
		Chain:    domain.ChainETH,
		Address:  common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Decimals: 6,
		Variant:  domain.StandardApprove,
	}
)

type fakeReader struct {
	ether     *big.Int
	tokens    *big.Int
	allowance *big.Int
	err       error
}

func (f fakeReader) BalanceAt(context.Context, common.Address) (*big.Int, error) {
	return f.ether, f.err
}

func (f fakeReader) TokenBalance(context.Context, common.Address, common.Address) (*big.Int, error) {
	return f.tokens, f.err
}

func (f fakeReader) TokenAllowance(context.Context, common.Address, common.Address, common.Address) (*big.Int, error) {
	return f.allowance, f.err
}

func TestVerifyCapacity(t *testing.T) {
	order := domain.Order{TransactionID: "0xabc", Balance: decimal.RequireFromString("10.5")}

	require.NoError(t, VerifyCapacity(domain.TradeIntent{Order: order, Amount: decimal.RequireFromString("10.5")}))
	require.NoError(t, VerifyCapacity(domain.TradeIntent{Order: order, Amount: decimal.RequireFromString("1")}))

	err := VerifyCapacity(domain.TradeIntent{Order: order, Amount: decimal.RequireFromString("10.500000000000000001")})
	require.ErrorIs(t, err, domain.ErrInsufficientOrderCapacity)

	var capErr *domain.InsufficientCapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, "0xabc", capErr.OrderTx)
	assert.Contains(t, err.Error(), "only has 10.5 available")
}

func TestVerifyOrderTradable(t *testing.T) {
	tests := []struct {
		name   string
		owner  common.Address
		active bool
		want   error
	}{
		{"active foreign order", maker, true, nil},
		{"inactive foreign order", maker, false, domain.ErrOrderInactive},
		{"own active order", trader, true, domain.ErrSelfTrade},
		{"own inactive order", trader, false, domain.ErrSelfTrade},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyOrderTradable(domain.Order{Owner: tt.owner, Active: tt.active}, trader)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerifyEtherBalance(t *testing.T) {
	ctx := context.Background()
	r := fakeReader{ether: big.NewInt(1_500_000_000_000_000)} // 0.0015 ether

	require.NoError(t, VerifyEtherBalance(ctx, r, trader, decimal.RequireFromString("0.0015")))

	err := VerifyEtherBalance(ctx, r, trader, decimal.RequireFromString("0.002"))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "insufficient ether balance")
	assert.Contains(t, err.Error(), "available 0.0015")
}

func TestVerifyTokenBalance(t *testing.T) {
	ctx := context.Background()
	r := fakeReader{tokens: big.NewInt(2_500_000)}

	require.NoError(t, VerifyTokenBalance(ctx, r, token, trader, decimal.RequireFromString("2.5")))

	err := VerifyTokenBalance(ctx, r, token, trader, decimal.RequireFromString("2.500001"))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	var balErr *domain.InsufficientBalanceError
	require.True(t, errors.As(err, &balErr))
	assert.Equal(t, token.Address, balErr.Token)
	assert.Equal(t, "2.5", balErr.Available.String())
}

func TestVerifyAllowance(t *testing.T) {
	ctx := context.Background()
	spender := common.HexToAddress("0x4444444444444444444444444444444444444444")

	require.NoError(t, VerifyAllowance(ctx, fakeReader{allowance: big.NewInt(1_000_000)}, token, trader, spender, decimal.NewFromInt(1)))

	err := VerifyAllowance(ctx, fakeReader{allowance: big.NewInt(999_999)}, token, trader, spender, decimal.NewFromInt(1))
	require.ErrorIs(t, err, domain.ErrInsufficientAllowance)
	assert.Contains(t, err.Error(), spender.Hex())
}

func TestChainReadFailurePropagates(t *testing.T) {
	boom := errors.New("rpc down")
	err := VerifyTokenBalance(context.Background(), fakeReader{err: boom}, token, trader, decimal.NewFromInt(1))
	require.ErrorIs(t, err, boom)
}
