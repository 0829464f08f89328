// Package guard holds the pre-submission checks that keep doomed
// transactions off the chain. Each check is side-effect free apart from the
// chain reads it performs.
package guard

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualdex/internal/domain"
	"github.com/alanyoungcy/dualdex/internal/fixedpoint"
)

// BalanceReader is the chain surface the balance and allowance checks need.
type BalanceReader interface {
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// VerifyCapacity fails when amount exceeds what the order has left.
func VerifyCapacity(intent domain.TradeIntent) error {
	if intent.Amount.GreaterThan(intent.Order.Balance) {
		return &domain.InsufficientCapacityError{
			OrderTx:   intent.Order.TransactionID,
			Requested: intent.Amount,
			Available: intent.Order.Balance,
		}
	}
	return nil
}

// VerifyOrderTradable rejects trades against the trader's own orders and
// against orders that are no longer active. Ownership is checked first.
func VerifyOrderTradable(order domain.Order, trader common.Address) error {
	if order.Owner == trader {
		return fmt.Errorf("guard: order %s: %w", order.TransactionID, domain.ErrSelfTrade)
	}
	if !order.Active {
		return fmt.Errorf("guard: order %s: %w", order.TransactionID, domain.ErrOrderInactive)
	}
	return nil
}

// VerifyEtherBalance fails when owner holds less than amount ether.
func VerifyEtherBalance(ctx context.Context, r BalanceReader, owner common.Address, amount decimal.Decimal) error {
	need, err := fixedpoint.ToChainAmount(amount, domain.EtherDecimals)
	if err != nil {
		return fmt.Errorf("guard: ether amount: %w", err)
	}
	have, err := r.BalanceAt(ctx, owner)
	if err != nil {
		return fmt.Errorf("guard: ether balance of %s: %w", owner.Hex(), err)
	}
	if have.Cmp(need) < 0 {
		return &domain.InsufficientBalanceError{
			Token:     domain.EtherAddress,
			Requested: amount,
			Available: fixedpoint.ToHuman(have, domain.EtherDecimals),
		}
	}
	return nil
}

// VerifyTokenBalance fails when owner holds less than amount of token.
func VerifyTokenBalance(ctx context.Context, r BalanceReader, token domain.TokenDescriptor, owner common.Address, amount decimal.Decimal) error {
	need, err := fixedpoint.ToChainAmount(amount, token.Decimals)
	if err != nil {
		return fmt.Errorf("guard: token amount: %w", err)
	}
	have, err := r.TokenBalance(ctx, token.Address, owner)
	if err != nil {
		return fmt.Errorf("guard: token balance of %s: %w", owner.Hex(), err)
	}
	if have.Cmp(need) < 0 {
		return &domain.InsufficientBalanceError{
			Token:     token.Address,
			Requested: amount,
			Available: fixedpoint.ToHuman(have, token.Decimals),
		}
	}
	return nil
}

// VerifyAllowance fails when spender may move less than amount of the
// owner's tokens. Only standard-approve tokens need this.
func VerifyAllowance(ctx context.Context, r BalanceReader, token domain.TokenDescriptor, owner, spender common.Address, amount decimal.Decimal) error {
	need, err := fixedpoint.ToChainAmount(amount, token.Decimals)
	if err != nil {
		return fmt.Errorf("guard: allowance amount: %w", err)
	}
	allowed, err := r.TokenAllowance(ctx, token.Address, owner, spender)
	if err != nil {
		return fmt.Errorf("guard: allowance of %s: %w", spender.Hex(), err)
	}
	if allowed.Cmp(need) < 0 {
		return &domain.InsufficientAllowanceError{
			Token:     token.Address,
			Spender:   spender,
			Requested: amount,
			Allowed:   fixedpoint.ToHuman(allowed, token.Decimals),
		}
	}
	return nil
}
