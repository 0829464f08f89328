package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

// ToChainAmount scales d by 10^decimals and truncates toward zero. The
// result must fit in 256 bits.
func ToChainAmount(d decimal.Decimal, decimals uint8) (*big.Int, error) {
	if d.IsNegative() {
		return nil, &domain.PrecisionError{Input: d.String(), Reason: "negative quantity"}
	}
	scaled := d.Shift(int32(decimals)).Truncate(0).BigInt()
	if err := checkWidth(scaled, d.String()); err != nil {
		return nil, err
	}
	return scaled, nil
}

// ToHuman is the inverse of ToChainAmount for values that were already
// truncated: ToHuman(ToChainAmount(d, n), n) == d truncated to n places.
func ToHuman(v *big.Int, decimals uint8) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -int32(decimals))
}

// MulToChain multiplies amount by price exactly and only then scales and
// truncates. This is the ether value of a buy order.
func MulToChain(amount, price decimal.Decimal, decimals uint8) (*big.Int, error) {
	return ToChainAmount(amount.Mul(price), decimals)
}

// Fraction is an on-chain rational price. Both parts fit in 256 bits and
// the fraction is always in lowest terms.
type Fraction struct {
	Num *big.Int
	Den *big.Int
}

// Rat returns the fraction as an exact rational.
func (f Fraction) Rat() *big.Rat {
	return new(big.Rat).SetFrac(f.Num, f.Den)
}

func (f Fraction) String() string {
	return f.Num.String() + "/" + f.Den.String()
}

// PriceFraction converts a human price (ether per token) into the
// exchange's integer fraction of wei per token base unit:
//
//	num/den = price × 10^(etherDecimals − tokenDecimals)
//
// so that price == num/den × 10^(tokenDecimals − etherDecimals).
func PriceFraction(price decimal.Decimal, tokenDecimals uint8) (Fraction, error) {
	r, err := chainPrice(price, tokenDecimals)
	if err != nil {
		return Fraction{}, err
	}
	return fractionOf(r, price.String())
}

// ReciprocalPriceFraction is the exact reciprocal of PriceFraction. Sell
// orders store price in this direction.
func ReciprocalPriceFraction(price decimal.Decimal, tokenDecimals uint8) (Fraction, error) {
	r, err := chainPrice(price, tokenDecimals)
	if err != nil {
		return Fraction{}, err
	}
	return fractionOf(new(big.Rat).Inv(r), price.String())
}

// HumanPrice decodes a fraction produced by PriceFraction back into ether
// per token.
func HumanPrice(f Fraction, tokenDecimals uint8) *big.Rat {
	r := f.Rat()
	return r.Mul(r, pow10Rat(int(tokenDecimals)-int(domain.EtherDecimals)))
}

func chainPrice(price decimal.Decimal, tokenDecimals uint8) (*big.Rat, error) {
	if price.Sign() <= 0 {
		return nil, &domain.PrecisionError{Input: price.String(), Reason: "price must be positive"}
	}
	r := decimalRat(price)
	return r.Mul(r, pow10Rat(int(domain.EtherDecimals)-int(tokenDecimals))), nil
}

func fractionOf(r *big.Rat, input string) (Fraction, error) {
	f := Fraction{
		Num: new(big.Int).Set(r.Num()),
		Den: new(big.Int).Set(r.Denom()),
	}
	if err := checkWidth(f.Num, input); err != nil {
		return Fraction{}, err
	}
	if err := checkWidth(f.Den, input); err != nil {
		return Fraction{}, err
	}
	return f, nil
}

// decimalRat converts a decimal to an exact rational without going through
// its string form.
func decimalRat(d decimal.Decimal) *big.Rat {
	coef := d.Coefficient()
	exp := int(d.Exponent())
	if exp >= 0 {
		coef.Mul(coef, pow10(exp))
		return new(big.Rat).SetInt(coef)
	}
	return new(big.Rat).SetFrac(coef, pow10(-exp))
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func pow10Rat(n int) *big.Rat {
	if n >= 0 {
		return new(big.Rat).SetInt(pow10(n))
	}
	return new(big.Rat).SetFrac(big.NewInt(1), pow10(-n))
}

func checkWidth(v *big.Int, input string) error {
	if _, overflow := uint256.FromBig(v); overflow {
		return &domain.PrecisionError{Input: input, Reason: fmt.Sprintf("value needs %d bits, exceeds 256", v.BitLen())}
	}
	return nil
}

// Word encodes v as a 32-byte big-endian word.
func Word(v *big.Int) ([32]byte, error) {
	if v == nil {
		return [32]byte{}, &domain.PrecisionError{Input: "<nil>", Reason: "missing value"}
	}
	u, overflow := uint256.FromBig(v)
	if overflow || v.Sign() < 0 {
		return [32]byte{}, &domain.PrecisionError{Input: v.String(), Reason: "does not fit a 256-bit word"}
	}
	return u.Bytes32(), nil
}
