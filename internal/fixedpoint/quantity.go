// Package fixedpoint converts between human decimal quantities and the
// integer fixed-point values the exchange contracts expect. All arithmetic
// is exact: decimals come from shopspring/decimal and fractions from
// math/big.Rat. Scaling to chain precision always truncates toward zero.
package fixedpoint

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

const (
	// MaxDigits bounds the significant digits accepted from callers.
	MaxDigits = 96
	// MaxExponent bounds the decimal exponent accepted from callers.
	MaxExponent = 96
)

// Quantity is a caller-supplied amount or price. The set of variants is
// closed: Literal, Text and Scaled.
type Quantity interface {
	quantity()
}

// Literal is a numeric literal. It is converted through its shortest
// round-trip decimal form, so 0.1 means exactly one tenth.
type Literal float64

// Text is a decimal string such as "1.5", "0.003" or "2.5e-3".
type Text string

// Scaled is an integer already multiplied by 10^Decimals.
type Scaled struct {
	Int      *big.Int
	Decimals uint8
}

func (Literal) quantity() {}
func (Text) quantity()    {}
func (Scaled) quantity()  {}

// Parse resolves a Quantity to an exact decimal. Negative values are
// rejected because nothing on the exchange can be traded in negative size.
func Parse(q Quantity) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := q.(type) {
	case Literal:
		d, err = parseLiteral(float64(v))
	case Text:
		d, err = parseText(string(v))
	case Scaled:
		if v.Int == nil {
			return decimal.Decimal{}, &domain.PrecisionError{Input: "<nil>", Reason: "missing scaled integer"}
		}
		d = decimal.NewFromBigInt(v.Int, -int32(v.Decimals))
	case nil:
		return decimal.Decimal{}, &domain.PrecisionError{Input: "<nil>", Reason: "missing quantity"}
	default:
		return decimal.Decimal{}, &domain.PrecisionError{Input: "?", Reason: "unsupported quantity variant"}
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.IsNegative() {
		return decimal.Decimal{}, &domain.PrecisionError{Input: d.String(), Reason: "negative quantity"}
	}
	return d, nil
}

// MustParse is Parse for constants in tests and examples.
func MustParse(q Quantity) decimal.Decimal {
	d, err := Parse(q)
	if err != nil {
		panic(err)
	}
	return d
}

func parseLiteral(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, &domain.PrecisionError{
			Input:  strconv.FormatFloat(f, 'g', -1, 64),
			Reason: "not a finite number",
		}
	}
	return parseText(strconv.FormatFloat(f, 'f', -1, 64))
}

func parseText(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, &domain.PrecisionError{Input: s, Reason: "empty string"}
	}
	if !validDecimalSyntax(s) {
		return decimal.Decimal{}, &domain.PrecisionError{Input: s, Reason: "not a decimal number"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, &domain.PrecisionError{Input: s, Reason: err.Error()}
	}
	if d.NumDigits() > MaxDigits {
		return decimal.Decimal{}, &domain.PrecisionError{Input: s, Reason: "too many significant digits"}
	}
	if exp := d.Exponent(); exp > MaxExponent || exp < -MaxExponent {
		return decimal.Decimal{}, &domain.PrecisionError{Input: s, Reason: "exponent out of range"}
	}
	return d, nil
}

// validDecimalSyntax accepts [+-]digits[.digits][e[+-]digits]. The decimal
// library is more lenient than the exchange needs.
func validDecimalSyntax(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	intDigits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		intDigits++
	}
	fracDigits := 0
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			fracDigits++
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		expDigits := 0
		for i < len(s) && isDigit(s[i]) {
			i++
			expDigits++
		}
		if expDigits == 0 {
			return false
		}
	}
	return i == len(s)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
