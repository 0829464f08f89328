package fixedpoint

import (
	"errors"
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

func TestParse_Variants(t *testing.T) {
	tests := []struct {
		name string
		in   Quantity
		want string
	}{
		{"literal tenth", Literal(0.1), "0.1"},
		{"literal small", Literal(0.003), "0.003"},
		{"literal large", Literal(1e21), "1000000000000000000000"},
		{"text plain", Text("1.5"), "1.5"},
		{"text padded", Text("  42 "), "42"},
		{"text exponent", Text("2.5e-3"), "0.0025"},
		{"text many places", Text("0.123456789012345678901234567890"), "0.12345678901234567890123456789"},
		{"scaled", Scaled{Int: big.NewInt(1500), Decimals: 3}, "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   Quantity
	}{
		{"empty", Text("")},
		{"garbage", Text("abc")},
		{"hex", Text("0x10")},
		{"double dot", Text("1.2.3")},
		{"dangling exponent", Text("1e")},
		{"huge exponent", Text("1e200")},
		{"too many digits", Text("1" + strings.Repeat("0", 96) + "1")},
		{"negative", Text("-1")},
		{"nan", Literal(math.NaN())},
		{"inf", Literal(math.Inf(1))},
		{"nil scaled", Scaled{}},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrPrecision), "want ErrPrecision, got %v", err)
			var pe *domain.PrecisionError
			assert.True(t, errors.As(err, &pe))
		})
	}
}
