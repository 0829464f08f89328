package evm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

// Minimal ABIs: only the functions the client calls.
const (
	exchangeABIJSON = `[
	{"type":"function","name":"sellEther","stateMutability":"payable","inputs":[{"name":"token","type":"address"},{"name":"priceMul","type":"uint256"},{"name":"priceDiv","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"sellERC20Token","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"buytoken","type":"address"},{"name":"amount","type":"uint256"},{"name":"priceMul","type":"uint256"},{"name":"priceDiv","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"buyOrderWithERC20Token","stateMutability":"nonpayable","inputs":[{"name":"orderId","type":"uint256"},{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"buyOrderWithEth","stateMutability":"payable","inputs":[{"name":"orderId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"cancelOrder","stateMutability":"nonpayable","inputs":[{"name":"orderId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getBuyTokenAmount","stateMutability":"view","inputs":[{"name":"desiredSellTokenAmount","type":"uint256"},{"name":"orderId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`

	standardTokenABIJSON = `[
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

	legacyTokenABIJSON = `[
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}],"outputs":[{"name":"","type":"bool"}]}
]`
)

var (
	exchangeABI      = mustParseABI(exchangeABIJSON)
	standardTokenABI = mustParseABI(standardTokenABIJSON)
	legacyTokenABI   = mustParseABI(legacyTokenABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("evm: parse abi: %v", err))
	}
	return parsed
}

func abiFor(kind domain.ContractKind) (abi.ABI, error) {
	switch kind {
	case domain.ContractExchange:
		return exchangeABI, nil
	case domain.ContractStandardToken:
		return standardTokenABI, nil
	case domain.ContractLegacyToken:
		return legacyTokenABI, nil
	default:
		return abi.ABI{}, fmt.Errorf("evm: no abi for contract kind %d", kind)
	}
}

// Pack encodes call data for call.
func Pack(call domain.CallDescriptor) ([]byte, error) {
	parsed, err := abiFor(call.Kind)
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack(call.Function, call.Args...)
	if err != nil {
		return nil, fmt.Errorf("evm: pack %s.%s: %w", call.Kind, call.Function, err)
	}
	return data, nil
}
