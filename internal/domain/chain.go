package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ChainID names one of the blockchains the exchange is deployed on.
type ChainID string

const (
	ChainETH ChainID = "ETH" // Ethereum mainnet
	ChainETC ChainID = "ETC" // Ethereum Classic
)

// KnownChains lists every chain the client can trade on.
var KnownChains = []ChainID{ChainETH, ChainETC}

// ParseChain normalises a user-supplied chain name. It returns
// ErrUnknownChain for anything outside KnownChains.
func ParseChain(s string) (ChainID, error) {
	c := ChainID(strings.ToUpper(strings.TrimSpace(s)))
	for _, k := range KnownChains {
		if c == k {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChain, s)
}

func (c ChainID) String() string { return string(c) }

// Protocol constants shared by both chains. These are fixed by the deployed
// exchange contracts and must not drift.
const (
	// EtherDecimals is the fixed-point precision of the native coin.
	EtherDecimals uint8 = 18

	// DefaultGasLimit is the gas budget attached to every exchange call.
	DefaultGasLimit uint64 = 400_000

	// LegacyTransferHookSelector is the 4-byte selector of
	// transfer(address,uint256,bytes).
	LegacyTransferHookSelector = "be45fd62"

	// StandardApproveSelector is the 4-byte selector of approve(address,uint256).
	StandardApproveSelector = "095ea7b3"
)

// EtherAddress is the sentinel token address the exchange uses for ether.
var EtherAddress = common.Address{}
