package codec

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/dualdex/internal/domain"
	"github.com/alanyoungcy/dualdex/internal/fixedpoint"
)

// Payload is the extra data attached to a legacy transfer-hook transfer.
type Payload []byte

// Hex returns the 0x-prefixed encoding.
func (p Payload) Hex() string { return hexutil.Encode(p) }

// SellOrderPayloadLen is two 32-byte words plus an address.
const SellOrderPayloadLen = 32 + 32 + common.AddressLength

// SellOrderPayload lays out price numerator, price denominator and the token
// the seller wants in return. A zero buyToken means ether.
func SellOrderPayload(price fixedpoint.Fraction, buyToken common.Address) (Payload, error) {
	num, err := fixedpoint.Word(price.Num)
	if err != nil {
		return nil, err
	}
	den, err := fixedpoint.Word(price.Den)
	if err != nil {
		return nil, err
	}
	if buyToken == (common.Address{}) {
		buyToken = domain.EtherAddress
	}

	out := make(Payload, 0, SellOrderPayloadLen)
	out = append(out, num[:]...)
	out = append(out, den[:]...)
	out = append(out, buyToken.Bytes()...)
	return out, nil
}

// TradePayload is the order id as a single word. The transferred amount
// carries the trade size.
func TradePayload(orderID *big.Int) (Payload, error) {
	w, err := fixedpoint.Word(orderID)
	if err != nil {
		return nil, err
	}
	return Payload(w[:]), nil
}
