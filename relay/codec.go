package relay

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-faster/errors"

	"github.com/cloudx-io/escrowauction/core"
)

// BidRequest is the cross-chain bid message. It is ABI encoded as
// (address auctionProxy, bool isEth, uint256 amount).
type BidRequest struct {
	Auction  common.Address `abi:"auctionProxy"`
	IsNative bool           `abi:"isEth"`
	Amount   *big.Int       `abi:"amount"`
}

var requestArgs = mustRequestArgs()

func mustRequestArgs() abi.Arguments {
	address, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	boolean, err := abi.NewType("bool", "", nil)
	if err != nil {
		panic(err)
	}
	uint256, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Name: "auctionProxy", Type: address},
		{Name: "isEth", Type: boolean},
		{Name: "amount", Type: uint256},
	}
}

// EncodeBidRequest returns the ABI encoding of req.
func EncodeBidRequest(req BidRequest) ([]byte, error) {
	amount := req.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	if amount.Sign() < 0 {
		return nil, errors.Wrap(core.ErrInvalidPayload, "negative amount")
	}
	payload, err := requestArgs.Pack(req.Auction, req.IsNative, amount)
	if err != nil {
		return nil, errors.Wrap(core.ErrInvalidPayload, err.Error())
	}
	return payload, nil
}

// DecodeBidRequest parses an ABI encoded bid request.
func DecodeBidRequest(payload []byte) (BidRequest, error) {
	values, err := requestArgs.Unpack(payload)
	if err != nil {
		return BidRequest{}, errors.Wrap(core.ErrInvalidPayload, err.Error())
	}
	var req BidRequest
	if err := requestArgs.Copy(&req, values); err != nil {
		return BidRequest{}, errors.Wrap(core.ErrInvalidPayload, err.Error())
	}
	return req, nil
}
