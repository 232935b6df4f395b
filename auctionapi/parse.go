package auctionapi

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-faster/errors"

	"github.com/cloudx-io/escrowauction/core"
)

var ErrInvalidField = errors.New("invalid field")

// ParseAddress parses a 0x-prefixed hex address. Empty input yields the zero
// address, which doubles as the native asset.
func ParseAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Wrapf(ErrInvalidField, "%s: %q is not an address", field, s)
	}
	return common.HexToAddress(s), nil
}

// RequireAddress is ParseAddress that rejects empty input.
func RequireAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, errors.Wrapf(ErrInvalidField, "%s is required", field)
	}
	return ParseAddress(field, s)
}

// ParseAmount parses a non-negative base-10 integer. Empty input is zero.
func ParseAmount(field, s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, errors.Wrapf(ErrInvalidField, "%s: %q is not a non-negative integer", field, s)
	}
	return v, nil
}

// ParseAssetAmount parses an amount of an asset with the given precision.
// Plain integers are base units as in ParseAmount. Values with a decimal
// point, such as "0.02", are whole units and are scaled by decimals; digits
// past the asset's precision are rejected.
func ParseAssetAmount(field, s string, decimals uint8) (*big.Int, error) {
	if !strings.Contains(s, ".") {
		return ParseAmount(field, s)
	}
	v, err := core.ParseUnits(s, decimals)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidField, "%s: %v", field, err)
	}
	if v.Sign() < 0 {
		return nil, errors.Wrapf(ErrInvalidField, "%s: %q is negative", field, s)
	}
	return v, nil
}

// ParseHex decodes 0x-prefixed or bare hex. "0x" alone is an empty payload.
func ParseHex(field, s string) ([]byte, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidField, "%s: %v", field, err)
	}
	return data, nil
}

// FormatAddress renders a, or "" for the zero address.
func FormatAddress(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return a.Hex()
}

// ErrorCode maps an engine error onto a stable response code.
func ErrorCode(err error) string {
	codes := []struct {
		target error
		code   string
	}{
		{core.ErrUnauthorized, "unauthorized"},
		{core.ErrAuctionExpired, "auction_expired"},
		{core.ErrNotExpired, "not_expired"},
		{core.ErrAlreadySettled, "already_settled"},
		{core.ErrInsufficientBid, "insufficient_bid"},
		{core.ErrOracleMissing, "oracle_missing"},
		{core.ErrOracleStale, "oracle_stale"},
		{core.ErrOracleUnavailable, "oracle_unavailable"},
		{core.ErrItemTransferFailure, "item_transfer_failure"},
		{core.ErrAssetTransferFailure, "asset_transfer_failure"},
		{core.ErrInvalidFeeRate, "invalid_fee_rate"},
		{core.ErrInvalidValue, "invalid_value"},
		{core.ErrUnknownAuction, "unknown_auction"},
		{core.ErrUnknownLogic, "unknown_logic"},
		{core.ErrInvalidPayload, "invalid_payload"},
		{ErrInvalidField, "invalid_field"},
	}
	for _, c := range codes {
		if errors.Is(err, c.target) {
			return c.code
		}
	}
	return "internal"
}
