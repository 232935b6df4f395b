package core

import (
	"math/big"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// QuoteAmount converts amount (in asset base units) into the feed's quote
// currency: amount * answer / 10^assetDecimals, rounded down. The result
// carries the feed's decimals.
func QuoteAmount(amount, answer *big.Int, assetDecimals uint8) *big.Int {
	if amount == nil || answer == nil {
		return new(big.Int)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(assetDecimals)), nil)
	quote := new(big.Int).Mul(amount, answer)
	return quote.Quo(quote, scale)
}

// FormatUnits renders a base-unit amount as a decimal string.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// ParseUnits converts a decimal string such as "0.02" into base units of an
// asset with the given precision. Digits past that precision are an error.
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, err
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, errors.Errorf("%s has more than %d decimals", value, decimals)
	}
	return shifted.BigInt(), nil
}
