package core

import (
	"math/big"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestQuoteAmount(t *testing.T) {
	e18, _ := new(big.Int).SetString("1000000000000000000", 10)
	fiveDai := new(big.Int).Mul(big.NewInt(5), e18)

	tests := []struct {
		name          string
		amount        *big.Int
		answer        *big.Int
		assetDecimals uint8
		expected      string
	}{
		{"five DAI at one dollar", fiveDai, big.NewInt(100_000_000), 18, "500000000"},
		{"three USDC at one dollar", big.NewInt(3_000_000), big.NewInt(100_000_000), 6, "300000000"},
		{"0.02 ETH at 2000 dollars", big.NewInt(20_000_000_000_000_000), big.NewInt(200_000_000_000), 18, "4000000000"},
		{"rounds down", big.NewInt(1), big.NewInt(1), 6, "0"},
		{"nil amount", nil, big.NewInt(1), 6, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check.Equal(t, tt.expected, QuoteAmount(tt.amount, tt.answer, tt.assetDecimals).String())
		})
	}
}

func TestFormatAndParseUnits(t *testing.T) {
	check.Equal(t, "0.02", FormatUnits(big.NewInt(20_000_000_000_000_000), 18))
	check.Equal(t, "3", FormatUnits(big.NewInt(3_000_000), 6))
	check.Equal(t, "0", FormatUnits(nil, 6))

	v, err := ParseUnits("0.03", 18)
	assert.NoError(t, err)
	check.Equal(t, "30000000000000000", v.String())

	v, err = ParseUnits("1.234500", 6)
	assert.NoError(t, err)
	check.Equal(t, "1234500", v.String())

	_, err = ParseUnits("1.2345678", 6)
	check.Error(t, err)

	_, err = ParseUnits("abc", 6)
	check.Error(t, err)
}
