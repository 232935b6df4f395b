package core

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-faster/errors"
	"github.com/peterldowns/testy/check"
)

func TestComputeFee(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		bps      uint16
		expected string
	}{
		{"two percent of 3 USDC", 3_000_000, 200, "60000"},
		{"zero rate", 3_000_000, 0, "0"},
		{"full rate", 12345, 10000, "12345"},
		{"rounds down", 99, 100, "0"},
		{"rounds down above one", 150, 100, "1"},
		{"zero amount", 0, 500, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check.Equal(t, tt.expected, ComputeFee(big.NewInt(tt.amount), tt.bps).String())
		})
	}
}

func TestValidateFeeBps(t *testing.T) {
	check.NoError(t, ValidateFeeBps(0))
	check.NoError(t, ValidateFeeBps(10000))
	check.True(t, errors.Is(ValidateFeeBps(10001), ErrInvalidFeeRate))
}

func TestSplitProceeds(t *testing.T) {
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000fe")

	fee, proceeds := SplitProceeds(big.NewInt(3_000_000), FeeConfig{Recipient: recipient, Bps: 200})
	check.Equal(t, "60000", fee.String())
	check.Equal(t, "2940000", proceeds.String())

	// No recipient means no fee even with a rate set
	fee, proceeds = SplitProceeds(big.NewInt(3_000_000), FeeConfig{Bps: 200})
	check.Equal(t, "0", fee.String())
	check.Equal(t, "3000000", proceeds.String())
}
