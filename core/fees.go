package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-faster/errors"
)

// MaxFeeBps is the largest fee rate, 100%.
const MaxFeeBps uint16 = 10000

// ValidateFeeBps rejects rates above MaxFeeBps.
func ValidateFeeBps(bps uint16) error {
	if bps > MaxFeeBps {
		return errors.Wrapf(ErrInvalidFeeRate, "%d bps exceeds %d", bps, MaxFeeBps)
	}
	return nil
}

// ComputeFee returns floor(amount * bps / 10000).
func ComputeFee(amount *big.Int, bps uint16) *big.Int {
	if amount == nil || bps == 0 {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return fee.Quo(fee, big.NewInt(int64(MaxFeeBps)))
}

// SplitProceeds divides a winning bid between the fee recipient and the
// seller. No fee is taken when the recipient is unset.
func SplitProceeds(amount *big.Int, cfg FeeConfig) (fee, proceeds *big.Int) {
	fee = new(big.Int)
	if cfg.Recipient != (common.Address{}) {
		fee = ComputeFee(amount, cfg.Bps)
	}
	proceeds = new(big.Int).Sub(cloneInt(amount), fee)
	return fee, proceeds
}
