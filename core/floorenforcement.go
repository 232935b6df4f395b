package core

import (
	"math/big"

	"github.com/go-faster/errors"
)

// MinimumBid returns the smallest amount the next bid may carry and whether
// that amount is inclusive. Before the first bid the start price is the floor
// and may be matched; afterwards the standing bid must be strictly exceeded.
func MinimumBid(rec *Record) (floor *big.Int, inclusive bool) {
	if rec.HighestBid == nil || rec.HighestBid.Sign() == 0 {
		return cloneInt(rec.StartPrice), true
	}
	return cloneInt(rec.HighestBid), false
}

// BidMeetsFloor reports whether amount is acceptable against the record's
// current floor. Zero amounts never qualify.
func BidMeetsFloor(rec *Record, amount *big.Int) bool {
	if amount == nil || amount.Sign() <= 0 {
		return false
	}
	floor, inclusive := MinimumBid(rec)
	cmp := amount.Cmp(floor)
	if inclusive {
		return cmp >= 0
	}
	return cmp > 0
}

// EnforceBidFloor returns ErrInsufficientBid describing the floor that was missed.
func EnforceBidFloor(rec *Record, amount *big.Int) error {
	if BidMeetsFloor(rec, amount) {
		return nil
	}
	floor, inclusive := MinimumBid(rec)
	if inclusive {
		return errors.Wrapf(ErrInsufficientBid, "bid %s below start price %s", amountString(amount), floor)
	}
	return errors.Wrapf(ErrInsufficientBid, "bid %s does not exceed highest bid %s", amountString(amount), floor)
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
