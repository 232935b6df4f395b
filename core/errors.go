package core

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrAuctionExpired       = errors.New("auction expired")
	ErrNotExpired           = errors.New("auction not expired")
	ErrAlreadySettled       = errors.New("auction already settled")
	ErrInsufficientBid      = errors.New("insufficient bid")
	ErrOracleMissing        = errors.New("price feed not configured")
	ErrOracleStale          = errors.New("price feed stale")
	ErrOracleUnavailable    = errors.New("price feed unavailable")
	ErrItemTransferFailure  = errors.New("item transfer failed")
	ErrAssetTransferFailure = errors.New("asset transfer failed")
	ErrInvalidFeeRate       = errors.New("invalid fee rate")
	ErrInvalidValue         = errors.New("invalid attached value")
	ErrUnknownAuction       = errors.New("unknown auction")
	ErrUnknownLogic         = errors.New("unknown logic version")
	ErrInvalidPayload       = errors.New("invalid relay payload")
)

// classify makes sure err matches kind while keeping the collaborator's cause.
func classify(kind error, op string, err error) error {
	if errors.Is(err, kind) {
		return errors.Wrap(err, op)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
