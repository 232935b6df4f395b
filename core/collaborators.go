package core

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AssetLedger moves the payment asset. The native currency is addressed with
// NativeAsset; TransferFrom is only meaningful for fungible tokens.
// Rejected movements should return errors matching ErrAssetTransferFailure.
type AssetLedger interface {
	Decimals(asset common.Address) (uint8, error)
	BalanceOf(asset, account common.Address) *big.Int
	Allowance(asset, owner, spender common.Address) *big.Int
	Transfer(ctx context.Context, asset, from, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, asset, spender, from, to common.Address, amount *big.Int) error
}

// ItemRegistry owns the non-fungible items being auctioned.
// Rejected transfers should return errors matching ErrItemTransferFailure.
type ItemRegistry interface {
	OwnerOf(item ItemRef) (common.Address, error)
	IsApprovedOrOwner(item ItemRef, operator common.Address) (bool, error)
	TransferItem(ctx context.Context, operator, from, to common.Address, item ItemRef) error
}

// Journal makes a sequence of collaborator calls atomic. Every Snapshot is
// closed by exactly one RevertToSnapshot or Commit.
type Journal interface {
	Snapshot() int
	RevertToSnapshot(id int)
	Commit(id int)
}

// Round is one price observation from an external feed.
type Round struct {
	Answer    *big.Int
	Decimals  uint8
	UpdatedAt time.Time
}

// PriceFeed is an external price source for one payment asset.
type PriceFeed interface {
	LatestRoundData(ctx context.Context) (Round, error)
}

// FeedLookup resolves the price feed bound to (auction, payment asset).
type FeedLookup interface {
	PriceFeed(auction, asset common.Address) (PriceFeed, bool)
}

// EventSink receives notifications after an operation commits.
type EventSink interface {
	Emit(Event)
}
