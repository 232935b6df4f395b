package core

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-faster/errors"
)

// Env bundles the collaborators an instance's logic operates against.
type Env struct {
	Address common.Address
	Assets  AssetLedger
	Items   ItemRegistry
	Journal Journal
	Feeds   FeedLookup
	Clock   Clock
}

// Logic is one version of the auction behavior. Versions are stateless and
// operate on the Record they are handed, so an instance can be repointed to
// another version without migrating state.
type Logic interface {
	Version() string
	Bid(ctx context.Context, env *Env, rec *Record, call Call, amount *big.Int) (*BidPlaced, error)
	EndAuction(ctx context.Context, env *Env, rec *Record, call Call) (*AuctionSettled, error)
}

// LogicV1 is the initial auction behavior.
type LogicV1 struct{}

func (LogicV1) Version() string { return "V1" }

// Bid places a bid on the open auction.
//
// Native auctions take the attached value as the bid; amount may be zero or
// must equal it. Token auctions pull amount from the caller using the
// allowance granted to the instance and reject any attached value.
//
// Processing flow:
//  1. Check the deadline, settlement and feed binding
//  2. Resolve the bid amount and enforce the floor
//  3. Read the feed and compute the quote
//  4. Escrow the new bid, record it, then refund the previous bidder
func (LogicV1) Bid(ctx context.Context, env *Env, rec *Record, call Call, amount *big.Int) (*BidPlaced, error) {
	now := env.Clock.Now()
	if !now.Before(rec.Deadline) {
		return nil, errors.Wrapf(ErrAuctionExpired, "deadline %s", rec.Deadline.UTC().Format("2006-01-02T15:04:05Z"))
	}
	if rec.Ended {
		return nil, ErrAlreadySettled
	}

	feed, ok := env.Feeds.PriceFeed(env.Address, rec.PaymentAsset)
	if !ok || feed == nil {
		return nil, errors.Wrapf(ErrOracleMissing, "asset %s", rec.PaymentAsset.Hex())
	}

	bid, err := resolveBidAmount(rec, call, amount)
	if err != nil {
		return nil, err
	}
	if err := EnforceBidFloor(rec, bid); err != nil {
		return nil, err
	}

	round, err := feed.LatestRoundData(ctx)
	if err != nil {
		if errors.Is(err, ErrOracleStale) || errors.Is(err, ErrOracleUnavailable) {
			return nil, err
		}
		return nil, classify(ErrOracleUnavailable, "read price feed", err)
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return nil, errors.Wrap(ErrOracleStale, "non-positive answer")
	}
	assetDecimals, err := env.Assets.Decimals(rec.PaymentAsset)
	if err != nil {
		return nil, classify(ErrAssetTransferFailure, "asset decimals", err)
	}
	quote := QuoteAmount(bid, round.Answer, assetDecimals)

	if rec.IsNative() {
		err = env.Assets.Transfer(ctx, NativeAsset, call.Caller, env.Address, bid)
	} else {
		err = env.Assets.TransferFrom(ctx, rec.PaymentAsset, env.Address, call.Caller, env.Address, bid)
	}
	if err != nil {
		return nil, classify(ErrAssetTransferFailure, "escrow bid", err)
	}

	prevBidder, prevBid := rec.HighestBidder, rec.HighestBid
	rec.HighestBidder = call.Caller
	rec.HighestBid = new(big.Int).Set(bid)

	if prevBidder != (common.Address{}) && prevBid != nil && prevBid.Sign() > 0 {
		if err := env.Assets.Transfer(ctx, rec.PaymentAsset, env.Address, prevBidder, prevBid); err != nil {
			return nil, classify(ErrAssetTransferFailure, "refund previous bidder", err)
		}
	}

	return &BidPlaced{
		Auction:       env.Address,
		Bidder:        call.Caller,
		Amount:        new(big.Int).Set(bid),
		Quote:         quote,
		QuoteDecimals: round.Decimals,
	}, nil
}

// EndAuction settles an expired auction. Anyone may call it, once.
func (LogicV1) EndAuction(ctx context.Context, env *Env, rec *Record, call Call) (*AuctionSettled, error) {
	if rec.Ended {
		return nil, ErrAlreadySettled
	}
	if env.Clock.Now().Before(rec.Deadline) {
		return nil, errors.Wrapf(ErrNotExpired, "deadline %s", rec.Deadline.UTC().Format("2006-01-02T15:04:05Z"))
	}
	if call.Value != nil && call.Value.Sign() != 0 {
		return nil, errors.Wrap(ErrInvalidValue, "end auction takes no value")
	}

	// Marked first so a transfer hook re-entering sees a settled instance.
	rec.Ended = true

	settled := &AuctionSettled{
		Auction:        env.Address,
		Seller:         rec.Seller,
		Amount:         new(big.Int),
		Fee:            new(big.Int),
		SellerProceeds: new(big.Int),
	}

	if !rec.HasBidder() {
		if err := env.Items.TransferItem(ctx, env.Address, env.Address, rec.Seller, rec.Item); err != nil {
			return nil, classify(ErrItemTransferFailure, "return item to seller", err)
		}
		return settled, nil
	}

	winner := rec.HighestBidder
	if err := env.Items.TransferItem(ctx, env.Address, env.Address, winner, rec.Item); err != nil {
		return nil, classify(ErrItemTransferFailure, "deliver item to winner", err)
	}

	fee, proceeds := SplitProceeds(rec.HighestBid, FeeConfig{Recipient: rec.FeeRecipient, Bps: rec.FeeBps})
	if fee.Sign() > 0 {
		if err := env.Assets.Transfer(ctx, rec.PaymentAsset, env.Address, rec.FeeRecipient, fee); err != nil {
			return nil, classify(ErrAssetTransferFailure, "pay fee", err)
		}
		settled.FeeRecipient = rec.FeeRecipient
	}
	if proceeds.Sign() > 0 {
		if err := env.Assets.Transfer(ctx, rec.PaymentAsset, env.Address, rec.Seller, proceeds); err != nil {
			return nil, classify(ErrAssetTransferFailure, "pay seller", err)
		}
	}

	settled.Winner = winner
	settled.Amount = new(big.Int).Set(rec.HighestBid)
	settled.Fee = fee
	settled.SellerProceeds = proceeds
	return settled, nil
}

// LogicV2 keeps V1 behavior and reports a new version string.
type LogicV2 struct {
	LogicV1
}

func (LogicV2) Version() string { return "V2" }

func resolveBidAmount(rec *Record, call Call, amount *big.Int) (*big.Int, error) {
	value := cloneInt(call.Value)
	if rec.IsNative() {
		if amount != nil && amount.Sign() != 0 && amount.Cmp(value) != 0 {
			return nil, errors.Wrapf(ErrInvalidValue, "amount %s does not match attached value %s", amount, value)
		}
		return value, nil
	}
	if value.Sign() != 0 {
		return nil, errors.Wrapf(ErrInvalidValue, "token auction received %s native", value)
	}
	return cloneInt(amount), nil
}
