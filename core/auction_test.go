package core_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-faster/errors"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/escrowauction/core"
	"github.com/cloudx-io/escrowauction/ledger"
	"github.com/cloudx-io/escrowauction/oracle"
)

var (
	deployer     = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	seller       = common.HexToAddress("0x0000000000000000000000000000000000005e11")
	bidder1      = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bidder2      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	feeRecipient = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	auctionAddr  = common.HexToAddress("0x000000000000000000000000000000000000a0c7")
	start        = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type feedTable map[common.Address]core.PriceFeed

func (f feedTable) PriceFeed(_, asset common.Address) (core.PriceFeed, bool) {
	feed, ok := f[asset]
	return feed, ok
}

type harness struct {
	ctx     context.Context
	ledger  *ledger.Ledger
	clock   *core.OffsetClock
	feeds   feedTable
	asset   common.Address
	item    core.ItemRef
	auction *core.Auction
}

// newNativeHarness deploys a native-currency auction for an item already in
// escrow, with a $2000 feed bound.
func newNativeHarness(t *testing.T, startPrice *big.Int) *harness {
	t.Helper()
	h := newLedgerHarness()
	h.deploy(t, core.NativeAsset, startPrice)
	h.bindFeed(200_000_000_000, 8)
	return h
}

// newTokenHarness deploys a token auction for an item already in escrow,
// with a $1 feed bound.
func newTokenHarness(t *testing.T, decimals uint8, startPrice *big.Int) *harness {
	t.Helper()
	h := newLedgerHarness()
	token := h.ledger.DeployToken("Test Token", "TT", decimals)
	h.deploy(t, token, startPrice)
	h.bindFeed(100_000_000, 8)
	return h
}

func newLedgerHarness() *harness {
	return &harness{
		ctx:    context.Background(),
		ledger: ledger.New(deployer),
		clock:  core.NewOffsetClock(core.FixedClock(start)),
		feeds:  feedTable{},
	}
}

func (h *harness) deploy(t *testing.T, asset common.Address, startPrice *big.Int) {
	t.Helper()
	col := h.ledger.DeployCollection("Test NFT", "TNFT")
	item, err := h.ledger.MintItem(col, seller)
	assert.NoError(t, err)
	assert.NoError(t, h.ledger.TransferItem(h.ctx, seller, seller, auctionAddr, item))
	h.item = item
	h.asset = asset

	env := core.Env{Assets: h.ledger, Items: h.ledger, Journal: h.ledger, Feeds: h.feeds, Clock: h.clock}
	rec := core.NewRecord(seller, item, asset, startPrice, start.Add(time.Hour))
	h.auction = core.NewAuction(auctionAddr, rec, core.LogicV1{}, env)
}

func (h *harness) bindFeed(answer int64, decimals uint8) *oracle.StaticFeed {
	feed := oracle.NewStaticFeed(big.NewInt(answer), decimals, h.clock)
	h.feeds[h.asset] = feed
	return feed
}

func (h *harness) fund(t *testing.T, account common.Address, amount *big.Int) {
	t.Helper()
	assert.NoError(t, h.ledger.Mint(h.asset, account, amount))
}

func (h *harness) balance(account common.Address) string {
	return h.ledger.BalanceOf(h.asset, account).String()
}

func (h *harness) owner(t *testing.T) common.Address {
	t.Helper()
	owner, err := h.ledger.OwnerOf(h.item)
	assert.NoError(t, err)
	return owner
}

func eth(milli int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(milli), big.NewInt(1_000_000_000_000_000))
}

func tokens(whole int64, decimals uint8) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Int).Mul(big.NewInt(whole), scale)
}

func TestAuction_NativeOutbidAndSettle(t *testing.T) {
	h := newNativeHarness(t, eth(10))
	h.fund(t, bidder1, eth(1000))
	h.fund(t, bidder2, eth(1000))

	placed, err := h.auction.Bid(h.ctx, core.Call{Caller: bidder1, Value: eth(20)}, nil)
	assert.NoError(t, err)
	check.Equal(t, bidder1, placed.Bidder)
	check.Equal(t, "4000000000", placed.Quote.String()) // 0.02 ETH at $2000, 8 decimals
	check.Equal(t, uint8(8), placed.QuoteDecimals)

	_, err = h.auction.Bid(h.ctx, core.Call{Caller: bidder2, Value: eth(30)}, big.NewInt(0))
	assert.NoError(t, err)

	// bidder1 got the 0.02 back, escrow holds exactly the standing bid
	check.Equal(t, eth(1000).String(), h.balance(bidder1))
	check.Equal(t, eth(30).String(), h.balance(auctionAddr))

	snap := h.auction.Snapshot()
	check.Equal(t, bidder2, snap.HighestBidder)
	check.Equal(t, eth(30).String(), snap.HighestBid.String())

	_, err = h.auction.EndAuction(h.ctx, core.Call{Caller: bidder1})
	check.True(t, errors.Is(err, core.ErrNotExpired))

	h.clock.Advance(time.Hour)
	settled, err := h.auction.EndAuction(h.ctx, core.Call{Caller: bidder1})
	assert.NoError(t, err)
	check.Equal(t, bidder2, settled.Winner)
	check.Equal(t, eth(30).String(), settled.SellerProceeds.String())
	check.Equal(t, "0", settled.Fee.String())

	check.Equal(t, bidder2, h.owner(t))
	check.Equal(t, eth(30).String(), h.balance(seller))
	check.Equal(t, "0", h.balance(auctionAddr))
	check.True(t, h.auction.Snapshot().Ended)

	_, err = h.auction.EndAuction(h.ctx, core.Call{Caller: bidder2})
	check.True(t, errors.Is(err, core.ErrAlreadySettled))
}

func TestAuction_TokenWithFee(t *testing.T) {
	h := newTokenHarness(t, 6, big.NewInt(1_000_000))
	assert.NoError(t, h.auction.SetFeeConfig(core.FeeConfig{Recipient: feeRecipient, Bps: 200}))
	h.fund(t, bidder1, big.NewInt(10_000_000))
	assert.NoError(t, h.ledger.Approve(h.asset, bidder1, auctionAddr, big.NewInt(3_000_000)))

	placed, err := h.auction.Bid(h.ctx, core.Call{Caller: bidder1}, big.NewInt(3_000_000))
	assert.NoError(t, err)
	check.Equal(t, "300000000", placed.Quote.String())

	h.clock.Advance(2 * time.Hour)
	settled, err := h.auction.EndAuction(h.ctx, core.Call{Caller: seller})
	assert.NoError(t, err)
	check.Equal(t, "60000", settled.Fee.String())
	check.Equal(t, "2940000", settled.SellerProceeds.String())
	check.Equal(t, feeRecipient, settled.FeeRecipient)

	check.Equal(t, "60000", h.balance(feeRecipient))
	check.Equal(t, "2940000", h.balance(seller))
	check.Equal(t, "0", h.balance(auctionAddr))
	check.Equal(t, "7000000", h.balance(bidder1))
	check.Equal(t, bidder1, h.owner(t))
	check.True(t, core.CheckSettlementArithmetic(settled, 200))
}

func TestAuction_TokenQuoteAndExactRefund(t *testing.T) {
	h := newTokenHarness(t, 18, tokens(1, 18))
	h.fund(t, bidder1, tokens(100, 18))
	h.fund(t, bidder2, tokens(100, 18))
	assert.NoError(t, h.ledger.Approve(h.asset, bidder1, auctionAddr, tokens(5, 18)))
	assert.NoError(t, h.ledger.Approve(h.asset, bidder2, auctionAddr, tokens(6, 18)))

	placed, err := h.auction.Bid(h.ctx, core.Call{Caller: bidder1}, tokens(5, 18))
	assert.NoError(t, err)
	check.Equal(t, "500000000", placed.Quote.String()) // $5 at 8 decimals
	check.Equal(t, tokens(95, 18).String(), h.balance(bidder1))

	_, err = h.auction.Bid(h.ctx, core.Call{Caller: bidder2}, tokens(6, 18))
	assert.NoError(t, err)
	check.Equal(t, tokens(100, 18).String(), h.balance(bidder1))
	check.Equal(t, tokens(6, 18).String(), h.balance(auctionAddr))
}

func TestAuction_TokenBidRejections(t *testing.T) {
	h := newTokenHarness(t, 6, big.NewInt(1_000_000))
	h.fund(t, bidder1, big.NewInt(10_000_000))

	// No allowance
	_, err := h.auction.Bid(h.ctx, core.Call{Caller: bidder1}, big.NewInt(1_000_000))
	check.True(t, errors.Is(err, core.ErrAssetTransferFailure))
	snap := h.auction.Snapshot()
	check.False(t, snap.HasBidder())

	assert.NoError(t, h.ledger.Approve(h.asset, bidder1, auctionAddr, big.NewInt(2_000_000)))
	_, err = h.auction.Bid(h.ctx, core.Call{Caller: bidder1}, big.NewInt(1_000_000))
	assert.NoError(t, err)

	// Same amount again does not exceed the highest bid
	_, err = h.auction.Bid(h.ctx, core.Call{Caller: bidder1}, big.NewInt(1_000_000))
	check.True(t, errors.Is(err, core.ErrInsufficientBid))

	// Native value on a token auction
	_, err = h.auction.Bid(h.ctx, core.Call{Caller: bidder1, Value: big.NewInt(1)}, big.NewInt(1_500_000))
	check.True(t, errors.Is(err, core.ErrInvalidValue))

	h.clock.Advance(time.Hour)
	_, err = h.auction.Bid(h.ctx, core.Call{Caller: bidder1}, big.NewInt(1_500_000))
	check.True(t, errors.Is(err, core.ErrAuctionExpired))

	check.Equal(t, "9000000", h.balance(bidder1))
	check.Equal(t, "1000000", h.balance(auctionAddr))
}

func TestAuction_NativeValueRules(t *testing.T) {
	h := newNativeHarness(t, eth(10))
	h.fund(t, bidder1, eth(100))

	tests := []struct {
		name    string
		value   *big.Int
		amount  *big.Int
		wantErr error
	}{
		{"amount disagrees with value", eth(20), eth(25), core.ErrInvalidValue},
		{"no value attached", nil, eth(20), core.ErrInvalidValue},
		{"below start price", eth(5), nil, core.ErrInsufficientBid},
		{"zero bid", big.NewInt(0), nil, core.ErrInsufficientBid},
		{"more than balance", eth(200), nil, core.ErrAssetTransferFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.auction.Bid(h.ctx, core.Call{Caller: bidder1, Value: tt.value}, tt.amount)
			check.True(t, errors.Is(err, tt.wantErr))
			check.Equal(t, eth(100).String(), h.balance(bidder1))
		})
	}

	// amount equal to value is accepted
	_, err := h.auction.Bid(h.ctx, core.Call{Caller: bidder1, Value: eth(20)}, eth(20))
	check.NoError(t, err)
}

func TestAuction_OracleFailuresAbortBid(t *testing.T) {
	h := newNativeHarness(t, eth(10))
	h.fund(t, bidder1, eth(100))

	feed := h.feeds[core.NativeAsset].(*oracle.StaticFeed)
	feed.SetError(errors.New("aggregator offline"))
	_, err := h.auction.Bid(h.ctx, core.Call{Caller: bidder1, Value: eth(20)}, nil)
	check.True(t, errors.Is(err, core.ErrOracleUnavailable))

	// Stale rounds through the guard
	feed.SetError(nil)
	h.feeds[core.NativeAsset] = oracle.Guard(feed, time.Minute, h.clock)
	h.clock.Advance(10 * time.Minute)
	_, err = h.auction.Bid(h.ctx, core.Call{Caller: bidder1, Value: eth(20)}, nil)
	check.True(t, errors.Is(err, core.ErrOracleStale))

	delete(h.feeds, core.NativeAsset)
	_, err = h.auction.Bid(h.ctx, core.Call{Caller: bidder1, Value: eth(20)}, nil)
	check.True(t, errors.Is(err, core.ErrOracleMissing))

	check.Equal(t, eth(100).String(), h.balance(bidder1))
	snap := h.auction.Snapshot()
	check.False(t, snap.HasBidder())
}

func TestAuction_RefundFailureRevertsBid(t *testing.T) {
	h := newNativeHarness(t, eth(10))
	h.fund(t, bidder1, eth(100))
	h.fund(t, bidder2, eth(100))

	_, err := h.auction.Bid(h.ctx, core.Call{Caller: bidder1, Value: eth(20)}, nil)
	assert.NoError(t, err)

	h.ledger.SetReceiveHook(bidder1, func(context.Context, common.Address, common.Address, *big.Int) error {
		return errors.New("refusing refunds")
	})
	_, err = h.auction.Bid(h.ctx, core.Call{Caller: bidder2, Value: eth(30)}, nil)
	check.True(t, errors.Is(err, core.ErrAssetTransferFailure))

	// Nothing moved
	snap := h.auction.Snapshot()
	check.Equal(t, bidder1, snap.HighestBidder)
	check.Equal(t, eth(20).String(), snap.HighestBid.String())
	check.Equal(t, eth(100).String(), h.balance(bidder2))
	check.Equal(t, eth(80).String(), h.balance(bidder1))
	check.Equal(t, eth(20).String(), h.balance(auctionAddr))
}

func TestAuction_ReentrantBidFromRefund(t *testing.T) {
	h := newNativeHarness(t, eth(10))
	h.fund(t, bidder1, eth(100))
	h.fund(t, bidder2, eth(100))

	_, err := h.auction.Bid(h.ctx, core.Call{Caller: bidder1, Value: eth(20)}, nil)
	assert.NoError(t, err)

	var reentered bool
	var innerErr error
	h.ledger.SetReceiveHook(bidder1, func(ctx context.Context, _, _ common.Address, _ *big.Int) error {
		if reentered {
			return nil
		}
		reentered = true
		// The outer bid is already recorded, so this must beat 0.03
		_, innerErr = h.auction.Bid(ctx, core.Call{Caller: bidder1, Value: eth(50)}, nil)
		return nil
	})

	_, err = h.auction.Bid(h.ctx, core.Call{Caller: bidder2, Value: eth(30)}, nil)
	assert.NoError(t, err)
	assert.NoError(t, innerErr)

	snap := h.auction.Snapshot()
	check.Equal(t, bidder1, snap.HighestBidder)
	check.Equal(t, eth(50).String(), snap.HighestBid.String())
	check.Equal(t, eth(50).String(), h.balance(auctionAddr))
	check.Equal(t, eth(100).String(), h.balance(bidder2))
	check.Equal(t, eth(50).String(), h.balance(bidder1))
}

func TestAuction_ReentrantSettleIsRejected(t *testing.T) {
	h := newNativeHarness(t, eth(10))
	h.fund(t, bidder1, eth(100))
	_, err := h.auction.Bid(h.ctx, core.Call{Caller: bidder1, Value: eth(20)}, nil)
	assert.NoError(t, err)

	var innerErr error
	h.ledger.SetReceiveHook(seller, func(ctx context.Context, _, _ common.Address, _ *big.Int) error {
		_, innerErr = h.auction.EndAuction(ctx, core.Call{Caller: seller})
		return nil
	})

	h.clock.Advance(time.Hour)
	_, err = h.auction.EndAuction(h.ctx, core.Call{Caller: bidder2})
	assert.NoError(t, err)
	check.True(t, errors.Is(innerErr, core.ErrAlreadySettled))
	check.Equal(t, eth(20).String(), h.balance(seller))
}

func TestAuction_SettleWithoutBids(t *testing.T) {
	h := newNativeHarness(t, eth(10))
	h.clock.Advance(time.Hour)

	settled, err := h.auction.EndAuction(h.ctx, core.Call{Caller: bidder1})
	assert.NoError(t, err)
	check.Equal(t, common.Address{}, settled.Winner)
	check.Equal(t, seller, h.owner(t))
	check.True(t, core.CheckSettlementArithmetic(settled, 0))
}

func TestAuction_SettlementFailureLeavesOpen(t *testing.T) {
	h := newNativeHarness(t, eth(10))
	h.fund(t, bidder1, eth(100))
	_, err := h.auction.Bid(h.ctx, core.Call{Caller: bidder1, Value: eth(20)}, nil)
	assert.NoError(t, err)

	// Item leaves escrow behind the auction's back
	assert.NoError(t, h.ledger.TransferItem(h.ctx, auctionAddr, auctionAddr, bidder2, h.item))

	h.clock.Advance(time.Hour)
	_, err = h.auction.EndAuction(h.ctx, core.Call{Caller: seller})
	check.True(t, errors.Is(err, core.ErrItemTransferFailure))
	check.False(t, h.auction.Snapshot().Ended)
	check.Equal(t, eth(20).String(), h.balance(auctionAddr))
}

func TestAuction_UpgradePreservesRecord(t *testing.T) {
	h := newNativeHarness(t, eth(10))
	h.fund(t, bidder1, eth(100))
	h.fund(t, bidder2, eth(100))
	_, err := h.auction.Bid(h.ctx, core.Call{Caller: bidder1, Value: eth(20)}, nil)
	assert.NoError(t, err)

	before := h.auction.Snapshot()
	check.Equal(t, "V1", h.auction.Version())

	from := h.auction.Upgrade(core.LogicV2{})
	check.Equal(t, "V1", from)
	check.Equal(t, "V2", h.auction.Version())

	after := h.auction.Snapshot()
	check.Equal(t, before.HighestBidder, after.HighestBidder)
	check.Equal(t, before.HighestBid.String(), after.HighestBid.String())
	check.Equal(t, before.Deadline, after.Deadline)
	check.Equal(t, "V2", after.Logic)

	_, err = h.auction.Bid(h.ctx, core.Call{Caller: bidder2, Value: eth(30)}, nil)
	assert.NoError(t, err)
	check.Equal(t, eth(100).String(), h.balance(bidder1))
}

func TestAuction_SetFeeConfigValidates(t *testing.T) {
	h := newNativeHarness(t, eth(10))
	err := h.auction.SetFeeConfig(core.FeeConfig{Recipient: feeRecipient, Bps: 10001})
	check.True(t, errors.Is(err, core.ErrInvalidFeeRate))
	check.Equal(t, core.FeeConfig{}, h.auction.FeeConfig())
}
