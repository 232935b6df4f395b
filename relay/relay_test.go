package relay

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
	"github.com/cloudx-io/escrowauction/registry"
)

var (
	registryAddr = common.HexToAddress("0x00000000000000000000000000000000000f0c70")
	owner        = common.HexToAddress("0x000000000000000000000000000000000000000a")
	seller       = common.HexToAddress("0x0000000000000000000000000000000000005e11")
	sender       = common.HexToAddress("0x0000000000000000000000000000000000005e9d")
	executor     = common.HexToAddress("0x00000000000000000000000000000000000e8ec0")
	stranger     = common.HexToAddress("0x0000000000000000000000000000000000000bad")
	start        = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	ctx       context.Context
	ledger    *ledger.Ledger
	registry  *registry.Registry
	transport *Loopback
	relay     *Relay
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := core.NewOffsetClock(core.FixedClock(start))
	f := &fixture{
		ctx:       context.Background(),
		ledger:    ledger.New(common.HexToAddress("0x00000000000000000000000000000000000000d0")),
		transport: NewLoopback(8),
	}
	f.registry = registry.New(registryAddr, owner, owner, f.ledger, registry.WithClock(clock))
	f.relay = New(f.registry, f.transport, WithClock(clock))
	return f
}

func (f *fixture) list(t *testing.T, asset common.Address, startPrice *big.Int) common.Address {
	t.Helper()
	col := f.ledger.DeployCollection("Test NFT", "TNFT")
	item, err := f.ledger.MintItem(col, seller)
	assert.NoError(t, err)
	assert.NoError(t, f.ledger.ApproveItem(seller, item, registryAddr))
	id, err := f.registry.CreateAuction(f.ctx, seller, item, time.Hour, startPrice, asset)
	assert.NoError(t, err)
	feed := oracle.NewStaticFeed(big.NewInt(100_000_000), 8, nil)
	assert.NoError(t, f.registry.SetPriceFeed(f.ctx, owner, id, asset, feed))
	return id
}

func eth(milli int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(milli), big.NewInt(1_000_000_000_000_000))
}

func TestBidRequestCodec(t *testing.T) {
	auction := common.HexToAddress("0x1111111111111111111111111111111111111111")
	payload, err := EncodeBidRequest(BidRequest{Auction: auction, IsNative: true, Amount: eth(20)})
	assert.NoError(t, err)
	check.Equal(t, 96, len(payload)) // three static words

	// address is left padded into the first word, bool is the last byte of the second
	check.Equal(t, auction.Bytes(), payload[12:32])
	check.Equal(t, byte(1), payload[63])

	req, err := DecodeBidRequest(payload)
	assert.NoError(t, err)
	check.Equal(t, auction, req.Auction)
	check.True(t, req.IsNative)
	check.Equal(t, eth(20).String(), req.Amount.String())

	_, err = DecodeBidRequest(nil)
	check.True(t, errors.Is(err, core.ErrInvalidPayload))
	_, err = DecodeBidRequest(payload[:40])
	check.True(t, errors.Is(err, core.ErrInvalidPayload))
	_, err = EncodeBidRequest(BidRequest{Amount: big.NewInt(-1)})
	check.True(t, errors.Is(err, core.ErrInvalidPayload))
}

func TestSendRequest_NoOps(t *testing.T) {
	f := newFixture(t)
	id := f.list(t, core.NativeAsset, eth(10))
	payload, err := EncodeBidRequest(BidRequest{Auction: id, IsNative: true, Amount: eth(20)})
	assert.NoError(t, err)

	// Empty payload
	ok, err := f.relay.SendRequest(f.ctx, sender, []byte{})
	check.NoError(t, err)
	check.False(t, ok)

	// Relay disabled by default
	ok, err = f.relay.SendRequest(f.ctx, sender, payload)
	check.NoError(t, err)
	check.False(t, ok)

	// Explicitly disabled
	assert.NoError(t, f.registry.SetRelayConfig(f.ctx, owner, id, sender, false))
	ok, err = f.relay.SendRequest(f.ctx, sender, payload)
	check.NoError(t, err)
	check.False(t, ok)

	check.Equal(t, 0, f.transport.Pending())
}

func TestSendRequest_Unauthorized(t *testing.T) {
	f := newFixture(t)
	id := f.list(t, core.NativeAsset, eth(10))
	assert.NoError(t, f.registry.SetRelayConfig(f.ctx, owner, id, sender, true))
	payload, err := EncodeBidRequest(BidRequest{Auction: id, IsNative: true, Amount: eth(20)})
	assert.NoError(t, err)

	ok, err := f.relay.SendRequest(f.ctx, stranger, payload)
	check.False(t, ok)
	check.True(t, errors.Is(err, core.ErrUnauthorized))
	check.Equal(t, 0, f.transport.Pending())
}

func TestSendAndExecute_Native(t *testing.T) {
	f := newFixture(t)
	id := f.list(t, core.NativeAsset, eth(10))
	assert.NoError(t, f.registry.SetRelayConfig(f.ctx, owner, id, sender, true))
	assert.NoError(t, f.ledger.Mint(core.NativeAsset, executor, eth(100)))

	payload, err := EncodeBidRequest(BidRequest{Auction: id, IsNative: true, Amount: eth(20)})
	assert.NoError(t, err)
	ok, err := f.relay.SendRequest(f.ctx, sender, payload)
	assert.NoError(t, err)
	check.True(t, ok)
	check.Equal(t, 1, f.transport.Pending())

	events := f.registry.Events()
	last, isRelay := events[len(events)-1].(RelayRequested)
	check.True(t, isRelay)
	check.Equal(t, id, last.Auction)
	check.Equal(t, sender, last.Sender)

	delivered, err := f.transport.Deliver(f.ctx, func(ctx context.Context, env Envelope) error {
		check.Equal(t, sender.Bytes(), env.Sender)
		check.Equal(t, last.RequestID.Bytes(), env.RequestID)
		_, err := f.relay.ExecuteEnvelope(ctx, executor, env)
		return err
	})
	assert.NoError(t, err)
	check.Equal(t, 1, delivered)

	rec, err := f.registry.Auction(id)
	assert.NoError(t, err)
	check.Equal(t, executor, rec.HighestBidder)
	check.Equal(t, eth(20).String(), rec.HighestBid.String())
	check.Equal(t, eth(80).String(), f.ledger.BalanceOf(core.NativeAsset, executor).String())
}

func TestExecute_Token(t *testing.T) {
	f := newFixture(t)
	usdc := f.ledger.DeployToken("USD Coin", "USDC", 6)
	id := f.list(t, usdc, big.NewInt(1_000_000))
	assert.NoError(t, f.ledger.Mint(usdc, executor, big.NewInt(5_000_000)))
	payload, err := EncodeBidRequest(BidRequest{Auction: id, Amount: big.NewInt(2_000_000)})
	assert.NoError(t, err)

	// Executor has not approved the instance yet
	_, err = f.relay.Execute(f.ctx, executor, payload, nil)
	check.True(t, errors.Is(err, core.ErrAssetTransferFailure))

	// Value on a token request
	assert.NoError(t, f.ledger.Approve(usdc, executor, id, big.NewInt(2_000_000)))
	_, err = f.relay.Execute(f.ctx, executor, payload, big.NewInt(1))
	check.True(t, errors.Is(err, core.ErrInvalidValue))

	placed, err := f.relay.Execute(f.ctx, executor, payload, nil)
	assert.NoError(t, err)
	check.Equal(t, "2000000", placed.Amount.String())
	check.Equal(t, "3000000", f.ledger.BalanceOf(usdc, executor).String())
	check.Equal(t, "2000000", f.ledger.BalanceOf(usdc, id).String())
}

func TestExecute_OvertakenRequestFails(t *testing.T) {
	f := newFixture(t)
	id := f.list(t, core.NativeAsset, eth(10))
	assert.NoError(t, f.ledger.Mint(core.NativeAsset, executor, eth(100)))
	assert.NoError(t, f.ledger.Mint(core.NativeAsset, stranger, eth(100)))

	payload, err := EncodeBidRequest(BidRequest{Auction: id, IsNative: true, Amount: eth(20)})
	assert.NoError(t, err)

	// A direct bid lands before the relayed one
	_, err = f.registry.Bid(f.ctx, id, core.Call{Caller: stranger, Value: eth(30)}, nil)
	assert.NoError(t, err)

	_, err = f.relay.Execute(f.ctx, executor, payload, eth(20))
	check.True(t, errors.Is(err, core.ErrInsufficientBid))
	check.Equal(t, eth(100).String(), f.ledger.BalanceOf(core.NativeAsset, executor).String())
}

func TestLoopback_Full(t *testing.T) {
	lb := NewLoopback(1)
	ctx := context.Background()
	assert.NoError(t, lb.Send(ctx, Envelope{ID: "a"}))
	check.True(t, errors.Is(lb.Send(ctx, Envelope{ID: "b"}), ErrTransportFull))

	delivered, err := lb.Deliver(ctx, func(context.Context, Envelope) error { return errors.New("executor down") })
	check.Error(t, err)
	check.Equal(t, 0, delivered)
	check.Equal(t, 0, lb.Pending())
}
