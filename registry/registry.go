// Package registry deploys auction instances and owns their configuration:
// price feed bindings, fee policy, relay policy and the logic version each
// instance runs. Every entry point is serialized, giving all instances a
// single global call order.
package registry

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/cloudx-io/escrowauction/core"
)

var ErrInvalidDuration = errors.New("duration must not be negative")

// Ledger is everything the registry and its instances need from the
// underlying ledger.
type Ledger interface {
	core.AssetLedger
	core.ItemRegistry
	core.Journal
}

type feedKey struct {
	auction common.Address
	asset   common.Address
}

type feedTable map[feedKey]core.PriceFeed

func (f feedTable) PriceFeed(auction, asset common.Address) (core.PriceFeed, bool) {
	feed, ok := f[feedKey{auction: auction, asset: asset}]
	return feed, ok
}

// Registry is the auction factory and configuration authority.
type Registry struct {
	mu sync.Mutex

	address  common.Address
	owner    common.Address
	upgrader common.Address
	nonce    uint64

	ledger  Ledger
	clock   core.Clock
	logger  *zap.Logger
	sink    core.EventSink
	initial string

	logics   map[string]core.Logic
	auctions map[common.Address]*core.Auction
	order    []common.Address
	feeds    feedTable
	relays   map[common.Address]core.RelayConfig
	events   []core.Event
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock used for deadlines.
func WithClock(clock core.Clock) Option {
	return func(r *Registry) { r.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithEventSink forwards every committed event to sink in addition to the
// registry's own log.
func WithEventSink(sink core.EventSink) Option {
	return func(r *Registry) { r.sink = sink }
}

// WithLogic adds logic to the catalogue at construction time.
func WithLogic(logic core.Logic) Option {
	return func(r *Registry) { r.logics[logic.Version()] = logic }
}

// New returns a registry deployed at address. V1 is always catalogued and is
// the version new instances start on.
func New(address, owner, upgrader common.Address, ledger Ledger, opts ...Option) *Registry {
	v1 := core.LogicV1{}
	r := &Registry{
		address:  address,
		owner:    owner,
		upgrader: upgrader,
		ledger:   ledger,
		clock:    core.SystemClock(),
		logger:   zap.NewNop(),
		initial:  v1.Version(),
		logics:   map[string]core.Logic{v1.Version(): v1},
		auctions: make(map[common.Address]*core.Auction),
		feeds:    make(feedTable),
		relays:   make(map[common.Address]core.RelayConfig),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type pendingKey struct{ r *Registry }

// pending buffers the events and counters of one top level call. Calls that
// re-enter from a ledger hook add to the buffer of the call they run under,
// so nothing is published unless the outermost call succeeds.
type pending struct {
	depth   int
	events  []core.Event
	metrics []func()
}

// enter takes the registry lock unless ctx already carries it, which is the
// case for calls re-entering from a ledger hook. Anything still buffered when
// the outermost call leaves was never committed and is dropped.
func (r *Registry) enter(ctx context.Context) (context.Context, func()) {
	if p, ok := ctx.Value(pendingKey{r}).(*pending); ok {
		p.depth++
		return ctx, func() { p.depth-- }
	}
	r.mu.Lock()
	p := &pending{}
	return context.WithValue(ctx, pendingKey{r}, p), func() {
		p.events, p.metrics = nil, nil
		r.mu.Unlock()
	}
}

// stage queues e for publication by commit.
func (r *Registry) stage(ctx context.Context, e core.Event) {
	if p, ok := ctx.Value(pendingKey{r}).(*pending); ok {
		p.events = append(p.events, e)
		return
	}
	r.emit(e)
}

// count runs a metric update now at the top level and defers it otherwise.
func (r *Registry) count(ctx context.Context, update func()) {
	if p, ok := ctx.Value(pendingKey{r}).(*pending); ok && p.depth > 0 {
		p.metrics = append(p.metrics, update)
		return
	}
	update()
}

// commit publishes everything staged under ctx once the outermost call has
// succeeded. Nested calls leave the buffer to their caller.
func (r *Registry) commit(ctx context.Context) {
	p, ok := ctx.Value(pendingKey{r}).(*pending)
	if !ok || p.depth > 0 {
		return
	}
	for _, update := range p.metrics {
		update()
	}
	for _, e := range p.events {
		r.emit(e)
	}
	p.events, p.metrics = nil, nil
}

// Address returns the registry's own address.
func (r *Registry) Address() common.Address { return r.address }

// Owner returns the configuration authority.
func (r *Registry) Owner() common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

// Upgrader returns the upgrade authority.
func (r *Registry) Upgrader() common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upgrader
}

// CreateAuction deploys a new instance for item and takes custody of it.
//
// Parameters:
//   - seller: caller; must hold item and have approved the registry
//   - duration: time until the deadline, zero yields an already expired auction
//   - startPrice: minimum first bid in base units of paymentAsset
//   - paymentAsset: token address, or core.NativeAsset
//
// Returns the instance address, which is also its escrow account.
func (r *Registry) CreateAuction(ctx context.Context, seller common.Address, item core.ItemRef, duration time.Duration, startPrice *big.Int, paymentAsset common.Address) (common.Address, error) {
	ctx, leave := r.enter(ctx)
	defer leave()

	if duration < 0 {
		return common.Address{}, ErrInvalidDuration
	}
	if startPrice == nil || startPrice.Sign() < 0 {
		return common.Address{}, errors.Wrap(core.ErrInsufficientBid, "start price must not be negative")
	}

	holder, err := r.ledger.OwnerOf(item)
	if err != nil {
		return common.Address{}, errors.Wrap(core.ErrItemTransferFailure, err.Error())
	}
	if holder != seller {
		return common.Address{}, errors.Wrapf(core.ErrItemTransferFailure, "%s is not held by %s", item.Key(), seller.Hex())
	}
	approved, err := r.ledger.IsApprovedOrOwner(item, r.address)
	if err != nil || !approved {
		return common.Address{}, errors.Wrapf(core.ErrItemTransferFailure, "registry not approved for %s", item.Key())
	}

	id := crypto.CreateAddress(r.address, r.nonce)
	snap := r.ledger.Snapshot()
	if err := r.ledger.TransferItem(ctx, r.address, seller, id, item); err != nil {
		r.ledger.RevertToSnapshot(snap)
		if errors.Is(err, core.ErrItemTransferFailure) {
			return common.Address{}, errors.Wrap(err, "take custody")
		}
		return common.Address{}, errors.Wrap(core.ErrItemTransferFailure, err.Error())
	}
	r.ledger.Commit(snap)
	r.nonce++

	deadline := r.clock.Now().Add(duration)
	rec := core.NewRecord(seller, item, paymentAsset, startPrice, deadline)
	logic := r.logics[r.initial]
	env := core.Env{
		Assets:  r.ledger,
		Items:   r.ledger,
		Journal: r.ledger,
		Feeds:   r.feeds,
		Clock:   r.clock,
	}
	r.auctions[id] = core.NewAuction(id, rec, logic, env)
	r.order = append(r.order, id)

	r.count(ctx, auctionsCreated.Inc)
	r.logger.Info("auction created",
		zap.Stringer("auction", id),
		zap.Stringer("seller", seller),
		zap.String("item", item.Key()),
		zap.Stringer("payment_asset", paymentAsset),
		zap.String("start_price", startPrice.String()),
		zap.Time("deadline", deadline),
	)
	r.stage(ctx, core.AuctionCreated{
		Auction:      id,
		Seller:       seller,
		Item:         rec.Item,
		PaymentAsset: paymentAsset,
		StartPrice:   new(big.Int).Set(startPrice),
		Deadline:     deadline,
		Logic:        logic.Version(),
	})
	r.commit(ctx)
	return id, nil
}

// Bid places a bid on auction id on behalf of call.Caller.
func (r *Registry) Bid(ctx context.Context, id common.Address, call core.Call, amount *big.Int) (*core.BidPlaced, error) {
	ctx, leave := r.enter(ctx)
	defer leave()

	a, err := r.lookup(id)
	if err != nil {
		r.count(ctx, func() { bidRejected(err) })
		return nil, err
	}
	placed, err := a.Bid(ctx, call, amount)
	if err != nil {
		r.count(ctx, func() { bidRejected(err) })
		r.logger.Debug("bid rejected",
			zap.Stringer("auction", id),
			zap.Stringer("bidder", call.Caller),
			zap.Error(err),
		)
		return nil, err
	}
	r.count(ctx, bidAccepted)
	r.logger.Info("bid placed",
		zap.Stringer("auction", id),
		zap.Stringer("bidder", placed.Bidder),
		zap.String("amount", placed.Amount.String()),
		zap.String("quote", core.FormatUnits(placed.Quote, placed.QuoteDecimals)),
	)
	r.stage(ctx, *placed)
	r.commit(ctx)
	return placed, nil
}

// EndAuction settles auction id. Anyone may call it once the deadline passed.
func (r *Registry) EndAuction(ctx context.Context, id common.Address, call core.Call) (*core.AuctionSettled, error) {
	ctx, leave := r.enter(ctx)
	defer leave()

	a, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	settled, err := a.EndAuction(ctx, call)
	if err != nil {
		r.count(ctx, func() { settlementFailed(err) })
		r.logger.Warn("settlement failed", zap.Stringer("auction", id), zap.Error(err))
		return nil, err
	}
	sold := settled.Winner != (common.Address{})
	r.count(ctx, func() { auctionSettled(sold) })
	r.logger.Info("auction settled",
		zap.Stringer("auction", id),
		zap.Bool("sold", sold),
		zap.Stringer("winner", settled.Winner),
		zap.String("amount", settled.Amount.String()),
		zap.String("fee", settled.Fee.String()),
	)
	r.stage(ctx, *settled)
	r.commit(ctx)
	return settled, nil
}

// Auction returns a snapshot of the record of id. Read accessors take the
// lock unconditionally and must not be called from a ledger hook.
func (r *Registry) Auction(id common.Address) (core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.lookup(id)
	if err != nil {
		return core.Record{}, err
	}
	return a.Snapshot(), nil
}

// Version reports the logic version governing id.
func (r *Registry) Version(id common.Address) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	return a.Version(), nil
}

// Auctions lists instance addresses in creation order.
func (r *Registry) Auctions() []common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]common.Address(nil), r.order...)
}

// Events returns every committed event in order.
func (r *Registry) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.events...)
}

// Emit appends an event raised outside the registry, such as a relay request.
func (r *Registry) Emit(e core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit(e)
}

func (r *Registry) emit(e core.Event) {
	r.events = append(r.events, e)
	if r.sink != nil {
		r.sink.Emit(e)
	}
}

func (r *Registry) lookup(id common.Address) (*core.Auction, error) {
	a, ok := r.auctions[id]
	if !ok {
		return nil, errors.Wrapf(core.ErrUnknownAuction, "%s", id.Hex())
	}
	return a, nil
}
