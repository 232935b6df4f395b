// Package relay accepts bids originating on another chain. A source-side
// sender submits an ABI encoded request, a transport carries it, and an
// executor replays it as an ordinary bid on the destination auction.
package relay

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudx-io/escrowauction/core"
)

// Auctions is the registry surface the relay needs.
type Auctions interface {
	RelayConfig(ctx context.Context, id common.Address) core.RelayConfig
	Bid(ctx context.Context, id common.Address, call core.Call, amount *big.Int) (*core.BidPlaced, error)
	Emit(core.Event)
}

// RelayRequested is emitted when a bid request is handed to the transport.
type RelayRequested struct {
	RequestID  common.Hash    `json:"request_id"`
	EnvelopeID string         `json:"envelope_id"`
	Auction    common.Address `json:"auction"`
	Sender     common.Address `json:"sender"`
	IsNative   bool           `json:"is_native"`
	Amount     *big.Int       `json:"amount"`
}

func (RelayRequested) EventName() string { return "RelayRequested" }

// Relay implements the send and execute halves of cross-chain bidding.
type Relay struct {
	auctions  Auctions
	transport Transport
	clock     core.Clock
	logger    *zap.Logger

	mu    sync.Mutex
	nonce uint64
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

// WithClock sets the clock used to stamp envelopes.
func WithClock(clock core.Clock) Option {
	return func(r *Relay) { r.clock = clock }
}

// New returns a relay bidding through auctions and sending over transport.
func New(auctions Auctions, transport Transport, opts ...Option) *Relay {
	r := &Relay{
		auctions:  auctions,
		transport: transport,
		clock:     core.SystemClock(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SendRequest records a cross-chain bid request and hands it to the transport.
//
// Returns false with no error when the payload cannot be decoded or the
// target auction has relaying disabled. Returns ErrUnauthorized when
// relaying is enabled but caller is not the allowed sender.
func (r *Relay) SendRequest(ctx context.Context, caller common.Address, payload []byte) (bool, error) {
	req, err := DecodeBidRequest(payload)
	if err != nil {
		requestCount("invalid")
		r.logger.Debug("relay request ignored", zap.Error(err))
		return false, nil
	}
	cfg := r.auctions.RelayConfig(ctx, req.Auction)
	if !cfg.Enabled {
		requestCount("disabled")
		return false, nil
	}
	if caller != cfg.AllowedSender {
		requestCount("unauthorized")
		return false, errors.Wrapf(core.ErrUnauthorized, "%s is not the relay sender for %s", caller.Hex(), req.Auction.Hex())
	}

	r.mu.Lock()
	nonce := r.nonce
	r.nonce++
	r.mu.Unlock()

	requestID := core.ComputeRelayRequestID(payload, caller, nonce)
	env := Envelope{
		ID:        uuid.NewString(),
		RequestID: requestID.Bytes(),
		Sender:    caller.Bytes(),
		Payload:   append([]byte(nil), payload...),
		SentAt:    r.clock.Now().Unix(),
	}
	if err := r.transport.Send(ctx, env); err != nil {
		requestCount("transport_error")
		return false, errors.Wrap(err, "send relay envelope")
	}

	requestCount("sent")
	r.logger.Info("relay request sent",
		zap.Stringer("request_id", requestID),
		zap.String("envelope_id", env.ID),
		zap.Stringer("auction", req.Auction),
		zap.Bool("native", req.IsNative),
		zap.String("amount", req.Amount.String()),
	)
	r.auctions.Emit(RelayRequested{
		RequestID:  requestID,
		EnvelopeID: env.ID,
		Auction:    req.Auction,
		Sender:     caller,
		IsNative:   req.IsNative,
		Amount:     req.Amount,
	})
	return true, nil
}

// Execute replays a delivered request as a bid by executor. Native requests
// bid attachedValue; token requests pull Amount from executor's allowance.
// The bid is validated against the auction's state at execution time.
func (r *Relay) Execute(ctx context.Context, executor common.Address, payload []byte, attachedValue *big.Int) (*core.BidPlaced, error) {
	req, err := DecodeBidRequest(payload)
	if err != nil {
		executeCount("invalid")
		return nil, err
	}
	call := core.Call{Caller: executor, Value: attachedValue}
	amount := req.Amount
	if req.IsNative {
		amount = attachedValue
	}
	placed, err := r.auctions.Bid(ctx, req.Auction, call, amount)
	if err != nil {
		executeCount("rejected")
		r.logger.Info("relayed bid rejected",
			zap.Stringer("auction", req.Auction),
			zap.Stringer("executor", executor),
			zap.Error(err),
		)
		return nil, err
	}
	executeCount("accepted")
	return placed, nil
}

// ExecuteEnvelope executes a transported envelope, attaching the requested
// amount as value for native requests.
func (r *Relay) ExecuteEnvelope(ctx context.Context, executor common.Address, env Envelope) (*core.BidPlaced, error) {
	req, err := DecodeBidRequest(env.Payload)
	if err != nil {
		executeCount("invalid")
		return nil, err
	}
	var value *big.Int
	if req.IsNative {
		value = req.Amount
	}
	return r.Execute(ctx, executor, env.Payload, value)
}
