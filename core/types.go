package core

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAsset is the payment-asset sentinel for the ledger's native currency.
var NativeAsset = common.Address{}

// NativeDecimals is the decimal precision of the native currency.
const NativeDecimals uint8 = 18

// ItemRef identifies the auctioned non-fungible item.
type ItemRef struct {
	Collection common.Address `json:"collection"`
	TokenID    *big.Int       `json:"token_id"`
}

// Key returns a stable map key for the item.
func (i ItemRef) Key() string {
	id := "0"
	if i.TokenID != nil {
		id = i.TokenID.String()
	}
	return i.Collection.Hex() + "/" + id
}

// Record is the persistent state of one auction instance. Every logic
// version reads and writes this same schema.
type Record struct {
	Seller        common.Address `json:"seller"`
	Item          ItemRef        `json:"item"`
	PaymentAsset  common.Address `json:"payment_asset"`
	StartPrice    *big.Int       `json:"start_price"`
	Deadline      time.Time      `json:"deadline"`
	HighestBid    *big.Int       `json:"highest_bid"`
	HighestBidder common.Address `json:"highest_bidder"`
	Ended         bool           `json:"ended"`
	FeeRecipient  common.Address `json:"fee_recipient"`
	FeeBps        uint16         `json:"fee_bps"`
	Logic         string         `json:"logic"`
}

// NewRecord returns an open record with no bids.
func NewRecord(seller common.Address, item ItemRef, paymentAsset common.Address, startPrice *big.Int, deadline time.Time) *Record {
	return &Record{
		Seller:       seller,
		Item:         ItemRef{Collection: item.Collection, TokenID: cloneInt(item.TokenID)},
		PaymentAsset: paymentAsset,
		StartPrice:   cloneInt(startPrice),
		Deadline:     deadline,
		HighestBid:   new(big.Int),
	}
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	c.Item.TokenID = cloneInt(r.Item.TokenID)
	c.StartPrice = cloneInt(r.StartPrice)
	c.HighestBid = cloneInt(r.HighestBid)
	return &c
}

// IsNative reports whether bids are paid in the native currency.
func (r *Record) IsNative() bool {
	return r.PaymentAsset == NativeAsset
}

// HasBidder reports whether at least one bid was accepted.
func (r *Record) HasBidder() bool {
	return r.HighestBidder != (common.Address{})
}

// State is the lifecycle stage of a record at a given time.
type State int

const (
	StateOpen State = iota
	StateExpired
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateExpired:
		return "expired"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// State returns the lifecycle stage of the record at now.
func (r *Record) State(now time.Time) State {
	switch {
	case r.Ended:
		return StateSettled
	case now.Before(r.Deadline):
		return StateOpen
	default:
		return StateExpired
	}
}

// Call carries the identity and attached native value of an incoming call.
type Call struct {
	Caller common.Address
	Value  *big.Int
}

// FeeConfig is the per-auction fee policy. The zero value means no fee.
type FeeConfig struct {
	Recipient common.Address `json:"recipient"`
	Bps       uint16         `json:"bps"`
}

// RelayConfig is the per-auction cross-chain relay policy. Disabled by default.
type RelayConfig struct {
	AllowedSender common.Address `json:"allowed_sender"`
	Enabled       bool           `json:"enabled"`
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
