package core

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Auction is one deployed instance: an address, its record and the logic
// version currently bound to it. Calls are not synchronized; the owning
// registry serializes access.
type Auction struct {
	env    Env
	record *Record
	logic  Logic
}

// NewAuction binds rec to logic at the given instance address.
func NewAuction(address common.Address, rec *Record, logic Logic, env Env) *Auction {
	env.Address = address
	rec.Logic = logic.Version()
	return &Auction{env: env, record: rec, logic: logic}
}

// Address returns the instance address, which is also its escrow account.
func (a *Auction) Address() common.Address { return a.env.Address }

// Version reports the bound logic version.
func (a *Auction) Version() string { return a.logic.Version() }

// Snapshot returns a copy of the current record.
func (a *Auction) Snapshot() Record { return *a.record.Clone() }

// Bid forwards to the bound logic. Either every effect of the bid lands or
// none does.
func (a *Auction) Bid(ctx context.Context, call Call, amount *big.Int) (*BidPlaced, error) {
	var placed *BidPlaced
	err := a.atomically(func() error {
		var err error
		placed, err = a.logic.Bid(ctx, &a.env, a.record, call, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// EndAuction forwards to the bound logic. Either every transfer lands or none does.
func (a *Auction) EndAuction(ctx context.Context, call Call) (*AuctionSettled, error) {
	var settled *AuctionSettled
	err := a.atomically(func() error {
		var err error
		settled, err = a.logic.EndAuction(ctx, &a.env, a.record, call)
		return err
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

// Upgrade repoints the instance to logic. The record is left untouched.
func (a *Auction) Upgrade(logic Logic) (from string) {
	from = a.logic.Version()
	a.logic = logic
	a.record.Logic = logic.Version()
	return from
}

// SetFeeConfig stores the fee policy applied at settlement.
func (a *Auction) SetFeeConfig(cfg FeeConfig) error {
	if err := ValidateFeeBps(cfg.Bps); err != nil {
		return err
	}
	a.record.FeeRecipient = cfg.Recipient
	a.record.FeeBps = cfg.Bps
	return nil
}

// FeeConfig returns the stored fee policy.
func (a *Auction) FeeConfig() FeeConfig {
	return FeeConfig{Recipient: a.record.FeeRecipient, Bps: a.record.FeeBps}
}

func (a *Auction) atomically(fn func() error) error {
	snap := a.env.Journal.Snapshot()
	saved := a.record.Clone()
	if err := fn(); err != nil {
		a.env.Journal.RevertToSnapshot(snap)
		*a.record = *saved
		return err
	}
	a.env.Journal.Commit(snap)
	return nil
}
