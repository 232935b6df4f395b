package main

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/escrowauction/auctionapi"
	"github.com/cloudx-io/escrowauction/core"
	"github.com/cloudx-io/escrowauction/oracle"
)

func (n *Node) auctionView(ctx context.Context, id common.Address) (auctionapi.AuctionView, error) {
	rec, err := n.registry.Auction(id)
	if err != nil {
		return auctionapi.AuctionView{}, err
	}
	relayCfg := n.registry.RelayConfig(ctx, id)
	view := auctionapi.AuctionView{
		Address:           id.Hex(),
		Seller:            rec.Seller.Hex(),
		Collection:        rec.Item.Collection.Hex(),
		TokenID:           rec.Item.TokenID.String(),
		PaymentAsset:      rec.PaymentAsset.Hex(),
		StartPrice:        rec.StartPrice.String(),
		Deadline:          rec.Deadline,
		HighestBid:        rec.HighestBid.String(),
		HighestBidDisplay: n.display(rec.PaymentAsset, rec.HighestBid),
		HighestBidder:     auctionapi.FormatAddress(rec.HighestBidder),
		Ended:             rec.Ended,
		State:             rec.State(n.clock.Now()).String(),
		FeeRecipient:      auctionapi.FormatAddress(rec.FeeRecipient),
		FeeBps:            rec.FeeBps,
		Logic:             rec.Logic,
		Relay: auctionapi.RelayView{
			AllowedSender: auctionapi.FormatAddress(relayCfg.AllowedSender),
			Enabled:       relayCfg.Enabled,
		},
	}
	// The quote is informational; a missing or stale feed leaves it empty.
	if feed, ok := n.feeds[feedKey{auction: id, asset: rec.PaymentAsset}]; ok && rec.HasBidder() {
		if decimals, err := n.ledger.Decimals(rec.PaymentAsset); err == nil {
			guarded := oracle.Guard(feed, n.maxAge, n.clock)
			if quote, quoteDecimals, err := oracle.Quote(ctx, guarded, rec.HighestBid, decimals); err == nil {
				view.HighestBidQuote = core.FormatUnits(quote, quoteDecimals)
			}
		}
	}
	return view, nil
}

func (n *Node) balanceView(asset, account common.Address) auctionapi.BalanceView {
	amount := n.ledger.BalanceOf(asset, account)
	return auctionapi.BalanceView{
		Asset:   asset.Hex(),
		Account: account.Hex(),
		Amount:  amount.String(),
		Display: n.display(asset, amount),
	}
}

func (n *Node) display(asset common.Address, amount *big.Int) string {
	decimals, err := n.ledger.Decimals(asset)
	if err != nil {
		return amount.String()
	}
	return core.FormatUnits(amount, decimals)
}

func bidView(placed *core.BidPlaced) auctionapi.BidView {
	return auctionapi.BidView{
		Auction:      placed.Auction.Hex(),
		Bidder:       placed.Bidder.Hex(),
		Amount:       placed.Amount.String(),
		Quote:        placed.Quote.String(),
		QuoteDisplay: core.FormatUnits(placed.Quote, placed.QuoteDecimals),
	}
}
