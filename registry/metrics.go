package registry

import (
	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cloudx-io/escrowauction/core"
)

var auctionsCreated = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "escrowauction_auctions_created_total",
		Help: "Auction instances deployed by the registry.",
	},
)

var bidsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "escrowauction_bids_total",
		Help: "Bids by result.",
	},
	[]string{"result"},
)

var settlementsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "escrowauction_settlements_total",
		Help: "Settlement attempts by outcome.",
	},
	[]string{"outcome"},
)

var upgradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "escrowauction_logic_upgrades_total",
		Help: "Logic upgrades by target version.",
	},
	[]string{"version"},
)

func bidAccepted() {
	bidsTotal.With(map[string]string{"result": "accepted"}).Inc()
}

func bidRejected(err error) {
	bidsTotal.With(map[string]string{"result": rejectReason(err)}).Inc()
}

func auctionSettled(sold bool) {
	outcome := "unsold"
	if sold {
		outcome = "sold"
	}
	settlementsTotal.With(map[string]string{"outcome": outcome}).Inc()
}

func settlementFailed(err error) {
	settlementsTotal.With(map[string]string{"outcome": rejectReason(err)}).Inc()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, core.ErrAuctionExpired):
		return "expired"
	case errors.Is(err, core.ErrNotExpired):
		return "not_expired"
	case errors.Is(err, core.ErrAlreadySettled):
		return "settled"
	case errors.Is(err, core.ErrInsufficientBid):
		return "insufficient"
	case errors.Is(err, core.ErrOracleMissing), errors.Is(err, core.ErrOracleStale), errors.Is(err, core.ErrOracleUnavailable):
		return "oracle"
	case errors.Is(err, core.ErrAssetTransferFailure):
		return "asset_transfer"
	case errors.Is(err, core.ErrItemTransferFailure):
		return "item_transfer"
	case errors.Is(err, core.ErrInvalidValue):
		return "invalid_value"
	case errors.Is(err, core.ErrUnknownAuction):
		return "unknown_auction"
	default:
		return "error"
	}
}
