package core

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Event is a notification recorded after an operation commits.
type Event interface {
	EventName() string
}

// AuctionCreated is emitted when the registry deploys a new instance.
type AuctionCreated struct {
	Auction      common.Address `json:"auction"`
	Seller       common.Address `json:"seller"`
	Item         ItemRef        `json:"item"`
	PaymentAsset common.Address `json:"payment_asset"`
	StartPrice   *big.Int       `json:"start_price"`
	Deadline     time.Time      `json:"deadline"`
	Logic        string         `json:"logic"`
}

func (AuctionCreated) EventName() string { return "AuctionCreated" }

// BidPlaced is emitted for every accepted bid. Quote is the bid's value in
// the feed's quote currency, scaled by QuoteDecimals.
type BidPlaced struct {
	Auction       common.Address `json:"auction"`
	Bidder        common.Address `json:"bidder"`
	Amount        *big.Int       `json:"amount"`
	Quote         *big.Int       `json:"quote"`
	QuoteDecimals uint8          `json:"quote_decimals"`
}

func (BidPlaced) EventName() string { return "BidPlaced" }

// AuctionSettled is emitted once per instance when it is finalized. Winner
// is the zero address when the item went back to the seller.
type AuctionSettled struct {
	Auction        common.Address `json:"auction"`
	Seller         common.Address `json:"seller"`
	Winner         common.Address `json:"winner"`
	Amount         *big.Int       `json:"amount"`
	Fee            *big.Int       `json:"fee"`
	FeeRecipient   common.Address `json:"fee_recipient"`
	SellerProceeds *big.Int       `json:"seller_proceeds"`
}

func (AuctionSettled) EventName() string { return "AuctionSettled" }

// LogicUpgraded is emitted when an instance is repointed to another version.
type LogicUpgraded struct {
	Auction common.Address `json:"auction"`
	From    string         `json:"from"`
	To      string         `json:"to"`
}

func (LogicUpgraded) EventName() string { return "LogicUpgraded" }

// ConfigChanged is emitted for every configuration write on an instance.
type ConfigChanged struct {
	Auction common.Address `json:"auction"`
	Setting string         `json:"setting"`
	Value   string         `json:"value"`
}

func (ConfigChanged) EventName() string { return "ConfigChanged" }
