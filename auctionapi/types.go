// Package auctionapi defines the JSON wire format spoken by the auction node
// and the signed settlement receipts it issues.
//
// Addresses are 0x-prefixed hex. Amounts are base-10 integers in base units
// of the relevant asset, never decimals.
package auctionapi

import (
	"encoding/json"
	"time"
)

// Request types understood by the node.
const (
	TypePing              = "ping"
	TypeDeploy            = "deploy"
	TypePublicKey         = "public_key"
	TypeDeployToken       = "deploy_token"
	TypeDeployCollection  = "deploy_collection"
	TypeMint              = "mint"
	TypeApprove           = "approve"
	TypeMintItem          = "mint_item"
	TypeApproveItem       = "approve_item"
	TypeBalance           = "balance"
	TypeCreateAuction     = "create_auction"
	TypeSetPriceFeed      = "set_price_feed"
	TypeSetFeeConfig      = "set_fee_config"
	TypeSetRelayConfig    = "set_relay_config"
	TypeRegisterLogic     = "register_logic"
	TypeUpgradeLogic      = "upgrade_logic"
	TypeTransferOwnership = "transfer_ownership"
	TypeBid               = "bid"
	TypeEndAuction        = "end_auction"
	TypeGetAuction        = "get_auction"
	TypeEvents            = "events"
	TypeRelaySend         = "relay_send"
	TypeRelayExecute      = "relay_execute"
	TypeRelayDeliver      = "relay_deliver"
	TypeIncreaseTime      = "increase_time"
)

// BaseRequest carries the fields shared by every request.
type BaseRequest struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
}

// LedgerRequest drives the local ledger: deploying tokens and collections,
// minting, approvals and balance queries.
type LedgerRequest struct {
	BaseRequest
	Asset      string `json:"asset,omitempty"`
	Collection string `json:"collection,omitempty"`
	TokenID    string `json:"token_id,omitempty"`
	Owner      string `json:"owner,omitempty"`
	To         string `json:"to,omitempty"`
	Spender    string `json:"spender,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Name       string `json:"name,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
	Decimals   *uint8 `json:"decimals,omitempty"`
	Approved   *bool  `json:"approved,omitempty"`
}

// CreateAuctionRequest lists an item the seller holds and has approved to
// the registry.
type CreateAuctionRequest struct {
	BaseRequest
	Seller          string `json:"seller"`
	Collection      string `json:"collection"`
	TokenID         string `json:"token_id"`
	DurationSeconds int64  `json:"duration_seconds"`
	StartPrice      string `json:"start_price"`
	PaymentAsset    string `json:"payment_asset,omitempty"`
}

// ConfigRequest covers the registry's authority-gated operations.
type ConfigRequest struct {
	BaseRequest
	Caller    string `json:"caller"`
	Auction   string `json:"auction,omitempty"`
	Asset     string `json:"asset,omitempty"`
	Answer    string `json:"answer,omitempty"`
	Decimals  *uint8 `json:"decimals,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Bps       uint16 `json:"bps,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Enabled   bool   `json:"enabled,omitempty"`
	Logic     string `json:"logic,omitempty"`
	NewOwner  string `json:"new_owner,omitempty"`
}

// BidRequest places a bid. Value is the attached native amount.
type BidRequest struct {
	BaseRequest
	Caller  string `json:"caller"`
	Auction string `json:"auction"`
	Amount  string `json:"amount,omitempty"`
	Value   string `json:"value,omitempty"`
}

// EndAuctionRequest settles an expired auction.
type EndAuctionRequest struct {
	BaseRequest
	Caller  string `json:"caller"`
	Auction string `json:"auction"`
}

// QueryRequest reads an auction or the event log.
type QueryRequest struct {
	BaseRequest
	Auction string `json:"auction,omitempty"`
}

// RelayRequest submits, executes or delivers cross-chain bid requests.
// Payload is hex; when empty it is built from Auction, IsNative and Amount.
type RelayRequest struct {
	BaseRequest
	Caller   string `json:"caller,omitempty"`
	Executor string `json:"executor,omitempty"`
	Auction  string `json:"auction,omitempty"`
	IsNative bool   `json:"is_native,omitempty"`
	Amount   string `json:"amount,omitempty"`
	Payload  string `json:"payload,omitempty"`
	Value    string `json:"value,omitempty"`
}

// TimeRequest moves the node clock forward.
type TimeRequest struct {
	BaseRequest
	Seconds int64 `json:"seconds"`
}

// Response is returned for every request.
type Response struct {
	Type           string          `json:"type"`
	RequestID      string          `json:"request_id"`
	Success        bool            `json:"success"`
	Message        string          `json:"message,omitempty"`
	Code           string          `json:"code,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	ProcessingTime int64           `json:"processing_time_ms"`
}

// AuctionView is the JSON form of an auction record.
type AuctionView struct {
	Address           string    `json:"address"`
	Seller            string    `json:"seller"`
	Collection        string    `json:"collection"`
	TokenID           string    `json:"token_id"`
	PaymentAsset      string    `json:"payment_asset"`
	StartPrice        string    `json:"start_price"`
	Deadline          time.Time `json:"deadline"`
	HighestBid        string    `json:"highest_bid"`
	HighestBidDisplay string    `json:"highest_bid_display"`
	HighestBidQuote   string    `json:"highest_bid_quote,omitempty"`
	HighestBidder     string    `json:"highest_bidder,omitempty"`
	Ended             bool      `json:"ended"`
	State             string    `json:"state"`
	FeeRecipient      string    `json:"fee_recipient,omitempty"`
	FeeBps            uint16    `json:"fee_bps"`
	Logic             string    `json:"logic"`
	Relay             RelayView `json:"relay"`
}

// RelayView is the relay policy of an auction.
type RelayView struct {
	AllowedSender string `json:"allowed_sender,omitempty"`
	Enabled       bool   `json:"enabled"`
}

// BidView describes an accepted bid.
type BidView struct {
	Auction      string `json:"auction"`
	Bidder       string `json:"bidder"`
	Amount       string `json:"amount"`
	Quote        string `json:"quote"`
	QuoteDisplay string `json:"quote_display"`
}

// SettlementView describes a settlement and carries its signed receipt.
type SettlementView struct {
	Auction        string            `json:"auction"`
	Winner         string            `json:"winner,omitempty"`
	Amount         string            `json:"amount"`
	Fee            string            `json:"fee"`
	FeeRecipient   string            `json:"fee_recipient,omitempty"`
	SellerProceeds string            `json:"seller_proceeds"`
	Receipt        ReceiptCOSEBase64 `json:"receipt,omitempty"`
	ReceiptError   string            `json:"receipt_error,omitempty"`
}

// DeploymentView summarizes the node's registry deployment.
type DeploymentView struct {
	Registry   string   `json:"registry"`
	Owner      string   `json:"owner"`
	Upgrader   string   `json:"upgrader"`
	Logics     []string `json:"logics"`
	Auctions   []string `json:"auctions"`
	Collection string   `json:"collection"`
	PublicKey  string   `json:"public_key"`
}

// AddressView returns a newly deployed address.
type AddressView struct {
	Address string `json:"address"`
}

// ItemView identifies a minted item.
type ItemView struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
}

// BalanceView reports an account balance.
type BalanceView struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
	Display string `json:"display"`
}

// RelaySendView reports whether a request was relayed.
type RelaySendView struct {
	Sent    bool   `json:"sent"`
	Payload string `json:"payload"`
}

// DeliverView reports a delivery pass over the relay transport.
type DeliverView struct {
	Delivered int      `json:"delivered"`
	Errors    []string `json:"errors,omitempty"`
}

// TimeView reports the node clock.
type TimeView struct {
	Now time.Time `json:"now"`
}

// EventView is one entry of the event log.
type EventView struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}

// PublicKeyView carries the receipt signing key.
type PublicKeyView struct {
	Algorithm string `json:"algorithm"`
	PublicKey string `json:"public_key"`
}
