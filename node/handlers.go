package main

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cloudx-io/escrowauction/auctionapi"
	"github.com/cloudx-io/escrowauction/core"
	"github.com/cloudx-io/escrowauction/oracle"
	"github.com/cloudx-io/escrowauction/relay"
)

const (
	defaultTokenDecimals uint8 = 18
	defaultFeedDecimals  uint8 = 8
)

type handlerFunc func(n *Node, ctx context.Context, raw []byte) (any, error)

var handlers = map[string]handlerFunc{
	auctionapi.TypePing:              (*Node).handlePing,
	auctionapi.TypeDeploy:            (*Node).handleDeploy,
	auctionapi.TypePublicKey:         (*Node).handlePublicKey,
	auctionapi.TypeDeployToken:       (*Node).handleDeployToken,
	auctionapi.TypeDeployCollection:  (*Node).handleDeployCollection,
	auctionapi.TypeMint:              (*Node).handleMint,
	auctionapi.TypeApprove:           (*Node).handleApprove,
	auctionapi.TypeMintItem:          (*Node).handleMintItem,
	auctionapi.TypeApproveItem:       (*Node).handleApproveItem,
	auctionapi.TypeBalance:           (*Node).handleBalance,
	auctionapi.TypeCreateAuction:     (*Node).handleCreateAuction,
	auctionapi.TypeSetPriceFeed:      (*Node).handleSetPriceFeed,
	auctionapi.TypeSetFeeConfig:      (*Node).handleSetFeeConfig,
	auctionapi.TypeSetRelayConfig:    (*Node).handleSetRelayConfig,
	auctionapi.TypeRegisterLogic:     (*Node).handleRegisterLogic,
	auctionapi.TypeUpgradeLogic:      (*Node).handleUpgradeLogic,
	auctionapi.TypeTransferOwnership: (*Node).handleTransferOwnership,
	auctionapi.TypeBid:               (*Node).handleBid,
	auctionapi.TypeEndAuction:        (*Node).handleEndAuction,
	auctionapi.TypeGetAuction:        (*Node).handleGetAuction,
	auctionapi.TypeEvents:            (*Node).handleEvents,
	auctionapi.TypeRelaySend:         (*Node).handleRelaySend,
	auctionapi.TypeRelayExecute:      (*Node).handleRelayExecute,
	auctionapi.TypeRelayDeliver:      (*Node).handleRelayDeliver,
	auctionapi.TypeIncreaseTime:      (*Node).handleIncreaseTime,
}

// Handle executes one JSON request. Requests are applied one at a time.
func (n *Node) Handle(ctx context.Context, raw []byte) auctionapi.Response {
	start := time.Now()

	var base auctionapi.BaseRequest
	if err := json.Unmarshal(raw, &base); err != nil {
		return n.fail(base, start, errors.Wrapf(auctionapi.ErrInvalidField, "decode request: %v", err))
	}
	if base.RequestID == "" {
		base.RequestID = uuid.NewString()
	}

	handle, ok := handlers[base.Type]
	if !ok {
		return n.fail(base, start, errors.Wrapf(auctionapi.ErrInvalidField, "unknown request type %q", base.Type))
	}

	n.mu.Lock()
	data, err := handle(n, ctx, raw)
	n.mu.Unlock()
	if err != nil {
		return n.fail(base, start, err)
	}

	resp := auctionapi.Response{
		Type:           base.Type,
		RequestID:      base.RequestID,
		Success:        true,
		ProcessingTime: time.Since(start).Milliseconds(),
	}
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return n.fail(base, start, errors.Wrap(err, "encode response"))
		}
		resp.Data = encoded
	}
	requestsTotal.WithLabelValues(base.Type, "ok").Inc()
	return resp
}

func (n *Node) fail(base auctionapi.BaseRequest, start time.Time, err error) auctionapi.Response {
	code := auctionapi.ErrorCode(err)
	requestsTotal.WithLabelValues(base.Type, code).Inc()
	n.logger.Info("request failed",
		zap.String("type", base.Type),
		zap.String("request_id", base.RequestID),
		zap.String("code", code),
		zap.Error(err),
	)
	return auctionapi.Response{
		Type:           base.Type,
		RequestID:      base.RequestID,
		Success:        false,
		Message:        err.Error(),
		Code:           code,
		ProcessingTime: time.Since(start).Milliseconds(),
	}
}

func decode[T any](raw []byte) (T, error) {
	var req T
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, errors.Wrapf(auctionapi.ErrInvalidField, "decode request: %v", err)
	}
	return req, nil
}

func (n *Node) handlePing(_ context.Context, _ []byte) (any, error) {
	return auctionapi.TimeView{Now: n.clock.Now()}, nil
}

func (n *Node) handleDeploy(_ context.Context, _ []byte) (any, error) {
	d := n.registry.Describe()
	pub, err := n.keys.PublicKeyPEM()
	if err != nil {
		return nil, err
	}
	view := auctionapi.DeploymentView{
		Registry:   d.Registry.Hex(),
		Owner:      d.Owner.Hex(),
		Upgrader:   d.Upgrader.Hex(),
		Logics:     d.Logics,
		Auctions:   make([]string, 0, len(d.Auctions)),
		Collection: n.collection.Hex(),
		PublicKey:  pub,
	}
	for _, a := range d.Auctions {
		view.Auctions = append(view.Auctions, a.Hex())
	}
	return view, nil
}

func (n *Node) handlePublicKey(_ context.Context, _ []byte) (any, error) {
	pub, err := n.keys.PublicKeyPEM()
	if err != nil {
		return nil, err
	}
	return auctionapi.PublicKeyView{Algorithm: n.keys.Algorithm(), PublicKey: pub}, nil
}

func (n *Node) handleDeployToken(_ context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.LedgerRequest](raw)
	if err != nil {
		return nil, err
	}
	if req.Symbol == "" {
		return nil, errors.Wrap(auctionapi.ErrInvalidField, "symbol is required")
	}
	decimals := defaultTokenDecimals
	if req.Decimals != nil {
		decimals = *req.Decimals
	}
	addr := n.ledger.DeployToken(req.Name, req.Symbol, decimals)
	return auctionapi.AddressView{Address: addr.Hex()}, nil
}

func (n *Node) handleDeployCollection(_ context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.LedgerRequest](raw)
	if err != nil {
		return nil, err
	}
	addr := n.ledger.DeployCollection(req.Name, req.Symbol)
	return auctionapi.AddressView{Address: addr.Hex()}, nil
}

func (n *Node) handleMint(_ context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.LedgerRequest](raw)
	if err != nil {
		return nil, err
	}
	asset, err := auctionapi.ParseAddress("asset", req.Asset)
	if err != nil {
		return nil, err
	}
	to, err := auctionapi.RequireAddress("to", req.To)
	if err != nil {
		return nil, err
	}
	amount, err := n.parseAssetAmount("amount", req.Amount, asset)
	if err != nil {
		return nil, err
	}
	if err := n.ledger.Mint(asset, to, amount); err != nil {
		return nil, err
	}
	return n.balanceView(asset, to), nil
}

func (n *Node) handleApprove(_ context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.LedgerRequest](raw)
	if err != nil {
		return nil, err
	}
	asset, err := auctionapi.RequireAddress("asset", req.Asset)
	if err != nil {
		return nil, err
	}
	owner, err := auctionapi.RequireAddress("owner", req.Owner)
	if err != nil {
		return nil, err
	}
	spender, err := auctionapi.RequireAddress("spender", req.Spender)
	if err != nil {
		return nil, err
	}
	amount, err := auctionapi.ParseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	return nil, n.ledger.Approve(asset, owner, spender, amount)
}

func (n *Node) handleMintItem(_ context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.LedgerRequest](raw)
	if err != nil {
		return nil, err
	}
	col, err := n.collectionOrDefault(req.Collection)
	if err != nil {
		return nil, err
	}
	to, err := auctionapi.RequireAddress("to", req.To)
	if err != nil {
		return nil, err
	}
	item, err := n.ledger.MintItem(col, to)
	if err != nil {
		return nil, err
	}
	return auctionapi.ItemView{Collection: item.Collection.Hex(), TokenID: item.TokenID.String()}, nil
}

func (n *Node) handleApproveItem(_ context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.LedgerRequest](raw)
	if err != nil {
		return nil, err
	}
	col, err := n.collectionOrDefault(req.Collection)
	if err != nil {
		return nil, err
	}
	owner, err := auctionapi.RequireAddress("owner", req.Owner)
	if err != nil {
		return nil, err
	}
	spender, err := auctionapi.RequireAddress("spender", req.Spender)
	if err != nil {
		return nil, err
	}
	if req.Approved != nil {
		return nil, n.ledger.SetApprovalForAll(col, owner, spender, *req.Approved)
	}
	tokenID, err := auctionapi.ParseAmount("token_id", req.TokenID)
	if err != nil {
		return nil, err
	}
	return nil, n.ledger.ApproveItem(owner, core.ItemRef{Collection: col, TokenID: tokenID}, spender)
}

func (n *Node) handleBalance(_ context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.LedgerRequest](raw)
	if err != nil {
		return nil, err
	}
	asset, err := auctionapi.ParseAddress("asset", req.Asset)
	if err != nil {
		return nil, err
	}
	owner, err := auctionapi.RequireAddress("owner", req.Owner)
	if err != nil {
		return nil, err
	}
	if _, err := n.ledger.Decimals(asset); err != nil {
		return nil, err
	}
	return n.balanceView(asset, owner), nil
}

func (n *Node) handleCreateAuction(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.CreateAuctionRequest](raw)
	if err != nil {
		return nil, err
	}
	seller, err := auctionapi.RequireAddress("seller", req.Seller)
	if err != nil {
		return nil, err
	}
	col, err := n.collectionOrDefault(req.Collection)
	if err != nil {
		return nil, err
	}
	tokenID, err := auctionapi.ParseAmount("token_id", req.TokenID)
	if err != nil {
		return nil, err
	}
	asset, err := auctionapi.ParseAddress("payment_asset", req.PaymentAsset)
	if err != nil {
		return nil, err
	}
	startPrice, err := n.parseAssetAmount("start_price", req.StartPrice, asset)
	if err != nil {
		return nil, err
	}
	item := core.ItemRef{Collection: col, TokenID: tokenID}
	duration := time.Duration(req.DurationSeconds) * time.Second
	id, err := n.registry.CreateAuction(ctx, seller, item, duration, startPrice, asset)
	if err != nil {
		return nil, err
	}
	return n.auctionView(ctx, id)
}

func (n *Node) handleSetPriceFeed(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.ConfigRequest](raw)
	if err != nil {
		return nil, err
	}
	caller, id, err := callerAndAuction(req.Caller, req.Auction)
	if err != nil {
		return nil, err
	}
	asset, err := auctionapi.ParseAddress("asset", req.Asset)
	if err != nil {
		return nil, err
	}
	key := feedKey{auction: id, asset: asset}
	if req.Answer == "" {
		if err := n.registry.SetPriceFeed(ctx, caller, id, asset, nil); err != nil {
			return nil, err
		}
		delete(n.feeds, key)
		return nil, nil
	}
	answer, ok := new(big.Int).SetString(req.Answer, 10)
	if !ok {
		return nil, errors.Wrapf(auctionapi.ErrInvalidField, "answer: %q is not an integer", req.Answer)
	}
	decimals := defaultFeedDecimals
	if req.Decimals != nil {
		decimals = *req.Decimals
	}
	feed := oracle.NewStaticFeed(answer, decimals, n.clock)
	if err := n.registry.SetPriceFeed(ctx, caller, id, asset, oracle.Guard(feed, n.maxAge, n.clock)); err != nil {
		return nil, err
	}
	n.feeds[key] = feed
	return nil, nil
}

func (n *Node) handleSetFeeConfig(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.ConfigRequest](raw)
	if err != nil {
		return nil, err
	}
	caller, id, err := callerAndAuction(req.Caller, req.Auction)
	if err != nil {
		return nil, err
	}
	recipient, err := auctionapi.ParseAddress("recipient", req.Recipient)
	if err != nil {
		return nil, err
	}
	if err := n.registry.SetFeeConfig(ctx, caller, id, recipient, req.Bps); err != nil {
		return nil, err
	}
	return n.auctionView(ctx, id)
}

func (n *Node) handleSetRelayConfig(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.ConfigRequest](raw)
	if err != nil {
		return nil, err
	}
	caller, id, err := callerAndAuction(req.Caller, req.Auction)
	if err != nil {
		return nil, err
	}
	sender, err := auctionapi.ParseAddress("sender", req.Sender)
	if err != nil {
		return nil, err
	}
	if err := n.registry.SetRelayConfig(ctx, caller, id, sender, req.Enabled); err != nil {
		return nil, err
	}
	return n.auctionView(ctx, id)
}

func (n *Node) handleRegisterLogic(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.ConfigRequest](raw)
	if err != nil {
		return nil, err
	}
	caller, err := auctionapi.RequireAddress("caller", req.Caller)
	if err != nil {
		return nil, err
	}
	logic, err := logicByVersion(req.Logic)
	if err != nil {
		return nil, err
	}
	if err := n.registry.RegisterLogic(ctx, caller, logic); err != nil {
		return nil, err
	}
	return n.registry.Logics(), nil
}

func (n *Node) handleUpgradeLogic(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.ConfigRequest](raw)
	if err != nil {
		return nil, err
	}
	caller, id, err := callerAndAuction(req.Caller, req.Auction)
	if err != nil {
		return nil, err
	}
	if err := n.registry.UpgradeLogic(ctx, caller, id, req.Logic); err != nil {
		return nil, err
	}
	return n.auctionView(ctx, id)
}

func (n *Node) handleTransferOwnership(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.ConfigRequest](raw)
	if err != nil {
		return nil, err
	}
	caller, err := auctionapi.RequireAddress("caller", req.Caller)
	if err != nil {
		return nil, err
	}
	newOwner, err := auctionapi.RequireAddress("new_owner", req.NewOwner)
	if err != nil {
		return nil, err
	}
	return nil, n.registry.TransferOwnership(ctx, caller, newOwner)
}

func (n *Node) handleBid(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.BidRequest](raw)
	if err != nil {
		return nil, err
	}
	caller, id, err := callerAndAuction(req.Caller, req.Auction)
	if err != nil {
		return nil, err
	}
	rec, err := n.registry.Auction(id)
	if err != nil {
		return nil, err
	}
	amount, err := n.parseAssetAmount("amount", req.Amount, rec.PaymentAsset)
	if err != nil {
		return nil, err
	}
	value, err := n.parseAssetAmount("value", req.Value, core.NativeAsset)
	if err != nil {
		return nil, err
	}
	placed, err := n.registry.Bid(ctx, id, core.Call{Caller: caller, Value: value}, amount)
	if err != nil {
		return nil, err
	}
	return bidView(placed), nil
}

func (n *Node) handleEndAuction(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.EndAuctionRequest](raw)
	if err != nil {
		return nil, err
	}
	caller, id, err := callerAndAuction(req.Caller, req.Auction)
	if err != nil {
		return nil, err
	}
	settled, err := n.registry.EndAuction(ctx, id, core.Call{Caller: caller})
	if err != nil {
		return nil, err
	}
	rec, err := n.registry.Auction(id)
	if err != nil {
		return nil, err
	}
	view := auctionapi.SettlementView{
		Auction:        settled.Auction.Hex(),
		Winner:         auctionapi.FormatAddress(settled.Winner),
		Amount:         settled.Amount.String(),
		Fee:            settled.Fee.String(),
		FeeRecipient:   auctionapi.FormatAddress(settled.FeeRecipient),
		SellerProceeds: settled.SellerProceeds.String(),
	}
	// The settlement is final at this point, so a signing failure is
	// reported alongside it rather than as a failed request.
	receipt, err := GenerateSettlementReceipt(n.signer, settled, rec, n.clock.Now())
	if err != nil {
		n.logger.Error("settlement receipt unavailable", zap.Stringer("auction", id), zap.Error(err))
		view.ReceiptError = err.Error()
		return view, nil
	}
	view.Receipt = receipt.EncodeBase64()
	return view, nil
}

func (n *Node) handleGetAuction(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.QueryRequest](raw)
	if err != nil {
		return nil, err
	}
	id, err := auctionapi.RequireAddress("auction", req.Auction)
	if err != nil {
		return nil, err
	}
	return n.auctionView(ctx, id)
}

func (n *Node) handleEvents(_ context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.QueryRequest](raw)
	if err != nil {
		return nil, err
	}
	filter, err := auctionapi.ParseAddress("auction", req.Auction)
	if err != nil {
		return nil, err
	}
	views := []auctionapi.EventView{}
	for _, e := range n.registry.Events() {
		if filter != (common.Address{}) && eventAuction(e) != filter {
			continue
		}
		views = append(views, auctionapi.EventView{Name: e.EventName(), Data: e})
	}
	return views, nil
}

func (n *Node) handleRelaySend(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.RelayRequest](raw)
	if err != nil {
		return nil, err
	}
	caller, err := auctionapi.RequireAddress("caller", req.Caller)
	if err != nil {
		return nil, err
	}
	payload, err := relayPayload(req)
	if err != nil {
		return nil, err
	}
	sent, err := n.relay.SendRequest(ctx, caller, payload)
	if err != nil {
		return nil, err
	}
	return auctionapi.RelaySendView{Sent: sent, Payload: "0x" + common.Bytes2Hex(payload)}, nil
}

func (n *Node) handleRelayExecute(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.RelayRequest](raw)
	if err != nil {
		return nil, err
	}
	executor, err := auctionapi.RequireAddress("executor", req.Executor)
	if err != nil {
		return nil, err
	}
	payload, err := relayPayload(req)
	if err != nil {
		return nil, err
	}
	value, err := auctionapi.ParseAmount("value", req.Value)
	if err != nil {
		return nil, err
	}
	placed, err := n.relay.Execute(ctx, executor, payload, value)
	if err != nil {
		return nil, err
	}
	return bidView(placed), nil
}

func (n *Node) handleRelayDeliver(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.RelayRequest](raw)
	if err != nil {
		return nil, err
	}
	executor, err := auctionapi.RequireAddress("executor", req.Executor)
	if err != nil {
		return nil, err
	}
	delivered, err := n.transport.Deliver(ctx, func(ctx context.Context, env relay.Envelope) error {
		_, err := n.relay.ExecuteEnvelope(ctx, executor, env)
		return err
	})
	view := auctionapi.DeliverView{Delivered: delivered}
	for _, e := range multierr.Errors(err) {
		view.Errors = append(view.Errors, e.Error())
	}
	return view, nil
}

func (n *Node) handleIncreaseTime(_ context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.TimeRequest](raw)
	if err != nil {
		return nil, err
	}
	if req.Seconds < 0 {
		return nil, errors.Wrap(auctionapi.ErrInvalidField, "seconds must not be negative")
	}
	return auctionapi.TimeView{Now: n.clock.Advance(time.Duration(req.Seconds) * time.Second)}, nil
}

func (n *Node) collectionOrDefault(s string) (common.Address, error) {
	if s == "" {
		return n.collection, nil
	}
	return auctionapi.RequireAddress("collection", s)
}

func callerAndAuction(caller, auction string) (common.Address, common.Address, error) {
	c, err := auctionapi.RequireAddress("caller", caller)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	a, err := auctionapi.RequireAddress("auction", auction)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return c, a, nil
}

func logicByVersion(version string) (core.Logic, error) {
	switch version {
	case "V1":
		return core.LogicV1{}, nil
	case "V2":
		return core.LogicV2{}, nil
	default:
		return nil, errors.Wrapf(core.ErrUnknownLogic, "no implementation for %q", version)
	}
}

// relayPayload returns req's hex payload, or encodes one from its fields.
// parseAssetAmount reads an amount of asset given either in base units or
// as a whole-unit decimal like "0.02".
func (n *Node) parseAssetAmount(field, s string, asset common.Address) (*big.Int, error) {
	decimals, err := n.ledger.Decimals(asset)
	if err != nil {
		return nil, errors.Wrapf(auctionapi.ErrInvalidField, "%s: %v", field, err)
	}
	return auctionapi.ParseAssetAmount(field, s, decimals)
}

func relayPayload(req auctionapi.RelayRequest) ([]byte, error) {
	if req.Payload != "" {
		return auctionapi.ParseHex("payload", req.Payload)
	}
	auction, err := auctionapi.RequireAddress("auction", req.Auction)
	if err != nil {
		return nil, err
	}
	amount, err := auctionapi.ParseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	return relay.EncodeBidRequest(relay.BidRequest{Auction: auction, IsNative: req.IsNative, Amount: amount})
}

func eventAuction(e core.Event) common.Address {
	switch ev := e.(type) {
	case core.AuctionCreated:
		return ev.Auction
	case core.BidPlaced:
		return ev.Auction
	case core.AuctionSettled:
		return ev.Auction
	case core.LogicUpgraded:
		return ev.Auction
	case core.ConfigChanged:
		return ev.Auction
	case relay.RelayRequested:
		return ev.Auction
	default:
		return common.Address{}
	}
}
