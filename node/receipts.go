package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudx-io/escrowauction/auctionapi"
	"github.com/cloudx-io/escrowauction/core"
)

func generateSecureRandomBytes(length int) ([]byte, error) {
	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("entropy generation failed: %w", err)
	}
	return randomBytes, nil
}

func generateNonce() (string, error) {
	randomBytes, err := generateSecureRandomBytes(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate secure nonce - %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}

// BuildSettlementReceipt assembles the receipt payload for a settlement of rec.
func BuildSettlementReceipt(settled *core.AuctionSettled, rec core.Record, nonce string, now time.Time) auctionapi.SettlementReceipt {
	return auctionapi.SettlementReceipt{
		Auction:        settled.Auction.Hex(),
		Seller:         settled.Seller.Hex(),
		Winner:         settled.Winner.Hex(),
		PaymentAsset:   rec.PaymentAsset.Hex(),
		Amount:         settled.Amount.String(),
		Fee:            settled.Fee.String(),
		FeeRecipient:   settled.FeeRecipient.Hex(),
		FeeBps:         rec.FeeBps,
		SellerProceeds: settled.SellerProceeds.String(),
		Logic:          rec.Logic,
		Nonce:          nonce,
		Digest:         core.ComputeSettlementDigest(settled, nonce),
		Timestamp:      now.UTC(),
	}
}

// GenerateSettlementReceipt signs a receipt for settled with a fresh nonce.
func GenerateSettlementReceipt(signer ReceiptSigner, settled *core.AuctionSettled, rec core.Record, now time.Time) (auctionapi.ReceiptCOSE, error) {
	if signer == nil {
		return nil, fmt.Errorf("receipt signer is nil")
	}
	nonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate receipt nonce: %w", err)
	}
	payload, err := json.Marshal(BuildSettlementReceipt(settled, rec, nonce, now))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal receipt: %w", err)
	}
	return signer.SignReceipt(payload)
}
