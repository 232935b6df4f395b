// Package validation verifies settlement receipts issued by an auction node.
package validation

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/escrowauction/auctionapi"
	"github.com/cloudx-io/escrowauction/auctionapi/parsing"
	"github.com/cloudx-io/escrowauction/core"
)

// ReceiptValidationInput contains all inputs needed for receipt validation.
// Expected fields left empty are not checked.
type ReceiptValidationInput struct {
	Receipt         auctionapi.ReceiptCOSE
	PublicKeyPEM    string
	ExpectedAuction string
	ExpectedWinner  string // "none" expects the item to have gone back unsold
	ExpectedAmount  string // base units
}

// ValidateSettlementReceipt verifies a receipt and checks:
// - Signature matches the node key
// - Digest matches the settlement fields and nonce
// - Fee and seller proceeds add up under the recorded fee rate
// - Auction, winner and amount match the caller's expectations
//
// Returns:
//   - ReceiptValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed receipt or key)
func ValidateSettlementReceipt(input *ReceiptValidationInput) (*ReceiptValidationResult, error) {
	key, err := ParsePublicKeyPEM(input.PublicKeyPEM)
	if err != nil {
		return nil, err
	}
	payload, err := parsing.ExtractCOSEPayload(input.Receipt)
	if err != nil {
		return nil, fmt.Errorf("extract receipt payload: %w", err)
	}
	var receipt auctionapi.SettlementReceipt
	if err := json.Unmarshal(payload, &receipt); err != nil {
		return nil, fmt.Errorf("parse receipt payload: %w", err)
	}

	result := &ReceiptValidationResult{Receipt: &receipt}

	if err := VerifyCOSESignature(input.Receipt, key); err != nil {
		result.detail(err.Error())
	} else {
		result.SignatureValid = true
		result.detail("Signature verified with node key")
	}

	settled, err := settlementFromReceipt(&receipt)
	if err != nil {
		result.detail(fmt.Sprintf("Receipt fields malformed: %v", err))
		return result, nil
	}

	result.DigestValid = validateDigest(settled, &receipt, result)
	result.ArithmeticValid = validateArithmetic(settled, &receipt, result)
	result.ExpectationsValid = validateExpectations(input, &receipt, result)
	return result, nil
}

func validateDigest(settled *core.AuctionSettled, receipt *auctionapi.SettlementReceipt, result *ReceiptValidationResult) bool {
	if receipt.Nonce == "" {
		result.detail("Receipt nonce missing")
		return false
	}
	computed := core.ComputeSettlementDigest(settled, receipt.Nonce)
	if computed != receipt.Digest {
		result.detail(fmt.Sprintf("Digest mismatch: computed %s, receipt has %s", computed, receipt.Digest))
		return false
	}
	result.detail(fmt.Sprintf("Digest matches: %s", computed))
	return true
}

func validateArithmetic(settled *core.AuctionSettled, receipt *auctionapi.SettlementReceipt, result *ReceiptValidationResult) bool {
	if receipt.FeeBps > core.MaxFeeBps {
		result.detail(fmt.Sprintf("Fee rate %d bps exceeds %d", receipt.FeeBps, core.MaxFeeBps))
		return false
	}
	if !core.CheckSettlementArithmetic(settled, receipt.FeeBps) {
		result.detail(fmt.Sprintf("Fee %s and proceeds %s do not split amount %s at %d bps",
			receipt.Fee, receipt.SellerProceeds, receipt.Amount, receipt.FeeBps))
		return false
	}
	result.detail(fmt.Sprintf("Fee split consistent at %d bps", receipt.FeeBps))
	return true
}

func validateExpectations(input *ReceiptValidationInput, receipt *auctionapi.SettlementReceipt, result *ReceiptValidationResult) bool {
	ok := true
	if input.ExpectedAuction != "" && !sameAddress(input.ExpectedAuction, receipt.Auction) {
		result.detail(fmt.Sprintf("Auction mismatch: expected %s, receipt has %s", input.ExpectedAuction, receipt.Auction))
		ok = false
	}
	switch {
	case input.ExpectedWinner == "":
	case strings.EqualFold(input.ExpectedWinner, "none"):
		if common.HexToAddress(receipt.Winner) != (common.Address{}) {
			result.detail(fmt.Sprintf("Winner mismatch: expected no winner, receipt has %s", receipt.Winner))
			ok = false
		}
	case !sameAddress(input.ExpectedWinner, receipt.Winner):
		result.detail(fmt.Sprintf("Winner mismatch: expected %s, receipt has %s", input.ExpectedWinner, receipt.Winner))
		ok = false
	}
	if input.ExpectedAmount != "" && input.ExpectedAmount != receipt.Amount {
		result.detail(fmt.Sprintf("Amount mismatch: expected %s, receipt has %s", input.ExpectedAmount, receipt.Amount))
		ok = false
	}
	if ok {
		result.detail("Receipt matches expected settlement")
	}
	return ok
}

func settlementFromReceipt(r *auctionapi.SettlementReceipt) (*core.AuctionSettled, error) {
	amount, err := parseAmount("amount", r.Amount)
	if err != nil {
		return nil, err
	}
	fee, err := parseAmount("fee", r.Fee)
	if err != nil {
		return nil, err
	}
	proceeds, err := parseAmount("seller_proceeds", r.SellerProceeds)
	if err != nil {
		return nil, err
	}
	for field, v := range map[string]string{"auction": r.Auction, "winner": r.Winner, "fee_recipient": r.FeeRecipient} {
		if !common.IsHexAddress(v) {
			return nil, fmt.Errorf("%s: %q is not an address", field, v)
		}
	}
	return &core.AuctionSettled{
		Auction:        common.HexToAddress(r.Auction),
		Seller:         common.HexToAddress(r.Seller),
		Winner:         common.HexToAddress(r.Winner),
		Amount:         amount,
		Fee:            fee,
		FeeRecipient:   common.HexToAddress(r.FeeRecipient),
		SellerProceeds: proceeds,
	}, nil
}

func parseAmount(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%s: %q is not a non-negative integer", field, s)
	}
	return v, nil
}

func sameAddress(a, b string) bool {
	return common.IsHexAddress(a) && common.IsHexAddress(b) && common.HexToAddress(a) == common.HexToAddress(b)
}
