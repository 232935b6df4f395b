package validation

import "github.com/cloudx-io/escrowauction/auctionapi"

// ReceiptValidationResult contains the outcome of each receipt check.
type ReceiptValidationResult struct {
	SignatureValid    bool
	DigestValid       bool
	ArithmeticValid   bool
	ExpectationsValid bool
	ValidationDetails []string
	Receipt           *auctionapi.SettlementReceipt
}

// IsValid returns true if all receipt checks passed
func (r *ReceiptValidationResult) IsValid() bool {
	return r.SignatureValid && r.DigestValid && r.ArithmeticValid && r.ExpectationsValid
}

func (r *ReceiptValidationResult) detail(msg string) {
	r.ValidationDetails = append(r.ValidationDetails, msg)
}
