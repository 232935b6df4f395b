package core

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ComputeRelayRequestID derives the identifier of a relayed bid request.
//
// Formula: keccak256(payload || sender || uint64be(nonce))
func ComputeRelayRequestID(payload []byte, sender common.Address, nonce uint64) common.Hash {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	return crypto.Keccak256Hash(payload, sender.Bytes(), n[:])
}

// ComputeSettlementDigest computes the digest signed into settlement receipts.
// This is used by the node (to sign) and validation (to verify).
//
// Formula: SHA256(auction + "|" + winner + "|" + amount + "|" + fee + "|" + fee_recipient + "|" + proceeds + "|" + nonce)
//
// Addresses are lowercase hex with 0x prefix and amounts are base-10 integers.
func ComputeSettlementDigest(s *AuctionSettled, nonce string) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s",
		hexLower(s.Auction),
		hexLower(s.Winner),
		amountString(s.Amount),
		amountString(s.Fee),
		hexLower(s.FeeRecipient),
		amountString(s.SellerProceeds),
		nonce,
	)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// CheckSettlementArithmetic reports whether fee and proceeds add up to the
// winning amount under bps.
func CheckSettlementArithmetic(s *AuctionSettled, bps uint16) bool {
	fee, proceeds := SplitProceeds(s.Amount, FeeConfig{Recipient: s.FeeRecipient, Bps: bps})
	if s.Winner == (common.Address{}) {
		return isZero(s.Amount) && isZero(s.Fee) && isZero(s.SellerProceeds)
	}
	return fee.Cmp(cloneInt(s.Fee)) == 0 && proceeds.Cmp(cloneInt(s.SellerProceeds)) == 0
}

func hexLower(a common.Address) string {
	return "0x" + common.Bytes2Hex(a.Bytes())
}

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}
