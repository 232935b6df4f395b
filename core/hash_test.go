package core

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/peterldowns/testy/check"
)

func testSettlement() *AuctionSettled {
	return &AuctionSettled{
		Auction:        common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Winner:         common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		Amount:         big.NewInt(3_000_000),
		Fee:            big.NewInt(60_000),
		FeeRecipient:   common.HexToAddress("0x00000000000000000000000000000000000000cc"),
		SellerProceeds: big.NewInt(2_940_000),
	}
}

func TestComputeSettlementDigest(t *testing.T) {
	s := testSettlement()
	digest := ComputeSettlementDigest(s, "nonce_1")

	// Verify digest is 64 characters (SHA256 hex encoding)
	check.Equal(t, 64, len(digest))

	// Same inputs should produce same digest (deterministic)
	check.Equal(t, digest, ComputeSettlementDigest(s, "nonce_1"))

	// Nonce and amounts are bound
	check.NotEqual(t, digest, ComputeSettlementDigest(s, "nonce_2"))
	s.Fee = big.NewInt(60_001)
	check.NotEqual(t, digest, ComputeSettlementDigest(s, "nonce_1"))

	// Verify exact calculation
	s = testSettlement()
	data := "0x00000000000000000000000000000000000000aa|0x00000000000000000000000000000000000000bb|3000000|60000|0x00000000000000000000000000000000000000cc|2940000|nonce_1"
	check.Equal(t, fmt.Sprintf("%x", sha256.Sum256([]byte(data))), ComputeSettlementDigest(s, "nonce_1"))
}

func TestCheckSettlementArithmetic(t *testing.T) {
	s := testSettlement()
	check.True(t, CheckSettlementArithmetic(s, 200))
	check.False(t, CheckSettlementArithmetic(s, 300))

	s.SellerProceeds = big.NewInt(2_940_001)
	check.False(t, CheckSettlementArithmetic(s, 200))

	noBids := &AuctionSettled{Amount: new(big.Int), Fee: new(big.Int), SellerProceeds: new(big.Int)}
	check.True(t, CheckSettlementArithmetic(noBids, 200))
}

func TestComputeRelayRequestID(t *testing.T) {
	sender := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	payload := []byte{0x01, 0x02}

	id := ComputeRelayRequestID(payload, sender, 0)
	check.Equal(t, id, ComputeRelayRequestID(payload, sender, 0))
	check.NotEqual(t, id, ComputeRelayRequestID(payload, sender, 1))
	check.NotEqual(t, id, ComputeRelayRequestID([]byte{0x01}, sender, 0))
}
