package validation

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/veraison/go-cose"

	"github.com/cloudx-io/escrowauction/auctionapi"
)

// ParsePublicKeyPEM parses the node's PKIX PEM receipt key.
func ParsePublicKeyPEM(data string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("no PUBLIC KEY block in PEM input")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, not ECDSA", parsed)
	}
	return key, nil
}

// VerifyCOSESignature verifies an ES256 COSE_Sign1 receipt against key.
// Tagged and untagged messages are both accepted.
func VerifyCOSESignature(receipt auctionapi.ReceiptCOSE, key *ecdsa.PublicKey) error {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(receipt); err != nil {
		var untagged cose.UntaggedSign1Message
		if err := untagged.UnmarshalCBOR(receipt); err != nil {
			return fmt.Errorf("parse COSE_Sign1: %w", err)
		}
		msg = cose.Sign1Message(untagged)
	}

	alg, err := msg.Headers.Protected.Algorithm()
	if err != nil {
		return fmt.Errorf("read algorithm header: %w", err)
	}
	if alg != cose.AlgorithmES256 {
		return fmt.Errorf("unexpected algorithm %s", alg)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, key)
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return fmt.Errorf("COSE signature verification failed: %w", err)
	}
	return nil
}
