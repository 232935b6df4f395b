package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"

	"github.com/veraison/go-cose"

	"github.com/cloudx-io/escrowauction/auctionapi"
)

// ReceiptSigner signs settlement receipt payloads into COSE_Sign1 messages.
type ReceiptSigner interface {
	SignReceipt(payload []byte) (auctionapi.ReceiptCOSE, error)
}

// KeyManager holds the node's ES256 receipt signing key.
type KeyManager struct {
	privateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
	signer     cose.Signer
	rand       io.Reader
}

// NewKeyManager generates a fresh P-256 key pair.
func NewKeyManager() (*KeyManager, error) {
	return newKeyManager(rand.Reader)
}

func newKeyManager(random io.Reader) (*KeyManager, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), random)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	signer, err := cose.NewSigner(cose.AlgorithmES256, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create COSE signer: %w", err)
	}
	return &KeyManager{
		privateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
		signer:     signer,
		rand:       random,
	}, nil
}

// Algorithm names the COSE algorithm receipts are signed with.
func (km *KeyManager) Algorithm() string {
	return cose.AlgorithmES256.String()
}

// PublicKeyPEM returns the public key in PEM format
func (km *KeyManager) PublicKeyPEM() (string, error) {
	derBytes, err := x509.MarshalPKIXPublicKey(km.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: derBytes})), nil
}

// SignReceipt wraps payload in a tagged COSE_Sign1 message.
func (km *KeyManager) SignReceipt(payload []byte) (auctionapi.ReceiptCOSE, error) {
	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Headers.Protected[cose.HeaderLabelContentType] = "application/json"
	msg.Payload = payload
	if err := msg.Sign(km.rand, nil, km.signer); err != nil {
		return nil, fmt.Errorf("failed to sign receipt: %w", err)
	}
	raw, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt: %w", err)
	}
	return auctionapi.ReceiptCOSE(raw), nil
}
