package main

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/escrowauction/auctionapi/parsing"
)

func TestKeyManager_PublicKeyPEM(t *testing.T) {
	km, err := NewKeyManager()
	assert.NoError(t, err)

	encoded, err := km.PublicKeyPEM()
	assert.NoError(t, err)

	block, _ := pem.Decode([]byte(encoded))
	assert.NotNil(t, block)
	check.Equal(t, "PUBLIC KEY", block.Type)

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	assert.NoError(t, err)
	pub, ok := parsed.(*ecdsa.PublicKey)
	assert.True(t, ok)
	check.True(t, pub.Equal(km.PublicKey))
}

func TestKeyManager_DistinctKeys(t *testing.T) {
	a, err := newKeyManager(rand.Reader)
	assert.NoError(t, err)
	b, err := newKeyManager(rand.Reader)
	assert.NoError(t, err)
	check.False(t, a.PublicKey.Equal(b.PublicKey))
}

func TestKeyManager_SignReceipt(t *testing.T) {
	km, err := newKeyManager(rand.Reader)
	assert.NoError(t, err)

	payload := []byte(`{"auction":"0x01"}`)
	signed, err := km.SignReceipt(payload)
	assert.NoError(t, err)

	extracted, err := parsing.ExtractCOSEPayload(signed)
	assert.NoError(t, err)
	check.True(t, bytes.Equal(payload, extracted))
	check.Equal(t, "ES256", km.Algorithm())
}
