package auctionapi

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"
)

// ReceiptCOSE is a raw COSE_Sign1 settlement receipt.
type ReceiptCOSE []byte

// ReceiptCOSEBase64 is a receipt in standard base64, as carried in JSON.
type ReceiptCOSEBase64 string

// ReceiptCOSEURLBase64 is a receipt in unpadded URL-safe base64.
type ReceiptCOSEURLBase64 string

// ReceiptCOSEGzip is a gzip-compressed receipt in unpadded URL-safe base64.
type ReceiptCOSEGzip string

// SettlementReceipt is the payload the node signs when an auction settles.
// Amounts are base-10 integers in base units of PaymentAsset.
type SettlementReceipt struct {
	Auction        string    `json:"auction"`
	Seller         string    `json:"seller"`
	Winner         string    `json:"winner"`
	PaymentAsset   string    `json:"payment_asset"`
	Amount         string    `json:"amount"`
	Fee            string    `json:"fee"`
	FeeRecipient   string    `json:"fee_recipient"`
	FeeBps         uint16    `json:"fee_bps"`
	SellerProceeds string    `json:"seller_proceeds"`
	Logic          string    `json:"logic"`
	Nonce          string    `json:"nonce"`
	Digest         string    `json:"digest"`
	Timestamp      time.Time `json:"timestamp"`
}

func (r ReceiptCOSE) EncodeBase64() ReceiptCOSEBase64 {
	return ReceiptCOSEBase64(base64.StdEncoding.EncodeToString(r))
}

func (r ReceiptCOSE) EncodeURLSafe() ReceiptCOSEURLBase64 {
	return ReceiptCOSEURLBase64(base64.RawURLEncoding.EncodeToString(r))
}

// CompressGzip compresses the receipt for URLs and headers.
func (r ReceiptCOSE) CompressGzip() (ReceiptCOSEGzip, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(r); err != nil {
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return ReceiptCOSEGzip(base64.RawURLEncoding.EncodeToString(buf.Bytes())), nil
}

func (b ReceiptCOSEBase64) String() string { return string(b) }

func (b ReceiptCOSEBase64) Decode() (ReceiptCOSE, error) {
	data, err := base64.StdEncoding.DecodeString(string(b))
	if err != nil {
		return nil, fmt.Errorf("decode COSE base64: %w", err)
	}
	return ReceiptCOSE(data), nil
}

func (b ReceiptCOSEBase64) CompressGzip() (ReceiptCOSEGzip, error) {
	raw, err := b.Decode()
	if err != nil {
		return "", err
	}
	return raw.CompressGzip()
}

func (u ReceiptCOSEURLBase64) String() string { return string(u) }

// Decode accepts both padded and unpadded input.
func (u ReceiptCOSEURLBase64) Decode() (ReceiptCOSE, error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(string(u), "="))
	if err != nil {
		return nil, fmt.Errorf("decode COSE base64url: %w", err)
	}
	return ReceiptCOSE(data), nil
}

func (g ReceiptCOSEGzip) String() string { return string(g) }

func (g ReceiptCOSEGzip) Decompress() (ReceiptCOSE, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(string(g))
	if err != nil {
		return nil, fmt.Errorf("decode base64url: %w", err)
	}
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()
	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("read gzip: %w", err)
	}
	return ReceiptCOSE(data), nil
}
