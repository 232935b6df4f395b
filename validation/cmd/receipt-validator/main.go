package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cloudx-io/escrowauction/auctionapi"
	"github.com/cloudx-io/escrowauction/validation"
)

func main() {
	var (
		receiptInput   = flag.String("receipt", "", "Receipt in standard base64 (file path or inline)")
		gzipInput      = flag.String("receipt-gzip", "", "Gzip-compressed receipt in URL-safe base64 (file path or inline)")
		publicKeyInput = flag.String("public-key", "", "Node receipt key in PEM (file path or inline)")
		auction        = flag.String("auction", "", "Expected auction address")
		winner         = flag.String("winner", "", "Expected winner address, or \"none\" for an unsold item")
		amount         = flag.String("amount", "", "Expected winning amount in base units")
		outputFormat   = flag.String("format", "text", "Output format: text or json")
		help           = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help {
		showUsage()
		os.Exit(0)
	}

	if (*receiptInput == "") == (*gzipInput == "") || *publicKeyInput == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --public-key and exactly one of --receipt or --receipt-gzip are required\n")
		os.Exit(1)
	}

	receipt, err := readReceipt(*receiptInput, *gzipInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading receipt: %v\n", err)
		os.Exit(2)
	}

	publicKey, err := readInput(*publicKeyInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading public key: %v\n", err)
		os.Exit(2)
	}

	result, err := validation.ValidateSettlementReceipt(&validation.ReceiptValidationInput{
		Receipt:         receipt,
		PublicKeyPEM:    publicKey,
		ExpectedAuction: *auction,
		ExpectedWinner:  *winner,
		ExpectedAmount:  *amount,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		os.Exit(2)
	}

	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputText(result)
	}

	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	fmt.Println("Settlement Receipt Validator")
	fmt.Println()
	fmt.Println("Verifies a signed settlement receipt returned by end_auction.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  receipt-validator --receipt <base64> --public-key <pem> [options]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --receipt <base64>         Receipt field of the end_auction response")
	fmt.Println("  --receipt-gzip <b64url>    Compressed receipt, instead of --receipt")
	fmt.Println("  --public-key <pem>         public_key from the public_key or deploy response")
	fmt.Println("  --auction <address>        Expected auction")
	fmt.Println("  --winner <address|none>    Expected winner")
	fmt.Println("  --amount <integer>         Expected winning amount in base units")
	fmt.Println("  --format <text|json>       Output format (default: text)")
	fmt.Println("  --help                     Show this help message")
	fmt.Println()
	fmt.Println("Each input accepts either a file path or an inline value.")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0  Receipt valid")
	fmt.Println("  1  Receipt invalid")
	fmt.Println("  2  Receipt or key could not be read")
}

func readInput(input string) (string, error) {
	if data, err := os.ReadFile(input); err == nil {
		return string(data), nil
	}
	return input, nil
}

func readReceipt(b64, gz string) (auctionapi.ReceiptCOSE, error) {
	if gz != "" {
		data, err := readInput(gz)
		if err != nil {
			return nil, err
		}
		return auctionapi.ReceiptCOSEGzip(strings.TrimSpace(data)).Decompress()
	}
	data, err := readInput(b64)
	if err != nil {
		return nil, err
	}
	return auctionapi.ReceiptCOSEBase64(strings.TrimSpace(data)).Decode()
}

func outputText(result *validation.ReceiptValidationResult) {
	fmt.Println("Settlement Receipt Validator")
	fmt.Println("============================")
	fmt.Println()

	if r := result.Receipt; r != nil {
		fmt.Println("Receipt:")
		fmt.Printf("  Auction:          %s\n", r.Auction)
		fmt.Printf("  Winner:           %s\n", r.Winner)
		fmt.Printf("  Amount:           %s\n", r.Amount)
		fmt.Printf("  Fee:              %s (%d bps)\n", r.Fee, r.FeeBps)
		fmt.Printf("  Seller Proceeds:  %s\n", r.SellerProceeds)
		fmt.Printf("  Logic:            %s\n", r.Logic)
		fmt.Println()
	}

	fmt.Println("Summary:")
	fmt.Printf("  Signature Valid:     %v\n", result.SignatureValid)
	fmt.Printf("  Digest Valid:        %v\n", result.DigestValid)
	fmt.Printf("  Arithmetic Valid:    %v\n", result.ArithmeticValid)
	fmt.Printf("  Expectations Valid:  %v\n", result.ExpectationsValid)

	fmt.Println()
	fmt.Println("Details:")
	for _, detail := range result.ValidationDetails {
		fmt.Printf("  - %s\n", detail)
	}

	fmt.Println()
	if result.IsValid() {
		fmt.Println("VALIDATION: PASSED")
	} else {
		fmt.Println("VALIDATION: FAILED")
	}
}

func outputJSON(result *validation.ReceiptValidationResult) {
	output := map[string]any{
		"valid":              result.IsValid(),
		"signature_valid":    result.SignatureValid,
		"digest_valid":       result.DigestValid,
		"arithmetic_valid":   result.ArithmeticValid,
		"expectations_valid": result.ExpectationsValid,
		"receipt":            result.Receipt,
		"details":            result.ValidationDetails,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}
