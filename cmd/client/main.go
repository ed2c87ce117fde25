// Command client fetches a URL through the payment-aware HTTP client,
// paying 402 challenges with signers built from the environment.
//
//	EVM_PRIVATE_KEY=0x... client -url http://localhost:8080/api/premium
//	SVM_PRIVATE_KEY=base58... client -url https://api.example.com/paid -svm-network solana-devnet
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	x402kit "github.com/aeither/x402-starter-kit"
	"github.com/aeither/x402-starter-kit/evm"
	xhttp "github.com/aeither/x402-starter-kit/http"
	"github.com/aeither/x402-starter-kit/svm"
)

func main() {
	url := flag.String("url", "", "URL to fetch (required)")
	evmNetwork := flag.String("evm-network", x402kit.FamilyEVM, "network for the EVM signer, a concrete id like base or the evm family")
	svmNetwork := flag.String("svm-network", x402kit.FamilySVM, "network for the SVM signer, a concrete id like solana or the svm family")
	maxAmount := flag.String("max-amount", "", "maximum atomic amount per payment (optional)")
	verbose := flag.Bool("v", false, "log payment lifecycle events")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *url == "" {
		fmt.Fprintln(os.Stderr, "Error: -url is required")
		flag.PrintDefaults()
		os.Exit(1)
	}

	signers, err := buildSigners(*evmNetwork, *svmNetwork, *maxAmount)
	if err != nil {
		logger.Error("failed to build signers", "error", err)
		os.Exit(1)
	}
	if len(signers) == 0 {
		logger.Error("no keys configured, set EVM_PRIVATE_KEY or SVM_PRIVATE_KEY")
		os.Exit(1)
	}

	opts := []xhttp.ClientOption{xhttp.WithSigners(signers...)}
	if *verbose {
		logEvent := func(event x402kit.PaymentEvent) {
			logger.Info("payment event",
				"type", event.Type,
				"network", event.Network,
				"amount", event.Amount,
				"transaction", event.Transaction,
				"error", event.Error,
			)
		}
		opts = append(opts, xhttp.WithPaymentCallbacks(logEvent, logEvent, logEvent))
	}

	client, err := xhttp.NewClient(opts...)
	if err != nil {
		logger.Error("failed to create client", "error", err)
		os.Exit(1)
	}

	resp, err := client.Get(*url)
	if err != nil {
		logger.Error("request failed", "error", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("failed to read response", "error", err)
		os.Exit(1)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Error("unexpected status", "status", resp.Status)
	}
	if settlement := xhttp.SettlementFromResponse(resp); settlement != nil {
		logger.Info("payment settled",
			"network", settlement.Network,
			"transaction", settlement.Transaction,
			"payer", settlement.Payer,
		)
	}

	fmt.Println(string(body))
}

// buildSigners creates one signer per configured key. USDC on every
// cataloged network of the signer's family is payable by default.
func buildSigners(evmNetwork, svmNetwork, maxAmount string) ([]x402kit.Signer, error) {
	var signers []x402kit.Signer

	if key := os.Getenv("EVM_PRIVATE_KEY"); key != "" {
		opts := []evm.SignerOption{
			evm.WithPrivateKey(key),
			evm.WithNetwork(evmNetwork),
			evm.WithUSDC(),
		}
		if maxAmount != "" {
			opts = append(opts, evm.WithMaxAmountPerCall(maxAmount))
		}
		signer, err := evm.NewSigner(opts...)
		if err != nil {
			return nil, fmt.Errorf("evm signer: %w", err)
		}
		signers = append(signers, signer)
	}

	if key := os.Getenv("SVM_PRIVATE_KEY"); key != "" {
		opts := []svm.SignerOption{
			svm.WithPrivateKey(key),
			svm.WithNetwork(svmNetwork),
			svm.WithUSDC(),
		}
		if maxAmount != "" {
			opts = append(opts, svm.WithMaxAmountPerCall(maxAmount))
		}
		signer, err := svm.NewSigner(opts...)
		if err != nil {
			return nil, fmt.Errorf("svm signer: %w", err)
		}
		signers = append(signers, signer)
	}

	return signers, nil
}
