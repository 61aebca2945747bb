package x402

import (
	"math/big"
	"testing"
)

const testPrivateKey = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690"

func TestNewClientNoKey(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Fatalf("expected error with no private key")
	}
}

func TestNewClientDerivesAddress(t *testing.T) {
	client, err := NewClient(testPrivateKey)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.WalletAddress() == "" {
		t.Fatalf("expected non-empty wallet address")
	}
}

func TestChainID(t *testing.T) {
	cases := map[string]int64{"base": 8453, "mainnet": 1, "ethereum": 1}
	for network, want := range cases {
		got, ok := ChainID(network)
		if !ok || got != want {
			t.Fatalf("ChainID(%q) = %d,%v want %d", network, got, ok, want)
		}
	}
	if _, ok := ChainID("unknown-chain"); ok {
		t.Fatalf("expected unknown network to report !ok")
	}
}

func TestSelectOfferPrefersKnownUSDCOffer(t *testing.T) {
	client, err := NewClient(testPrivateKey)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	offers := []PaymentOffer{
		{Network: "polygon", Asset: "USDC", PayTo: "0xaaa"},
		{Network: "base", Asset: "USDT", PayTo: "0xbbb"},
		{Network: "base", Asset: "usdc", PayTo: "0xccc", AmountRequired: "1000"},
	}
	offer, err := client.selectOffer(offers)
	if err != nil {
		t.Fatalf("selectOffer: %v", err)
	}
	if offer.PayTo != "0xccc" {
		t.Fatalf("expected the base/USDC offer, got %+v", offer)
	}
}

func TestSelectOfferNoMatch(t *testing.T) {
	client, err := NewClient(testPrivateKey)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.selectOffer([]PaymentOffer{{Network: "polygon", Asset: "USDC"}})
	if err == nil {
		t.Fatalf("expected error when no offer matches")
	}
}

func TestFormatUSDC(t *testing.T) {
	if got := formatUSDC(big.NewInt(1_500_000)); got != "1.500000" {
		t.Fatalf("expected 1.500000, got %s", got)
	}
}

func TestSignPaymentProducesHeader(t *testing.T) {
	client, err := NewClient(testPrivateKey)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	offer := PaymentOffer{
		Scheme:         "exact",
		Network:        "base",
		Asset:          "USDC",
		PayTo:          "0x000000000000000000000000000000000000aa",
		AmountRequired: "1000000",
	}
	header, info, err := client.signPayment(offer)
	if err != nil {
		t.Fatalf("signPayment: %v", err)
	}
	if header == "" {
		t.Fatalf("expected non-empty X-PAYMENT header")
	}
	if info.AmountFormatted != "1.000000" {
		t.Fatalf("expected 1.000000, got %s", info.AmountFormatted)
	}
	if info.PayTo != offer.PayTo {
		t.Fatalf("expected PayTo to match offer")
	}
}
