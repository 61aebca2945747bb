// Package x402 implements the wire-level payment helper: an HTTP client
// that retries a 402 response once, signing an EIP-712
// TransferWithAuthorization payload and presenting it as an X-PAYMENT
// header, per spec.md §4.6.
package x402

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/nexuscore/agent/pkg/apperrors"
)

// knownChainIDs maps the network names the 402 challenge and the wallet
// tools use to their EIP-155 chain id.
var knownChainIDs = map[string]int64{
	"base":         8453,
	"base-sepolia": 84532,
	"mainnet":      1,
	"ethereum":     1,
}

// usdcContracts maps network names to the canonical USDC (EIP-3009) token
// contract used as the EIP-712 verifying contract for the payment
// authorization.
var usdcContracts = map[string]string{
	"base":         "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	"base-sepolia": "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	"mainnet":      "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
	"ethereum":     "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
}

// ChainID returns the EIP-155 chain id for a known network name.
func ChainID(network string) (int64, bool) {
	id, ok := knownChainIDs[network]
	return id, ok
}

// PaymentOffer is one entry of a 402 challenge's `accepts` array.
type PaymentOffer struct {
	Scheme         string          `json:"scheme"`
	Network        string          `json:"network"`
	Asset          string          `json:"asset"`
	PayTo          string          `json:"pay_to"`
	AmountRequired string          `json:"amount_required"`
	Resource       string          `json:"resource,omitempty"`
	MimeType       string          `json:"mime_type,omitempty"`
	Extra          json.RawMessage `json:"extra,omitempty"`
}

type challenge struct {
	Accepts []PaymentOffer `json:"accepts"`
}

// PaymentInfo summarizes a completed payment for metadata reporting.
type PaymentInfo struct {
	AmountFormatted string `json:"amount_formatted"`
	Asset           string `json:"asset"`
	PayTo           string `json:"pay_to"`
}

// Response is the result of a paid (or unpaid) request.
type Response struct {
	StatusCode int
	Body       []byte
	Payment    *PaymentInfo
}

// Client performs x402 HTTP requests on behalf of one EVM wallet.
type Client struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	httpClient *http.Client
}

// NewClient derives a wallet from a hex-encoded ECDSA private key
// (0x-prefixed or not).
func NewClient(privateKeyHex string) (*Client, error) {
	if privateKeyHex == "" {
		return nil, apperrors.NewPaymentError(apperrors.PaymentNoKey, fmt.Errorf("burner wallet private key not configured"))
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, apperrors.NewPaymentError(apperrors.PaymentNoKey, fmt.Errorf("invalid private key: %w", err))
	}
	return &Client{
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// WalletAddress returns the 0x-prefixed checksummed wallet address.
func (c *Client) WalletAddress() string {
	return c.address.Hex()
}

// Get issues a GET request, retrying with a signed payment header on a 402.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.doWithPayment(ctx, http.MethodGet, url, nil)
}

// Post issues a POST request with a JSON body, retrying with a signed
// payment header on a 402.
func (c *Client) Post(ctx context.Context, url string, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return c.doWithPayment(ctx, http.MethodPost, url, payload)
}

func (c *Client) doWithPayment(ctx context.Context, method, url string, body []byte) (*Response, error) {
	resp, err := c.do(ctx, method, url, body, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	var ch challenge
	if err := json.Unmarshal(resp.Body, &ch); err != nil || len(ch.Accepts) == 0 {
		return nil, apperrors.NewPaymentError(apperrors.PaymentUnmatched, fmt.Errorf("402 response carried no usable payment offer"))
	}

	offer, err := c.selectOffer(ch.Accepts)
	if err != nil {
		return nil, err
	}

	header, payment, err := c.signPayment(offer)
	if err != nil {
		return nil, err
	}

	retryResp, err := c.do(ctx, method, url, body, header)
	if err != nil {
		return nil, err
	}
	if retryResp.StatusCode == http.StatusPaymentRequired {
		return nil, apperrors.NewPaymentError(apperrors.PaymentRejected, fmt.Errorf("payment rejected on retry"))
	}
	retryResp.Payment = payment
	return retryResp, nil
}

// selectOffer picks the first offer whose network is one this client knows
// and whose asset is USDC, per spec.md §4.6 step 3.
func (c *Client) selectOffer(offers []PaymentOffer) (PaymentOffer, error) {
	for _, o := range offers {
		if _, ok := knownChainIDs[o.Network]; !ok {
			continue
		}
		if !strings.EqualFold(o.Asset, "USDC") {
			continue
		}
		return o, nil
	}
	return PaymentOffer{}, apperrors.NewPaymentError(apperrors.PaymentNetworkMismatch, fmt.Errorf("no offer matched a supported network/USDC asset"))
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, paymentHeader string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if paymentHeader != "" {
		req.Header.Set("X-PAYMENT", paymentHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// signPayment constructs and signs the EIP-712 TransferWithAuthorization
// payload for offer, returning the base64 X-PAYMENT header value.
func (c *Client) signPayment(offer PaymentOffer) (string, *PaymentInfo, error) {
	chainID, ok := knownChainIDs[offer.Network]
	if !ok {
		return "", nil, apperrors.NewPaymentError(apperrors.PaymentNetworkMismatch, fmt.Errorf("unknown network %q", offer.Network))
	}
	verifyingContract := offer.PayTo
	if addr, ok := usdcContracts[offer.Network]; ok {
		verifyingContract = addr
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", nil, fmt.Errorf("generate nonce: %w", err)
	}

	validAfter := int64(0)
	validBefore := time.Now().Unix() + 300

	amount, ok := new(big.Int).SetString(offer.AmountRequired, 10)
	if !ok {
		return "", nil, fmt.Errorf("invalid amount_required %q", offer.AmountRequired)
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": {
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              "USD Coin",
			Version:           "2",
			ChainId:           (*math.HexOrDecimal256)(big.NewInt(chainID)),
			VerifyingContract: verifyingContract,
		},
		Message: apitypes.TypedDataMessage{
			"from":        c.address.Hex(),
			"to":          offer.PayTo,
			"value":       amount.String(),
			"validAfter":  strconv.FormatInt(validAfter, 10),
			"validBefore": strconv.FormatInt(validBefore, 10),
			"nonce":       hexutil.Encode(nonce),
		},
	}

	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", nil, fmt.Errorf("hash typed data: %w", err)
	}

	sig, err := crypto.Sign(digest, c.privateKey)
	if err != nil {
		return "", nil, fmt.Errorf("sign payment authorization: %w", err)
	}
	// crypto.Sign returns v in {0,1}; EIP-712/ecrecover-compatible sigs use {27,28}.
	sig[64] += 27

	payload := map[string]any{
		"scheme":  offer.Scheme,
		"network": offer.Network,
		"payload": map[string]any{
			"signature": hexutil.Encode(sig),
			"authorization": map[string]any{
				"from":        c.address.Hex(),
				"to":          offer.PayTo,
				"value":       amount.String(),
				"validAfter":  strconv.FormatInt(validAfter, 10),
				"validBefore": strconv.FormatInt(validBefore, 10),
				"nonce":       hexutil.Encode(nonce),
			},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("encode payment header: %w", err)
	}

	info := &PaymentInfo{
		AmountFormatted: formatUSDC(amount),
		Asset:           "USDC",
		PayTo:           offer.PayTo,
	}
	return base64.StdEncoding.EncodeToString(raw), info, nil
}

// formatUSDC renders a raw 6-decimal USDC amount as a decimal string.
func formatUSDC(amount *big.Int) string {
	divisor := big.NewInt(1_000_000)
	whole := new(big.Int).Div(amount, divisor)
	frac := new(big.Int).Mod(amount, divisor)
	return fmt.Sprintf("%s.%06d", whole.String(), frac.Int64())
}
