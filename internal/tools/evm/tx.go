package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/nexuscore/agent/internal/toolruntime"
	"github.com/nexuscore/agent/internal/x402"
	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

var explorerBaseURLs = map[string]string{
	"base":    "https://basescan.org/tx/",
	"mainnet": "https://etherscan.io/tx/",
}

const (
	gasEstimateBufferPct  = 20
	defaultPriorityGwei   = 1
	receiptPollInterval   = 3 * time.Second
	receiptPollDeadline   = 120 * time.Second
)

// TxTool is the EVM transaction-send tool: signs an EIP-1559 transaction
// locally with the burner wallet and broadcasts it via paid RPC, per
// spec.md §4.2.
type TxTool struct{}

type txArgs struct {
	To                   string `json:"to"`
	Data                 string `json:"data"`
	Value                string `json:"value"`
	Network              string `json:"network"`
	GasLimit             uint64 `json:"gas_limit"`
	MaxFeePerGas         string `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas string `json:"max_priority_fee_per_gas"`
}

func (t *TxTool) Definition() models.ToolDefinition {
	schema := `{
		"type": "object",
		"properties": {
			"to": {"type": "string", "description": "Recipient/contract address"},
			"data": {"type": "string", "description": "Hex call data, auto left-padded on odd length", "default": "0x"},
			"value": {"type": "string", "description": "Wei amount to send, decimal string", "default": "0"},
			"network": {"type": "string", "enum": ["base", "mainnet"], "default": "base"},
			"gas_limit": {"type": "integer", "description": "Gas limit; estimated via RPC + 20%% buffer if omitted"},
			"max_fee_per_gas": {"type": "string", "description": "Wei; RPC-suggested if omitted"},
			"max_priority_fee_per_gas": {"type": "string", "description": "Wei; RPC-suggested if omitted, else 1 gwei"}
		},
		"required": ["to"]
	}`
	return models.ToolDefinition{
		Name:        "evm_transaction",
		Description: "Sign and broadcast an EIP-1559 EVM transaction from the local burner wallet.",
		InputSchema: json.RawMessage(schema),
		Group:       models.ToolGroupWeb,
	}
}

func (t *TxTool) Execute(tc toolruntime.ToolContext, raw json.RawMessage) (*models.ToolResult, error) {
	args := txArgs{Network: "base", Data: "0x", Value: "0"}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "evm_transaction", err)
	}
	if !common.IsHexAddress(args.To) {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "evm_transaction", fmt.Errorf("'to' must be a valid address"))
	}
	chainID, ok := x402.ChainID(args.Network)
	if !ok {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "evm_transaction", fmt.Errorf("unknown network %q", args.Network))
	}

	data, err := decodeCallData(args.Data)
	if err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "evm_transaction", err)
	}
	value, ok := new(big.Int).SetString(strings.TrimSpace(args.Value), 10)
	if !ok {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "evm_transaction", fmt.Errorf("invalid value %q", args.Value))
	}

	client, err := x402.NewClient(tc.APIKeys["burner_wallet"])
	if err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(tc.APIKeys["burner_wallet"], "0x"))
	if err != nil {
		return &models.ToolResult{Success: false, Error: fmt.Sprintf("invalid private key: %s", err)}, nil
	}
	from := common.HexToAddress(client.WalletAddress())
	to := common.HexToAddress(args.To)
	rpc := x402.NewEvmRPC(client, args.Network)

	nonce, err := fetchNonce(tc.Ctx, rpc, client.WalletAddress())
	if err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}

	gasLimit := args.GasLimit
	if gasLimit == 0 {
		gasLimit, err = estimateGas(tc.Ctx, rpc, client.WalletAddress(), args.To, args.Data, args.Value)
		if err != nil {
			return &models.ToolResult{Success: false, Error: err.Error()}, nil
		}
	}

	maxFee, priorityFee, err := resolveFees(tc.Ctx, rpc, args.MaxFeePerGas, args.MaxPriorityFeePerGas)
	if err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(chainID),
		Nonce:     nonce,
		GasTipCap: priorityFee,
		GasFeeCap: maxFee,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	})

	signer := types.LatestSignerForChainID(big.NewInt(chainID))
	signedTx, err := types.SignTx(tx, signer, key)
	if err != nil {
		return &models.ToolResult{Success: false, Error: fmt.Sprintf("sign transaction: %s", err)}, nil
	}
	rawTxBytes, err := signedTx.MarshalBinary()
	if err != nil {
		return &models.ToolResult{Success: false, Error: fmt.Sprintf("encode signed transaction: %s", err)}, nil
	}

	result, _, err := rpc.Call(tc.Ctx, "eth_sendRawTransaction", []any{hexutil.Encode(rawTxBytes)})
	if err != nil {
		return &models.ToolResult{Success: false, Error: fmt.Sprintf("broadcast failed: %s", err)}, nil
	}
	var txHash string
	_ = json.Unmarshal(result, &txHash)
	if txHash == "" {
		txHash = signedTx.Hash().Hex()
	}

	explorerURL := explorerBaseURLs[args.Network] + txHash
	if tc.Broadcaster != nil {
		tc.Broadcaster.Emit("tx.pending", map[string]any{
			"hash":         txHash,
			"explorer_url": explorerURL,
			"network":      args.Network,
			"from":         from.Hex(),
			"to":           to.Hex(),
		})
	}

	status := pollReceipt(tc.Ctx, rpc, txHash)
	if tc.Broadcaster != nil {
		tc.Broadcaster.Emit("tx.confirmed", map[string]any{
			"hash":    txHash,
			"status":  status,
			"network": args.Network,
		})
	}

	metadata, _ := json.Marshal(map[string]any{
		"hash":         txHash,
		"explorer_url": explorerURL,
		"status":       status,
		"network":      args.Network,
		"nonce":        nonce,
		"gas_limit":    gasLimit,
	})

	return &models.ToolResult{
		Success: status != "reverted",
		Content: fmt.Sprintf("Transaction %s: %s\n%s", status, txHash, explorerURL),
		Metadata: metadata,
	}, nil
}

func decodeCallData(data string) ([]byte, error) {
	if data == "" || data == "0x" {
		return nil, nil
	}
	hexStr := strings.TrimPrefix(data, "0x")
	if len(hexStr)%2 != 0 {
		hexStr = "0" + hexStr
	}
	return hexutil.Decode("0x" + hexStr)
}

func fetchNonce(ctx context.Context, rpc *x402.EvmRPC, address string) (uint64, error) {
	result, _, err := rpc.Call(ctx, "eth_getTransactionCount", []any{address, "pending"})
	if err != nil {
		return 0, fmt.Errorf("fetch nonce: %w", err)
	}
	var hexNonce string
	if err := json.Unmarshal(result, &hexNonce); err != nil {
		return 0, fmt.Errorf("unexpected nonce response: %w", err)
	}
	nonce, err := hexutil.DecodeUint64(hexNonce)
	if err != nil {
		return 0, fmt.Errorf("decode nonce: %w", err)
	}
	return nonce, nil
}

func estimateGas(ctx context.Context, rpc *x402.EvmRPC, from, to, data, value string) (uint64, error) {
	params := []any{map[string]any{"from": from, "to": to, "data": data, "value": hexutil.EncodeBig(valueOrZero(value))}}
	result, _, err := rpc.Call(ctx, "eth_estimateGas", params)
	if err != nil {
		return 0, fmt.Errorf("estimate gas: %w", err)
	}
	var hexGas string
	if err := json.Unmarshal(result, &hexGas); err != nil {
		return 0, fmt.Errorf("unexpected gas estimate response: %w", err)
	}
	gas, err := hexutil.DecodeUint64(hexGas)
	if err != nil {
		return 0, fmt.Errorf("decode gas estimate: %w", err)
	}
	return gas + (gas*gasEstimateBufferPct)/100, nil
}

func valueOrZero(value string) *big.Int {
	v, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

// resolveFees returns (maxFeePerGas, maxPriorityFeePerGas), using caller-supplied
// values where given and falling back to an RPC-reported suggestion, then to
// a 1 gwei priority fee if even that fails.
func resolveFees(ctx context.Context, rpc *x402.EvmRPC, maxFeeStr, priorityFeeStr string) (*big.Int, *big.Int, error) {
	var priorityFee *big.Int
	if priorityFeeStr != "" {
		v, ok := new(big.Int).SetString(priorityFeeStr, 10)
		if !ok {
			return nil, nil, fmt.Errorf("invalid max_priority_fee_per_gas %q", priorityFeeStr)
		}
		priorityFee = v
	} else if suggested, err := fetchMaxPriorityFee(ctx, rpc); err == nil {
		priorityFee = suggested
	} else {
		priorityFee = big.NewInt(defaultPriorityGwei * 1_000_000_000)
	}

	if maxFeeStr != "" {
		v, ok := new(big.Int).SetString(maxFeeStr, 10)
		if !ok {
			return nil, nil, fmt.Errorf("invalid max_fee_per_gas %q", maxFeeStr)
		}
		return v, priorityFee, nil
	}

	baseFee, err := fetchBaseFee(ctx, rpc)
	if err != nil {
		// 2x priority fee as a last-resort floor when base fee is unavailable.
		return new(big.Int).Mul(priorityFee, big.NewInt(2)), priorityFee, nil
	}
	maxFee := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), priorityFee)
	return maxFee, priorityFee, nil
}

func fetchMaxPriorityFee(ctx context.Context, rpc *x402.EvmRPC) (*big.Int, error) {
	result, _, err := rpc.Call(ctx, "eth_maxPriorityFeePerGas", []any{})
	if err != nil {
		return nil, err
	}
	var hexFee string
	if err := json.Unmarshal(result, &hexFee); err != nil {
		return nil, err
	}
	return hexutil.DecodeBig(hexFee)
}

func fetchBaseFee(ctx context.Context, rpc *x402.EvmRPC) (*big.Int, error) {
	result, _, err := rpc.Call(ctx, "eth_getBlockByNumber", []any{"latest", false})
	if err != nil {
		return nil, err
	}
	var block struct {
		BaseFeePerGas string `json:"baseFeePerGas"`
	}
	if err := json.Unmarshal(result, &block); err != nil || block.BaseFeePerGas == "" {
		return nil, fmt.Errorf("base fee not reported")
	}
	return hexutil.DecodeBig(block.BaseFeePerGas)
}

// pollReceipt polls eth_getTransactionReceipt until a receipt appears or the
// deadline elapses, returning "confirmed", "reverted", or "pending" (the tx
// never landed within the poll window).
func pollReceipt(ctx context.Context, rpc *x402.EvmRPC, txHash string) string {
	deadline := time.Now().Add(receiptPollDeadline)
	for time.Now().Before(deadline) {
		result, _, err := rpc.Call(ctx, "eth_getTransactionReceipt", []any{txHash})
		if err == nil && len(result) > 0 && string(result) != "null" {
			var receipt struct {
				Status string `json:"status"`
			}
			if json.Unmarshal(result, &receipt) == nil && receipt.Status != "" {
				if receipt.Status == "0x1" {
					return "confirmed"
				}
				return "reverted"
			}
		}
		select {
		case <-ctx.Done():
			return "pending"
		case <-time.After(receiptPollInterval):
		}
	}
	return "pending"
}
