// Package evm implements the on-chain tools: wallet queries, the paid x402
// fetch/RPC tools, and EIP-1559 transaction signing, per spec.md §4.2/§4.6.
package evm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/nexuscore/agent/internal/toolruntime"
	"github.com/nexuscore/agent/internal/x402"
	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

// WalletTool is local_burner_wallet: address/balance/token_balance/sign,
// using the burner wallet configured via ctx.api_keys["burner_wallet"].
type WalletTool struct{}

type walletArgs struct {
	Action  string `json:"action"`
	Network string `json:"network"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

func (t *WalletTool) Definition() models.ToolDefinition {
	schema := `{
		"type": "object",
		"properties": {
			"action": {"type": "string", "enum": ["address", "balance", "token_balance", "sign"], "default": "address"},
			"network": {"type": "string", "enum": ["base", "mainnet"], "default": "base"},
			"token": {"type": "string", "description": "ERC20 token contract address for token_balance"},
			"message": {"type": "string", "description": "Message to sign for the sign action"}
		},
		"required": ["action"]
	}`
	return models.ToolDefinition{
		Name:        "local_burner_wallet",
		Description: "Query the local burner wallet: address, ETH balance, ERC20 balance, or sign a message.",
		InputSchema: json.RawMessage(schema),
		Group:       models.ToolGroupWeb,
	}
}

func (t *WalletTool) Execute(tc toolruntime.ToolContext, raw json.RawMessage) (*models.ToolResult, error) {
	args := walletArgs{Network: "base"}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "local_burner_wallet", err)
	}

	privateKey := tc.APIKeys["burner_wallet"]
	client, err := x402.NewClient(privateKey)
	if err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}

	switch args.Action {
	case "", "address":
		return &models.ToolResult{
			Success: true,
			Content: fmt.Sprintf("Wallet address: %s", client.WalletAddress()),
			Metadata: mustJSON(map[string]any{"address": client.WalletAddress()}),
		}, nil

	case "balance":
		rpc := x402.NewEvmRPC(client, args.Network)
		addr := client.WalletAddress()
		result, _, err := rpc.Call(tc.Ctx, "eth_getBalance", []any{addr, "latest"})
		if err != nil {
			return &models.ToolResult{Success: false, Error: err.Error()}, nil
		}
		var hexBalance string
		_ = json.Unmarshal(result, &hexBalance)
		formatted := formatWeiHex(hexBalance)
		return &models.ToolResult{
			Success: true,
			Content: fmt.Sprintf("Wallet: %s\nBalance: %s ETH (%s)", addr, formatted, args.Network),
			Metadata: mustJSON(map[string]any{"address": addr, "balance": formatted, "network": args.Network}),
		}, nil

	case "token_balance":
		if args.Token == "" {
			return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "local_burner_wallet", fmt.Errorf("'token' is required for token_balance"))
		}
		if !common.IsHexAddress(args.Token) {
			return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "local_burner_wallet", fmt.Errorf("invalid token address"))
		}
		token := common.HexToAddress(args.Token)
		addr := client.WalletAddress()
		rpc := x402.NewEvmRPC(client, args.Network)

		balHex, _, err := rpc.EthCall(tc.Ctx, token.Hex(), x402.EncodeBalanceOf(common.HexToAddress(addr)))
		if err != nil {
			return &models.ToolResult{Success: false, Error: err.Error()}, nil
		}
		balance, err := x402.DecodeBalance(balHex)
		if err != nil {
			return &models.ToolResult{Success: false, Error: err.Error()}, nil
		}

		decimals := 18
		if decHex, _, err := rpc.EthCall(tc.Ctx, token.Hex(), x402.EncodeDecimals()); err == nil {
			if d, err := x402.DecodeDecimals(decHex); err == nil {
				decimals = d
			}
		}
		symbol := "TOKEN"
		if symHex, _, err := rpc.EthCall(tc.Ctx, token.Hex(), x402.EncodeSymbol()); err == nil {
			if s, err := x402.DecodeSymbol(symHex); err == nil && s != "" {
				symbol = s
			}
		}

		formatted := formatUnits(balance, decimals)
		return &models.ToolResult{
			Success: true,
			Content: fmt.Sprintf("Wallet: %s\nToken: %s (%s)\nBalance: %s (%s)", addr, args.Token, symbol, formatted, args.Network),
			Metadata: mustJSON(map[string]any{
				"address": addr, "token": args.Token, "symbol": symbol,
				"balance": formatted, "network": args.Network,
			}),
		}, nil

	case "sign":
		if args.Message == "" {
			return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "local_burner_wallet", fmt.Errorf("'message' is required for sign"))
		}
		key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
		if err != nil {
			return &models.ToolResult{Success: false, Error: err.Error()}, nil
		}
		hash := accounts.TextHash([]byte(args.Message))
		sig, err := crypto.Sign(hash, key)
		if err != nil {
			return &models.ToolResult{Success: false, Error: err.Error()}, nil
		}
		sig[64] += 27
		addr := client.WalletAddress()
		signature := "0x" + commonBytesToHex(sig)
		return &models.ToolResult{
			Success: true,
			Content: fmt.Sprintf("Signed by: %s\nMessage: %s\nSignature: %s", addr, args.Message, signature),
			Metadata: mustJSON(map[string]any{"address": addr, "message": args.Message, "signature": signature}),
		}, nil

	default:
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "local_burner_wallet", fmt.Errorf("unknown action %q", args.Action))
	}
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
