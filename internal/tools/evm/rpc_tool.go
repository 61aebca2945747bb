package evm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscore/agent/internal/toolruntime"
	"github.com/nexuscore/agent/internal/x402"
	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

// X402RPCTool is x402_rpc: paid EVM JSON-RPC calls routed through DeFi
// Relay's light/heavy endpoint classes.
type X402RPCTool struct{}

type x402RPCArgs struct {
	Method       string `json:"method"`
	Params       []any  `json:"params"`
	Network      string `json:"network"`
	EndpointType string `json:"endpoint_type"`
}

var heavyMethods = map[string]bool{
	"eth_getLogs": true,
}

func isHeavyMethod(method string) bool {
	if heavyMethods[method] {
		return true
	}
	return strings.HasPrefix(method, "debug_") || strings.HasPrefix(method, "trace_")
}

func (t *X402RPCTool) Definition() models.ToolDefinition {
	schema := `{
		"type": "object",
		"properties": {
			"method": {"type": "string", "description": "JSON-RPC method, e.g. eth_call, eth_getBalance, eth_blockNumber"},
			"params": {"type": "array", "description": "RPC params array", "default": []},
			"network": {"type": "string", "enum": ["base", "mainnet"], "default": "base"},
			"endpoint_type": {"type": "string", "enum": ["light", "heavy"], "description": "light is cheaper; heavy is required for eth_getLogs/debug_*/trace_*"}
		},
		"required": ["method"]
	}`
	return models.ToolDefinition{
		Name:        "x402_rpc",
		Description: "Make paid EVM JSON-RPC calls via x402 (light/heavy endpoint classes). Use for on-chain queries like balances and contract calls.",
		InputSchema: json.RawMessage(schema),
		Group:       models.ToolGroupWeb,
	}
}

func (t *X402RPCTool) Execute(tc toolruntime.ToolContext, raw json.RawMessage) (*models.ToolResult, error) {
	args := x402RPCArgs{Network: "base"}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "x402_rpc", err)
	}
	if args.Method == "" {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "x402_rpc", fmt.Errorf("method is required"))
	}
	if args.Network != "base" && args.Network != "mainnet" {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "x402_rpc", fmt.Errorf("network must be base or mainnet"))
	}

	client, err := x402.NewClient(tc.APIKeys["burner_wallet"])
	if err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}

	rpc := x402.NewEvmRPC(client, args.Network)
	if args.EndpointType == "heavy" || isHeavyMethod(args.Method) {
		rpc = rpc.WithHeavyEndpoint()
	}

	result, payment, err := rpc.Call(tc.Ctx, args.Method, args.Params)
	if err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}

	metadata := map[string]any{"method": args.Method, "network": args.Network}
	if payment != nil {
		metadata["payment"] = payment
	}
	metaJSON, _ := json.Marshal(metadata)

	return &models.ToolResult{Success: true, Content: string(result), Metadata: metaJSON}, nil
}
