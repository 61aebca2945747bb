package x402

import (
	"context"
	"encoding/json"
	"fmt"
)

// EvmRPC is a paid JSON-RPC client routed through defirelay.com, matching
// the paid JSON-RPC tool's `rpc.defirelay.com/rpc/{light|heavy}/{base|mainnet}`
// wiring named in spec.md §4.6.
type EvmRPC struct {
	client   *Client
	network  string
	endpoint string // "light" or "heavy"
}

// NewEvmRPC builds a paid RPC client for network ("base" or "mainnet"),
// defaulting to the cheaper "light" endpoint class.
func NewEvmRPC(client *Client, network string) *EvmRPC {
	return &EvmRPC{client: client, network: network, endpoint: "light"}
}

// WithHeavyEndpoint switches to the "heavy" endpoint class used for
// eth_getLogs/debug_*/trace_* methods.
func (r *EvmRPC) WithHeavyEndpoint() *EvmRPC {
	return &EvmRPC{client: r.client, network: r.network, endpoint: "heavy"}
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *jsonRPCError   `json:"error"`
}

// Call issues a JSON-RPC method call, paying via x402 if the endpoint
// challenges with a 402, and returns the raw `result` field plus any
// payment info recorded for the call.
func (r *EvmRPC) Call(ctx context.Context, method string, params any) (json.RawMessage, *PaymentInfo, error) {
	url := fmt.Sprintf("https://rpc.defirelay.com/rpc/%s/%s", r.endpoint, r.network)
	if params == nil {
		params = []any{}
	}
	req := jsonRPCRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1}

	resp, err := r.client.Post(ctx, url, req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("rpc http status %d: %s", resp.StatusCode, string(resp.Body))
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(resp.Body, &rpcResp); err != nil {
		return nil, nil, fmt.Errorf("invalid json-rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, resp.Payment, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, resp.Payment, nil
}

// EthCall performs eth_call against to with the given ABI-encoded data.
func (r *EvmRPC) EthCall(ctx context.Context, to string, data string) (string, *PaymentInfo, error) {
	params := []any{map[string]any{"to": to, "data": data}, "latest"}
	result, payment, err := r.Call(ctx, "eth_call", params)
	if err != nil {
		return "", payment, err
	}
	var hexResult string
	if err := json.Unmarshal(result, &hexResult); err != nil {
		return "", payment, fmt.Errorf("unexpected eth_call result shape: %w", err)
	}
	return hexResult, payment, nil
}
