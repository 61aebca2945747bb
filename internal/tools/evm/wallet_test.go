package evm

import (
	"encoding/json"
	"testing"
)

func TestWalletToolNoKeyConfigured(t *testing.T) {
	tool := &WalletTool{}
	params, _ := json.Marshal(map[string]any{"action": "address"})

	result, err := tool.Execute(testEvmContext(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure with no burner wallet key configured")
	}
}

func TestWalletToolTokenBalanceRequiresToken(t *testing.T) {
	tool := &WalletTool{}
	ctx := testEvmContext()
	// A syntactically valid throwaway key so NewClient succeeds and the
	// missing-token validation is what's actually exercised.
	ctx.APIKeys["burner_wallet"] = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690"
	params, _ := json.Marshal(map[string]any{"action": "token_balance"})

	_, err := tool.Execute(ctx, params)
	if err == nil {
		t.Fatalf("expected error for missing token")
	}
}

func TestWalletToolUnknownAction(t *testing.T) {
	tool := &WalletTool{}
	ctx := testEvmContext()
	ctx.APIKeys["burner_wallet"] = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690"
	params, _ := json.Marshal(map[string]any{"action": "teleport"})

	_, err := tool.Execute(ctx, params)
	if err == nil {
		t.Fatalf("expected error for unknown action")
	}
}
