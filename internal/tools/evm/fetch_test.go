package evm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nexuscore/agent/internal/toolruntime"
)

func testEvmContext() toolruntime.ToolContext {
	return toolruntime.ToolContext{Ctx: context.Background(), APIKeys: map[string]string{}}
}

func TestX402FetchRejectsNonX402Endpoint(t *testing.T) {
	tool := &X402FetchTool{}
	params, _ := json.Marshal(map[string]any{"url": "https://example.com/api"})

	result, err := tool.Execute(testEvmContext(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure for non-x402 endpoint")
	}
}

func TestX402FetchRejectsInvalidMethod(t *testing.T) {
	tool := &X402FetchTool{}
	params, _ := json.Marshal(map[string]any{"url": "https://quoter.defirelay.com/quote", "method": "DELETE"})

	_, err := tool.Execute(testEvmContext(), params)
	if err == nil {
		t.Fatalf("expected error for invalid method")
	}
}

func TestIsX402Endpoint(t *testing.T) {
	cases := map[string]bool{
		"https://quoter.defirelay.com/quote":   true,
		"https://rpc.defirelay.com/rpc/light/base": true,
		"https://example.com/api":              false,
	}
	for url, want := range cases {
		if got := isX402Endpoint(url); got != want {
			t.Fatalf("isX402Endpoint(%q) = %v, want %v", url, got, want)
		}
	}
}
