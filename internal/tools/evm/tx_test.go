package evm

import (
	"encoding/json"
	"testing"
)

func TestDecodeCallDataPadsOddLength(t *testing.T) {
	data, err := decodeCallData("0xabc")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(data) != 2 {
		t.Fatalf("expected 2 bytes after left-pad, got %d", len(data))
	}
}

func TestDecodeCallDataEmpty(t *testing.T) {
	data, err := decodeCallData("0x")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data != nil {
		t.Fatalf("expected nil data for empty call data, got %v", data)
	}
}

func TestValueOrZeroInvalid(t *testing.T) {
	if got := valueOrZero("not-a-number"); got.Sign() != 0 {
		t.Fatalf("expected 0 for invalid value, got %s", got.String())
	}
}

func TestTxToolRejectsInvalidAddress(t *testing.T) {
	tool := &TxTool{}
	params, _ := json.Marshal(map[string]any{"to": "not-an-address"})

	_, err := tool.Execute(testEvmContext(), params)
	if err == nil {
		t.Fatalf("expected error for invalid 'to' address")
	}
}

func TestTxToolRejectsUnknownNetwork(t *testing.T) {
	tool := &TxTool{}
	params, _ := json.Marshal(map[string]any{
		"to":      "0x00000000000000000000000000000000000000Ab",
		"network": "testnet-7",
	})

	_, err := tool.Execute(testEvmContext(), params)
	if err == nil {
		t.Fatalf("expected error for unknown network")
	}
}
