package x402

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestEncodeBalanceOfSelector(t *testing.T) {
	addr := common.HexToAddress("0x000000000000000000000000000000000000aa")
	got := EncodeBalanceOf(addr)
	// balanceOf(address) selector is 0x70a08231.
	if got[:10] != "0x70a08231" {
		t.Fatalf("expected balanceOf selector, got %s", got[:10])
	}
	if len(got) != 2+8+64 {
		t.Fatalf("expected selector + one padded word, got len %d", len(got))
	}
}

func TestEncodeDecimalsAndSymbolSelectors(t *testing.T) {
	if EncodeDecimals() != "0x313ce567" {
		t.Fatalf("unexpected decimals() selector: %s", EncodeDecimals())
	}
	if EncodeSymbol() != "0x95d89b41" {
		t.Fatalf("unexpected symbol() selector: %s", EncodeSymbol())
	}
}

func TestDecodeBalanceRoundTrip(t *testing.T) {
	want := big.NewInt(123456789)
	padded := common.LeftPadBytes(want.Bytes(), 32)
	hexData := "0x" + common.Bytes2Hex(padded)

	got, err := DecodeBalance(hexData)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestDecodeDecimals(t *testing.T) {
	padded := common.LeftPadBytes(big.NewInt(6).Bytes(), 32)
	got, err := DecodeDecimals("0x" + common.Bytes2Hex(padded))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != 6 {
		t.Fatalf("expected 6, got %d", got)
	}
}

func TestDecodeSymbol(t *testing.T) {
	// offset word (0x20) + length word (4) + "USDC" padded to 32 bytes.
	offset := common.LeftPadBytes(big.NewInt(32).Bytes(), 32)
	length := common.LeftPadBytes(big.NewInt(4).Bytes(), 32)
	data := append(append([]byte{}, offset...), length...)
	symBytes := make([]byte, 32)
	copy(symBytes, "USDC")
	data = append(data, symBytes...)

	got, err := DecodeSymbol("0x" + common.Bytes2Hex(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != "USDC" {
		t.Fatalf("expected USDC, got %q", got)
	}
}
