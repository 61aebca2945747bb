package x402

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// erc20 holds the ABI-encoding helpers for the handful of ERC20 read calls
// the wallet tool needs (balanceOf, decimals, symbol), mirroring the
// small hand-rolled ABI encoder the original burner-wallet tool used
// instead of pulling in a full ABI library for three selectors.
func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// EncodeBalanceOf ABI-encodes `balanceOf(address)`.
func EncodeBalanceOf(address common.Address) string {
	data := append(selector("balanceOf(address)"), common.LeftPadBytes(address.Bytes(), 32)...)
	return hexutil.Encode(data)
}

// EncodeDecimals ABI-encodes `decimals()`.
func EncodeDecimals() string {
	return hexutil.Encode(selector("decimals()"))
}

// EncodeSymbol ABI-encodes `symbol()`.
func EncodeSymbol() string {
	return hexutil.Encode(selector("symbol()"))
}

// DecodeBalance parses a `balanceOf` / `uint256` return value.
func DecodeBalance(hexData string) (*big.Int, error) {
	data, err := hexutil.Decode(hexData)
	if err != nil {
		return nil, fmt.Errorf("decode balance data: %w", err)
	}
	if len(data) < 32 {
		return nil, fmt.Errorf("balance data too short")
	}
	return new(big.Int).SetBytes(data[:32]), nil
}

// DecodeDecimals parses a `decimals` / `uint8` return value.
func DecodeDecimals(hexData string) (int, error) {
	data, err := hexutil.Decode(hexData)
	if err != nil {
		return 0, fmt.Errorf("decode decimals data: %w", err)
	}
	if len(data) < 32 {
		return 0, fmt.Errorf("decimals data too short")
	}
	return int(new(big.Int).SetBytes(data[:32]).Int64()), nil
}

// DecodeSymbol parses a `symbol` / `string` ABI return value (dynamic type:
// offset word, length word, then padded UTF-8 bytes).
func DecodeSymbol(hexData string) (string, error) {
	data, err := hexutil.Decode(hexData)
	if err != nil {
		return "", fmt.Errorf("decode symbol data: %w", err)
	}
	if len(data) < 64 {
		return "", fmt.Errorf("symbol data too short")
	}
	length := new(big.Int).SetBytes(data[32:64]).Int64()
	if int64(len(data)) < 64+length {
		return "", fmt.Errorf("symbol data truncated")
	}
	return strings.TrimRight(string(data[64:64+length]), "\x00"), nil
}
