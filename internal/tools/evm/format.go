package evm

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// formatWeiHex renders a 0x-prefixed hex wei quantity (as returned by
// eth_getBalance) as a decimal ETH amount with up to 18 fractional digits,
// trailing zeros trimmed.
func formatWeiHex(hexWei string) string {
	wei, err := hexutil.DecodeBig(hexWei)
	if err != nil {
		return "0"
	}
	return formatUnits(wei, 18)
}

// formatUnits renders amount (an integer base unit quantity) as a decimal
// string with decimals fractional digits, trailing zeros trimmed.
func formatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole := new(big.Int).Div(amount, divisor)
	frac := new(big.Int).Mod(amount, divisor)
	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := frac.String()
	if pad := decimals - len(fracStr); pad > 0 {
		fracStr = strings.Repeat("0", pad) + fracStr
	}
	fracStr = strings.TrimRight(fracStr, "0")
	if fracStr == "" {
		return whole.String()
	}
	return whole.String() + "." + fracStr
}

// commonBytesToHex renders raw bytes as lowercase hex without a 0x prefix.
func commonBytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}
