package multisig

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// DefaultTokenDecimals applies to tokens missing from the account's token directory.
	DefaultTokenDecimals = 18
	// DefaultFractionDigits is how many fractional digits a display amount keeps.
	DefaultFractionDigits = 6
)

// NormalizeAddress returns the canonical form of a hex felt address: lower
// case, 0x prefix, no leading zeros. Non-hex strings are only lower-cased.
func NormalizeAddress(addr string) string {
	a := strings.ToLower(strings.TrimSpace(addr))
	if !strings.HasPrefix(a, "0x") {
		return a
	}
	digits := strings.TrimLeft(a[2:], "0")
	if digits == "" {
		digits = "0"
	}
	return "0x" + digits
}

// FormatAddress shortens an address to its first six and last four characters.
func FormatAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// ParseInteger parses a decimal or 0x-prefixed hex integer.
func ParseInteger(s string) (*big.Int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, fmt.Errorf("empty integer")
	}
	v, ok := new(big.Int).SetString(trimmed, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

// FormatAmount scales a fixed-point integer by 10^decimals and renders it with
// at most maxFraction fractional digits, truncating and trimming trailing zeros.
func FormatAmount(amount *big.Int, decimals, maxFraction int) string {
	if amount == nil {
		return "0"
	}
	d := decimal.NewFromBigInt(amount, -int32(decimals))
	return d.Truncate(int32(maxFraction)).String()
}

// parseDisplayAmount parses a rendered display amount. Empty means zero.
func parseDisplayAmount(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
