package common

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	SOLDecimals   = 9 // SOL has 9 decimals (lamports)
	TokenDecimals = 6 // USDC has 6 decimals (micro)
)

// LamportsToSOL converts lamports to SOL string without float precision loss
func LamportsToSOL(lamports uint64) string {
	return formatWithDecimals(lamports, SOLDecimals)
}

// ToBaseUnits converts a decimal token amount string to base units (micro for
// USDC) without float precision loss
func ToBaseUnits(amount string) (uint64, error) {
	return parseWithDecimals(amount, TokenDecimals)
}

// FromBaseUnits converts base units back to a decimal token amount string
func FromBaseUnits(micro uint64) string {
	return formatWithDecimals(micro, TokenDecimals)
}

// RoundToHundredths rounds a base-unit amount to 2 decimal places (half up)
// and returns it in hundredths of a token unit. Used for deduplication keys:
// amounts differing only beyond the 2nd decimal must collide.
// Example: 10.001 and 10.004 USDC both become 1000 hundredths = "10.00".
func RoundToHundredths(micro uint64) uint64 {
	const perHundredth = 10_000 // micro units in 0.01 of a 6-decimal token
	return (micro + perHundredth/2) / perHundredth
}

// HundredthsString formats a hundredths value as a 2-decimal string, e.g.
// 1000 -> "10.00". Used when embedding a rounded amount in a composite key.
func HundredthsString(hundredths uint64) string {
	return formatWithDecimals(hundredths, 2)
}

// formatWithDecimals converts integer to decimal string by inserting decimal point
// Example: formatWithDecimals(24981836, 9) = "0.024981836"
func formatWithDecimals(value uint64, decimals int) string {
	s := fmt.Sprintf("%d", value)

	// Pad with leading zeros if needed
	for len(s) <= decimals {
		s = "0" + s
	}

	// Insert decimal point
	pos := len(s) - decimals
	return s[:pos] + "." + s[pos:]
}

// parseWithDecimals converts decimal string to integer by removing decimal point
// Example: parseWithDecimals("0.024981836", 9) = 24981836
func parseWithDecimals(s string, decimals int) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}

	parts := strings.Split(s, ".")

	if len(parts) == 1 {
		// No decimal point - multiply by 10^decimals
		n, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return 0, err
		}
		for i := 0; i < decimals; i++ {
			n *= 10
		}
		return n, nil
	}

	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid decimal format")
	}

	whole := parts[0]
	frac := parts[1]

	// Pad or truncate fractional part to exact decimals
	if len(frac) < decimals {
		frac += strings.Repeat("0", decimals-len(frac))
	} else if len(frac) > decimals {
		frac = frac[:decimals]
	}

	// Combine and parse
	combined := whole + frac
	return strconv.ParseUint(combined, 10, 64)
}
