package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unit constants. The ledger counts in micro-OCT.
const (
	Decimals    = 6
	MicroPerOCT = 1_000_000
)

// ParseOCT converts a decimal OCT string (e.g. "1.5") to micro-OCT without
// going through floating point.
func ParseOCT(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative amount")
	}

	parts := strings.SplitN(s, ".", 2)
	if parts[0] == "" {
		parts[0] = "0"
	}
	whole, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid whole part: %w", err)
	}

	var frac uint64
	if len(parts) == 2 && parts[1] != "" {
		fracStr := parts[1]
		if len(fracStr) > Decimals {
			return 0, fmt.Errorf("too many decimal places (max %d)", Decimals)
		}
		fracStr += strings.Repeat("0", Decimals-len(fracStr))
		frac, err = strconv.ParseUint(fracStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid fractional part: %w", err)
		}
	}

	if whole > math.MaxUint64/MicroPerOCT {
		return 0, fmt.Errorf("amount too large")
	}
	result := whole * MicroPerOCT
	if result > math.MaxUint64-frac {
		return 0, fmt.Errorf("amount too large")
	}
	return result + frac, nil
}

// FormatMicro renders micro-OCT with all six decimals, e.g. "2.500000".
func FormatMicro(micro uint64) string {
	return fmt.Sprintf("%d.%06d", micro/MicroPerOCT, micro%MicroPerOCT)
}

// FormatOCT renders micro-OCT for display: at least two decimals, trailing
// zeros beyond that trimmed, followed by the unit. 2_500_000 → "2.50 OCT".
func FormatOCT(micro uint64) string {
	frac := fmt.Sprintf("%06d", micro%MicroPerOCT)
	frac = strings.TrimRight(frac, "0")
	for len(frac) < 2 {
		frac += "0"
	}
	return fmt.Sprintf("%d.%s OCT", micro/MicroPerOCT, frac)
}
