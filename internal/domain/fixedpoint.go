package domain

import (
	"errors"
	"strconv"
	"strings"
)

// tickScale is the number of decimal places carried by price/size ticks.
const tickScale = 6

// ParseTicks parses a string decimal (e.g. "123.45") into int64 ticks scaled
// by 1e6. It avoids float64 entirely so that feed prices survive normalization
// without rounding.
func ParseTicks(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, errors.New("invalid decimal format: multiple dots")
	}

	integerPart := parts[0]
	fractionalPart := ""
	if len(parts) == 2 {
		fractionalPart = parts[1]
	}

	sign := int64(1)
	if strings.HasPrefix(integerPart, "-") {
		sign = -1
		integerPart = integerPart[1:]
	}

	intVal, err := strconv.ParseInt(integerPart, 10, 64)
	if err != nil {
		if integerPart == "" {
			intVal = 0 // ".5" case
		} else {
			return 0, err
		}
	}

	// Pad or truncate the fractional part to exactly tickScale digits.
	if len(fractionalPart) > tickScale {
		fractionalPart = fractionalPart[:tickScale]
	} else {
		fractionalPart += strings.Repeat("0", tickScale-len(fractionalPart))
	}

	fracVal, err := strconv.ParseInt(fractionalPart, 10, 64)
	if err != nil {
		return 0, err
	}

	return sign * (intVal*1_000_000 + fracVal), nil
}

// FormatTicks renders ticks back to a decimal string with trailing zeros
// trimmed ("100.300000" -> "100.3").
func FormatTicks(ticks int64) string {
	sign := ""
	if ticks < 0 {
		sign = "-"
		ticks = -ticks
	}
	whole := ticks / 1_000_000
	frac := ticks % 1_000_000
	if frac == 0 {
		return sign + strconv.FormatInt(whole, 10)
	}
	s := strconv.FormatInt(whole, 10) + "." + strings.TrimRight(
		strconv.FormatInt(frac+1_000_000, 10)[1:], "0")
	return sign + s
}

// TicksFromFloat converts a float price into ticks, rounding half away from
// zero. Used only at configuration boundaries (reference prices, thresholds);
// feed prices go through ParseTicks.
func TicksFromFloat(v float64) int64 {
	if v >= 0 {
		return int64(v*1e6 + 0.5)
	}
	return int64(v*1e6 - 0.5)
}
