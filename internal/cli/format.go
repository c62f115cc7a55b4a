// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/restock/internal/model"
)

// FormatQuantity formats an amount with its unit, dropping trailing zeros.
// e.g., (2, "l") -> "2 l", (0.25, "kg") -> "0.25 kg"
func FormatQuantity(q float64, unit string) string {
	s := strconv.FormatFloat(math.Round(q*100)/100, 'f', -1, 64)
	if unit == "" {
		return s
	}
	return s + " " + unit
}

// FormatDays formats a days-remaining value. nil means the item is not
// being consumed.
// e.g., nil -> "∞", 0.4 -> "<1d", 3.25 -> "3.2d", 45 -> "45d"
func FormatDays(d *float64) string {
	if d == nil || math.IsInf(*d, 1) {
		return "∞"
	}
	switch {
	case *d < 1:
		return "<1d"
	case *d < 10:
		return fmt.Sprintf("%.1fd", math.Floor(*d*10)/10)
	default:
		return fmt.Sprintf("%.0fd", math.Floor(*d))
	}
}

// FormatRate formats a burn rate per day.
func FormatRate(r model.BurnRate, unit string) string {
	if !r.Known {
		return "unknown"
	}
	return FormatQuantity(r.Value, unit) + "/day"
}

// FormatMoney formats a decimal amount as dollars with two places.
func FormatMoney(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// FormatAge formats how long ago t was, relative to now.
// e.g., 45s -> "just now", 90m -> "1h ago", 50h -> "2d ago"
func FormatAge(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// FormatDelta formats a signed count change.
func FormatDelta(n int) string {
	if n > 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// ShortID returns the first eight characters of an id for table output.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
