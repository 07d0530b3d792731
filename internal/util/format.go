package util

import (
	"math/big"

	"github.com/dustin/go-humanize"
)

// FormatSize returns a human-readable size in binary units.
func FormatSize(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// FormatCount returns n with thousands separators.
func FormatCount(n uint64) string {
	return humanize.BigComma(new(big.Int).SetUint64(n))
}

// Percent returns the percentage of part relative to total.
func Percent(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// TruncateString truncates a string to maxLen runes, adding "..." if needed.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// TruncateLeft keeps the end of s, which is the informative part of a path.
func TruncateLeft(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[len(runes)-maxLen:])
	}
	return "..." + string(runes[len(runes)-maxLen+3:])
}
