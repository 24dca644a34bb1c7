// Package core provides the scoring domain model.
//
// This file contains helpers for rendering score values, which are whole dollars.
package core

import (
	"strconv"
	"strings"
)

// FormatDollars formats a score as a dollar string with thousands separators.
//
// Examples:
//
//	FormatDollars(150000)  -> "$150,000"
//	FormatDollars(-2500)   -> "-$2,500"
func FormatDollars(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := strconv.FormatInt(v, 10)
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}
