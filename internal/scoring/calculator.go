// Package scoring converts transactions into team values.
//
// It holds the fixed value tables, the group label codec and the group
// completion detector. Everything here is pure.
package scoring

import "gmscanner/internal/core"

// BaseValues maps a star rating to its base dollar value.
var BaseValues = map[int]int64{
	1: 10000,
	2: 25000,
	3: 50000,
	4: 75000,
	5: 150000,
}

// CategoryMultipliers maps a memory type to its value multiplier.
var CategoryMultipliers = map[core.Category]int64{
	core.CategoryPersonal:  1,
	core.CategoryBusiness:  3,
	core.CategoryTechnical: 5,
	core.CategoryUnknown:   0,
}

// Value returns the dollar value of a single transaction.
// Unknown tokens and ratings or categories missing from the tables are worth 0.
func Value(tx core.Transaction) int64 {
	if tx.IsUnknown {
		return 0
	}
	base, ok := BaseValues[tx.Rating]
	if !ok {
		return 0
	}
	mult, ok := CategoryMultipliers[tx.Category]
	if !ok {
		return 0
	}
	return base * mult
}
