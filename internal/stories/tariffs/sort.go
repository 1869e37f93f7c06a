package tariffs

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"
)

// SortByNumericDesc orders rows in place by column, largest number first.
// Values that do not parse as numbers go last and keep their relative order.
func SortByNumericDesc(rows []*Tariff, column string) {
	slices.SortStableFunc(rows, func(a, b *Tariff) int {
		va, _ := a.Field(column)
		vb, _ := b.Field(column)
		return compareNumericDesc(va, vb)
	})
}

func compareNumericDesc(a, b string) int {
	numA, okA := parseNumeric(a)
	numB, okB := parseNumeric(b)

	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	return cmp.Compare(numB, numA)
}

// parseNumeric accepts both "1.5" and the upstream's "1,5" decimal notation.
func parseNumeric(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
