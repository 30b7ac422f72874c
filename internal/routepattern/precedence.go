package routepattern

import "sort"

// Segment precedence ranks. Lower ranks are more specific.
const (
	rankLiteral     = 1
	rankComplex     = 2
	rankConstrained = 3
	rankParameter   = 4
)

// Precedence ranks each segment of the pattern: a literal segment ranks 1, a
// segment mixing literals and placeholders 2, a lone constrained placeholder 3
// and a lone plain placeholder 4.
func (p *Pattern) Precedence() []int {
	ranks := make([]int, len(p.segments))
	for i, segment := range p.segments {
		ranks[i] = segmentRank(segment)
	}
	return ranks
}

func segmentRank(segment Segment) int {
	if len(segment.Parts) == 1 {
		part := segment.Parts[0]
		switch {
		case !part.IsParameter():
			return rankLiteral
		case part.Constraint != nil:
			return rankConstrained
		default:
			return rankParameter
		}
	}
	for _, part := range segment.Parts {
		if part.IsParameter() {
			return rankComplex
		}
	}
	return rankLiteral
}

// Compare orders patterns by precedence, segment by segment. It returns a
// negative number when a is more specific than b and 0 when both rank equally.
func Compare(a, b *Pattern) int {
	ra, rb := a.Precedence(), b.Precedence()
	for i := 0; i < len(ra) && i < len(rb); i++ {
		if ra[i] != rb[i] {
			return ra[i] - rb[i]
		}
	}
	return len(rb) - len(ra)
}

// SortStable orders items by the precedence of their pattern. Items of equal
// precedence keep their registration order.
func SortStable[T any](items []T, pattern func(T) *Pattern) {
	sort.SliceStable(items, func(i, j int) bool {
		return Compare(pattern(items[i]), pattern(items[j])) < 0
	})
}
