package crypto

import "crypto/subtle"

// Compare returns -1, 0 or 1 ordering a and b lexicographically. For
// equal-length inputs the running time does not depend on where the first
// differing byte is. Inputs of different lengths are ordered by length first.
func Compare(a, b []byte) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	// result latches on the first differing byte; later bytes are still
	// visited and blended in without branching.
	result := 0
	decided := 0
	for i := range a {
		x, y := int(a[i]), int(b[i])
		lt := subtle.ConstantTimeLessOrEq(x+1, y) // x < y
		gt := subtle.ConstantTimeLessOrEq(y+1, x) // x > y
		diff := lt | gt
		take := diff &^ decided
		result = subtle.ConstantTimeSelect(take, gt-lt, result)
		decided |= diff
	}
	return result
}

// Equal reports whether a and b are equal in constant time.
func Equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Ordered returns (small, large) by Compare.
func Ordered(a, b []byte) (small, large []byte) {
	if Compare(a, b) <= 0 {
		return a, b
	}
	return b, a
}
