package mathhelp

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Pow2f returns 2^n for negative exponents as well
func Pow2f(n int) float64 {
	return math.Ldexp(1, n)
}

func CeilDiv[T constraints.Unsigned](d, m T) T {
	if d == 0 {
		return 0
	}
	return 1 + (d-1)/m
}

// Truncate cuts f down to n decimals without rounding
func Truncate(f float64, n int) float64 {
	p := math.Pow(10, float64(n))
	return math.Floor(f*p) / p
}

func Bool2int(b bool) int {
	if b {
		return 1
	}
	return 0
}
