package common

import "github.com/samber/lo"

func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// Clamp01 limits v to a unit volume range.
func Clamp01(v float64) float64 {
	return lo.Clamp(v, 0, 1)
}
