package core

import (
	"errors"
	"math"
)

// Normalize2Pi maps an angle into [0, 2π)
func Normalize2Pi(a float64) float64 {
	r := math.Mod(a, 2*math.Pi)
	if r < 0 {
		r += 2 * math.Pi
	}
	// r+2π can round up to exactly 2π for tiny negative r
	if r >= 2*math.Pi {
		r = 0
	}
	return r
}

// WrapPi maps an angle into (−π, π]
func WrapPi(a float64) float64 {
	return math.Pi - Normalize2Pi(math.Pi-a)
}

// IsDegraded reports whether a sensor error still came with an angle that
// may be used. Errors opt in with a Degraded() bool method.
func IsDegraded(err error) bool {
	var d interface{ Degraded() bool }
	return errors.As(err, &d) && d.Degraded()
}
