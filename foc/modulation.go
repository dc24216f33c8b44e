package foc

import (
	"math"

	"smartknob/core"
)

const (
	sqrt3 = 1.7320508075688772
	pi3   = math.Pi / 3
)

// Phases is a set of coil voltages, each in [0, voltage limit]
type Phases struct {
	U, V, W float64
}

// Modulator turns a (q, d) voltage vector at an electrical angle into three
// phase voltages
type Modulator interface {
	Modulate(vq, vd, angle float64) Phases
}

// Modulation selects a Modulator
type Modulation uint8

const (
	Sine Modulation = iota
	SpaceVector
)

func (m Modulation) String() string {
	switch m {
	case Sine:
		return "sine"
	case SpaceVector:
		return "svpwm"
	default:
		return "unknown"
	}
}

// NewModulator returns the modulator for m with the given voltage limit
func NewModulator(m Modulation, limit float64) Modulator {
	if m == SpaceVector {
		return SpaceVectorModulator{Limit: limit}
	}
	return SineModulator{Limit: limit}
}

// SineModulator applies the inverse Park and Clarke transforms and biases
// the result around half the voltage limit
type SineModulator struct {
	Limit float64
}

func (m SineModulator) Modulate(vq, vd, angle float64) Phases {
	angle = core.Normalize2Pi(angle)
	sa, ca := math.Sincos(angle)

	alpha := ca*vd - sa*vq
	beta := sa*vd + ca*vq

	center := m.Limit / 2
	return Phases{
		U: clamp(alpha+center, m.Limit),
		V: clamp((-alpha+sqrt3*beta)/2+center, m.Limit),
		W: clamp((-alpha-sqrt3*beta)/2+center, m.Limit),
	}
}

// SpaceVectorModulator synthesises the voltage vector from the two active
// switching vectors bounding its 60° sector, with the null vector time
// split evenly at both ends of the period
type SpaceVectorModulator struct {
	Limit float64
}

func (m SpaceVectorModulator) Modulate(vq, vd, angle float64) Phases {
	if m.Limit <= 0 {
		return Phases{}
	}
	angle = core.Normalize2Pi(angle + math.Atan2(vq, vd))
	out := math.Sqrt(vd*vd+vq*vq) / m.Limit

	sector := int(angle/pi3) + 1
	if sector > 6 {
		sector = 6
	}

	t1 := sqrt3 * math.Sin(float64(sector)*pi3-angle) * out
	t2 := sqrt3 * math.Sin(angle-float64(sector-1)*pi3) * out
	t0 := 1 - t1 - t2
	half := t0 / 2

	var tu, tv, tw float64
	switch sector {
	case 1:
		tu, tv, tw = t1+t2+half, t2+half, half
	case 2:
		tu, tv, tw = t1+half, t1+t2+half, half
	case 3:
		tu, tv, tw = half, t1+t2+half, t2+half
	case 4:
		tu, tv, tw = half, t1+half, t1+t2+half
	case 5:
		tu, tv, tw = t2+half, half, t1+t2+half
	case 6:
		tu, tv, tw = t1+t2+half, half, t1+half
	}

	return Phases{
		U: clamp(tu*m.Limit, m.Limit),
		V: clamp(tv*m.Limit, m.Limit),
		W: clamp(tw*m.Limit, m.Limit),
	}
}

// Sector returns the 60° sector (1-6) containing an electrical angle
func Sector(angle float64) int {
	s := int(core.Normalize2Pi(angle)/pi3) + 1
	if s > 6 {
		s = 6
	}
	return s
}

func clamp(v, limit float64) float64 {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
