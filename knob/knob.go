// Package knob runs the haptic detent loop: it holds the rotor on a
// virtual detent with a PID controller and moves the detent when the user
// pushes past a snap threshold.
//
// Everything here runs in one execution context (the scheduler dispatch
// loop). Nothing is safe for concurrent use.
package knob

import (
	"errors"
	"math"

	"smartknob/core"
	"smartknob/foc"
	"smartknob/pid"
)

var (
	ErrDetentBounds = errors.New("knob: position outside [min, max]")
	ErrSnap         = errors.New("knob: snap thresholds must be increase > 0 > decrease")
	ErrTorqueLimit  = errors.New("knob: torque limit must be positive")
)

// Detent is the virtual position model
type Detent struct {
	Position int32
	Min      int32
	Max      int32

	// Center is the angle the rotor is held at, in (−π, π]
	Center float64

	// Controller error beyond which the detent moves. SnapIncrease is
	// positive, SnapDecrease negative.
	SnapIncrease float64
	SnapDecrease float64

	TorqueLimit float64 // volts on the q-axis
}

// Validate checks the detent invariants
func (d Detent) Validate() error {
	if d.Min > d.Max || d.Position < d.Min || d.Position > d.Max {
		return ErrDetentBounds
	}
	if !(d.SnapIncrease > 0) || !(d.SnapDecrease < 0) {
		return ErrSnap
	}
	if !(d.TorqueLimit > 0) {
		return ErrTorqueLimit
	}
	return nil
}

// DefaultDetent is a coarse 0..50 knob with 32 detents per turn
func DefaultDetent() Detent {
	return Detent{
		Position:     0,
		Min:          0,
		Max:          50,
		SnapIncrease: math.Pi / 16,
		SnapDecrease: -math.Pi / 16,
		TorqueLimit:  2.5,
	}
}

// DefaultPID is the gain set tuned for the 7 pole pair gimbal motor
func DefaultPID() pid.Config {
	return pid.Config{
		KP:             8,
		KD:             0.02,
		N:              10,
		ErrorMode:      pid.ErrorAngular,
		DerivativeMode: pid.DerivativeOnErrorFiltered,
	}
}

// FaultPolicy decides when sensor failures take the motor offline.
// Zero MaxStaleCycles never trips. Recovery always needs at least one
// usable read, so zero RecoverCycles behaves like one.
type FaultPolicy struct {
	MaxStaleCycles int // consecutive failed reads before the gate opens
	RecoverCycles  int // consecutive good reads before it closes again
}

// Gate is the motor driver's enable interlock
type Gate interface {
	SetEnabled(enabled bool) error
}

// Health counts sensor problems since start
type Health struct {
	Failures uint32 // reads with no usable angle
	Degraded uint32 // reads with a usable angle and a status warning
	Trips    uint32 // times the fault policy opened the gate
	Faulted  bool
}

// Health flags carried in Event.Value4
const (
	FlagFaulted = 1 << 0
)

// Config is everything a Context needs besides its collaborators
type Config struct {
	PID    pid.Config
	Detent Detent
	Fault  FaultPolicy
}

// Context owns the controller and detent state of one knob
type Context struct {
	PID    *pid.Controller
	Detent Detent

	engine *foc.Engine
	sensor foc.AngleSensor
	gate   Gate
	policy FaultPolicy

	events *core.EventRing
	clock  core.Clock

	angle  float64 // last usable mechanical angle
	stale  int
	good   int
	health Health
}

// New builds a context. The detent center is taken from the sensor by
// Start.
func New(cfg Config, engine *foc.Engine, sensor foc.AngleSensor, gate Gate) *Context {
	return &Context{
		PID:    pid.New(cfg.PID),
		Detent: cfg.Detent,
		engine: engine,
		sensor: sensor,
		gate:   gate,
		policy: cfg.Fault,
	}
}

// SetEvents makes the context record detent and fault events into ring,
// stamped with clock
func (c *Context) SetEvents(ring *core.EventRing, clock core.Clock) {
	c.events = ring
	c.clock = clock
}

// Start centers the detent on the current rotor angle and closes the gate
func (c *Context) Start() error {
	mech, err := c.sensor.MechanicalAngle()
	if err != nil && !core.IsDegraded(err) {
		return err
	}
	c.angle = mech
	c.Detent.Center = core.WrapPi(mech)
	c.PID.Reset()
	c.PID.Setpoint = c.Detent.Center
	c.stale, c.good = 0, 0
	return c.gate.SetEnabled(true)
}

// Tick runs one control cycle of dt seconds
func (c *Context) Tick(dt float64) {
	mech, err := c.sensor.MechanicalAngle()
	switch {
	case err == nil:
		c.readOK(mech)
	case core.IsDegraded(err):
		c.health.Degraded++
		c.readOK(mech)
	default:
		c.health.Failures++
		c.stale++
		c.good = 0
		mech = c.angle
	}

	if c.health.Faulted {
		if c.good < max(1, c.policy.RecoverCycles) {
			return
		}
		c.recover()
	} else if c.policy.MaxStaleCycles > 0 && c.stale >= c.policy.MaxStaleCycles {
		c.trip()
		return
	}

	c.PID.Setpoint = c.Detent.Center
	torque := c.PID.Update(mech, dt)
	if torque > c.Detent.TorqueLimit {
		torque = c.Detent.TorqueLimit
	} else if torque < -c.Detent.TorqueLimit {
		torque = -c.Detent.TorqueLimit
	}
	c.engine.UpdateAt(torque, mech)

	c.snap(c.PID.Error())
}

// snap moves the detent one step when the error is past a threshold and
// the position is not at the matching bound
func (c *Context) snap(err float64) {
	d := &c.Detent
	moved := false
	if err > d.SnapIncrease && d.Position > d.Min {
		d.Center = core.WrapPi(d.Center - 2*d.SnapIncrease)
		d.Position--
		moved = true
	}
	if err < d.SnapDecrease && d.Position < d.Max {
		d.Center = core.WrapPi(d.Center - 2*d.SnapDecrease)
		d.Position++
		moved = true
	}
	if moved {
		c.record(core.Event{
			Kind:   core.EvtDetent,
			Value1: d.Position,
			Value2: int32(math.Round(d.Center * 1e6)),
		})
	}
}

func (c *Context) readOK(mech float64) {
	c.angle = mech
	c.stale = 0
	c.good++
}

func (c *Context) trip() {
	c.health.Faulted = true
	c.health.Trips++
	c.good = 0
	c.gate.SetEnabled(false)
	c.recordHealth()
}

func (c *Context) recover() {
	c.health.Faulted = false
	c.PID.Reset()
	c.PID.Setpoint = c.Detent.Center
	c.gate.SetEnabled(true)
	c.recordHealth()
}

func (c *Context) recordHealth() {
	var flags int32
	if c.health.Faulted {
		flags |= FlagFaulted
	}
	c.record(core.Event{
		Kind:   core.EvtFault,
		Value1: int32(c.health.Failures),
		Value2: int32(c.health.Degraded),
		Value3: int32(c.health.Trips),
		Value4: flags,
	})
}

func (c *Context) record(e core.Event) {
	if c.events == nil {
		return
	}
	if c.clock != nil {
		e.Clock = c.clock()
	}
	c.events.Record(e)
}

// Health returns the sensor health counters
func (c *Context) Health() Health {
	return c.health
}

// Angle returns the last usable mechanical angle
func (c *Context) Angle() float64 {
	return c.angle
}
