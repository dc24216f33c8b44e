// Package tmc6300 drives the TMC6300 three-phase BLDC gate driver from six
// PWM outputs: one high-side and one low-side input per phase.
package tmc6300

import (
	"errors"

	"smartknob/core"
)

var (
	ErrFrequency  = errors.New("tmc6300: PWM frequency out of range")
	ErrDeadZone   = errors.New("tmc6300: dead zone must be in [0, 1)")
	ErrNotStarted = errors.New("tmc6300: not configured")
)

// maxWrap is the largest counter top of a 16-bit PWM slice
const maxWrap = 0xFFFF

// Pins are the six gate inputs
type Pins struct {
	UH, VH, WH core.PWMPin
	UL, VL, WL core.PWMPin
}

func (p Pins) all() [6]core.PWMPin {
	return [6]core.PWMPin{p.UH, p.VH, p.WH, p.UL, p.VL, p.WL}
}

// Config is the switching setup
type Config struct {
	Frequency uint32  // Hz
	DeadZone  float64 // duty fraction added to each low side
	ClockHz   uint32  // PWM reference clock, core.PWMClockHz when zero
}

// Duty is a set of commanded duty fractions in [0, 1]
type Duty struct {
	U, V, W    float64
	UL, VL, WL float64
}

// Device is a TMC6300 behind six PWM channels
type Device struct {
	pwm    core.PWM
	pins   Pins
	supply float64

	wrap     uint32
	deadZone float64
	enabled  bool
	started  bool
	duty     Duty
}

// New returns a driver for a motor supplied with supply volts
func New(pwm core.PWM, pins Pins, supply float64) *Device {
	return &Device{pwm: pwm, pins: pins, supply: supply}
}

// Configure sets up phase-correct PWM at cfg.Frequency, zeroes every
// output and starts all six channels together. The gate stays disabled
// until SetEnabled(true).
func (d *Device) Configure(cfg Config) error {
	if cfg.ClockHz == 0 {
		cfg.ClockHz = core.PWMClockHz
	}
	if cfg.Frequency == 0 {
		return ErrFrequency
	}
	if cfg.DeadZone < 0 || cfg.DeadZone >= 1 {
		return ErrDeadZone
	}

	div := cfg.ClockHz / (2 * cfg.Frequency)
	if div < 2 || div-1 > maxWrap {
		return ErrFrequency
	}
	d.wrap = div - 1
	d.deadZone = cfg.DeadZone

	pins := d.pins.all()
	for _, pin := range pins {
		if err := d.pwm.ConfigurePWM(pin, d.wrap, true); err != nil {
			return err
		}
		if err := d.pwm.SetLevel(pin, 0); err != nil {
			return err
		}
	}
	if err := d.pwm.EnableAll(pins[:]...); err != nil {
		return err
	}

	d.started = true
	d.enabled = false
	d.duty = Duty{}
	return nil
}

// Wrap returns the configured counter top
func (d *Device) Wrap() uint32 {
	return d.wrap
}

// SetEnabled opens or closes the software interlock. While disabled every
// output is held at zero whatever SetVoltages is asked for.
func (d *Device) SetEnabled(enabled bool) error {
	if !d.started {
		return ErrNotStarted
	}
	d.enabled = enabled
	if !enabled {
		return d.write(Duty{})
	}
	return nil
}

// Enabled reports the interlock state
func (d *Device) Enabled() bool {
	return d.enabled
}

// SetVoltages applies three phase voltages, each clamped to [0, supply]
func (d *Device) SetVoltages(u, v, w float64) {
	if !d.started || !d.enabled {
		return
	}
	du, dv, dw := d.fraction(u), d.fraction(v), d.fraction(w)
	d.write(Duty{
		U: du, V: dv, W: dw,
		UL: d.lowSide(du), VL: d.lowSide(dv), WL: d.lowSide(dw),
	})
}

// Duty returns the duty fractions last written to the outputs
func (d *Device) Duty() Duty {
	return d.duty
}

func (d *Device) fraction(v float64) float64 {
	if d.supply <= 0 || v <= 0 {
		return 0
	}
	if v >= d.supply {
		return 1
	}
	return v / d.supply
}

// lowSide adds the dead zone to a phase's own high-side duty
func (d *Device) lowSide(duty float64) float64 {
	duty += d.deadZone
	if duty > 1 {
		return 1
	}
	return duty
}

func (d *Device) level(duty float64) core.PWMLevel {
	return core.PWMLevel(duty*float64(d.wrap+1) + 0.5)
}

func (d *Device) write(duty Duty) error {
	d.duty = duty
	levels := [6]float64{duty.U, duty.V, duty.W, duty.UL, duty.VL, duty.WL}
	var first error
	for i, pin := range d.pins.all() {
		if err := d.pwm.SetLevel(pin, d.level(levels[i])); err != nil && first == nil {
			first = err
		}
	}
	return first
}
