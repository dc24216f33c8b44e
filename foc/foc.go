// Package foc implements voltage-mode field oriented control of a
// three-phase BLDC motor from an absolute angle sensor.
package foc

import (
	"context"
	"errors"
	"math"
	"time"

	"smartknob/core"
)

// AngleSensor returns the rotor's mechanical angle in radians [0, 2π).
// An error whose chain holds a value with a Degraded() bool method that
// reports true comes with a usable angle.
type AngleSensor interface {
	MechanicalAngle() (float64, error)
}

// PhaseOutput applies three phase voltages to the motor
type PhaseOutput interface {
	SetVoltages(u, v, w float64)
}

// Direction is the sense in which the electrical angle advances with the
// mechanical angle
type Direction int8

const (
	Unknown Direction = 0
	CW      Direction = 1
	CCW     Direction = -1
)

// Config describes the motor and the alignment used by Init
type Config struct {
	PolePairs    int
	Direction    Direction
	VoltageLimit float64 // volts, the supply available to the phases

	AlignVoltage float64       // q-axis volts applied while aligning
	AlignDelay   time.Duration // settle time before the zero offset is read
}

const (
	DefaultAlignVoltage = 3.0
	DefaultAlignDelay   = 500 * time.Millisecond

	alignAngle = 3 * math.Pi / 2
)

var ErrNotCalibrated = errors.New("foc: calibration read failed")

// Engine converts a torque (q-axis voltage) request into phase voltages
type Engine struct {
	cfg    Config
	sensor AngleSensor
	out    PhaseOutput
	mod    Modulator

	// ZeroElectricAngle is the electrical angle measured with the rotor
	// aligned to the d-axis
	ZeroElectricAngle float64

	last float64 // last trusted mechanical angle

	// Sleep waits for d or until ctx is done. Replaced by tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New returns an engine. Sine modulation is used until Init selects one.
func New(cfg Config, sensor AngleSensor, out PhaseOutput) *Engine {
	if cfg.AlignVoltage == 0 {
		cfg.AlignVoltage = DefaultAlignVoltage
	}
	if cfg.AlignDelay < DefaultAlignDelay {
		cfg.AlignDelay = DefaultAlignDelay
	}
	return &Engine{
		cfg:    cfg,
		sensor: sensor,
		out:    out,
		mod:    SineModulator{Limit: cfg.VoltageLimit},
		Sleep:  sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config returns the engine configuration after defaults
func (e *Engine) Config() Config {
	return e.cfg
}

// Init locks the rotor onto the alignment vector, measures the zero offset
// and then selects the modulation used by later calls.
//
// On a failed calibration read the phases are released, the previous zero
// offset is kept and the error is returned.
func (e *Engine) Init(ctx context.Context, m Modulation) error {
	e.mod = SineModulator{Limit: e.cfg.VoltageLimit}
	e.SetPhaseVoltage(e.cfg.AlignVoltage, 0, alignAngle)

	if err := e.Sleep(ctx, e.cfg.AlignDelay); err != nil {
		e.SetPhaseVoltage(0, 0, 0)
		return err
	}

	mech, err := e.sensor.MechanicalAngle()
	if err != nil && !core.IsDegraded(err) {
		e.SetPhaseVoltage(0, 0, 0)
		return errors.Join(ErrNotCalibrated, err)
	}

	e.ZeroElectricAngle = 0
	e.ZeroElectricAngle = e.ElectricAngle(mech)
	e.last = mech

	e.SetPhaseVoltage(0, 0, 0)
	e.mod = NewModulator(m, e.cfg.VoltageLimit)
	return nil
}

// SetModulation selects the modulator without calibrating, for a zero
// offset restored from configuration
func (e *Engine) SetModulation(m Modulation) {
	e.mod = NewModulator(m, e.cfg.VoltageLimit)
}

// ElectricAngle converts a mechanical angle to an electrical angle in
// [0, 2π) relative to the calibrated zero
func (e *Engine) ElectricAngle(mech float64) float64 {
	return core.Normalize2Pi(float64(e.cfg.Direction)*float64(e.cfg.PolePairs)*mech - e.ZeroElectricAngle)
}

// SetPhaseVoltage modulates (vq, vd) at an electrical angle and applies it
func (e *Engine) SetPhaseVoltage(vq, vd, angle float64) {
	p := e.mod.Modulate(vq, vd, angle)
	e.out.SetVoltages(p.U, p.V, p.W)
}

// Update reads the sensor and applies v on the q-axis. When the read fails
// the last trusted angle is used and the error is returned.
func (e *Engine) Update(v float64) error {
	mech, err := e.sensor.MechanicalAngle()
	if err != nil && !core.IsDegraded(err) {
		mech = e.last
	}
	e.UpdateAt(v, mech)
	return err
}

// UpdateAt applies v on the q-axis at an already measured mechanical angle
func (e *Engine) UpdateAt(v, mech float64) {
	e.last = mech
	e.SetAngle(v, mech)
}

// SetAngle applies v on the q-axis as if the rotor were at mech, without
// reading the sensor
func (e *Engine) SetAngle(v, mech float64) {
	e.SetPhaseVoltage(v, 0, e.ElectricAngle(mech))
}

// LastAngle returns the last trusted mechanical angle
func (e *Engine) LastAngle() float64 {
	return e.last
}
