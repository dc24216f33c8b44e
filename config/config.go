// Package config holds the knob's tunables as a JSON document.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"math"
	"time"

	"smartknob/drivers/tmc6300"
	"smartknob/foc"
	"smartknob/knob"
	"smartknob/pid"
)

//go:embed default.json
var defaultJSON []byte

var (
	ErrPolePairs  = errors.New("config: pole_pairs must be positive")
	ErrDirection  = errors.New("config: direction must be \"cw\" or \"ccw\"")
	ErrSupply     = errors.New("config: supply_voltage must be positive")
	ErrModulation = errors.New("config: modulation must be \"sine\" or \"svpwm\"")
	ErrFault      = errors.New("config: fault cycles must not be negative")
)

// Motor describes the BLDC motor and its power stage
type Motor struct {
	PolePairs     int     `json:"pole_pairs"`
	Direction     string  `json:"direction"`
	SupplyVoltage float64 `json:"supply_voltage"`
	Modulation    string  `json:"modulation"`
	PWMFrequency  uint32  `json:"pwm_frequency"`
	DeadZone      float64 `json:"dead_zone"`

	AlignVoltage float64 `json:"align_voltage"`
	AlignDelayMS uint32  `json:"align_delay_ms"`

	// ZeroElectricAngle skips calibration when set
	ZeroElectricAngle *float64 `json:"zero_electric_angle,omitempty"`
}

// PID is the detent controller tuning
type PID struct {
	KP         float64 `json:"kp"`
	KI         float64 `json:"ki"`
	KD         float64 `json:"kd"`
	N          float64 `json:"n"`
	Antiwindup float64 `json:"antiwindup"`
}

// Detent is the virtual position model. Snap is in radians.
type Detent struct {
	Min         int32   `json:"min"`
	Max         int32   `json:"max"`
	Start       int32   `json:"start"`
	Snap        float64 `json:"snap"`
	TorqueLimit float64 `json:"torque_limit"`
}

// Fault is the sensor fault policy
type Fault struct {
	MaxStaleCycles int `json:"max_stale_cycles"`
	RecoverCycles  int `json:"recover_cycles"`
}

// Force is the press sensor channel
type Force struct {
	Enabled  bool    `json:"enabled"`
	Channel  uint8   `json:"channel"`
	PeriodUS uint32  `json:"period_us"`
	CutoffHz float64 `json:"cutoff_hz"`
	Taps     int     `json:"taps"`
}

// Knob is the complete configuration
type Knob struct {
	Motor    Motor  `json:"motor"`
	PID      PID    `json:"pid"`
	Detent   Detent `json:"detent"`
	Fault    Fault  `json:"fault"`
	Force    Force  `json:"force"`
	PeriodUS uint32 `json:"period_us"`

	// StatusEvery is the number of control cycles between status events
	StatusEvery uint32 `json:"status_every"`
}

// Load parses a JSON configuration, fills in defaults and validates it
func Load(data []byte) (*Knob, error) {
	var k Knob
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, err
	}
	applyDefaults(&k)
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return &k, nil
}

// Default returns the built-in configuration
func Default() *Knob {
	k, err := Load(defaultJSON)
	if err != nil {
		panic("config: embedded default.json: " + err.Error())
	}
	return k
}

// applyDefaults fills in missing values
func applyDefaults(k *Knob) {
	m := &k.Motor
	if m.PolePairs == 0 {
		m.PolePairs = 7
	}
	if m.Direction == "" {
		m.Direction = "ccw"
	}
	if m.SupplyVoltage == 0 {
		m.SupplyVoltage = 5.0
	}
	if m.Modulation == "" {
		m.Modulation = "sine"
	}
	if m.PWMFrequency == 0 {
		m.PWMFrequency = 24000
	}
	if m.DeadZone == 0 {
		m.DeadZone = 0.05
	}
	if m.AlignVoltage == 0 {
		m.AlignVoltage = foc.DefaultAlignVoltage
	}
	if m.AlignDelayMS == 0 {
		m.AlignDelayMS = uint32(foc.DefaultAlignDelay / time.Millisecond)
	}

	if k.PID == (PID{}) {
		d := knob.DefaultPID()
		k.PID = PID{KP: d.KP, KI: d.KI, KD: d.KD, N: d.N}
	}

	if k.Detent == (Detent{}) {
		d := knob.DefaultDetent()
		k.Detent = Detent{Min: d.Min, Max: d.Max, Start: d.Position}
	}
	if k.Detent.Snap == 0 {
		k.Detent.Snap = math.Pi / 16
	}
	if k.Detent.TorqueLimit == 0 {
		k.Detent.TorqueLimit = knob.DefaultDetent().TorqueLimit
	}

	if k.Fault == (Fault{}) {
		k.Fault = Fault{MaxStaleCycles: 50, RecoverCycles: 20}
	}

	if k.Force.PeriodUS == 0 {
		k.Force.PeriodUS = 5000
	}
	if k.Force.CutoffHz == 0 {
		k.Force.CutoffHz = 10
	}
	if k.Force.Taps == 0 {
		k.Force.Taps = 5
	}
	if k.Force.Channel == 0 {
		k.Force.Channel = 8
	}

	if k.PeriodUS == 0 {
		k.PeriodUS = knob.DefaultPeriodUS
	}
	if k.StatusEvery == 0 {
		k.StatusEvery = 1000
	}
}

// Validate checks values that have no usable default
func (k *Knob) Validate() error {
	if k.Motor.PolePairs <= 0 {
		return ErrPolePairs
	}
	if _, err := k.direction(); err != nil {
		return err
	}
	if !(k.Motor.SupplyVoltage > 0) {
		return ErrSupply
	}
	if _, err := k.modulation(); err != nil {
		return err
	}
	if k.Fault.MaxStaleCycles < 0 || k.Fault.RecoverCycles < 0 {
		return ErrFault
	}
	return k.KnobConfig().Detent.Validate()
}

func (k *Knob) direction() (foc.Direction, error) {
	switch k.Motor.Direction {
	case "cw":
		return foc.CW, nil
	case "ccw":
		return foc.CCW, nil
	}
	return foc.Unknown, ErrDirection
}

func (k *Knob) modulation() (foc.Modulation, error) {
	switch k.Motor.Modulation {
	case foc.Sine.String():
		return foc.Sine, nil
	case foc.SpaceVector.String():
		return foc.SpaceVector, nil
	}
	return 0, ErrModulation
}

// FOCConfig returns the engine configuration
func (k *Knob) FOCConfig() foc.Config {
	dir, _ := k.direction()
	return foc.Config{
		PolePairs:    k.Motor.PolePairs,
		Direction:    dir,
		VoltageLimit: k.Motor.SupplyVoltage,
		AlignVoltage: k.Motor.AlignVoltage,
		AlignDelay:   time.Duration(k.Motor.AlignDelayMS) * time.Millisecond,
	}
}

// Modulation returns the modulation selected after calibration
func (k *Knob) Modulation() foc.Modulation {
	m, _ := k.modulation()
	return m
}

// DriverConfig returns the power stage configuration
func (k *Knob) DriverConfig() tmc6300.Config {
	return tmc6300.Config{Frequency: k.Motor.PWMFrequency, DeadZone: k.Motor.DeadZone}
}

// KnobConfig returns the control loop configuration. The detent center is
// set when the loop starts.
func (k *Knob) KnobConfig() knob.Config {
	return knob.Config{
		PID: pid.Config{
			KP:               k.PID.KP,
			KI:               k.PID.KI,
			KD:               k.PID.KD,
			N:                k.PID.N,
			Antiwindup:       k.PID.Antiwindup,
			EnableAntiwindup: k.PID.Antiwindup > 0,
			ErrorMode:        pid.ErrorAngular,
			DerivativeMode:   pid.DerivativeOnErrorFiltered,
		},
		Detent: knob.Detent{
			Position:     k.Detent.Start,
			Min:          k.Detent.Min,
			Max:          k.Detent.Max,
			SnapIncrease: k.Detent.Snap,
			SnapDecrease: -k.Detent.Snap,
			TorqueLimit:  k.Detent.TorqueLimit,
		},
		Fault: knob.FaultPolicy{
			MaxStaleCycles: k.Fault.MaxStaleCycles,
			RecoverCycles:  k.Fault.RecoverCycles,
		},
	}
}
