// Package pid implements a PID controller with selectable error,
// proportional and derivative computation.
//
// Not safe for concurrent use.
package pid

import "smartknob/core"

// ErrorMode selects how the error is formed from setpoint and measurement
type ErrorMode uint8

const (
	// ErrorLinear uses setpoint − measurement as is
	ErrorLinear ErrorMode = iota
	// ErrorAngular wraps the error into (−π, π], the shortest way round
	ErrorAngular
)

// ProportionalMode selects the input of the proportional term
type ProportionalMode uint8

const (
	ProportionalOnError ProportionalMode = iota
	ProportionalOnMeasurement
)

// DerivativeMode selects the input of the derivative term and whether it
// is low-pass filtered
type DerivativeMode uint8

const (
	DerivativeOnError DerivativeMode = iota
	DerivativeOnErrorFiltered
	DerivativeOnMeasurement
	DerivativeOnMeasurementFiltered
)

// Config holds gains and modes
type Config struct {
	KP float64
	KI float64
	KD float64
	N  float64 // derivative filter coefficient

	Antiwindup       float64 // symmetric integrator limit
	EnableAntiwindup bool

	ErrorMode        ErrorMode
	ProportionalMode ProportionalMode
	DerivativeMode   DerivativeMode
}

// Controller is a PID controller. The zero value has all gains at zero.
type Controller struct {
	cfg Config

	Setpoint float64

	err        float64
	integrator float64
	derivative float64
	last       float64 // previous error or measurement, per derivative mode
	output     float64
}

// New returns a controller with the given configuration
func New(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// Config returns the current configuration
func (c *Controller) Config() Config {
	return c.cfg
}

// SetConfig changes gains and modes at runtime. State is kept.
func (c *Controller) SetConfig(cfg Config) {
	c.cfg = cfg
}

// Update runs one step with measurement pv over dt seconds and returns the
// new output. dt must be positive.
func (c *Controller) Update(pv, dt float64) float64 {
	c.err = c.Setpoint - pv
	if c.cfg.ErrorMode == ErrorAngular {
		c.err = core.WrapPi(c.err)
	}

	c.integrator += c.err * dt
	if c.cfg.EnableAntiwindup {
		if c.integrator > c.cfg.Antiwindup {
			c.integrator = c.cfg.Antiwindup
		} else if c.integrator < -c.cfg.Antiwindup {
			c.integrator = -c.cfg.Antiwindup
		}
	}

	switch c.cfg.DerivativeMode {
	case DerivativeOnError:
		c.derivative = (c.err - c.last) / dt
		c.last = c.err
	case DerivativeOnErrorFiltered:
		c.derivative = (c.derivative + c.cfg.N*(c.err-c.last)) / (1 + c.cfg.N*dt)
		c.last = c.err
	case DerivativeOnMeasurement:
		c.derivative = (pv - c.last) / dt
		c.last = pv
	case DerivativeOnMeasurementFiltered:
		c.derivative = (c.derivative + c.cfg.N*(pv-c.last)) / (1 + c.cfg.N*dt)
		c.last = pv
	}

	p := c.err
	if c.cfg.ProportionalMode == ProportionalOnMeasurement {
		p = pv
	}
	c.output = c.cfg.KP*p + c.cfg.KI*c.integrator + c.cfg.KD*c.derivative
	return c.output
}

// Reset zeroes setpoint, output, error, integrator, derivative and the
// stored previous value
func (c *Controller) Reset() {
	c.Setpoint = 0
	c.output = 0
	c.err = 0
	c.integrator = 0
	c.derivative = 0
	c.last = 0
}

// Error returns the error computed by the last Update
func (c *Controller) Error() float64 { return c.err }

// Output returns the value returned by the last Update
func (c *Controller) Output() float64 { return c.output }

// Integrator returns the accumulated integral of the error
func (c *Controller) Integrator() float64 { return c.integrator }

// Derivative returns the derivative state
func (c *Controller) Derivative() float64 { return c.derivative }
