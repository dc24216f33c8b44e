package core

// PWMPin identifies a hardware pin capable of PWM output
type PWMPin uint32

// PWMLevel is a compare value between 0 and the configured wrap (top)
type PWMLevel uint32

// PWM is the abstract PWM interface that driver code uses.
// Platform-specific implementations handle actual hardware control.
type PWM interface {
	// ConfigurePWM configures the slice behind pin to count up to wrap.
	// phaseCorrect selects centre-aligned (up/down) counting.
	// The slice is left disabled; call EnableAll to start it.
	ConfigurePWM(pin PWMPin, wrap uint32, phaseCorrect bool) error

	// SetLevel sets the compare level for a pin: 0 (off) to wrap (fully on)
	SetLevel(pin PWMPin, level PWMLevel) error

	// EnableAll starts the slices behind all pins with a single write so
	// their counters run in phase
	EnableAll(pins ...PWMPin) error
}

// PWMClockHz is the RP2040 PWM reference clock (system clock, divider 1)
const PWMClockHz = 125000000
