package core

import "tinygo.org/x/drivers"

// SPIMode represents SPI clock polarity and phase (0-3)
// Mode 0: CPOL=0, CPHA=0 (clock idle low, sample on rising edge)
// Mode 1: CPOL=0, CPHA=1 (clock idle low, sample on falling edge)
// Mode 2: CPOL=1, CPHA=0 (clock idle high, sample on falling edge)
// Mode 3: CPOL=1, CPHA=1 (clock idle high, sample on rising edge)
type SPIMode uint8

const (
	SPIMode0 SPIMode = iota
	SPIMode1
	SPIMode2
	SPIMode3
)

// SPIBus is a hardware SPI controller that may be shared by several devices.
// Devices that need a different clock rate or mode save the current
// settings, switch, and restore them before returning, so the bus stays
// neutral between devices.
type SPIBus interface {
	drivers.SPI

	// GetBaudRate returns the current bus clock in Hz
	GetBaudRate() uint32

	// SetBaudRate changes the bus clock. The hardware may round the value.
	SetBaudRate(br uint32) error

	// GetMode returns the current clock polarity and phase
	GetMode() SPIMode

	// SetMode changes clock polarity and phase
	SetMode(mode SPIMode) error
}

// OutputPin is a digital output such as a chip select line.
// machine.Pin satisfies this interface.
type OutputPin interface {
	High()
	Low()
}

// NoPin is an OutputPin that does nothing, for devices without chip select
type NoPin struct{}

func (NoPin) High() {}
func (NoPin) Low()  {}

// WithSettings runs fn with the bus clocked at rate in the given mode and
// restores the previous rate and mode afterwards, including when fn fails.
// Not reentrant: the caller must not start another WithSettings on the same
// bus from inside fn.
func WithSettings(bus SPIBus, rate uint32, mode SPIMode, fn func() error) error {
	if old := bus.GetBaudRate(); old != rate {
		if err := bus.SetBaudRate(rate); err != nil {
			return err
		}
		defer bus.SetBaudRate(old)
	}
	if old := bus.GetMode(); old != mode {
		if err := bus.SetMode(mode); err != nil {
			return err
		}
		defer bus.SetMode(old)
	}
	return fn()
}
