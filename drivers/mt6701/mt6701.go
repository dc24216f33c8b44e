// Package mt6701 reads the MT6701 magnetic angle encoder over its SSI/SPI
// interface.
//
// A read is a 24-bit frame, MSB first:
//
//	bits 23..10  14-bit angle
//	bit  9       loss of track
//	bit  8       push button detected
//	bits  7..6   magnetic field status (00 ok, 01 too strong, 10 too weak)
//	bits  5..0   CRC-6 over bits 23..6
package mt6701

import (
	"math"

	"smartknob/core"
)

// Baudrate is the bus clock used for a read; the sensor tops out at 15 MHz
const Baudrate = 15000000

// BusMode is the bus mode for a read: clock idle low, data sampled on the
// second edge
const BusMode = core.SPIMode1

// FrameLen is the number of bytes in a read
const FrameLen = 3

// Counts is the number of angle steps per mechanical turn (14 bits)
const Counts = 1 << 14

// Error is a read failure. Degraded errors still come with a usable angle.
type Error struct {
	msg      string
	degraded bool
}

func (e *Error) Error() string { return e.msg }

// Degraded reports whether the reading returned alongside e is usable
func (e *Error) Degraded() bool { return e.degraded }

var (
	ErrFieldTooStrong = &Error{"mt6701: magnetic field too strong", true}
	ErrFieldTooWeak   = &Error{"mt6701: magnetic field too weak", true}
	ErrLossOfTrack    = &Error{"mt6701: loss of track", true}
	ErrFailedCRC      = &Error{"mt6701: CRC mismatch", false}
	ErrFailedOther    = &Error{"mt6701: read failed", false}
)


// Reading is one decoded frame
type Reading struct {
	Angle   float64 // radians in [0, 2π)
	Raw     uint16  // 14-bit angle count
	Pressed bool    // push button detect bit
}

// Device is an MT6701 on a shared SPI bus
type Device struct {
	bus core.SPIBus
	cs  core.OutputPin

	tx [FrameLen]byte
	rx [FrameLen]byte
}

// New returns a device on bus with the given active-low chip select.
// Use core.NoPin{} when chip select is hardwired.
func New(bus core.SPIBus, cs core.OutputPin) *Device {
	return &Device{bus: bus, cs: cs}
}

// Configure puts the chip select in its inactive state
func (d *Device) Configure() {
	d.cs.High()
}

// Read clocks one frame out of the sensor at Baudrate in BusMode and decodes
// it. The bus rate and mode in effect before the call are restored before
// returning.
//
// ErrFailedCRC and ErrFailedOther come with a zero Reading that must not
// be used. Degraded errors (see core.IsDegraded) come with a valid Reading.
func (d *Device) Read() (Reading, error) {
	err := core.WithSettings(d.bus, Baudrate, BusMode, d.transfer)
	if err != nil {
		return Reading{}, ErrFailedOther
	}
	return Decode(d.rx)
}

// MechanicalAngle reads the sensor and returns the angle in radians
func (d *Device) MechanicalAngle() (float64, error) {
	r, err := d.Read()
	return r.Angle, err
}

func (d *Device) transfer() error {
	d.cs.Low()
	err := d.bus.Tx(d.tx[:], d.rx[:])
	d.cs.High()
	return err
}

// Decode validates and decodes a raw frame. CRC is checked first, then the
// loss-of-track bit, then the field status bits.
func Decode(frame [FrameLen]byte) (Reading, error) {
	w := uint32(frame[0])<<16 | uint32(frame[1])<<8 | uint32(frame[2])

	if CRC6(w>>6) != uint8(w&0x3F) {
		return Reading{}, ErrFailedCRC
	}

	raw := uint16(w >> 10)
	r := Reading{
		Angle:   float64(raw) / Counts * 2 * math.Pi,
		Raw:     raw,
		Pressed: w&(1<<8) != 0,
	}

	if w&(1<<9) != 0 {
		return r, ErrLossOfTrack
	}
	switch (w >> 6) & 0x03 {
	case 0x00:
		return r, nil
	case 0x01:
		return r, ErrFieldTooStrong
	case 0x02:
		return r, ErrFieldTooWeak
	default:
		return Reading{}, ErrFailedOther
	}
}
