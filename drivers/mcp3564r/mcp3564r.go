// Package mcp3564r drives the MCP3564R delta-sigma ADC over SPI.
//
// Every transfer starts with a command byte: device address in bits 7..6,
// register address (or fast command) in bits 5..2 and the command type in
// bits 1..0. Configuration setters are read-modify-write sequences on
// shared registers and are not atomic.
package mcp3564r

import (
	"errors"

	"smartknob/core"
)

// Baudrate is the bus clock used for transfers
const Baudrate = 10000000

// BusMode is the bus mode used for transfers. The part also accepts mode 3.
const BusMode = core.SPIMode0

var ErrInvalidValue = errors.New("mcp3564r: value out of range for field")

// Device is an MCP3564R on a shared SPI bus
type Device struct {
	bus  core.SPIBus
	cs   core.OutputPin
	addr uint8

	format DataFormat

	tx [5]byte
	rx [5]byte
	n  int
}

// New returns a device with the given active-low chip select and device
// address (DefaultAddress unless ordered otherwise)
func New(bus core.SPIBus, cs core.OutputPin, addr uint8) *Device {
	return &Device{bus: bus, cs: cs, addr: addr & 0x3}
}

// Config is a startup configuration applied in register order
type Config struct {
	InternalVRef bool
	Clock        ClockSource
	Prescaler    uint8
	Oversample   uint8 // CONFIG1.OSR code, 0..15
	Gain         Gain
	ConvMode     ConvMode
	Format       DataFormat
	ScanChannels []uint8
	Mode         Mode
}

// DefaultConfig reads the strain bridge on differential channel 8 in
// continuous conversion at gain 16
func DefaultConfig() Config {
	return Config{
		Clock:        ClockInternalWithMCLK,
		Oversample:   6,
		Gain:         Gain16,
		ConvMode:     ConvContinuous,
		Format:       Format32ChannelID,
		ScanChannels: []uint8{8},
		Mode:         ModeConversion,
	}
}

// Configure resets the device and applies cfg. The conversion mode is set
// last so the device starts converting with the final configuration.
func (d *Device) Configure(cfg Config) error {
	d.cs.High()
	if err := d.Reset(); err != nil {
		return err
	}
	steps := []func() error{
		func() error { return d.SelectVRef(cfg.InternalVRef) },
		func() error { return d.SetClockSource(cfg.Clock) },
		func() error { return d.SetDataFormat(cfg.Format) },
		func() error { return d.SetGain(cfg.Gain) },
		func() error { return d.SetPrescaler(cfg.Prescaler) },
		func() error { return d.SetOversampleRatio(cfg.Oversample) },
		func() error { return d.SetConvMode(cfg.ConvMode) },
	}
	for _, ch := range cfg.ScanChannels {
		steps = append(steps, func() error { return d.EnableScanChannel(ch) })
	}
	steps = append(steps, func() error { return d.SetMode(cfg.Mode) })

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) command(reg, typ uint8) byte {
	return d.addr<<cmdAddrShift | (reg&0xF)<<cmdRegShift | typ
}

// transfer clocks out d.tx[:n] while reading into d.rx[:n]
func (d *Device) transfer() error {
	d.cs.Low()
	err := d.bus.Tx(d.tx[:d.n], d.rx[:d.n])
	d.cs.High()
	return err
}

func (d *Device) exchange(n int) error {
	d.n = n
	return core.WithSettings(d.bus, Baudrate, BusMode, d.transfer)
}

// ReadRegister returns the value of a register
func (d *Device) ReadRegister(reg uint8) (uint32, error) {
	size := regSize(reg)
	if reg == RegADCData {
		size = d.dataSize()
	}
	d.tx = [5]byte{d.command(reg, cmdStatic)}
	if err := d.exchange(1 + size); err != nil {
		return 0, err
	}
	var v uint32
	for _, b := range d.rx[1 : 1+size] {
		v = v<<8 | uint32(b)
	}
	return v, nil
}

// WriteRegister writes a register
func (d *Device) WriteRegister(reg uint8, value uint32) error {
	size := regSize(reg)
	d.tx = [5]byte{d.command(reg, cmdIncWrite)}
	for i := 0; i < size; i++ {
		d.tx[size-i] = byte(value >> (8 * i))
	}
	return d.exchange(1 + size)
}

// update writes value into a field, leaving the rest of the register as it
// was. The register is untouched when value does not fit.
func (d *Device) update(f Field, value uint32) error {
	if value > f.max() {
		return ErrInvalidValue
	}
	reg, err := d.ReadRegister(f.Reg)
	if err != nil {
		return err
	}
	reg = reg&^f.mask() | value<<f.Shift
	return d.WriteRegister(f.Reg, reg)
}

func (d *Device) fast(cmd uint8) error {
	d.tx = [5]byte{d.command(cmd, cmdFast)}
	return d.exchange(1)
}

// StartConversion restarts the conversion in progress
func (d *Device) StartConversion() error { return d.fast(FastStartConversion) }

// Standby stops converting and keeps the bias circuits powered
func (d *Device) Standby() error { return d.fast(FastStandby) }

// Shutdown stops converting and powers down the analog circuits
func (d *Device) Shutdown() error { return d.fast(FastShutdown) }

// Reset restores every register to its power-on value
func (d *Device) Reset() error {
	if err := d.fast(FastReset); err != nil {
		return err
	}
	d.format = Format24
	return nil
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// SelectVRef selects the internal 2.4 V reference or the external pins
func (d *Device) SelectVRef(internal bool) error {
	return d.update(fieldVRef, boolBit(internal))
}

func (d *Device) SetClockSource(src ClockSource) error {
	return d.update(fieldClockSel, uint32(src))
}

// SetCurrentSource sets the burn-out current source/sink (0 none, 1 0.9 µA,
// 2 3.7 µA, 3 15 µA)
func (d *Device) SetCurrentSource(cfg uint8) error {
	return d.update(fieldCurrent, uint32(cfg))
}

func (d *Device) SetMode(m Mode) error {
	return d.update(fieldADCMode, uint32(m))
}

// SetPrescaler divides the master clock by 2^value
func (d *Device) SetPrescaler(value uint8) error {
	return d.update(fieldPrescale, uint32(value))
}

// SetOversampleRatio sets the OSR code (0: 32 ... 15: 98304)
func (d *Device) SetOversampleRatio(code uint8) error {
	return d.update(fieldOSR, uint32(code))
}

// SetBiasCurrent sets the ADC bias current boost (0: ×0.5 ... 3: ×2)
func (d *Device) SetBiasCurrent(sel uint8) error {
	return d.update(fieldBoost, uint32(sel))
}

func (d *Device) SetGain(g Gain) error {
	return d.update(fieldGain, uint32(g))
}

func (d *Device) SetAutoZeroMux(enable bool) error {
	return d.update(fieldAZMux, boolBit(enable))
}

// SetAutoZeroRef enables chopping of the internal reference buffer
func (d *Device) SetAutoZeroRef(enable bool) error {
	return d.update(fieldAZRef, boolBit(enable))
}

func (d *Device) SetConvMode(m ConvMode) error {
	return d.update(fieldConvMode, uint32(m))
}

// SetDataFormat selects the ADCDATA layout ReadMeasurement decodes
func (d *Device) SetDataFormat(f DataFormat) error {
	if err := d.update(fieldFormat, uint32(f)); err != nil {
		return err
	}
	d.format = f
	return nil
}

// SetCRCFormat selects a 32-bit CRC with trailing zeros instead of 16-bit
func (d *Device) SetCRCFormat(trailingZeros bool) error {
	return d.update(fieldCRCFormat, boolBit(trailingZeros))
}

func (d *Device) SetCRCOnCom(enable bool) error {
	return d.update(fieldCRCCom, boolBit(enable))
}

func (d *Device) SetOffsetCal(enable bool) error {
	return d.update(fieldOffCal, boolBit(enable))
}

func (d *Device) SetGainCal(enable bool) error {
	return d.update(fieldGainCal, boolBit(enable))
}

// EnableScanChannel adds a channel (0..15) to the scan list
func (d *Device) EnableScanChannel(ch uint8) error {
	if ch > 15 {
		return ErrInvalidValue
	}
	return d.update(Field{RegScan, ch, 1}, 1)
}

// DisableScanChannel removes a channel from the scan list
func (d *Device) DisableScanChannel(ch uint8) error {
	if ch > 15 {
		return ErrInvalidValue
	}
	return d.update(Field{RegScan, ch, 1}, 0)
}

// DataReady reports whether a conversion result is waiting
func (d *Device) DataReady() (bool, error) {
	v, err := d.ReadRegister(RegIRQ)
	if err != nil {
		return false, err
	}
	return v&fieldDRStatus.mask() == 0, nil
}

func (d *Device) dataSize() int {
	if d.format == Format24 {
		return 3
	}
	return 4
}

// ReadMeasurement returns the latest conversion and the channel it came
// from. The channel is only known in Format32ChannelID and is 0 otherwise.
func (d *Device) ReadMeasurement() (value int32, channel uint8, err error) {
	raw, err := d.ReadRegister(RegADCData)
	if err != nil {
		return 0, 0, err
	}
	value, channel = Decode(d.format, raw)
	return value, channel, nil
}

// Decode converts raw ADCDATA in the given format to a signed value
// and channel ID
func Decode(f DataFormat, raw uint32) (int32, uint8) {
	switch f {
	case Format24:
		return int32(raw<<8) >> 8, 0
	case Format32Padded:
		return int32(raw) >> 8, 0
	case Format32SignExt:
		return int32(raw<<7) >> 7, 0
	default:
		return int32(raw<<7) >> 7, uint8(raw >> 28)
	}
}
