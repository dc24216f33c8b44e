//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"machine"

	"smartknob/core"
)

// SPI1 is shared by the magnetometer and the strain gauge ADC. Each device
// sets its own clock and mode around its transfers.
const spiBaudrate = 10000000

// SPI1 PL022 registers. machine.SPI only sets the mode in Configure, which
// also reroutes pins, so the mode bits are switched here directly.
const (
	spi1Base   = 0x40040000
	spiCR0     = spi1Base + 0x00
	spiCR1     = spi1Base + 0x04
	spiSR      = spi1Base + 0x0C
	spiCR0SPO  = 1 << 6
	spiCR0SPH  = 1 << 7
	spiCR1SSE  = 1 << 1
	spiSRBusy  = 1 << 4
	spiModeMsk = spiCR0SPO | spiCR0SPH
)

// spiBus adds mode switching to machine.SPI
type spiBus struct {
	*machine.SPI
	mode core.SPIMode
}

func spiReg(addr uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(addr))
}

func (b *spiBus) GetMode() core.SPIMode {
	return b.mode
}

// SetMode disables the controller while CPOL and CPHA change
func (b *spiBus) SetMode(mode core.SPIMode) error {
	for spiReg(spiSR).HasBits(spiSRBusy) {
	}
	var bits uint32
	if mode&1 != 0 {
		bits |= spiCR0SPH
	}
	if mode&2 != 0 {
		bits |= spiCR0SPO
	}
	spiReg(spiCR1).ClearBits(spiCR1SSE)
	spiReg(spiCR0).ReplaceBits(bits, spiModeMsk, 0)
	spiReg(spiCR1).SetBits(spiCR1SSE)
	b.mode = mode
	return nil
}

// configureSPI brings up SPI1 on the magnetometer pins. With force sensing
// enabled the strain ADC pins are muxed to SPI1 as well; the RX inputs of
// both pin groups are combined, so each device must release MISO while
// deselected.
func configureSPI(force bool) (core.SPIBus, error) {
	bus := machine.SPI1
	err := bus.Configure(machine.SPIConfig{
		Frequency: spiBaudrate,
		SCK:       magCLK,
		SDO:       strainMOSI,
		SDI:       magMISO,
		LSBFirst:  false,
		Mode:      uint8(core.SPIMode0),
	})
	if err != nil {
		return nil, err
	}

	magCSN.Configure(machine.PinConfig{Mode: machine.PinOutput})
	magCSN.High()

	if force {
		strainCLK.Configure(machine.PinConfig{Mode: machine.PinSPI})
		strainMISO.Configure(machine.PinConfig{Mode: machine.PinSPI})
		strainCSN.Configure(machine.PinConfig{Mode: machine.PinOutput})
		strainCSN.High()
		// the ADC's IRQ output is open drain and needs the pull-up to run
		strainIRQ.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}
	return &spiBus{SPI: bus, mode: core.SPIMode0}, nil
}
