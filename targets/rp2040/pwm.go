//go:build rp2040

package main

import (
	"errors"
	"runtime/volatile"
	"unsafe"

	"machine"

	"smartknob/core"
)

// RP2040 PWM peripheral. The slices are driven through their registers
// because machine.PWM cannot select phase-correct counting or start
// several slices in one write.
const (
	pwmBase        = 0x40050000
	pwmSliceStride = 0x14
	pwmEN          = pwmBase + 0xA0

	pwmCSR = 0x00
	pwmDIV = 0x04
	pwmCTR = 0x08
	pwmCC  = 0x0C
	pwmTOP = 0x10

	pwmCSREnable     = 1 << 0
	pwmCSRPhaseCorr  = 1 << 1
	pwmDIVInt1       = 1 << 4 // integer divider 1 in 8.4 fixed point
	pwmSlices        = 8
	pwmMaxTop        = 0xFFFF
	pwmChannelBShift = 16
)

var ErrPWMWrap = errors.New("pwm: wrap exceeds 16 bits")

func pwmReg(slice uint8, off uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(pwmBase) + uintptr(slice)*pwmSliceStride + off))
}

// sliceOf maps a GPIO to its slice and channel: GPIO n drives slice
// (n>>1)&7, channel A when n is even
func sliceOf(pin core.PWMPin) (slice uint8, channelB bool) {
	return uint8((pin >> 1) & 0x7), pin&1 != 0
}

// RP2040PWM implements core.PWM on the PWM slices
type RP2040PWM struct{}

func NewRP2040PWM() *RP2040PWM {
	return &RP2040PWM{}
}

// ConfigurePWM stops the pin's slice, counts it from 0 to wrap at the
// system clock and routes the pin to it
func (p *RP2040PWM) ConfigurePWM(pin core.PWMPin, wrap uint32, phaseCorrect bool) error {
	if wrap > pwmMaxTop {
		return ErrPWMWrap
	}
	slice, _ := sliceOf(pin)

	csr := pwmReg(slice, pwmCSR)
	csr.ClearBits(pwmCSREnable)
	if phaseCorrect {
		csr.SetBits(pwmCSRPhaseCorr)
	} else {
		csr.ClearBits(pwmCSRPhaseCorr)
	}
	pwmReg(slice, pwmDIV).Set(pwmDIVInt1)
	pwmReg(slice, pwmTOP).Set(wrap)
	pwmReg(slice, pwmCTR).Set(0)

	if err := p.SetLevel(pin, 0); err != nil {
		return err
	}
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinPWM})
	return nil
}

// SetLevel writes the compare value of the pin's channel. The hardware
// latches it at the next wrap.
func (p *RP2040PWM) SetLevel(pin core.PWMPin, level core.PWMLevel) error {
	slice, b := sliceOf(pin)
	cc := pwmReg(slice, pwmCC)
	if b {
		cc.ReplaceBits(uint32(level), 0xFFFF, pwmChannelBShift)
	} else {
		cc.ReplaceBits(uint32(level), 0xFFFF, 0)
	}
	return nil
}

// EnableAll starts every slice behind pins with one write to the EN
// register, so the counters stay in phase
func (p *RP2040PWM) EnableAll(pins ...core.PWMPin) error {
	var mask uint32
	for _, pin := range pins {
		slice, _ := sliceOf(pin)
		pwmReg(slice, pwmCTR).Set(0)
		mask |= 1 << slice
	}
	en := (*volatile.Register32)(unsafe.Pointer(uintptr(pwmEN)))
	en.Set(en.Get() | mask&(1<<pwmSlices-1))
	return nil
}
