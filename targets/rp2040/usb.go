//go:build rp2040

package main

import (
	"machine"

	"smartknob/core"
)

// InitUSB configures the USB CDC port the telemetry frames are written to
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// USBWriteBytes writes to the USB CDC port
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}

// InitDebug routes core.DebugPrintln to UART0 on GPIO28 so text never mixes
// with the framed telemetry on USB
func InitDebug() {
	uart := machine.UART0
	if err := uart.Configure(machine.UARTConfig{BaudRate: 115200, TX: debugTX, RX: machine.NoPin}); err != nil {
		core.SetDebugEnabled(false)
		return
	}
	core.SetDebugWriter(func(s string) {
		uart.Write([]byte(s))
		uart.Write([]byte("\r\n"))
	})
}
