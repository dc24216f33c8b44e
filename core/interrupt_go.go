//go:build !tinygo

package core

// irqState stands in for the saved interrupt mask on regular Go, where
// tests drive the scheduler from a single goroutine
type irqState uintptr

// irqMasked counts nested masked sections
var irqMasked int

func disableInterrupts() irqState {
	irqMasked++
	return 0
}

func restoreInterrupts(irqState) {
	irqMasked--
}
