// Package mcu connects to the knob firmware and turns its telemetry
// events into typed records.
package mcu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"smartknob/core"
	"smartknob/host/serial"
	"smartknob/knob"
	"smartknob/protocol"
)

var ErrUnknownEvent = errors.New("mcu: unknown event kind")

// Detent is reported when the knob moves to another detent
type Detent struct {
	Clock    uint32
	Position int32
	Center   float64 // radians
}

// Status is the periodic loop health report
type Status struct {
	Clock      uint32
	Cycles     uint32
	Overruns   uint32
	MaxLatency time.Duration
	Failures   uint32 // sensor failures modulo 4096
	Degraded   uint32 // degraded reads modulo 4096
	Faulted    bool
}

// Fault is reported when the sensor fault policy trips or recovers
type Fault struct {
	Clock    uint32
	Failures uint32
	Degraded uint32
	Trips    uint32
	Faulted  bool
}

// Force is a filtered press sensor reading
type Force struct {
	Clock    uint32
	Value    int32
	Failures uint32
}

// Record is one of Detent, Status, Fault or Force
type Record interface{}

// Interpret converts a raw event into its record
func Interpret(e core.Event) (Record, error) {
	switch e.Kind {
	case core.EvtDetent:
		return Detent{Clock: e.Clock, Position: e.Value1, Center: float64(e.Value2) / 1e6}, nil
	case core.EvtStatus:
		h := knob.UnpackHealth(e.Value4)
		return Status{
			Clock:      e.Clock,
			Cycles:     uint32(e.Value1),
			Overruns:   uint32(e.Value2),
			MaxLatency: time.Duration(e.Value3) * time.Microsecond,
			Failures:   h.Failures,
			Degraded:   h.Degraded,
			Faulted:    h.Faulted,
		}, nil
	case core.EvtFault:
		return Fault{
			Clock:    e.Clock,
			Failures: uint32(e.Value1),
			Degraded: uint32(e.Value2),
			Trips:    uint32(e.Value3),
			Faulted:  e.Value4&knob.FlagFaulted != 0,
		}, nil
	case core.EvtForce:
		return Force{Clock: e.Clock, Value: e.Value1, Failures: uint32(e.Value2)}, nil
	}
	return nil, fmt.Errorf("%w %d", ErrUnknownEvent, e.Kind)
}

// State is the latest record of each kind
type State struct {
	Detent Detent
	Status Status
	Fault  Fault
	Force  Force
}

// MCU is a telemetry connection to the knob
type MCU struct {
	stream *protocol.Stream

	mu      sync.Mutex
	state   State
	unknown uint32
}

// Connect opens the knob's serial device
func Connect(device string) (*MCU, error) {
	port, err := serial.Open(serial.DefaultConfig(device))
	if err != nil {
		return nil, err
	}
	return NewMCU(port), nil
}

// NewMCU starts decoding telemetry from port
func NewMCU(port io.ReadCloser) *MCU {
	return &MCU{stream: protocol.NewStream(port)}
}

// Run delivers records to fn until ctx is done or the port closes. It
// returns the port error, if any.
func (m *MCU) Run(ctx context.Context, fn func(Record)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-m.stream.Messages():
			if !ok {
				return m.stream.Err()
			}
			for _, e := range msg.Events {
				rec, err := Interpret(e)
				if err != nil {
					m.mu.Lock()
					m.unknown++
					m.mu.Unlock()
					continue
				}
				m.update(rec)
				if fn != nil {
					fn(rec)
				}
			}
		}
	}
}

func (m *MCU) update(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch r := rec.(type) {
	case Detent:
		m.state.Detent = r
	case Status:
		m.state.Status = r
	case Fault:
		m.state.Fault = r
	case Force:
		m.state.Force = r
	}
}

// State returns the latest records
func (m *MCU) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns the link counters and the number of events of unknown kind
func (m *MCU) Stats() (protocol.DecoderStats, uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream.Stats(), m.unknown
}

func (m *MCU) Close() error {
	return m.stream.Close()
}
