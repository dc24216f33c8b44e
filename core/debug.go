package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

var (
	// debugPrintln is the global debug print function (set by platform code)
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled controls whether debug output is active
	debugEnabled bool = true
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugPrintln writes a debug message using the platform-specific writer.
// Never call this from the control tick: writers may block on USB.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// Event kinds recorded by the control loop
const (
	EvtDetent = 1 // Value1=position, Value2=centre in microradians
	EvtStatus = 2 // Value1=cycles, Value2=overruns, Value3=max latency us, Value4=knob.PackHealth word
	EvtFault  = 3 // Value1=failures, Value2=degraded reads, Value3=trips, Value4=flags
	EvtForce  = 4 // Value1=filtered force reading, Value2=failed reads
)

// Event is a fixed-size record that can be written from the control tick
// without allocating
type Event struct {
	Kind   uint8
	Clock  uint32
	Value1 int32
	Value2 int32
	Value3 int32
	Value4 int32
}

// EventRingSize is the number of events kept between drains
const EventRingSize = 32

// EventRing is a single-producer, single-consumer ring of events.
// When full, the oldest event is overwritten and counted as dropped.
// Producer and consumer must run in the same execution context.
type EventRing struct {
	buf     [EventRingSize]Event
	head    uint8 // next write position
	count   uint8
	dropped uint32
}

// Record appends an event (~20ns, never blocks)
func (r *EventRing) Record(e Event) {
	r.buf[r.head] = e
	r.head = (r.head + 1) % EventRingSize
	if r.count == EventRingSize {
		r.dropped++
		return
	}
	r.count++
}

// Drain calls fn for every pending event, oldest first, and empties the ring
func (r *EventRing) Drain(fn func(Event)) {
	start := (r.head + EventRingSize - r.count) % EventRingSize
	n := r.count
	r.count = 0
	for i := uint8(0); i < n; i++ {
		fn(r.buf[(start+i)%EventRingSize])
	}
}

// Len returns the number of pending events
func (r *EventRing) Len() int {
	return int(r.count)
}

// Dropped returns how many events were overwritten before being drained
func (r *EventRing) Dropped() uint32 {
	return r.dropped
}
