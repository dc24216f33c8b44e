package knob

import (
	"math"

	"smartknob/core"
	"smartknob/filter"
)

// ADC is a conversion source such as the strain gauge converter
type ADC interface {
	ReadMeasurement() (value int32, channel uint8, err error)
}

// ForceChannel samples the press sensor on its own timer, low-pass filters
// it and publishes the filtered value. It never runs inside the control
// tick, so the slower ADC transfer cannot stretch a control cycle.
type ForceChannel struct {
	adc     ADC
	channel uint8
	fir     *filter.FIR
	sched   *core.Scheduler
	period  uint32

	events *core.EventRing
	clock  core.Clock

	timer   core.Timer
	running bool

	value    float64
	samples  uint32
	failures uint32
	// PublishEvery emits a force event every that many samples
	PublishEvery uint32
}

// NewForceChannel returns a channel reading ADC channel ch every periodUS
// microseconds through fir
func NewForceChannel(adc ADC, ch uint8, fir *filter.FIR, sched *core.Scheduler, periodUS uint32) *ForceChannel {
	f := &ForceChannel{
		adc:          adc,
		channel:      ch,
		fir:          fir,
		sched:        sched,
		period:       core.TimerFromUS(periodUS),
		PublishEvery: 1,
	}
	f.timer.Handler = f.event
	return f
}

// SetEvents makes the channel record force events into ring
func (f *ForceChannel) SetEvents(ring *core.EventRing, clock core.Clock) {
	f.events = ring
	f.clock = clock
}

// Start schedules the first sample one period after now
func (f *ForceChannel) Start(now uint32) {
	if f.running {
		return
	}
	f.running = true
	f.timer.WakeTime = now + f.period
	f.sched.Add(&f.timer)
}

// Stop unschedules sampling
func (f *ForceChannel) Stop() {
	if !f.running {
		return
	}
	f.running = false
	f.sched.Remove(&f.timer)
}

// Sample reads the ADC once and feeds the filter. Readings from another
// scan channel are ignored.
func (f *ForceChannel) Sample() {
	v, ch, err := f.adc.ReadMeasurement()
	if err != nil {
		f.failures++
		return
	}
	if ch != f.channel {
		return
	}
	f.value = f.fir.Run(float64(v))
	f.samples++

	if f.events != nil && f.PublishEvery != 0 && f.samples%f.PublishEvery == 0 {
		e := core.Event{Kind: core.EvtForce, Value1: int32(math.Round(f.value)), Value2: int32(f.failures)}
		if f.clock != nil {
			e.Clock = f.clock()
		}
		f.events.Record(e)
	}
}

// Value returns the latest filtered reading
func (f *ForceChannel) Value() float64 {
	return f.value
}

// Failures returns how many reads failed
func (f *ForceChannel) Failures() uint32 {
	return f.failures
}

func (f *ForceChannel) event(t *core.Timer) uint8 {
	if !f.running {
		return core.SFDone
	}
	f.Sample()
	t.WakeTime += f.period
	return core.SFReschedule
}
