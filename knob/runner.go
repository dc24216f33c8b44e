package knob

import "smartknob/core"

// DefaultPeriodUS is the control period (1 kHz)
const DefaultPeriodUS = 1000

// Stats describes how well the loop keeps its period
type Stats struct {
	Cycles     uint32
	Overruns   uint32 // cycles that ended after the next deadline
	MaxLatency uint32 // worst dispatch delay past the wake time, in ticks
}

// Runner ticks a Context from a periodic scheduler timer. Wake times are
// absolute, so dispatch delays do not accumulate into drift. A cycle that
// overruns its successor's deadline skips the missed periods rather than
// running them back to back.
type Runner struct {
	ctx    *Context
	sched  *core.Scheduler
	clock  core.Clock
	period uint32
	dt     float64

	timer   core.Timer
	running bool
	stats   Stats

	// StatusEvery emits a status event every that many cycles; zero
	// disables it
	StatusEvery uint32
}

// NewRunner returns a runner for ctx with a period in microseconds
func NewRunner(ctx *Context, sched *core.Scheduler, clock core.Clock, periodUS uint32) *Runner {
	if periodUS == 0 {
		periodUS = DefaultPeriodUS
	}
	period := core.TimerFromUS(periodUS)
	r := &Runner{
		ctx:    ctx,
		sched:  sched,
		clock:  clock,
		period: period,
		dt:     float64(periodUS) / 1e6,
	}
	r.timer.Handler = r.event
	return r
}

// Start schedules the first cycle one period after now
func (r *Runner) Start(now uint32) {
	if r.running {
		return
	}
	r.running = true
	r.timer.WakeTime = now + r.period
	r.sched.Add(&r.timer)
}

// Stop unschedules the loop
func (r *Runner) Stop() {
	if !r.running {
		return
	}
	r.running = false
	r.sched.Remove(&r.timer)
}

// Stats returns the timing counters
func (r *Runner) Stats() Stats {
	return r.stats
}

// Period returns the period in timer ticks
func (r *Runner) Period() uint32 {
	return r.period
}

func (r *Runner) event(t *core.Timer) uint8 {
	if !r.running {
		return core.SFDone
	}

	start := r.clock()
	if late := start - t.WakeTime; !core.TimerIsBefore(start, t.WakeTime) && late > r.stats.MaxLatency {
		r.stats.MaxLatency = late
	}

	r.ctx.Tick(r.dt)
	r.stats.Cycles++

	next := t.WakeTime + r.period
	if end := r.clock(); !core.TimerIsBefore(end, next) {
		r.stats.Overruns++
		missed := (end - t.WakeTime) / r.period
		next = t.WakeTime + (missed+1)*r.period
	}
	t.WakeTime = next

	if r.StatusEvery != 0 && r.stats.Cycles%r.StatusEvery == 0 {
		r.recordStatus()
	}
	return core.SFReschedule
}

func (r *Runner) recordStatus() {
	r.ctx.record(core.Event{
		Kind:   core.EvtStatus,
		Value1: int32(r.stats.Cycles),
		Value2: int32(r.stats.Overruns),
		Value3: int32(core.TimerToUS(r.stats.MaxLatency)),
		Value4: PackHealth(r.ctx.Health()),
	})
}

// Status event health word: flags in bits 0..7, sensor failures in bits
// 8..19, degraded reads in bits 20..31. Both counters are kept modulo 4096;
// fault events carry the full counts.
const (
	healthCountBits    = 12
	healthCountMask    = 1<<healthCountBits - 1
	healthFailShift    = 8
	healthDegradeShift = healthFailShift + healthCountBits
)

// PackHealth folds h into a status event's Value4
func PackHealth(h Health) int32 {
	var v uint32
	if h.Faulted {
		v |= FlagFaulted
	}
	v |= (h.Failures & healthCountMask) << healthFailShift
	v |= (h.Degraded & healthCountMask) << healthDegradeShift
	return int32(v)
}

// UnpackHealth splits a status event's Value4. Trips is not carried.
func UnpackHealth(v int32) Health {
	u := uint32(v)
	return Health{
		Failures: u >> healthFailShift & healthCountMask,
		Degraded: u >> healthDegradeShift & healthCountMask,
		Faulted:  u&FlagFaulted != 0,
	}
}
