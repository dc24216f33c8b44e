package knob

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartknob/core"
	"smartknob/filter"
)

func TestRunnerTicksOnPeriod(t *testing.T) {
	r := newRig(t, 1.0, nil)
	var now uint32
	sched := &core.Scheduler{}
	run := NewRunner(r.ctx, sched, func() uint32 { return now }, 0)
	assert.Equal(t, uint32(1000), run.Period())

	run.Start(0)
	next, ok := sched.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(1000), next)

	now = 999
	assert.Zero(t, sched.Dispatch(now))

	for i := 1; i <= 5; i++ {
		now = uint32(i) * 1000
		assert.Equal(t, 1, sched.Dispatch(now))
	}
	assert.Equal(t, Stats{Cycles: 5}, run.Stats())
	next, _ = sched.Next()
	assert.Equal(t, uint32(6000), next)
	assert.Len(t, r.out.calls, 5)
}

func TestRunnerDoesNotDrift(t *testing.T) {
	r := newRig(t, 1.0, nil)
	var now uint32
	sched := &core.Scheduler{}
	run := NewRunner(r.ctx, sched, func() uint32 { return now }, 1000)
	run.Start(0)

	// dispatched 300 ticks late; the next wake time stays on the grid
	now = 1300
	sched.Dispatch(now)
	next, _ := sched.Next()
	assert.Equal(t, uint32(2000), next)
	assert.Equal(t, uint32(300), run.Stats().MaxLatency)
	assert.Zero(t, run.Stats().Overruns)
}

func TestRunnerSkipsMissedPeriods(t *testing.T) {
	r := newRig(t, 1.0, nil)
	var now uint32
	sched := &core.Scheduler{}
	run := NewRunner(r.ctx, sched, func() uint32 { return now }, 1000)
	run.Start(0)

	// the tick stalls on the bus for 2.5 periods
	r.sensor.onRead = func() { now += 2500 }
	now = 1000
	assert.Equal(t, 1, sched.Dispatch(now))

	next, _ := sched.Next()
	assert.Equal(t, uint32(4000), next, "periods at 2000 and 3000 are skipped")
	assert.Equal(t, uint32(1), run.Stats().Overruns)

	r.sensor.onRead = nil
	now = 4200
	assert.Equal(t, 1, sched.Dispatch(now))
	next, _ = sched.Next()
	assert.Equal(t, uint32(5000), next)
	assert.Equal(t, Stats{Cycles: 2, Overruns: 1, MaxLatency: 200}, run.Stats())
}

func TestRunnerWrapsClock(t *testing.T) {
	r := newRig(t, 1.0, nil)
	now := uint32(0xFFFFFF00)
	sched := &core.Scheduler{}
	run := NewRunner(r.ctx, sched, func() uint32 { return now }, 1000)
	run.Start(now)

	now += 1000
	assert.Equal(t, 1, sched.Dispatch(now))
	now += 1000
	assert.Equal(t, 1, sched.Dispatch(now))
	assert.Equal(t, Stats{Cycles: 2}, run.Stats())
}

func TestRunnerStop(t *testing.T) {
	r := newRig(t, 1.0, nil)
	sched := &core.Scheduler{}
	run := NewRunner(r.ctx, sched, func() uint32 { return 0 }, 1000)
	run.Start(0)
	run.Stop()
	_, ok := sched.Next()
	assert.False(t, ok)
	assert.Zero(t, sched.Dispatch(5000))
}

func TestRunnerStatusEvents(t *testing.T) {
	r := newRig(t, 1.0, nil)
	var now uint32
	sched := &core.Scheduler{}
	run := NewRunner(r.ctx, sched, func() uint32 { return now }, 1000)
	run.StatusEvery = 2
	run.Start(0)

	for i := 1; i <= 4; i++ {
		now = uint32(i) * 1000
		sched.Dispatch(now)
	}
	evs := r.drain()
	require.Len(t, evs, 2)
	assert.Equal(t, uint8(core.EvtStatus), evs[0].Kind)
	assert.Equal(t, int32(2), evs[0].Value1)
	assert.Equal(t, int32(4), evs[1].Value1)
}

func TestStatusCarriesSensorHealth(t *testing.T) {
	r := newRig(t, 1.0, nil)
	var now uint32
	sched := &core.Scheduler{}
	run := NewRunner(r.ctx, sched, func() uint32 { return now }, 1000)
	run.StatusEvery = 3
	run.Start(0)
	r.drain()

	r.sensor.push(reading{angle: 1.0, err: degraded{}}, reading{err: errBus}, reading{angle: 1.0, err: degraded{}})
	for i := 1; i <= 3; i++ {
		now = uint32(i) * 1000
		sched.Dispatch(now)
	}
	evs := r.drain()
	require.Len(t, evs, 1)
	assert.Equal(t, uint8(core.EvtStatus), evs[0].Kind)
	assert.Equal(t, Health{Failures: 1, Degraded: 2}, UnpackHealth(evs[0].Value4))
}

func TestPackHealth(t *testing.T) {
	cases := []Health{
		{},
		{Faulted: true},
		{Failures: 4095, Degraded: 1},
		{Failures: 7, Degraded: 4095, Faulted: true},
	}
	for _, h := range cases {
		assert.Equal(t, h, UnpackHealth(PackHealth(h)))
	}

	got := UnpackHealth(PackHealth(Health{Failures: 4096 + 3, Degraded: 8192 + 5, Trips: 9}))
	assert.Equal(t, Health{Failures: 3, Degraded: 5}, got, "counters wrap, trips are not carried")
}

type fakeADC struct {
	value   int32
	channel uint8
	err     error
}

func (a *fakeADC) ReadMeasurement() (int32, uint8, error) {
	return a.value, a.channel, a.err
}

func TestForceChannel(t *testing.T) {
	fir, err := filter.NewFIR(filter.LowPass, 10, 200, 5)
	require.NoError(t, err)
	adc := &fakeADC{value: 1000, channel: 8}
	sched := &core.Scheduler{}
	ring := &core.EventRing{}

	f := NewForceChannel(adc, 8, fir, sched, 5000)
	f.SetEvents(ring, func() uint32 { return 7 })
	f.PublishEvery = 5
	f.Start(0)

	for i := 1; i <= 5; i++ {
		assert.Equal(t, 1, sched.Dispatch(uint32(i)*5000))
	}
	assert.InDelta(t, 1000, f.Value(), 1e-9)

	var evs []core.Event
	ring.Drain(func(e core.Event) { evs = append(evs, e) })
	require.Len(t, evs, 1)
	assert.Equal(t, core.Event{Kind: core.EvtForce, Clock: 7, Value1: 1000}, evs[0])

	adc.channel = 3
	f.Sample()
	assert.InDelta(t, 1000, f.Value(), 1e-9, "other channels are ignored")

	adc.err = errors.New("bus")
	f.Sample()
	assert.Equal(t, uint32(1), f.Failures())

	f.Stop()
	_, ok := sched.Next()
	assert.False(t, ok)
}
