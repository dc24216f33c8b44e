//go:build rp2040

package main

import (
	"context"
	"time"

	"machine"

	"smartknob/config"
	"smartknob/core"
	"smartknob/drivers/mcp3564r"
	"smartknob/drivers/mt6701"
	"smartknob/drivers/tmc6300"
	"smartknob/filter"
	"smartknob/foc"
	"smartknob/knob"
	"smartknob/protocol"
)

// Board pin map
const (
	strainIRQ  = machine.GPIO7
	strainMISO = machine.GPIO8
	strainCSN  = machine.GPIO9
	strainCLK  = machine.GPIO10
	strainMOSI = machine.GPIO11

	magMISO = machine.GPIO24
	magCSN  = machine.GPIO25
	magCLK  = machine.GPIO26

	debugTX = machine.GPIO28
)

var motorPins = tmc6300.Pins{
	UH: 16, UL: 17,
	VH: 14, VL: 15,
	WH: 12, WL: 13,
}

// wakeMargin is how early the main loop wakes before the next timer
const wakeMargin = 50

var (
	sched  core.Scheduler
	events core.EventRing

	outputBuffer = protocol.NewScratchOutput()
	encoder      = protocol.NewEncoder(outputBuffer)

	droppedEvents            uint32
	consecutiveWriteFailures uint32
)

func main() {
	// clear any watchdog left running by a previous image
	_ = machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})

	InitUSB()
	InitDebug()
	time.Sleep(100 * time.Millisecond)

	cfg := config.Default()

	bus, err := configureSPI(cfg.Force.Enabled)
	if err != nil {
		halt("spi", err, nil)
	}

	mag := mt6701.New(bus, magCSN)
	mag.Configure()

	driver := tmc6300.New(NewRP2040PWM(), motorPins, cfg.Motor.SupplyVoltage)
	if err := driver.Configure(cfg.DriverConfig()); err != nil {
		halt("driver", err, nil)
	}

	engine := foc.New(cfg.FOCConfig(), mag, driver)
	if z := cfg.Motor.ZeroElectricAngle; z != nil {
		engine.ZeroElectricAngle = *z
		engine.SetModulation(cfg.Modulation())
	} else {
		if err := driver.SetEnabled(true); err != nil {
			halt("driver", err, driver)
		}
		if err := engine.Init(context.Background(), cfg.Modulation()); err != nil {
			halt("calibration", err, driver)
		}
	}
	core.DebugPrintln("zero electric angle: " + core.Ftoa(engine.ZeroElectricAngle, 6))

	ctx := knob.New(cfg.KnobConfig(), engine, mag, driver)
	ctx.SetEvents(&events, GetHardwareTime)
	if err := ctx.Start(); err != nil {
		halt("start", err, driver)
	}

	runner := knob.NewRunner(ctx, &sched, GetHardwareTime, cfg.PeriodUS)
	runner.StatusEvery = cfg.StatusEvery
	runner.Start(GetHardwareTime())

	if cfg.Force.Enabled {
		if err := startForce(cfg, bus); err != nil {
			// the knob keeps running without press sensing
			core.DebugPrintln("force channel disabled: " + err.Error())
		}
	}
	core.DebugPrintln("running, period " + core.Itoa(int(runner.Period())) + " us")

	for {
		sched.Dispatch(GetHardwareTime())
		flushEvents()
		sleepUntilNext()
	}
}

func startForce(cfg *config.Knob, bus core.SPIBus) error {
	adc := mcp3564r.New(bus, strainCSN, mcp3564r.DefaultAddress)
	acfg := mcp3564r.DefaultConfig()
	acfg.ScanChannels = []uint8{cfg.Force.Channel}
	if err := adc.Configure(acfg); err != nil {
		return err
	}

	fs := float64(core.TimerFreq) / float64(core.TimerFromUS(cfg.Force.PeriodUS))
	fir, err := filter.NewFIR(filter.LowPass, cfg.Force.CutoffHz, fs, cfg.Force.Taps)
	if err != nil {
		return err
	}

	force := knob.NewForceChannel(adc, cfg.Force.Channel, fir, &sched, cfg.Force.PeriodUS)
	force.SetEvents(&events, GetHardwareTime)
	force.Start(GetHardwareTime())
	return nil
}

// flushEvents frames everything the timers recorded and writes it to USB
func flushEvents() {
	if events.Len() == 0 {
		return
	}
	events.Drain(func(e core.Event) {
		if !encoder.Encode(e) {
			droppedEvents++
		}
	})
	encoder.Flush()
	writeUSB()
}

// writeUSB writes the output buffer. A partly written buffer is dropped
// rather than resent; after repeated failures the host is assumed gone and
// pending frames are dropped so the loop never stalls.
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if written > 0 || consecutiveWriteFailures > 10 {
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}

func sleepUntilNext() {
	next, ok := sched.Next()
	if !ok {
		time.Sleep(time.Millisecond)
		return
	}
	if d := int32(next - GetHardwareTime()); d > wakeMargin {
		time.Sleep(time.Duration(d-wakeMargin) * time.Microsecond)
	}
}

// halt releases the motor and reports err on the debug port forever
func halt(stage string, err error, driver *tmc6300.Device) {
	if driver != nil {
		_ = driver.SetEnabled(false)
	}
	for {
		core.DebugPrintln(core.Itoa(int(GetHardwareUptime()/1000)) + " ms: " + stage + ": " + err.Error())
		time.Sleep(time.Second)
	}
}
