// Command knob-monitor logs the knob's telemetry from its USB port
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartknob/config"
	"smartknob/host/logger"
	"smartknob/host/mcu"
)

var (
	device      = flag.String("device", "/dev/ttyACM0", "Serial device path")
	configPath  = flag.String("config", "", "Knob configuration JSON (defaults to the firmware's built-in one)")
	logFile     = flag.String("log", "", "Also write the log to this file, rotated")
	verbose     = flag.Bool("verbose", false, "Log status and force records")
	color       = flag.Bool("color", true, "Color the console level")
	statsPeriod = flag.Duration("stats", 10*time.Second, "Link statistics interval, 0 to disable")
)

func main() {
	flag.Parse()

	level := logger.InfoLevel
	if *verbose {
		level = logger.DebugLevel
	}
	logger.InitLogger(logger.Options{
		Level:      level,
		File:       *logFile,
		Color:      *color,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     7,
	})
	defer logger.Sync()

	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("%v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Knob, error) {
	if path == "" {
		return config.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	k, err := config.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return k, nil
}

func run() error {
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := mcu.Connect(*device)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Infof("monitoring %s, detents %d..%d", *device, cfg.Detent.Min, cfg.Detent.Max)

	if *statsPeriod > 0 {
		go reportStats(ctx, conn, *statsPeriod)
	}
	p := &printer{cfg: cfg}
	return conn.Run(ctx, p.print)
}

type printer struct {
	cfg     *config.Knob
	faulted bool
}

func (p *printer) print(rec mcu.Record) {
	switch r := rec.(type) {
	case mcu.Detent:
		logger.Infow("detent",
			"position", r.Position,
			"center_deg", math.Round(r.Center*180/math.Pi*10)/10,
			"at_min", r.Position == p.cfg.Detent.Min,
			"at_max", r.Position == p.cfg.Detent.Max,
		)
	case mcu.Fault:
		if r.Faulted {
			logger.Warnw("sensor fault, motor released", "failures", r.Failures, "degraded", r.Degraded, "trips", r.Trips)
		} else {
			logger.Infow("sensor recovered", "failures", r.Failures, "degraded", r.Degraded, "trips", r.Trips)
		}
		p.faulted = r.Faulted
	case mcu.Status:
		logger.Debugf("status: %d cycles, %d overruns, max latency %v, %d failures, %d degraded",
			r.Cycles, r.Overruns, r.MaxLatency, r.Failures, r.Degraded)
		if r.Faulted != p.faulted {
			p.faulted = r.Faulted
			logger.Warnw("fault state changed", "faulted", r.Faulted)
		}
	case mcu.Force:
		logger.Debugf("force: %d (%d failed reads)", r.Value, r.Failures)
	}
}

func reportStats(ctx context.Context, conn *mcu.MCU, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s, unknown := conn.Stats()
			logger.Infow("link",
				"frames", s.Frames,
				"lost", s.Lost,
				"resyncs", s.Resyncs,
				"discarded", s.Discarded,
				"corrupt", s.Corrupt,
				"unknown", unknown,
			)
		}
	}
}
