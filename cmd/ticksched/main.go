package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/urfave/cli"

	"github.com/valerio/go-ticksched/ticksched/clock"
	"github.com/valerio/go-ticksched/ticksched/errlog"
	"github.com/valerio/go-ticksched/ticksched/hal/sim"
	"github.com/valerio/go-ticksched/ticksched/monitor"
	"github.com/valerio/go-ticksched/ticksched/sched"
	"github.com/valerio/go-ticksched/ticksched/timing"
)

func main() {
	app := cli.NewApp()
	app.Name = "ticksched"
	app.Description = "Cooperative tick/millisecond task scheduling on a simulated 16-bit hardware timer"
	app.Usage = "ticksched [options]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "millis",
			Usage: "Virtual milliseconds to run",
			Value: 3000,
		},
		cli.BoolFlag{
			Name:  "monitor",
			Usage: "Show a live terminal view of clock and scheduler state",
		},
		cli.BoolFlag{
			Name:  "realtime",
			Usage: "Pace the simulation at one virtual millisecond per wall millisecond",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "Log at debug level",
		},
	}
	app.Action = runDemo

	if err := app.Run(os.Args); err != nil {
		slog.Error("Error running demo", "error", err)
		os.Exit(1)
	}
}

func runDemo(c *cli.Context) error {
	millis := c.Int("millis")
	if millis <= 0 {
		return errors.New("millis must be a positive value")
	}

	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	var faults uint64
	onFault := func(code errlog.Code) {
		faults++
		slog.Warn("recoverable fault", "code", code.String())
	}

	tm := sim.New()
	clk := clock.New(tm, clock.WithFaultHandler(onFault))
	clk.Init()
	s := sched.New(tm, clk, sched.WithFaultHandler(onFault))
	tm.EnableInterrupts()

	// Heartbeat: a periodic task that re-queues itself every 250 ms.
	var heartbeat sched.Task
	beats := 0
	s.MsecFromNow(&heartbeat, 250, func(any) {
		beats++
		slog.Debug("heartbeat", "msec", clk.ReadMsec(), "beats", beats)
		s.AgainMsecFromNow(&heartbeat, 250)
	}, nil)

	// Ping/pong: two tasks volleying on staggered millisecond deadlines.
	var ping, pong sched.Task
	volleys := 0
	s.MsecFromNow(&ping, 100, func(any) {
		s.AgainMsecFromNow(&pong, 50)
	}, nil)
	pong.Bind(func(any) {
		volleys++
		s.AgainMsecFromNow(&ping, 50)
	}, nil)

	// Tick-resolution periodic task: 5000 ticks between runs.
	var ticker sched.Task
	tickRuns := 0
	s.TicksFromNow(&ticker, 5000, func(any) {
		tickRuns++
		s.AgainTicksFromNow(&ticker, 5000)
	}, nil)

	// Wake pin: arm compare-B a little ahead, watch for the flag write and
	// re-arm.
	var wakeFlag uint8
	wakes := 0
	armWake := func() {
		wakeFlag = 0
		clk.SetWakeTime(clk.ReadTicks16()+1200, &wakeFlag)
	}
	armWake()
	var wakeWatcher sched.Task
	s.MsecFromNow(&wakeWatcher, 1, func(any) {
		if wakeFlag != 0 {
			wakes++
			armWake()
		}
		s.AgainMsecFromNow(&wakeWatcher, 1)
	}, nil)

	var mon *monitor.Monitor
	if c.Bool("monitor") {
		mon = monitor.New()
		if err := mon.Init(); err != nil {
			return err
		}
		defer mon.Cleanup()
	}

	var limiter timing.Limiter = timing.NewNoOpLimiter()
	if c.Bool("realtime") {
		tl := timing.NewTickerLimiter()
		defer tl.Stop()
		limiter = tl
	}

	slog.Info("Starting demo", "millis", millis, "realtime", c.Bool("realtime"))

	lastMsec := uint32(0)
	for {
		msec := clk.ReadMsec()
		if msec >= uint32(millis) {
			break
		}
		if msec != lastMsec {
			lastMsec = msec
			limiter.WaitForNextSlice()
			if mon != nil && msec%16 == 0 {
				st := s.Stats()
				quit := mon.Update(monitor.Stats{
					Ticks:       clk.ReadTicks(),
					Msec:        msec,
					PendingTick: st.PendingTick,
					PendingMsec: st.PendingMsec,
					Ready:       st.Ready,
					Dispatched:  st.Dispatched,
					Sleeps:      tm.Sleeps,
					Faults:      faults,
				})
				if quit {
					break
				}
			}
		}
		dispatched, sleeps := s.Stats().Dispatched, tm.Sleeps
		s.RunOne()
		if s.Stats().Dispatched == dispatched && tm.Sleeps == sleeps {
			// RunOne returned to spin on an imminent tick deadline; the
			// simulated counter only moves when the host advances it.
			tm.AdvanceTicks(1)
		}
	}

	st := s.Stats()
	slog.Info("Demo finished",
		"msec", clk.ReadMsec(),
		"ticks", clk.ReadTicks(),
		"dispatched", st.Dispatched,
		"heartbeats", beats,
		"volleys", volleys,
		"tick_runs", tickRuns,
		"wakes", wakes,
		"sleeps", tm.Sleeps,
		"faults", faults)
	return nil
}
