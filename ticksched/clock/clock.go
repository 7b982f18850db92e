// Package clock extends a 16-bit hardware timer into a two-resolution
// monotonic clock: a 32-bit tick count (low word aliasing the hardware
// counter, high word kept by the overflow interrupt) and a 32-bit millisecond
// count advanced by the compare-A interrupt. Compare-B serves as a one-shot
// wake pin.
//
// All multi-word state is shared between mainline code and interrupt
// handlers; readers mask interrupts for the duration of the sample. Masked
// regions anywhere in the program must stay well under one timer period
// (65536 ticks), or overflow counting and the millisecond derivation fall
// behind.
package clock

import (
	"github.com/valerio/go-ticksched/ticksched/bit"
	"github.com/valerio/go-ticksched/ticksched/errlog"
	"github.com/valerio/go-ticksched/ticksched/hal"
)

// Clock owns the hardware timer's three interrupt sources. Create one per
// timer with New, call Init, then enable global interrupts.
type Clock struct {
	hw hal.Timer

	overflowCount uint16 // times the hardware counter has wrapped
	nextMsecQ16   uint32 // 16.16 deadline; integer part is the next compare-A value
	wakeFlagAddr  *uint8 // armed one-shot wake target, nil if none
	msecCount     uint32

	intervalQ16 uint32
	onFault     errlog.Handler
}

// Option configures a Clock.
type Option func(*Clock)

// WithFaultHandler routes recoverable faults to h instead of the default
// slog-backed handler.
func WithFaultHandler(h errlog.Handler) Option {
	return func(c *Clock) { c.onFault = h }
}

// WithMsecInterval overrides the 16.16 tick interval between millisecond
// compare points, for modelling other crystal/prescaler pairs. The integer
// part must stay below half a timer period.
func WithMsecInterval(q16 uint32) Option {
	return func(c *Clock) {
		if q16 >= 1<<31 {
			panic("clock: msec interval must be below half a timer period")
		}
		c.intervalQ16 = q16
	}
}

// New wires a Clock to the timer's interrupt sources. The clock does not run
// until Init.
func New(hw hal.Timer, opts ...Option) *Clock {
	c := &Clock{
		hw:          hw,
		intervalQ16: MsecIntervalQ16,
		onFault:     errlog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	hw.SetISR(hal.IRQOverflow, c.onOverflow)
	hw.SetISR(hal.IRQCompareA, c.onCompareA)
	hw.SetISR(hal.IRQCompareB, c.onCompareB)
	return c
}

// Init resets the counter, programs the first millisecond compare point and
// unmasks the overflow and compare-A interrupts. The caller enables global
// interrupts afterwards.
func (c *Clock) Init() {
	c.overflowCount = 0
	c.msecCount = 0
	c.wakeFlagAddr = nil
	c.nextMsecQ16 = c.intervalQ16
	c.hw.Start(Prescale)
	c.hw.SetCompareA(bit.High16(c.nextMsecQ16))
	c.hw.EnableIRQ(hal.IRQOverflow)
	c.hw.EnableIRQ(hal.IRQCompareA)
}

func (c *Clock) fault(code errlog.Code) {
	if c.onFault != nil {
		c.onFault(code)
	}
}

func (c *Clock) onOverflow() {
	c.overflowCount++
}

func (c *Clock) onCompareA() {
	// Loop in case interrupts were masked for more than a millisecond and
	// several compare points are already behind us.
	for {
		c.msecCount++
		c.nextMsecQ16 += c.intervalQ16
		wakeAt := bit.High16(c.nextMsecQ16)
		// The compare must be programmed with enough headroom that the
		// counter cannot pass it before the write lands.
		if int16(wakeAt-c.hw.Count()) > MinimumTickDelay {
			c.hw.SetCompareA(wakeAt)
			return
		}
		c.fault(errlog.ClockMsecLate)
	}
}

func (c *Clock) onCompareB() {
	c.hw.DisableIRQ(hal.IRQCompareB)
	if c.wakeFlagAddr != nil {
		*c.wakeFlagAddr = 1
		c.wakeFlagAddr = nil
	}
}

// ReadTicksCLI reads the 32-bit tick count. Interrupts must already be
// disabled.
func (c *Clock) ReadTicksCLI() uint32 {
	live := c.hw.Count()
	pending := c.hw.OverflowPending()
	high := c.overflowCount
	// A pending overflow means a wrap happened at or before the counter
	// sample — unless the sample is already near the top of the range, in
	// which case the flag belongs to the coming wrap and high is already
	// right. The 0xFF00 slack is wider than any masked region lasts.
	if pending && live <= 0xFF00 {
		high++
	}
	return bit.Combine32(high, live)
}

// ReadTicks reads the 32-bit tick count from mainline context, masking
// interrupts for the sample.
func (c *Clock) ReadTicks() uint32 {
	prev := c.hw.DisableInterrupts()
	defer c.hw.RestoreInterrupts(prev)
	return c.ReadTicksCLI()
}

// ReadTicks16 returns a snapshot of the hardware counter alone, for wake
// scheduling within one timer period.
func (c *Clock) ReadTicks16() uint16 {
	prev := c.hw.DisableInterrupts()
	defer c.hw.RestoreInterrupts(prev)
	return c.hw.Count()
}

// CombineTicksCLI reconstructs the 32-bit tick count matching a low word the
// caller sampled less than half a timer period ago. Interrupts must already
// be disabled.
func (c *Clock) CombineTicksCLI(lo uint16) uint32 {
	high := c.overflowCount
	// The counter wrapped since lo was sampled if lo's top bit has fallen.
	if bit.IsSet16(15, lo) && !bit.IsSet16(15, c.hw.Count()) {
		// With the overflow still pending, high has not counted that wrap
		// yet and already matches the sample; once serviced, back it out.
		if !c.hw.OverflowPending() {
			high--
		}
	}
	return bit.Combine32(high, lo)
}

// ReadMsecCLI reads the millisecond count. Interrupts must already be
// disabled.
func (c *Clock) ReadMsecCLI() uint32 {
	return c.msecCount
}

// ReadMsec reads the millisecond count from mainline context.
func (c *Clock) ReadMsec() uint32 {
	prev := c.hw.DisableInterrupts()
	defer c.hw.RestoreInterrupts(prev)
	return c.msecCount
}

// SetWakeTime arms a one-shot wake: when the hardware counter reaches wakeAt
// (at most one timer period ahead), 1 is written through flagAddr and the
// wake disarms. Passing nil flagAddr cancels the write of an armed wake.
func (c *Clock) SetWakeTime(wakeAt uint16, flagAddr *uint8) {
	prev := c.hw.DisableInterrupts()
	defer c.hw.RestoreInterrupts(prev)
	c.wakeFlagAddr = flagAddr
	c.hw.SetCompareB(wakeAt)
	// the compare-B flag is likely stale from a previous pass of the counter
	c.hw.ClearPending(hal.IRQCompareB)
	c.hw.EnableIRQ(hal.IRQCompareB)
}
