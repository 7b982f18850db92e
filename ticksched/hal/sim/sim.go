package sim

import (
	"github.com/valerio/go-ticksched/ticksched/bit"
	"github.com/valerio/go-ticksched/ticksched/hal"
	"github.com/valerio/go-ticksched/ticksched/ioreg"
)

// Timer is a software model of a 16-bit up-counting hardware timer with a
// prescaler, two output-compare channels and an overflow interrupt. Time only
// advances when the test or host loop calls AdvanceTicks/AdvanceCycles (or
// Sleep, which fast-forwards to the next interrupt).
//
// Pending flags are sticky: a compare match or overflow latches its flag bit
// even while the IRQ is masked or the global interrupt flag is clear, and the
// ISR runs as soon as both are set again. A flag is not re-latched for
// matches that pass while it is already set, matching hardware.
type Timer struct {
	prescale uint16
	cycleRem uint16 // CPU cycles that have not yet amounted to a timer tick

	tcnt  uint16
	ocra  uint16
	ocrb  uint16
	tccrb uint8 // control register, holds the clock-select bits
	timsk uint8 // interrupt mask register, ioreg bit positions
	tifr  uint8 // interrupt flag register, ioreg bit positions

	intEnabled bool
	inISR      bool

	isr [hal.NumIRQs]func()

	// AfterCountRead, when set, runs after Count samples the counter and
	// before the caller regains control. Tests use it to land an overflow
	// between a counter sample and a flag probe.
	AfterCountRead func()

	// Dispatches counts taken interrupts; Sleeps counts idle-sleep entries.
	Dispatches uint64
	Sleeps     uint64
}

var _ hal.Timer = (*Timer)(nil)

func New() *Timer {
	return &Timer{}
}

func flagBit(irq hal.IRQ) uint8 {
	switch irq {
	case hal.IRQCompareA:
		return ioreg.OCFA
	case hal.IRQCompareB:
		return ioreg.OCFB
	default:
		return ioreg.TOV
	}
}

func (t *Timer) Start(prescale uint16) {
	t.prescale = prescale
	t.tccrb = ioreg.ClockSelect(prescale)
	t.tcnt = 0
	t.cycleRem = 0
}

func (t *Timer) running() bool {
	return t.tccrb != ioreg.CSOff
}

func (t *Timer) Count() uint16 {
	v := t.tcnt
	if t.AfterCountRead != nil {
		t.AfterCountRead()
	}
	return v
}

func (t *Timer) SetCompareA(v uint16) { t.ocra = v }
func (t *Timer) SetCompareB(v uint16) { t.ocrb = v }

func (t *Timer) OverflowPending() bool {
	return bit.IsSet(ioreg.TOV, t.tifr)
}

func (t *Timer) ClearPending(irq hal.IRQ) {
	t.tifr = bit.Clear(flagBit(irq), t.tifr)
}

func (t *Timer) EnableIRQ(irq hal.IRQ) {
	t.timsk = bit.Set(flagBit(irq), t.timsk)
	// unmasking an already-pending IRQ takes it immediately
	t.dispatch()
}

func (t *Timer) DisableIRQ(irq hal.IRQ) {
	t.timsk = bit.Clear(flagBit(irq), t.timsk)
}

func (t *Timer) SetISR(irq hal.IRQ, fn func()) {
	t.isr[irq] = fn
}

func (t *Timer) DisableInterrupts() bool {
	prev := t.intEnabled
	t.intEnabled = false
	return prev
}

func (t *Timer) RestoreInterrupts(enabled bool) {
	if enabled {
		t.EnableInterrupts()
	}
}

func (t *Timer) EnableInterrupts() {
	t.intEnabled = true
	t.dispatch()
}

// pendingIRQ returns the highest-priority IRQ that is both pending and
// unmasked. Priority follows the hardware vector order: compare A, compare B,
// overflow.
func (t *Timer) pendingIRQ() (hal.IRQ, bool) {
	active := t.timsk & t.tifr
	switch {
	case bit.IsSet(ioreg.OCFA, active):
		return hal.IRQCompareA, true
	case bit.IsSet(ioreg.OCFB, active):
		return hal.IRQCompareB, true
	case bit.IsSet(ioreg.TOV, active):
		return hal.IRQOverflow, true
	}
	return 0, false
}

// dispatch services pending unmasked IRQs while the global flag is set. The
// global flag is cleared for the duration of each ISR, as on hardware.
func (t *Timer) dispatch() {
	if t.inISR {
		return
	}
	for t.intEnabled {
		irq, ok := t.pendingIRQ()
		if !ok {
			return
		}
		t.tifr = bit.Clear(flagBit(irq), t.tifr)
		t.Dispatches++
		fn := t.isr[irq]
		if fn == nil {
			continue
		}
		t.intEnabled = false
		t.inISR = true
		fn()
		t.inISR = false
		t.intEnabled = true
	}
}

// nextEventDelta returns the number of ticks until the counter next lands on
// a compare match or the overflow point. Always in (0, 65536].
func (t *Timer) nextEventDelta() uint32 {
	dist := func(v uint16) uint32 {
		d := uint32(v - t.tcnt)
		if d == 0 {
			d = 1 << 16
		}
		return d
	}
	min := dist(t.ocra)
	if d := dist(t.ocrb); d < min {
		min = d
	}
	if d := dist(0); d < min {
		min = d
	}
	return min
}

// AdvanceTicks advances the counter by n timer ticks, latching compare and
// overflow flags as their points pass and taking interrupts when unmasked.
func (t *Timer) AdvanceTicks(n uint32) {
	if !t.running() {
		return
	}
	for n > 0 {
		step := t.nextEventDelta()
		if step > n {
			t.tcnt += uint16(n)
			return
		}
		t.tcnt += uint16(step)
		n -= step
		if t.tcnt == t.ocra {
			t.tifr = bit.Set(ioreg.OCFA, t.tifr)
		}
		if t.tcnt == t.ocrb {
			t.tifr = bit.Set(ioreg.OCFB, t.tifr)
		}
		if t.tcnt == 0 {
			t.tifr = bit.Set(ioreg.TOV, t.tifr)
		}
		t.dispatch()
	}
}

// AdvanceCycles advances the timer by n CPU cycles, carrying the prescaler
// remainder across calls.
func (t *Timer) AdvanceCycles(n uint64) {
	if !t.running() {
		return
	}
	total := uint64(t.cycleRem) + n
	ticks := total / uint64(t.prescale)
	t.cycleRem = uint16(total % uint64(t.prescale))
	for ticks > 0 {
		chunk := ticks
		if chunk > 1<<30 {
			chunk = 1 << 30
		}
		t.AdvanceTicks(uint32(chunk))
		ticks -= chunk
	}
}

// Sleep enables interrupts and fast-forwards virtual time until an interrupt
// has been serviced. If nothing is unmasked or the timer is stopped there is
// nothing that could wake the CPU, so Sleep returns immediately rather than
// hanging the host process.
func (t *Timer) Sleep() {
	t.Sleeps++
	start := t.Dispatches
	t.EnableInterrupts()
	if t.timsk == 0 || !t.running() {
		return
	}
	for t.Dispatches == start {
		t.AdvanceTicks(t.nextEventDelta())
	}
}
