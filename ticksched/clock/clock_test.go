package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-ticksched/ticksched/errlog"
	"github.com/valerio/go-ticksched/ticksched/hal/sim"
)

func newTestClock(opts ...Option) (*sim.Timer, *Clock) {
	tm := sim.New()
	c := New(tm, opts...)
	c.Init()
	return tm, c
}

func TestReadTicksMonotonic(t *testing.T) {
	tm, c := newTestClock()
	tm.EnableInterrupts()

	steps := []uint32{1, 1999, 2000, 30000, 65535, 65536, 70000, 3, 100000}
	prev := c.ReadTicks()
	var total uint32
	for _, step := range steps {
		tm.AdvanceTicks(step)
		total += step
		got := c.ReadTicks()
		require.GreaterOrEqual(t, uint64(got), uint64(prev), "tick count went backwards")
		prev = got
	}
	assert.Equal(t, total, c.ReadTicks(), "tick count should equal ticks elapsed")
}

func TestReadTicksOverflowRace(t *testing.T) {
	t.Run("flag for the coming wrap is ignored near the top", func(t *testing.T) {
		tm, c := newTestClock()
		tm.DisableInterrupts()
		tm.AdvanceTicks(0xFFF8)

		// Land the wrap between the counter sample and the flag probe.
		tm.AfterCountRead = func() {
			tm.AfterCountRead = nil
			tm.AdvanceTicks(0x20)
		}
		got := c.ReadTicksCLI()
		assert.Equal(t, uint32(0xFFF8), got, "reading must match the sample, not be off by 65536")
	})

	t.Run("pending flag from a real wrap corrects the high word", func(t *testing.T) {
		tm, c := newTestClock()
		tm.DisableInterrupts()
		tm.AdvanceTicks(0x10010)

		got := c.ReadTicksCLI()
		assert.Equal(t, uint32(0x10010), got)
	})

	t.Run("serviced wrap needs no correction", func(t *testing.T) {
		tm, c := newTestClock()
		tm.EnableInterrupts()
		tm.AdvanceTicks(0x10010)

		assert.Equal(t, uint32(0x10010), c.ReadTicks())
	})
}

func TestReadTicks16(t *testing.T) {
	tm, c := newTestClock()
	tm.EnableInterrupts()
	tm.AdvanceTicks(0x12345)
	assert.Equal(t, uint16(0x2345), c.ReadTicks16())
}

func TestCombineTicks(t *testing.T) {
	t.Run("no wrap since sample", func(t *testing.T) {
		tm, c := newTestClock()
		tm.DisableInterrupts()
		tm.AdvanceTicks(0x4000)
		lo := c.ReadTicks16()
		tm.AdvanceTicks(0x100)
		assert.Equal(t, uint32(0x4000), c.CombineTicksCLI(lo))
	})

	t.Run("wrap since sample, overflow still pending", func(t *testing.T) {
		tm, c := newTestClock()
		tm.DisableInterrupts()
		tm.AdvanceTicks(0xFFF0)
		lo := uint16(0xFFF0)
		tm.AdvanceTicks(0x30) // wraps; overflow ISR masked, high word stale
		assert.Equal(t, uint32(0xFFF0), c.CombineTicksCLI(lo))
	})

	t.Run("wrap since sample, overflow serviced", func(t *testing.T) {
		tm, c := newTestClock()
		tm.EnableInterrupts()
		tm.AdvanceTicks(0xFFF0)
		lo := uint16(0xFFF0)
		tm.AdvanceTicks(0x30) // wraps; overflow ISR runs, high word advanced
		prev := tm.DisableInterrupts()
		got := c.CombineTicksCLI(lo)
		tm.RestoreInterrupts(prev)
		assert.Equal(t, uint32(0xFFF0), got)
	})
}

func TestMsecCount(t *testing.T) {
	tm, c := newTestClock()
	tm.EnableInterrupts()

	tm.AdvanceTicks(6 * TicksPerMsec)
	assert.Equal(t, uint32(6), c.ReadMsec())

	prev := tm.DisableInterrupts()
	assert.Equal(t, uint32(6), c.ReadMsecCLI())
	tm.RestoreInterrupts(prev)
}

func TestMsecDriftBound(t *testing.T) {
	// 14.7456 MHz / 8: 1843.2 ticks per millisecond, so the compare interval
	// carries a genuine fractional part.
	const q16 = uint32(14745600 * 65536 / 8000)
	tm, c := newTestClock(WithMsecInterval(q16))
	tm.EnableInterrupts()

	const n = 1_000_000
	totalTicks := (uint64(n) * uint64(q16)) >> 16
	remaining := totalTicks
	for remaining > 0 {
		chunk := remaining
		if chunk > 1<<22 {
			chunk = 1 << 22
		}
		tm.AdvanceTicks(uint32(chunk))
		remaining -= chunk
	}

	got := c.ReadMsec()
	assert.InDelta(t, float64(n), float64(got), 1, "millisecond count drifted more than one")
}

func TestCompareARescue(t *testing.T) {
	rec := &errlog.Recorder{}
	tm, c := newTestClock(WithFaultHandler(rec.Handler()))
	tm.EnableInterrupts()

	tm.AdvanceTicks(2 * TicksPerMsec)
	require.Equal(t, uint32(2), c.ReadMsec())

	// Mask interrupts across K millisecond points, then let the handler
	// catch up in one entry.
	const k = 10
	prev := tm.DisableInterrupts()
	tm.AdvanceTicks(k * TicksPerMsec)
	tm.RestoreInterrupts(prev)

	assert.Equal(t, uint32(2+k), c.ReadMsec(), "handler must produce exactly K increments")
	assert.Equal(t, k-1, rec.Count(errlog.ClockMsecLate))

	// The compare must be re-armed correctly: the next millisecond arrives
	// on schedule.
	tm.AdvanceTicks(TicksPerMsec)
	assert.Equal(t, uint32(3+k), c.ReadMsec())
}

func TestCompareAHeadroomInvariant(t *testing.T) {
	tm, c := newTestClock()
	tm.EnableInterrupts()

	for i := 0; i < 200; i++ {
		tm.AdvanceTicks(TicksPerMsec)
		prev := tm.DisableInterrupts()
		ahead := int16(uint16(c.nextMsecQ16>>16) - tm.Count())
		tm.RestoreInterrupts(prev)
		require.Greater(t, ahead, int16(MinimumTickDelay), "compare point too close at iteration %d", i)
		require.LessOrEqual(t, int32(ahead), int32(1<<15), "compare point more than half a period away")
	}
}

func TestSetWakeTime(t *testing.T) {
	t.Run("flag written exactly once", func(t *testing.T) {
		tm, c := newTestClock()
		tm.EnableInterrupts()

		var flag uint8
		c.SetWakeTime(c.ReadTicks16()+1000, &flag)

		tm.AdvanceTicks(999)
		assert.Equal(t, uint8(0), flag)

		tm.AdvanceTicks(1)
		assert.Equal(t, uint8(1), flag)

		// one-shot: the compare point passing again must not rewrite
		flag = 0xAA
		tm.AdvanceTicks(1 << 16)
		assert.Equal(t, uint8(0xAA), flag)
	})

	t.Run("nil before the deadline cancels the write", func(t *testing.T) {
		tm, c := newTestClock()
		tm.EnableInterrupts()

		var flag uint8
		at := c.ReadTicks16() + 1000
		c.SetWakeTime(at, &flag)
		c.SetWakeTime(at, nil)

		tm.AdvanceTicks(2000)
		assert.Equal(t, uint8(0), flag)
	})
}
