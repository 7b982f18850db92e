package clock

// Timer rate configuration. These mirror the build-time settings of the
// target board; change them here to model different hardware.
const (
	// FCPU is the CPU clock in Hz.
	FCPU = 16_000_000
	// Prescale divides the CPU clock down to the tick rate. One of 1, 8, 64.
	Prescale = 8

	// TicksPerSec is the tick rate of the extended 32-bit counter.
	TicksPerSec = FCPU / Prescale
	// TicksPerMsec is the nominal tick count per millisecond.
	TicksPerMsec = TicksPerSec / 1000

	// MsecIntervalQ16 is the exact tick interval between millisecond compare
	// points, as 16.16 fixed point. The fractional part is what keeps the
	// millisecond count from drifting long-run.
	MsecIntervalQ16 = uint32(FCPU * 65536 / (Prescale * 1000))

	// MinimumTickDelay is the least headroom, in ticks, with which a compare
	// register may be programmed ahead of the counter.
	MinimumTickDelay = (32+Prescale-1)/Prescale + 1
)

// The next millisecond compare point must always land less than half a timer
// period ahead of the counter. This fails to compile when the tick rate
// breaks that assumption.
const _ = uint((1 << 15) - 1 - TicksPerMsec)
