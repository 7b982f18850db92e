// Package errlog is the outbound fault-reporting boundary of the clock and
// scheduler. The core never fails fatally; it emits a Code through a Handler
// and carries on.
package errlog

import "log/slog"

// Code identifies a recoverable runtime fault.
type Code uint8

const (
	// ClockMsecLate: the millisecond compare handler ran so late that the
	// next deadline was already past. The handler loops until caught up.
	ClockMsecLate Code = iota + 1
	// SchedTimestampWrap: an absolute deadline was so far in the past that
	// the caller likely meant a future time that wrapped. The task is
	// scheduled immediately regardless.
	SchedTimestampWrap
)

func (c Code) String() string {
	switch c {
	case ClockMsecLate:
		return "clock_msec_late"
	case SchedTimestampWrap:
		return "sched_timestamp_wrap"
	}
	return "unknown"
}

// Handler receives fault codes. Handlers always run with interrupts masked,
// either from interrupt context (ClockMsecLate) or from inside a Queue call
// (SchedTimestampWrap), so they must be short and must not call back into the
// clock or scheduler.
type Handler func(code Code)

// Log returns a Handler that reports faults on the given logger.
func Log(logger *slog.Logger) Handler {
	return func(code Code) {
		logger.Warn("recoverable fault", "code", code.String())
	}
}

// Default reports faults on slog.Default.
func Default() Handler {
	return Log(slog.Default())
}

// Recorder is a Handler factory for tests: it appends every reported code.
type Recorder struct {
	Codes []Code
}

func (r *Recorder) Handler() Handler {
	return func(code Code) {
		r.Codes = append(r.Codes, code)
	}
}

// Count returns how many times the given code was reported.
func (r *Recorder) Count(code Code) int {
	n := 0
	for _, c := range r.Codes {
		if c == code {
			n++
		}
	}
	return n
}
