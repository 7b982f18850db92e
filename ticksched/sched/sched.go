// Package sched is a cooperative, interrupt-driven task scheduler over the
// two-resolution clock. Tasks wait on deadline-sorted pending lists (one per
// time unit), move to a FIFO ready queue when due, and are dispatched one per
// RunOne pass with the CPU idled between events.
//
// All list state is shared with interrupt handlers and is only touched with
// interrupts masked. Deadline comparisons use signed differences of the
// unsigned counters, so ordering survives counter wrap as long as deadlines
// stay within half the 32-bit range of now.
package sched

import (
	"github.com/valerio/go-ticksched/ticksched/clock"
	"github.com/valerio/go-ticksched/ticksched/errlog"
	"github.com/valerio/go-ticksched/ticksched/hal"
)

// Flags select how Queue interprets its wake spec.
type Flags uint8

const (
	// WakeMsec: the wake spec is in milliseconds rather than ticks.
	WakeMsec Flags = 1 << iota
	// WakeFromNow: the wake spec is an offset from the current clock
	// reading rather than an absolute deadline.
	WakeFromNow
)

// taskWaitTickThreshold is the window, in ticks, inside which a tick deadline
// is treated as already due: closer than this there is no time to come back
// around through another compare interrupt.
const taskWaitTickThreshold = 4

// Scheduler dispatches tasks against one clock. Create with New; not safe to
// share a Task between two schedulers.
type Scheduler struct {
	hw  hal.Timer
	clk *clock.Clock

	pendingTick *Task
	pendingMsec *Task
	ready       *Task
	readyTail   **Task

	dispatched uint64
	onFault    errlog.Handler
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithFaultHandler routes recoverable faults to h instead of the default
// slog-backed handler.
func WithFaultHandler(h errlog.Handler) Option {
	return func(s *Scheduler) { s.onFault = h }
}

func New(hw hal.Timer, clk *clock.Clock, opts ...Option) *Scheduler {
	s := &Scheduler{
		hw:      hw,
		clk:     clk,
		onFault: errlog.Default(),
	}
	s.readyTail = &s.ready
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) fault(code errlog.Code) {
	if s.onFault != nil {
		s.onFault(code)
	}
}

// insertTask insert-sorts t into a pending list by ascending wake time,
// comparing signed differences so the order is circular. t lands before the
// first strictly-later deadline, so equal deadlines keep insertion order.
func insertTask(list **Task, t *Task) {
	for *list != nil && int32(t.wakeTime-(*list).wakeTime) >= 0 {
		list = &(*list).next
	}
	t.next = *list
	*list = t
}

// moveToReady appends t to the ready queue. Interrupts must be masked.
func (s *Scheduler) moveToReady(t *Task) {
	*s.readyTail = t
	s.readyTail = &t.next
	t.next = nil
	t.state = Ready
}

// findInList returns the address of the link pointing at t, or nil.
func findInList(list **Task, t *Task) **Task {
	for *list != nil {
		if *list == t {
			return list
		}
		list = &(*list).next
	}
	return nil
}

// Queue schedules t according to flags and wakeSpec. A task that is already
// scheduled is cancelled first, so Queue doubles as reschedule. Deadlines at
// or behind the present go straight to the ready queue; an absolute deadline
// more than 0xFFFFFF units behind additionally reports SchedTimestampWrap,
// since the caller almost certainly meant a future time that wrapped.
//
// Callable from task bodies and from interrupt handlers.
func (s *Scheduler) Queue(t *Task, flags Flags, wakeSpec uint32) {
	prev := s.hw.DisableInterrupts()
	defer s.hw.RestoreInterrupts(prev)

	if t.state != Idle {
		s.Cancel(t)
	}
	t.state = Scheduled

	var offset int32
	if flags&WakeMsec != 0 {
		t.waitKind = WaitMsec
		now := s.clk.ReadMsecCLI()
		if flags&WakeFromNow != 0 {
			t.wakeTime = now + wakeSpec
		} else {
			t.wakeTime = wakeSpec
		}
		offset = int32(t.wakeTime - now)
		if offset > 0 {
			insertTask(&s.pendingMsec, t)
			return
		}
	} else {
		t.waitKind = WaitTick
		now := s.clk.ReadTicksCLI()
		if flags&WakeFromNow != 0 {
			t.wakeTime = now + wakeSpec
		} else {
			t.wakeTime = wakeSpec
		}
		// Deadlines inside the promote window count as due; there is no
		// point scheduling a wait shorter than the dispatch overhead.
		offset = int32(t.wakeTime-now) - taskWaitTickThreshold
		if offset > 0 {
			insertTask(&s.pendingTick, t)
			return
		}
	}

	// The deadline is already past; run it on the next pass.
	if offset < -0xFFFFFF {
		s.fault(errlog.SchedTimestampWrap)
	}
	s.moveToReady(t)
}

// Cancel removes t from whichever list holds it and returns it to Idle.
// Idempotent; cancelling an Idle task is a no-op.
func (s *Scheduler) Cancel(t *Task) {
	prev := s.hw.DisableInterrupts()
	defer s.hw.RestoreInterrupts(prev)

	tp := findInList(&s.pendingMsec, t)
	if tp == nil {
		tp = findInList(&s.pendingTick, t)
	}
	if tp == nil {
		tp = findInList(&s.ready, t)
	}
	if tp != nil {
		*tp = t.next
		if s.readyTail == &t.next {
			s.readyTail = tp
		}
	}

	t.next = nil
	t.state = Idle
	t.waitKind = WaitNone
}

// RunOne performs one dispatch pass: promote every due task to the ready
// queue, then either run the ready head, busy-return if a tick deadline is
// imminent, or idle-sleep until the next millisecond interrupt.
//
// The ready head returns to Idle before its callback runs, so the callback
// may re-queue its own task. Its fn and closure are captured before
// interrupts are re-enabled; an interrupt handler re-queuing the task cannot
// corrupt the call about to be made.
func (s *Scheduler) RunOne() {
	s.hw.DisableInterrupts()

	delay := int32(clock.TicksPerMsec)
	if s.pendingTick != nil {
		now := s.clk.ReadTicksCLI()
		for s.pendingTick != nil {
			delay = int32(s.pendingTick.wakeTime - now)
			if delay >= taskWaitTickThreshold {
				break
			}
			t := s.pendingTick
			s.pendingTick = t.next
			s.moveToReady(t)
		}
	}
	if s.pendingMsec != nil {
		now := s.clk.ReadMsecCLI()
		for s.pendingMsec != nil && int32(s.pendingMsec.wakeTime-now) <= 0 {
			t := s.pendingMsec
			s.pendingMsec = t.next
			s.moveToReady(t)
		}
	}

	if s.ready != nil {
		t := s.ready
		s.ready = t.next
		if s.readyTail == &t.next {
			s.readyTail = &s.ready
		}
		t.next = nil
		t.state = Idle
		t.waitKind = WaitNone
		s.dispatched++

		fn, arg := t.fn, t.closure
		s.hw.EnableInterrupts()
		fn(arg)
		return
	}

	if s.pendingTick != nil && delay < int32(clock.TicksPerMsec) {
		// A tick deadline lands before the next millisecond interrupt
		// could wake us; let the caller spin back around.
		s.hw.EnableInterrupts()
		return
	}

	// Nothing due until the next millisecond at the earliest. Sleep with
	// interrupts enabled atomically; compare-A wakes us.
	s.hw.Sleep()
}

// Run dispatches forever.
func (s *Scheduler) Run() {
	for {
		s.RunOne()
	}
}

// Stats is a snapshot of scheduler occupancy.
type Stats struct {
	PendingTick int
	PendingMsec int
	Ready       int
	Dispatched  uint64
}

func listLen(t *Task) int {
	n := 0
	for ; t != nil; t = t.next {
		n++
	}
	return n
}

// Stats samples list lengths and the dispatch count under mask.
func (s *Scheduler) Stats() Stats {
	prev := s.hw.DisableInterrupts()
	defer s.hw.RestoreInterrupts(prev)
	return Stats{
		PendingTick: listLen(s.pendingTick),
		PendingMsec: listLen(s.pendingMsec),
		Ready:       listLen(s.ready),
		Dispatched:  s.dispatched,
	}
}
