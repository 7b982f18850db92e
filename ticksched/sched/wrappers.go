package sched

// Convenience forms over Queue. The five primary wrappers bind fn and closure
// to the task under mask before queuing; the Again forms re-queue a task that
// already carries them, which is the usual move from inside a callback.

// Now queues t to run on the next dispatch pass.
func (s *Scheduler) Now(t *Task, fn TaskFunc, closure any) {
	prev := s.hw.DisableInterrupts()
	defer s.hw.RestoreInterrupts(prev)
	t.fn = fn
	t.closure = closure
	s.Queue(t, WakeFromNow, 0)
}

// AtMsec queues t for an absolute millisecond deadline.
func (s *Scheduler) AtMsec(t *Task, deadline uint32, fn TaskFunc, closure any) {
	prev := s.hw.DisableInterrupts()
	defer s.hw.RestoreInterrupts(prev)
	t.fn = fn
	t.closure = closure
	s.Queue(t, WakeMsec, deadline)
}

// MsecFromNow queues t to run after a millisecond delay.
func (s *Scheduler) MsecFromNow(t *Task, delay uint32, fn TaskFunc, closure any) {
	prev := s.hw.DisableInterrupts()
	defer s.hw.RestoreInterrupts(prev)
	t.fn = fn
	t.closure = closure
	s.Queue(t, WakeMsec|WakeFromNow, delay)
}

// AtTick queues t for an absolute tick deadline.
func (s *Scheduler) AtTick(t *Task, deadline uint32, fn TaskFunc, closure any) {
	prev := s.hw.DisableInterrupts()
	defer s.hw.RestoreInterrupts(prev)
	t.fn = fn
	t.closure = closure
	s.Queue(t, 0, deadline)
}

// TicksFromNow queues t to run after a tick delay.
func (s *Scheduler) TicksFromNow(t *Task, delay uint32, fn TaskFunc, closure any) {
	prev := s.hw.DisableInterrupts()
	defer s.hw.RestoreInterrupts(prev)
	t.fn = fn
	t.closure = closure
	s.Queue(t, WakeFromNow, delay)
}

// AgainNow re-queues t with its bound fn and closure for the next pass.
func (s *Scheduler) AgainNow(t *Task) {
	s.Queue(t, WakeFromNow, 0)
}

// AgainAtMsec re-queues t for an absolute millisecond deadline.
func (s *Scheduler) AgainAtMsec(t *Task, deadline uint32) {
	s.Queue(t, WakeMsec, deadline)
}

// AgainMsecFromNow re-queues t after a millisecond delay.
func (s *Scheduler) AgainMsecFromNow(t *Task, delay uint32) {
	s.Queue(t, WakeMsec|WakeFromNow, delay)
}

// AgainAtTick re-queues t for an absolute tick deadline.
func (s *Scheduler) AgainAtTick(t *Task, deadline uint32) {
	s.Queue(t, 0, deadline)
}

// AgainTicksFromNow re-queues t after a tick delay.
func (s *Scheduler) AgainTicksFromNow(t *Task, delay uint32) {
	s.Queue(t, WakeFromNow, delay)
}
