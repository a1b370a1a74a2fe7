package scheduler

// SetIdleHook registers fn to run whenever the loop begins waiting for the
// next round.
func (s *Scheduler) SetIdleHook(fn func()) {
	s.idle = fn
}
