package core

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

// Handler return values
const (
	SFDone       = 0
	SFReschedule = 1
)

// Scheduler keeps timers sorted by wake time and runs them when due.
// All timers run in the dispatching context; a handler runs to completion
// before the next one starts.
type Scheduler struct {
	list *Timer
}

// Add inserts a timer in wake-time order. A timer must not be added twice.
func (s *Scheduler) Add(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.insert(t)
}

// Remove unlinks a timer if it is scheduled
func (s *Scheduler) Remove(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	pp := &s.list
	for *pp != nil {
		if *pp == t {
			*pp = t.Next
			t.Next = nil
			return
		}
		pp = &(*pp).Next
	}
}

// insert places t in sorted order (Klipper's sched_add_timer)
func (s *Scheduler) insert(t *Timer) {
	if s.list == nil || TimerIsBefore(t.WakeTime, s.list.WakeTime) {
		t.Next = s.list
		s.list = t
		return
	}

	current := s.list
	for current.Next != nil && !TimerIsBefore(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// Dispatch runs every timer whose wake time is at or before now and
// returns the number of handlers run. Interrupts are masked only while the
// list is updated; handlers run with interrupts enabled.
func (s *Scheduler) Dispatch(now uint32) int {
	ran := 0
	for {
		timer := s.pop(now)
		if timer == nil {
			return ran
		}

		ran++
		if timer.Handler(timer) == SFReschedule {
			s.Add(timer)
		}
	}
}

// pop unlinks and returns the first timer due at now, or nil
func (s *Scheduler) pop(now uint32) *Timer {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	timer := s.list
	if timer == nil || TimerIsBefore(now, timer.WakeTime) {
		return nil
	}
	s.list = timer.Next
	timer.Next = nil
	return timer
}

// Next returns the wake time of the earliest timer
func (s *Scheduler) Next() (uint32, bool) {
	if s.list == nil {
		return 0, false
	}
	return s.list.WakeTime, true
}
