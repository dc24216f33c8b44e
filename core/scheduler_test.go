package core

import "testing"

func TestSchedulerDispatchOrder(t *testing.T) {
	var s Scheduler
	var order []uint32

	handler := func(tm *Timer) uint8 {
		order = append(order, tm.WakeTime)
		return SFDone
	}

	timers := []*Timer{
		{WakeTime: 300, Handler: handler},
		{WakeTime: 100, Handler: handler},
		{WakeTime: 200, Handler: handler},
	}
	for _, tm := range timers {
		s.Add(tm)
	}

	if next, ok := s.Next(); !ok || next != 100 {
		t.Fatalf("Next() = %d, %v; want 100, true", next, ok)
	}

	if ran := s.Dispatch(250); ran != 2 {
		t.Errorf("Dispatch(250) ran %d timers, want 2", ran)
	}
	if len(order) != 2 || order[0] != 100 || order[1] != 200 {
		t.Errorf("unexpected dispatch order %v", order)
	}

	s.Dispatch(300)
	if len(order) != 3 || order[2] != 300 {
		t.Errorf("timer at 300 did not run: %v", order)
	}
	if _, ok := s.Next(); ok {
		t.Error("scheduler should be empty")
	}
}

func TestSchedulerReschedule(t *testing.T) {
	var s Scheduler
	count := 0
	tm := &Timer{
		WakeTime: 1000,
		Handler: func(tm *Timer) uint8 {
			count++
			tm.WakeTime += 1000
			return SFReschedule
		},
	}
	s.Add(tm)

	for now := uint32(0); now <= 5000; now += 500 {
		s.Dispatch(now)
	}
	if count != 5 {
		t.Errorf("periodic timer ran %d times, want 5", count)
	}
	if next, _ := s.Next(); next != 6000 {
		t.Errorf("next wake = %d, want 6000", next)
	}
}

func TestSchedulerWrap(t *testing.T) {
	var s Scheduler
	ran := false
	s.Add(&Timer{
		WakeTime: 10, // just after the counter wrapped
		Handler: func(*Timer) uint8 {
			ran = true
			return SFDone
		},
	})

	s.Dispatch(0xFFFFFFF0)
	if ran {
		t.Fatal("timer ran before the counter wrapped")
	}
	s.Dispatch(20)
	if !ran {
		t.Fatal("timer did not run after the counter wrapped")
	}
}

func TestSchedulerRemove(t *testing.T) {
	var s Scheduler
	a := &Timer{WakeTime: 10, Handler: func(*Timer) uint8 { return SFDone }}
	b := &Timer{WakeTime: 20, Handler: func(*Timer) uint8 { return SFDone }}
	s.Add(a)
	s.Add(b)
	s.Remove(a)

	if next, _ := s.Next(); next != 20 {
		t.Errorf("after Remove next = %d, want 20", next)
	}
	if ran := s.Dispatch(100); ran != 1 {
		t.Errorf("Dispatch ran %d timers, want 1", ran)
	}
}

func TestTimerConversions(t *testing.T) {
	if got := TimerFromUS(1000); got != 1000 {
		t.Errorf("TimerFromUS(1000) = %d", got)
	}
	if got := TimerToUS(250); got != 250 {
		t.Errorf("TimerToUS(250) = %d", got)
	}
	if !TimerIsBefore(0xFFFFFFFF, 1) {
		t.Error("0xFFFFFFFF should be before 1 across the wrap")
	}
}

func TestDispatchRunsHandlersUnmasked(t *testing.T) {
	var s Scheduler
	runs := 0
	tm := &Timer{WakeTime: 100, Handler: func(tm *Timer) uint8 {
		if irqMasked != 0 {
			t.Errorf("handler ran with interrupts masked (depth %d)", irqMasked)
		}
		runs++
		if runs < 3 {
			tm.WakeTime += 100
			return SFReschedule
		}
		return SFDone
	}}
	s.Add(tm)

	if n := s.Dispatch(300); n != 3 {
		t.Errorf("Dispatch ran %d handlers, want 3", n)
	}
	if irqMasked != 0 {
		t.Errorf("interrupts left masked (depth %d)", irqMasked)
	}
	if _, ok := s.Next(); ok {
		t.Error("timer still scheduled after SFDone")
	}
}
