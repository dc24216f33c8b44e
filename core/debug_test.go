package core

import "testing"

func TestEventRingDrainOrder(t *testing.T) {
	var r EventRing
	for i := 0; i < 5; i++ {
		r.Record(Event{Kind: EvtDetent, Value1: int32(i)})
	}
	if r.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", r.Len())
	}

	var got []int32
	r.Drain(func(e Event) { got = append(got, e.Value1) })
	for i, v := range got {
		if v != int32(i) {
			t.Errorf("event %d has value %d", i, v)
		}
	}
	if r.Len() != 0 {
		t.Error("ring not empty after Drain")
	}
}

func TestEventRingOverwrite(t *testing.T) {
	var r EventRing
	total := EventRingSize + 4
	for i := 0; i < total; i++ {
		r.Record(Event{Kind: EvtStatus, Value1: int32(i)})
	}
	if r.Dropped() != 4 {
		t.Errorf("Dropped() = %d, want 4", r.Dropped())
	}

	var first int32 = -1
	n := 0
	r.Drain(func(e Event) {
		if first < 0 {
			first = e.Value1
		}
		n++
	})
	if n != EventRingSize {
		t.Errorf("drained %d events, want %d", n, EventRingSize)
	}
	if first != 4 {
		t.Errorf("oldest surviving event = %d, want 4", first)
	}
}

func TestDebugPrintln(t *testing.T) {
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})

	DebugPrintln("zero electric angle: " + Ftoa(4.062365, 4))
	SetDebugEnabled(false)
	DebugPrintln("suppressed")
	SetDebugEnabled(true)

	if len(lines) != 1 || lines[0] != "zero electric angle: 4.0624" {
		t.Errorf("unexpected debug output %q", lines)
	}
}

func TestFtoa(t *testing.T) {
	cases := []struct {
		v        float64
		decimals int
		want     string
	}{
		{0, 2, "0.00"},
		{3.14159, 3, "3.142"},
		{-0.05, 2, "-0.05"},
		{12.5, 0, "13"},
		{-1.007, 2, "-1.01"},
	}
	for _, c := range cases {
		if got := Ftoa(c.v, c.decimals); got != c.want {
			t.Errorf("Ftoa(%v, %d) = %q, want %q", c.v, c.decimals, got, c.want)
		}
	}
	if Itoa(-42) != "-42" {
		t.Errorf("Itoa(-42) = %q", Itoa(-42))
	}
}
