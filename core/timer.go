package core

// TimerFreq is the tick rate of the system timer. The RP2040 timer counts
// microseconds.
const TimerFreq = 1000000

// Clock returns the current time in timer ticks. The counter wraps at 2^32.
type Clock func() uint32

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}

// TimerIsBefore reports whether t1 is before t2, tolerating counter wrap
func TimerIsBefore(t1, t2 uint32) bool {
	return int32(t1-t2) < 0
}
