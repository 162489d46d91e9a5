package core

// TimerFreq is the frequency of the step clock. Every target counts
// microseconds.
const TimerFreq = 1000000

// Clock is a monotonic microsecond time source. The counter is 32 bits wide
// and wraps after ~71 minutes; callers compare times with unsigned
// subtraction (now - then) which stays correct across a wrap.
type Clock interface {
	Now() uint32
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() uint32

// Now returns the current time in microseconds
func (f ClockFunc) Now() uint32 {
	return f()
}

// SystemClock reads the platform timer through GetTime.
var SystemClock Clock = ClockFunc(GetTime)

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// Elapsed returns the ticks from then to now, wrap-safe.
func Elapsed(now, then uint32) uint32 {
	return now - then
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}

// MaxInterval is the longest interval the wrap-safe comparison can express.
const MaxInterval = ^uint32(0) >> 1

// TimerFromSeconds converts a duration in seconds to timer ticks, rounding
// up so a step is never emitted before its interval has fully elapsed.
// Saturates at MaxInterval.
func TimerFromSeconds(s float64) uint32 {
	if s <= 0 {
		return 0
	}
	ticks := s * TimerFreq
	if ticks >= float64(MaxInterval) {
		return MaxInterval
	}
	t := uint32(ticks)
	if float64(t) < ticks {
		t++
	}
	return t
}
