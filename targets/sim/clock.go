package sim

// Clock is a manually advanced microsecond clock for tests and dry runs.
type Clock struct {
	now uint32
}

// NewClock returns a clock starting at start.
func NewClock(start uint32) *Clock {
	return &Clock{now: start}
}

// Now returns the current simulated time
func (c *Clock) Now() uint32 {
	return c.now
}

// Advance moves the clock forward by us microseconds (wrapping like the
// hardware counter).
func (c *Clock) Advance(us uint32) {
	c.now += us
}

// Set jumps the clock to an absolute value
func (c *Clock) Set(us uint32) {
	c.now = us
}
