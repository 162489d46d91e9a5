//go:build !tinygo

package core

import "time"

var (
	bootInstant = time.Now()
	tickOffset  uint32
)

// getSystemTicks returns microseconds since process start, read from the
// runtime's monotonic clock.
func getSystemTicks() uint32 {
	return uint32(time.Since(bootInstant)/time.Microsecond) + tickOffset
}

// setSystemTicks shifts the host clock so it continues counting from ticks.
func setSystemTicks(ticks uint32) {
	tickOffset = 0
	tickOffset = ticks - getSystemTicks()
}
