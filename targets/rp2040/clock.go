//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"stepdrive/core"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x28 // Raw timer low word
)

var (
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// hardwareClock reads the free-running 1MHz timer directly, so the control
// loop never goes through the runtime's time functions.
var hardwareClock = core.ClockFunc(GetHardwareTime)

// GetHardwareTime returns the low 32 bits of the microsecond counter. The
// wrap every ~71 minutes is handled by core.Elapsed.
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}
