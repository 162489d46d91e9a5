//go:build rp2040

// Firmware for RP2040 boards: drives the stock axes from PIO state
// machines and keeps them oscillating until reset.
package main

import (
	"machine"
	"time"

	"stepdrive/core"
	"stepdrive/standalone"
)

// Two PIO blocks of four state machines each.
const maxPIOAxes = 8

func main() {
	// Clear any watchdog state left over from before the reset.
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	core.SetDebugWriter(func(s string) { println(s) })
	core.SetDebugEnabled(true)

	m := standalone.NewManager(standalone.DefaultConfig())
	if err := m.Initialize(hardwareClock, pioBackends()); err != nil {
		fail(err)
	}
	if err := m.Start(); err != nil {
		fail(err)
	}

	for {
		m.Poll()
	}
}

// pioBackends hands out state machines in order: PIO0 SM0-3, then PIO1.
// Axes past the last state machine, or with an inverted step line, are
// driven from plain GPIO.
func pioBackends() standalone.BackendFactory {
	next := uint8(0)
	gpio := standalone.GPIOBackends(NewRPGPIODriver())
	return func(a standalone.AxisConfig) (core.StepperBackend, error) {
		if next >= maxPIOAxes || a.InvertStep {
			return gpio(a)
		}
		b := NewPIOStepperBackend(next/4, next%4, a.Pins())
		next++
		return b, nil
	}
}

// fail reports err and blinks the LED forever
func fail(err error) {
	core.DebugPrintln("[MAIN] " + err.Error())
	core.DumpTimingRing()

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}
