//go:build rp2040

package main

import (
	"errors"
	"machine"

	"stepdrive/core"
)

// maxGPIO is the highest user GPIO on the RP2040
const maxGPIO core.GPIOPin = 29

var errPinRange = errors.New("gpio out of range")

// RPGPIODriver implements core.GPIODriver with machine.Pin
type RPGPIODriver struct {
	configuredPins map[core.GPIOPin]machine.Pin
}

// NewRPGPIODriver creates a new RP2040 GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{
		configuredPins: make(map[core.GPIOPin]machine.Pin),
	}
}

// ConfigureOutput configures a pin as a digital output driven low
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	if pin > maxGPIO {
		return errPinRange
	}
	// GPIOn maps directly to machine.Pin(n).
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Low()
	d.configuredPins[pin] = p
	return nil
}

// SetPin sets the pin to high (true) or low (false)
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	p, ok := d.configuredPins[pin]
	if !ok {
		return errors.New("gpio not configured")
	}
	p.Set(value)
	return nil
}

// GetPin reads the current pin state
func (d *RPGPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	p, ok := d.configuredPins[pin]
	if !ok {
		return false, errors.New("gpio not configured")
	}
	return p.Get(), nil
}

// Close drives every configured pin low
func (d *RPGPIODriver) Close() error {
	for _, p := range d.configuredPins {
		p.Low()
	}
	return nil
}

// Name identifies the driver
func (d *RPGPIODriver) Name() string {
	return "rp2040"
}
