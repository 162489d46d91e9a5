//go:build linux

// Package rpi drives Raspberry Pi GPIO lines through /dev/gpiomem with
// go-rpio. Pins are BCM numbers.
package rpi

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"

	"stepdrive/core"
)

// MaxPin is the highest BCM GPIO number on the SoC
const MaxPin core.GPIOPin = 53

var openMu sync.Mutex

// Driver implements core.GPIODriver on the Pi register map.
type Driver struct {
	configured map[core.GPIOPin]rpio.Pin
}

// Open maps the GPIO registers. Close releases them.
func Open() (*Driver, error) {
	openMu.Lock()
	defer openMu.Unlock()
	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "rpi: map gpio registers")
	}
	return &Driver{configured: make(map[core.GPIOPin]rpio.Pin)}, nil
}

// ConfigureOutput sets a pin as output, driven low
func (d *Driver) ConfigureOutput(pin core.GPIOPin) error {
	if pin > MaxPin {
		return errors.Errorf("rpi: pin %d out of range (max %d)", pin, MaxPin)
	}
	p := rpio.Pin(pin)
	p.Output()
	p.Low()
	d.configured[pin] = p
	return nil
}

// SetPin sets the pin to high (true) or low (false)
func (d *Driver) SetPin(pin core.GPIOPin, value bool) error {
	p, ok := d.configured[pin]
	if !ok {
		return errors.Errorf("rpi: pin %d not configured", pin)
	}
	if value {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

// GetPin reads the current pin state
func (d *Driver) GetPin(pin core.GPIOPin) (bool, error) {
	p, ok := d.configured[pin]
	if !ok {
		return false, errors.Errorf("rpi: pin %d not configured", pin)
	}
	return p.Read() == rpio.High, nil
}

// Close drives every configured pin low and unmaps the registers
func (d *Driver) Close() error {
	openMu.Lock()
	defer openMu.Unlock()
	for _, p := range d.configured {
		p.Low()
	}
	d.configured = make(map[core.GPIOPin]rpio.Pin)
	return rpio.Close()
}

// Name identifies the driver
func (d *Driver) Name() string {
	return "rpio"
}
