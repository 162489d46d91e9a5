// Package periph drives GPIO lines through periph.io, which finds the
// host's GPIO controllers (gpiochip, sysfs, SoC registers) at runtime.
package periph

import (
	"strconv"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"stepdrive/core"
)

// Driver implements core.GPIODriver over gpioreg.
type Driver struct {
	lookup func(string) gpio.PinIO
	pins   map[core.GPIOPin]gpio.PinIO
}

// Open loads the host drivers
func Open() (*Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph: host init")
	}
	return newDriver(gpioreg.ByName), nil
}

func newDriver(lookup func(string) gpio.PinIO) *Driver {
	return &Driver{
		lookup: lookup,
		pins:   make(map[core.GPIOPin]gpio.PinIO),
	}
}

// ConfigureOutput looks the pin up by number and drives it low
func (d *Driver) ConfigureOutput(pin core.GPIOPin) error {
	p := d.lookup(strconv.Itoa(int(pin)))
	if p == nil {
		return errors.Errorf("periph: no gpio %d on this host", pin)
	}
	if err := p.Out(gpio.Low); err != nil {
		return errors.Wrapf(err, "periph: configure %s", p.Name())
	}
	d.pins[pin] = p
	return nil
}

// SetPin sets the pin to high (true) or low (false)
func (d *Driver) SetPin(pin core.GPIOPin, value bool) error {
	p, ok := d.pins[pin]
	if !ok {
		return errors.Errorf("periph: gpio %d not configured", pin)
	}
	return p.Out(gpio.Level(value))
}

// GetPin reads the current pin state
func (d *Driver) GetPin(pin core.GPIOPin) (bool, error) {
	p, ok := d.pins[pin]
	if !ok {
		return false, errors.Errorf("periph: gpio %d not configured", pin)
	}
	return bool(p.Read()), nil
}

// Close drives every configured pin low and releases it
func (d *Driver) Close() error {
	var first error
	for _, p := range d.pins {
		if err := p.Out(gpio.Low); err != nil && first == nil {
			first = err
		}
		if err := p.Halt(); err != nil && first == nil {
			first = err
		}
	}
	d.pins = make(map[core.GPIOPin]gpio.PinIO)
	return first
}

// Name identifies the driver
func (d *Driver) Name() string {
	return "periph"
}
