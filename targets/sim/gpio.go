// Package sim provides an in-memory GPIO driver that records every output
// transition. It backs the "sim" driver of cmd/stepdrive and the tests.
package sim

import (
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"stepdrive/core"
)

// Edge is one recorded output transition.
type Edge struct {
	Pin   core.GPIOPin
	Value bool
	At    uint32
}

// Driver implements core.GPIODriver in memory.
type Driver struct {
	mu     sync.Mutex
	clock  core.Clock
	levels map[core.GPIOPin]bool
	edges  []Edge
	record bool

	// MaxPin rejects pins above this number when non-zero.
	MaxPin core.GPIOPin
	// Fail makes ConfigureOutput/SetPin on the given pins return the error.
	Fail map[core.GPIOPin]error
}

// NewDriver creates a simulated driver. Edges are stamped with clock when
// record is true; clock may be nil when recording is off.
func NewDriver(clock core.Clock, record bool) *Driver {
	return &Driver{
		clock:  clock,
		levels: make(map[core.GPIOPin]bool),
		record: record,
		Fail:   make(map[core.GPIOPin]error),
	}
}

// ConfigureOutput claims a pin and drives it low
func (d *Driver) ConfigureOutput(pin core.GPIOPin) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.MaxPin != 0 && pin > d.MaxPin {
		return errors.Errorf("sim: pin %d out of range (max %d)", pin, d.MaxPin)
	}
	if err := d.Fail[pin]; err != nil {
		return errors.Wrapf(err, "sim: configure pin %d", pin)
	}
	d.levels[pin] = false
	return nil
}

// SetPin sets the pin to high (true) or low (false)
func (d *Driver) SetPin(pin core.GPIOPin, value bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, ok := d.levels[pin]
	if !ok {
		return errors.Errorf("sim: pin %d not configured", pin)
	}
	if err := d.Fail[pin]; err != nil {
		return errors.Wrapf(err, "sim: set pin %d", pin)
	}
	d.levels[pin] = value
	if d.record && prev != value {
		var at uint32
		if d.clock != nil {
			at = d.clock.Now()
		}
		d.edges = append(d.edges, Edge{Pin: pin, Value: value, At: at})
	}
	return nil
}

// GetPin reads the current pin state
func (d *Driver) GetPin(pin core.GPIOPin) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, ok := d.levels[pin]
	if !ok {
		return false, errors.Errorf("sim: pin %d not configured", pin)
	}
	return v, nil
}

// Close releases all pins
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.levels = make(map[core.GPIOPin]bool)
	return nil
}

// Name identifies the driver
func (d *Driver) Name() string {
	return "sim"
}

// Level returns the last value written to pin.
func (d *Driver) Level(pin core.GPIOPin) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.levels[pin]
}

// Edges returns a copy of the recorded transitions.
func (d *Driver) Edges() []Edge {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Edge, len(d.edges))
	copy(out, d.edges)
	return out
}

// EdgesFor returns the recorded transitions of one pin.
func (d *Driver) EdgesFor(pin core.GPIOPin) []Edge {
	var out []Edge
	for _, e := range d.Edges() {
		if e.Pin == pin {
			out = append(out, e)
		}
	}
	return out
}

// Pins lists configured pins in ascending order.
func (d *Driver) Pins() []core.GPIOPin {
	d.mu.Lock()
	defer d.mu.Unlock()
	pins := make([]core.GPIOPin, 0, len(d.levels))
	for p := range d.levels {
		pins = append(pins, p)
	}
	sort.Slice(pins, func(i, j int) bool { return pins[i] < pins[j] })
	return pins
}

func (e Edge) String() string {
	v := "low"
	if e.Value {
		v = "high"
	}
	return "pin" + strconv.Itoa(int(e.Pin)) + "=" + v + "@" + strconv.FormatUint(uint64(e.At), 10)
}
