// Package config loads and validates the machine configuration.
package config

import (
	"io"
	"os"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/pkg/errors"
	yml "gopkg.in/yaml.v2"

	"stepdrive/motion"
	"stepdrive/standalone"
)

// FileName is the configuration file read when none is given
const FileName = "stepdrive.yml"

// ErrInvalid is the cause of every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Load reads path on top of the defaults. A missing file is not an error:
// the defaults are used as-is. The result is validated.
func Load(path string) (standalone.MachineConfig, error) {
	var c standalone.MachineConfig

	k := koanf.New(".")
	if err := k.Load(structs.Provider(standalone.DefaultConfig(), "koanf"), nil); err != nil {
		return c, errors.Wrap(err, "config: load defaults")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return c, errors.Wrapf(err, "config: load %s", path)
		}
	}
	if err := k.Unmarshal("", &c); err != nil {
		return c, errors.Wrap(err, "config: decode")
	}
	return c, Validate(c)
}

// Write encodes c as YAML
func Write(w io.Writer, c standalone.MachineConfig) error {
	return yml.NewEncoder(w).Encode(c)
}

// Validate checks c and returns the first problem found, wrapping
// ErrInvalid (or motion.ErrInvalidLimits for bad speed limits).
func Validate(c standalone.MachineConfig) error {
	switch c.Driver {
	case standalone.DriverSim, standalone.DriverRPi, standalone.DriverPeriph:
	default:
		return errors.Wrapf(ErrInvalid, "unknown driver %q", c.Driver)
	}
	if c.Amplitude <= 0 {
		return errors.Wrapf(ErrInvalid, "amplitude must be positive, got %d", c.Amplitude)
	}
	if len(c.Axes) == 0 {
		return errors.Wrap(ErrInvalid, "no axes configured")
	}
	if len(c.Axes) > motion.MaxAxes {
		return errors.Wrapf(ErrInvalid, "%d axes configured, at most %d supported", len(c.Axes), motion.MaxAxes)
	}

	names := make(map[string]bool)
	// Step and direction lines belong to one axis; enable lines may be
	// shared between drivers.
	owner := make(map[uint32]string)
	enables := make(map[uint32]bool)
	claim := func(axis string, pin uint32) error {
		if prev, ok := owner[pin]; ok {
			return errors.Wrapf(ErrInvalid, "axis %q: pin %d already used by axis %q", axis, pin, prev)
		}
		if enables[pin] {
			return errors.Wrapf(ErrInvalid, "axis %q: pin %d already used as an enable line", axis, pin)
		}
		owner[pin] = axis
		return nil
	}

	for i, a := range c.Axes {
		if a.Name == "" {
			return errors.Wrapf(ErrInvalid, "axis %d has no name", i)
		}
		if names[a.Name] {
			return errors.Wrapf(ErrInvalid, "duplicate axis name %q", a.Name)
		}
		names[a.Name] = true

		if _, err := motion.NewProfile(a.MaxSpeed, a.MaxAcceleration); err != nil {
			return errors.Wrapf(err, "axis %q", a.Name)
		}
		if err := claim(a.Name, a.StepPin); err != nil {
			return err
		}
		if err := claim(a.Name, a.DirPin); err != nil {
			return err
		}
		if a.HasEnable {
			if prev, ok := owner[a.EnablePin]; ok {
				return errors.Wrapf(ErrInvalid, "axis %q: enable pin %d already used by axis %q", a.Name, a.EnablePin, prev)
			}
			enables[a.EnablePin] = true
		}
	}

	if c.Telemetry.Device != "" {
		if c.Telemetry.Baud <= 0 {
			return errors.Wrapf(ErrInvalid, "telemetry baud must be positive, got %d", c.Telemetry.Baud)
		}
		if c.Telemetry.Rate <= 0 {
			return errors.Wrapf(ErrInvalid, "telemetry rate must be positive, got %g", c.Telemetry.Rate)
		}
	}
	return nil
}
