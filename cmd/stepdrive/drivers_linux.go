package main

import (
	"github.com/pkg/errors"

	"stepdrive/core"
	"stepdrive/standalone"
	"stepdrive/targets/periph"
	"stepdrive/targets/rpi"
	"stepdrive/targets/sim"
)

func openDriver(name string) (core.GPIODriver, error) {
	switch name {
	case standalone.DriverSim:
		return sim.NewDriver(nil, false), nil
	case standalone.DriverRPi:
		return rpi.Open()
	case standalone.DriverPeriph:
		return periph.Open()
	}
	return nil, errors.Errorf("unknown driver %q", name)
}
