package periph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"stepdrive/core"
)

func testDriver() (*Driver, map[string]*gpiotest.Pin) {
	pins := map[string]*gpiotest.Pin{
		"9": {N: "GPIO9", Num: 9, L: gpio.High},
		"8": {N: "GPIO8", Num: 8},
	}
	return newDriver(func(name string) gpio.PinIO {
		if p, ok := pins[name]; ok {
			return p
		}
		return nil
	}), pins
}

func TestDriverDrivesPins(t *testing.T) {
	d, pins := testDriver()
	require.NoError(t, d.ConfigureOutput(9))
	assert.Equal(t, gpio.Low, pins["9"].L, "configured low")

	require.NoError(t, d.SetPin(9, true))
	assert.Equal(t, gpio.High, pins["9"].L)
	v, err := d.GetPin(9)
	require.NoError(t, err)
	assert.True(t, v)

	require.NoError(t, d.Close())
	assert.Equal(t, gpio.Low, pins["9"].L, "released low")
	assert.Error(t, d.SetPin(9, true), "closed")
}

func TestDriverUnknownPins(t *testing.T) {
	d, _ := testDriver()
	assert.Error(t, d.ConfigureOutput(40))
	assert.Error(t, d.SetPin(8, true), "not configured")
	_, err := d.GetPin(8)
	assert.Error(t, err)
	assert.Equal(t, "periph", d.Name())
}

func TestDriverBacksGPIOStepper(t *testing.T) {
	d, pins := testDriver()
	s := core.NewGPIOStepper(d, core.StepperPins{Step: 9, Dir: 8})
	require.NoError(t, s.Init())
	require.NoError(t, s.SetDirection(true))
	assert.Equal(t, gpio.High, pins["8"].L)
	assert.Equal(t, "GPIO/periph", s.GetName())
}
