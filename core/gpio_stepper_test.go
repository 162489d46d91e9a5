package core_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepdrive/core"
	"stepdrive/targets/sim"
)

func TestGPIOStepperInit(t *testing.T) {
	d := sim.NewDriver(nil, false)
	s := core.NewGPIOStepper(d, core.StepperPins{
		Step: 2, Dir: 3, Enable: 4, HasEnable: true, InvertEnable: true,
	})
	require.NoError(t, s.Init())

	assert.Equal(t, []core.GPIOPin{2, 3, 4}, d.Pins())
	assert.False(t, d.Level(2), "step idle")
	assert.False(t, d.Level(3), "direction forward")
	assert.True(t, d.Level(4), "active-low enable released")
	assert.Equal(t, "GPIO/sim", s.GetName())
}

func TestGPIOStepperPolarity(t *testing.T) {
	d := sim.NewDriver(nil, false)
	s := core.NewGPIOStepper(d, core.StepperPins{
		Step: 5, Dir: 6, InvertStep: true, InvertDir: true,
	})
	require.NoError(t, s.Init())
	assert.Equal(t, []core.GPIOPin{5, 6}, d.Pins(), "no enable line configured")
	assert.True(t, d.Level(5), "inverted step idles high")
	assert.True(t, d.Level(6), "inverted direction")

	require.NoError(t, s.SetStep(true))
	assert.False(t, d.Level(5))
	assert.True(t, s.StepActive())

	require.NoError(t, s.SetDirection(true))
	assert.False(t, d.Level(6))
	assert.True(t, s.Reverse())

	require.NoError(t, s.Stop())
	assert.True(t, d.Level(5))
	assert.False(t, s.StepActive())

	assert.NoError(t, s.SetEnabled(true), "enable is a no-op without a line")
}

func TestGPIOStepperErrors(t *testing.T) {
	s := core.NewGPIOStepper(nil, core.StepperPins{Step: 1, Dir: 2})
	assert.Equal(t, core.ErrNoDriver, s.Init())
	assert.Equal(t, "GPIO", s.GetName())

	d := sim.NewDriver(nil, false)
	boom := errors.New("claimed")
	d.Fail[8] = boom
	s = core.NewGPIOStepper(d, core.StepperPins{Step: 7, Dir: 8})
	err := s.Init()
	require.Error(t, err)
	assert.Equal(t, boom, errors.Cause(err))

	d.MaxPin = 10
	s = core.NewGPIOStepper(d, core.StepperPins{Step: 9, Dir: 11})
	assert.Error(t, s.Init())
}
