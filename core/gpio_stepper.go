package core

import "errors"

// ErrNoDriver is returned when a GPIO backend is created without a driver.
var ErrNoDriver = errors.New("gpio driver not configured")

// StepperPins describes the output lines of one axis.
type StepperPins struct {
	Step         GPIOPin
	Dir          GPIOPin
	Enable       GPIOPin
	HasEnable    bool // Enable is only driven when set
	InvertStep   bool // Step line is active low
	InvertDir    bool // Direction line is inverted
	InvertEnable bool // Enable line is active low (A4988/DRV8825 style)
}

// GPIOStepper implements a simple GPIO-based stepper backend.
// It toggles plain digital outputs; pulse width is timed by the caller.
type GPIOStepper struct {
	driver  GPIODriver
	pins    StepperPins
	reverse bool
	active  bool
}

// NewGPIOStepper creates a new GPIO-based stepper backend
func NewGPIOStepper(driver GPIODriver, pins StepperPins) *GPIOStepper {
	return &GPIOStepper{
		driver: driver,
		pins:   pins,
	}
}

// Init configures the lines as outputs and sets their idle states
// (step idle, direction forward, driver disabled).
func (s *GPIOStepper) Init() error {
	if s.driver == nil {
		return ErrNoDriver
	}

	if err := s.driver.ConfigureOutput(s.pins.Step); err != nil {
		return err
	}
	if err := s.driver.ConfigureOutput(s.pins.Dir); err != nil {
		return err
	}
	if s.pins.HasEnable {
		if err := s.driver.ConfigureOutput(s.pins.Enable); err != nil {
			return err
		}
	}

	if err := s.SetStep(false); err != nil {
		return err
	}
	if err := s.SetDirection(false); err != nil {
		return err
	}
	return s.SetEnabled(false)
}

// SetDirection sets the direction output
func (s *GPIOStepper) SetDirection(reverse bool) error {
	s.reverse = reverse
	level := reverse
	if s.pins.InvertDir {
		level = !level
	}
	return s.driver.SetPin(s.pins.Dir, level)
}

// SetStep drives the step line, honouring the step polarity
func (s *GPIOStepper) SetStep(active bool) error {
	s.active = active
	return s.driver.SetPin(s.pins.Step, active != s.pins.InvertStep)
}

// SetEnabled drives the enable line if one is wired
func (s *GPIOStepper) SetEnabled(enabled bool) error {
	if !s.pins.HasEnable {
		return nil
	}
	return s.driver.SetPin(s.pins.Enable, enabled != s.pins.InvertEnable)
}

// Stop ensures the step pin is in its idle state
func (s *GPIOStepper) Stop() error {
	return s.SetStep(false)
}

// GetName returns the backend name
func (s *GPIOStepper) GetName() string {
	if s.driver == nil {
		return "GPIO"
	}
	return "GPIO/" + s.driver.Name()
}

// Reverse reports the last direction written
func (s *GPIOStepper) Reverse() bool {
	return s.reverse
}

// StepActive reports whether the step line is currently asserted
func (s *GPIOStepper) StepActive() bool {
	return s.active
}
