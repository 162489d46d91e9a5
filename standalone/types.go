package standalone

import (
	"stepdrive/core"
	"stepdrive/motion"
)

// Output drivers selectable in MachineConfig.Driver.
const (
	DriverSim    = "sim"    // in-memory outputs, for dry runs
	DriverRPi    = "rpi"    // Raspberry Pi GPIO through /dev/gpiomem
	DriverPeriph = "periph" // any GPIO periph.io can find on the host
)

// AxisConfig represents configuration for a single axis
type AxisConfig struct {
	Name string `koanf:"name" yaml:"name"`

	StepPin      uint32 `koanf:"step_pin" yaml:"step_pin"`
	DirPin       uint32 `koanf:"dir_pin" yaml:"dir_pin"`
	EnablePin    uint32 `koanf:"enable_pin" yaml:"enable_pin"`
	HasEnable    bool   `koanf:"has_enable" yaml:"has_enable"`       // Drive EnablePin
	InvertStep   bool   `koanf:"invert_step" yaml:"invert_step"`     // Step pulses are active low
	InvertDir    bool   `koanf:"invert_dir" yaml:"invert_dir"`       // Invert direction signal
	InvertEnable bool   `koanf:"invert_enable" yaml:"invert_enable"` // Enable is active low

	MaxSpeed        float64 `koanf:"max_speed" yaml:"max_speed"`               // steps/s
	MaxAcceleration float64 `koanf:"max_acceleration" yaml:"max_acceleration"` // steps/s²

	// Electrical timing in µs; zero values select the motion defaults.
	PulseHigh uint32 `koanf:"pulse_high_us" yaml:"pulse_high_us"`
	PulseLow  uint32 `koanf:"pulse_low_us" yaml:"pulse_low_us"`
	DirSetup  uint32 `koanf:"dir_setup_us" yaml:"dir_setup_us"`
}

// TelemetryConfig selects where axis state reports are written
type TelemetryConfig struct {
	Device string  `koanf:"device" yaml:"device"` // Serial device, empty disables telemetry
	Baud   int     `koanf:"baud" yaml:"baud"`
	Rate   float64 `koanf:"rate" yaml:"rate"` // Reports per second
}

// MachineConfig represents the complete machine configuration
type MachineConfig struct {
	Driver string `koanf:"driver" yaml:"driver"` // "sim", "rpi" or "periph"

	// Amplitude is the target every axis oscillates around zero to.
	Amplitude int64 `koanf:"amplitude" yaml:"amplitude"`

	Axes      []AxisConfig    `koanf:"axes" yaml:"axes"`
	Telemetry TelemetryConfig `koanf:"telemetry" yaml:"telemetry"`
}

// Timing returns the electrical timing of the axis, falling back to
// motion.DefaultPulseTiming for unset fields.
func (a AxisConfig) Timing() motion.PulseTiming {
	t := motion.DefaultPulseTiming
	if a.PulseHigh != 0 {
		t.MinHigh = a.PulseHigh
	}
	if a.PulseLow != 0 {
		t.MinLow = a.PulseLow
	}
	if a.DirSetup != 0 {
		t.DirSetup = a.DirSetup
	}
	return t
}

// Pins returns the output lines of the axis
func (a AxisConfig) Pins() core.StepperPins {
	return core.StepperPins{
		Step:         core.GPIOPin(a.StepPin),
		Dir:          core.GPIOPin(a.DirPin),
		Enable:       core.GPIOPin(a.EnablePin),
		HasEnable:    a.HasEnable,
		InvertStep:   a.InvertStep,
		InvertDir:    a.InvertDir,
		InvertEnable: a.InvertEnable,
	}
}

// DefaultConfig returns the configuration of the stock three-axis
// oscillator: each axis swings between -150000 and +150000 steps at up to
// 100000 steps/s with 50000 steps/s² of acceleration.
func DefaultConfig() MachineConfig {
	axis := func(name string, step, dir uint32) AxisConfig {
		return AxisConfig{
			Name:            name,
			StepPin:         step,
			DirPin:          dir,
			MaxSpeed:        100000,
			MaxAcceleration: 50000,
		}
	}
	return MachineConfig{
		Driver:    DriverSim,
		Amplitude: 150000,
		Axes: []AxisConfig{
			axis("stepper1", 9, 8),
			axis("stepper2", 6, 7),
			axis("stepper3", 10, 11),
		},
		Telemetry: TelemetryConfig{
			Baud: 115200,
			Rate: 10,
		},
	}
}
