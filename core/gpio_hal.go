package core

// GPIOPin identifies a hardware GPIO line by its platform number
// (BCM number on a Raspberry Pi, GPIOn on an RP2040).
type GPIOPin uint32

// GPIODriver is the abstract digital output interface the step backends use.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output driven low.
	// Returns error if the pin is invalid or cannot be claimed.
	ConfigureOutput(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// GetPin reads back the current pin state
	GetPin(pin GPIOPin) (bool, error)

	// Close releases every pin claimed by the driver
	Close() error

	// Name identifies the driver in logs
	Name() string
}
