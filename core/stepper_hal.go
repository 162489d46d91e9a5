package core

// StepperBackend is the output side of one axis: a direction line, a step
// line and an optional enable line. Implementations can use plain GPIO,
// PIO or anything else that can raise and lower a step signal.
//
// None of the methods may block for longer than a register write; pulse
// timing is owned by the caller.
type StepperBackend interface {
	// Init claims the output lines and drives them to their idle state
	// (step inactive, direction forward, driver disabled).
	Init() error

	// SetDirection sets the direction output.
	// reverse: true = negative step direction
	SetDirection(reverse bool) error

	// SetStep drives the step line active (true) or idle (false).
	SetStep(active bool) error

	// SetEnabled drives the optional enable line. Backends without an
	// enable line return nil.
	SetEnabled(enabled bool) error

	// Stop returns the step line to idle. It must be safe to call at any
	// time, including after a failed write.
	Stop() error

	// GetName returns backend implementation name
	GetName() string
}

// StepperBackendInfo provides information about a backend's capabilities
type StepperBackendInfo struct {
	Name          string
	MaxStepRate   uint32 // Maximum steps/second per axis
	MinPulseNs    uint32 // Minimum step pulse width (ns)
	TypicalJitter uint32 // Typical timing jitter (ns)
}

// BackendInfoProvider is implemented by backends that can report their
// timing capabilities.
type BackendInfoProvider interface {
	GetInfo() StepperBackendInfo
}
