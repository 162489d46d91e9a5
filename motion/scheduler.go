package motion

import (
	"context"

	"github.com/pkg/errors"

	"stepdrive/core"
)

var (
	// ErrDuplicateAxis is returned when two axes share a name.
	ErrDuplicateAxis = errors.New("motion: duplicate axis name")
	// ErrTooManyAxes is returned past MaxAxes axes.
	ErrTooManyAxes = errors.New("motion: too many axes")
)

// MaxAxes is the number of axes one scheduler can drive (timing events
// carry the axis index in a byte).
const MaxAxes = 255

// ctxCheckTicks is how many ticks Run performs between context checks.
const ctxCheckTicks = 256

// PulseTiming holds the electrical timing of one axis, in µs.
type PulseTiming struct {
	MinHigh  uint32 // Minimum step high time
	MinLow   uint32 // Minimum step low time before the next pulse
	DirSetup uint32 // Direction-to-step setup time
}

// DefaultPulseTiming suits common A4988/DRV8825/TMC drivers.
var DefaultPulseTiming = PulseTiming{MinHigh: 2, MinLow: 2, DirSetup: 1}

// Axis binds one profile to its output backend and tracks the state of
// the step and direction lines.
type Axis struct {
	name    string
	index   uint8
	profile *Profile
	backend core.StepperBackend
	timing  PulseTiming

	reverse  bool
	dirKnown bool
	dirAt    uint32
	stepHigh bool
	edgeAt   uint32
	pending  bool

	pulses uint64
	faults uint32
}

// Name returns the axis name
func (a *Axis) Name() string {
	return a.name
}

// Profile returns the axis motion profile
func (a *Axis) Profile() *Profile {
	return a.profile
}

// Backend returns the output backend
func (a *Axis) Backend() core.StepperBackend {
	return a.backend
}

// Pulses returns the number of step pulses raised
func (a *Axis) Pulses() uint64 {
	return a.pulses
}

// Faults returns the number of failed backend writes
func (a *Axis) Faults() uint32 {
	return a.faults
}

// StepActive reports whether the step line is currently asserted
func (a *Axis) StepActive() bool {
	return a.stepHigh
}

// Idle reports whether the axis is at rest with no pulse in flight
func (a *Axis) Idle() bool {
	return a.profile.AtRest() && !a.stepHigh && !a.pending
}

// service advances the output state machine of one axis. It performs at
// most a couple of pin writes and never waits.
func (a *Axis) service(now uint32) {
	if a.stepHigh {
		if core.Elapsed(now, a.edgeAt) < a.timing.MinHigh {
			return
		}
		a.check(now, a.backend.SetStep(false))
		a.stepHigh = false
		a.edgeAt = now
		if a.timing.MinLow > 0 {
			return
		}
	}

	if !a.pending {
		if a.pulses > 0 && core.Elapsed(now, a.edgeAt) < a.timing.MinLow {
			return
		}
		if !a.profile.Poll(now) {
			return
		}
		a.pending = true
		if late := a.profile.Lateness(); late > a.profile.LastInterval() {
			core.RecordTiming(core.EvtLateStep, a.index, now, late, a.profile.LastInterval())
		}

		reverse := a.profile.LastDirection().Reverse()
		if !a.dirKnown || reverse != a.reverse {
			a.check(now, a.backend.SetDirection(reverse))
			a.reverse = reverse
			a.dirKnown = true
			a.dirAt = now
			var v uint32
			if reverse {
				v = 1
			}
			core.RecordTiming(core.EvtDirChange, a.index, now, v, 0)
		}
	}

	if core.Elapsed(now, a.dirAt) < a.timing.DirSetup {
		return
	}

	a.check(now, a.backend.SetStep(true))
	a.stepHigh = true
	a.edgeAt = now
	a.pending = false
	a.pulses++
	core.RecordTiming(core.EvtStep, a.index, now, uint32(a.profile.Position()), a.profile.LastInterval())
}

func (a *Axis) check(now uint32, err error) {
	if err == nil {
		return
	}
	a.faults++
	core.RecordTiming(core.EvtPinFault, a.index, now, a.faults, 0)
	if a.faults == 1 {
		core.DebugAsync("[MOTION] axis " + a.name + ": output write failed: " + err.Error())
	}
}

// AxisState is a copy of one axis's state for reporting.
type AxisState struct {
	Name     string
	Position int64
	Target   int64
	Speed    float64
	Pulses   uint64
	Faults   uint32
}

// Snapshot is a copy of every axis state at one instant.
type Snapshot struct {
	At   uint32
	Axes []AxisState
}

// Scheduler drives a fixed set of axes from a single polling loop.
// Axes are serviced in the order they were added, every tick.
type Scheduler struct {
	clock  core.Clock
	axes   []*Axis
	byName map[string]*Axis

	ticks    uint64
	enabled  bool
	shutdown bool
}

// NewScheduler creates an empty scheduler reading time from clock
func NewScheduler(clock core.Clock) *Scheduler {
	if clock == nil {
		clock = core.SystemClock
	}
	return &Scheduler{
		clock:  clock,
		byName: make(map[string]*Axis),
	}
}

// AddAxis initializes backend and appends an axis driven by profile.
func (s *Scheduler) AddAxis(name string, profile *Profile, backend core.StepperBackend, timing PulseTiming) (*Axis, error) {
	if profile == nil {
		return nil, errors.Errorf("motion: axis %q has no profile", name)
	}
	if backend == nil {
		return nil, errors.Errorf("motion: axis %q has no output backend", name)
	}
	if _, ok := s.byName[name]; ok {
		return nil, errors.Wrap(ErrDuplicateAxis, name)
	}
	if len(s.axes) >= MaxAxes {
		return nil, ErrTooManyAxes
	}
	if err := backend.Init(); err != nil {
		return nil, errors.Wrapf(err, "motion: init outputs of axis %q (%s)", name, backend.GetName())
	}

	a := &Axis{
		name:    name,
		index:   uint8(len(s.axes)),
		profile: profile,
		backend: backend,
		timing:  timing,
	}
	s.axes = append(s.axes, a)
	s.byName[name] = a
	core.DebugPrintln("[MOTION] axis " + name + " bound to " + backend.GetName())
	return a, nil
}

// Axes returns the axes in service order
func (s *Scheduler) Axes() []*Axis {
	return s.axes
}

// Axis looks up an axis by name
func (s *Scheduler) Axis(name string) (*Axis, bool) {
	a, ok := s.byName[name]
	return a, ok
}

// Ticks returns the number of completed ticks
func (s *Scheduler) Ticks() uint64 {
	return s.ticks
}

// Tick reads the clock once and services every axis. It returns the time
// it sampled.
func (s *Scheduler) Tick() uint32 {
	now := s.clock.Now()
	for _, a := range s.axes {
		a.service(now)
	}
	s.ticks++
	return now
}

// Idle reports whether every axis is at rest with its step line low
func (s *Scheduler) Idle() bool {
	for _, a := range s.axes {
		if !a.Idle() {
			return false
		}
	}
	return true
}

// Run ticks in a tight loop until ctx is done, calling hook (if not nil)
// after every tick, then shuts the outputs down.
func (s *Scheduler) Run(ctx context.Context, hook func(now uint32)) error {
	if err := s.EnableOutputs(); err != nil {
		return err
	}
	done := ctx.Done()
	for i := 0; ; i++ {
		if i%ctxCheckTicks == 0 {
			select {
			case <-done:
				return s.Shutdown()
			default:
			}
		}
		now := s.Tick()
		if hook != nil {
			hook(now)
		}
	}
}

// RunUntilIdle ticks until every axis has reached its target and all step
// lines are low. Outputs stay enabled.
func (s *Scheduler) RunUntilIdle(ctx context.Context) error {
	if err := s.EnableOutputs(); err != nil {
		return err
	}
	done := ctx.Done()
	for i := 0; !s.Idle(); i++ {
		if i%ctxCheckTicks == 0 {
			select {
			case <-done:
				return ctx.Err()
			default:
			}
		}
		s.Tick()
	}
	return nil
}

// EnableOutputs turns on every axis driver
func (s *Scheduler) EnableOutputs() error {
	if s.enabled {
		return nil
	}
	for _, a := range s.axes {
		if err := a.backend.SetEnabled(true); err != nil {
			return errors.Wrapf(err, "motion: enable axis %q", a.name)
		}
	}
	s.enabled = true
	s.shutdown = false
	return nil
}

// DisableOutputs turns off every axis driver. Step lines are returned to
// idle first.
func (s *Scheduler) DisableOutputs() error {
	var first error
	for _, a := range s.axes {
		if err := a.backend.Stop(); err != nil && first == nil {
			first = errors.Wrapf(err, "motion: stop axis %q", a.name)
		}
		a.stepHigh = false
		if err := a.backend.SetEnabled(false); err != nil && first == nil {
			first = errors.Wrapf(err, "motion: disable axis %q", a.name)
		}
	}
	s.enabled = false
	return first
}

// Shutdown leaves every output in its safe state: step lines idle and
// drivers disabled. It attempts every axis even when one fails and is safe
// to call more than once.
func (s *Scheduler) Shutdown() error {
	if s.shutdown {
		return nil
	}
	now := s.clock.Now()
	err := s.DisableOutputs()
	for _, a := range s.axes {
		a.pending = false
		core.RecordTiming(core.EvtShutdown, a.index, now, uint32(a.profile.Position()), 0)
	}
	s.shutdown = true
	return err
}

// Snapshot copies the state of every axis
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{
		At:   s.clock.Now(),
		Axes: make([]AxisState, len(s.axes)),
	}
	for i, a := range s.axes {
		snap.Axes[i] = AxisState{
			Name:     a.name,
			Position: a.profile.Position(),
			Target:   a.profile.Target(),
			Speed:    a.profile.Speed(),
			Pulses:   a.pulses,
			Faults:   a.faults,
		}
	}
	return snap
}
