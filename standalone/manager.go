// Package standalone runs a configured set of axes without a host: it
// builds the scheduler from a MachineConfig and keeps every axis
// oscillating until stopped.
package standalone

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"stepdrive/core"
	"stepdrive/motion"
)

// BackendFactory creates the output backend of one axis
type BackendFactory func(AxisConfig) (core.StepperBackend, error)

// GPIOBackends returns a factory driving every axis through plain GPIO
// lines of driver.
func GPIOBackends(driver core.GPIODriver) BackendFactory {
	return func(a AxisConfig) (core.StepperBackend, error) {
		return core.NewGPIOStepper(driver, a.Pins()), nil
	}
}

// Sink receives state snapshots. Offer must not block.
type Sink interface {
	Offer(motion.Snapshot) bool
}

// Manager coordinates all standalone mode components
type Manager struct {
	config     MachineConfig
	scheduler  *motion.Scheduler
	oscillator *Oscillator

	sink        Sink
	reportEvery uint32 // µs between snapshots
	lastReport  uint32
	dropped     uint64

	initialized bool
}

// NewManager creates a new standalone mode manager
func NewManager(cfg MachineConfig) *Manager {
	return &Manager{config: cfg}
}

// Initialize creates one profile and backend per configured axis on clock
// (nil selects the system clock).
func (m *Manager) Initialize(clock core.Clock, backends BackendFactory) error {
	if m.initialized {
		return errors.New("standalone: already initialized")
	}

	s := motion.NewScheduler(clock)
	for _, ac := range m.config.Axes {
		p, err := motion.NewProfile(ac.MaxSpeed, ac.MaxAcceleration)
		if err != nil {
			return errors.Wrapf(err, "standalone: axis %q", ac.Name)
		}
		b, err := backends(ac)
		if err != nil {
			return errors.Wrapf(err, "standalone: backend for axis %q", ac.Name)
		}
		if info, ok := b.(core.BackendInfoProvider); ok {
			if limit := info.GetInfo().MaxStepRate; limit > 0 && ac.MaxSpeed > float64(limit) {
				return errors.Errorf("standalone: axis %q max_speed %g exceeds the %d steps/s of %s",
					ac.Name, ac.MaxSpeed, limit, b.GetName())
			}
		}
		if _, err := s.AddAxis(ac.Name, p, b, ac.Timing()); err != nil {
			return err
		}
	}

	m.scheduler = s
	m.oscillator = NewOscillator(m.config.Amplitude, s.Axes())
	m.initialized = true
	core.DebugPrintln("[STANDALONE] " + strconv.Itoa(len(s.Axes())) + " axes ready, amplitude " +
		strconv.FormatInt(m.config.Amplitude, 10))
	return nil
}

// SetSink sends a snapshot to sink at most rate times per second
func (m *Manager) SetSink(sink Sink, rate float64) {
	m.sink = sink
	m.reportEvery = 0
	if rate > 0 {
		m.reportEvery = core.TimerFromSeconds(1 / rate)
	}
}

// Scheduler returns the scheduler built by Initialize
func (m *Manager) Scheduler() *motion.Scheduler {
	return m.scheduler
}

// Oscillator returns the target policy built by Initialize
func (m *Manager) Oscillator() *Oscillator {
	return m.oscillator
}

// Dropped returns the number of snapshots the sink refused
func (m *Manager) Dropped() uint64 {
	return m.dropped
}

// Run drives the axes until ctx is done, then leaves every output safe.
func (m *Manager) Run(ctx context.Context) error {
	if !m.initialized {
		return errors.New("standalone: manager not initialized")
	}
	core.DebugPrintln("[STANDALONE] running")
	err := m.scheduler.Run(ctx, m.afterTick)
	core.DebugPrintln("[STANDALONE] stopped")
	return err
}

// Start enables the outputs for callers that drive the loop with Poll
func (m *Manager) Start() error {
	if !m.initialized {
		return errors.New("standalone: manager not initialized")
	}
	return m.scheduler.EnableOutputs()
}

// Poll performs one tick followed by the oscillator and telemetry, for
// callers that own the loop.
func (m *Manager) Poll() {
	m.afterTick(m.scheduler.Tick())
}

// Stop shuts the outputs down
func (m *Manager) Stop() error {
	if !m.initialized {
		return nil
	}
	return m.scheduler.Shutdown()
}

func (m *Manager) afterTick(now uint32) {
	m.oscillator.Update()

	if m.sink == nil || core.Elapsed(now, m.lastReport) < m.reportEvery {
		return
	}
	m.lastReport = now
	if !m.sink.Offer(m.scheduler.Snapshot()) {
		m.dropped++
	}
}
