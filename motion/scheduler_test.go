package motion

import (
	"context"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepdrive/core"
	"stepdrive/targets/sim"
)

// rig is a scheduler on a simulated clock that advances 1µs per tick. The
// GPIO driver stamps edges with the same clock without advancing it.
type rig struct {
	clock  *sim.Clock
	driver *sim.Driver
	sched  *Scheduler
}

func newRig() *rig {
	clock := sim.NewClock(0)
	return &rig{
		clock:  clock,
		driver: sim.NewDriver(clock, true),
		sched: NewScheduler(core.ClockFunc(func() uint32 {
			clock.Advance(1)
			return clock.Now()
		})),
	}
}

func testPins(base core.GPIOPin) core.StepperPins {
	return core.StepperPins{
		Step:         base,
		Dir:          base + 1,
		Enable:       base + 2,
		HasEnable:    true,
		InvertEnable: true,
	}
}

func (r *rig) addAxis(t *testing.T, name string, base core.GPIOPin, speed, accel float64, timing PulseTiming) *Axis {
	t.Helper()
	p := newTestProfile(t, speed, accel)
	a, err := r.sched.AddAxis(name, p, core.NewGPIOStepper(r.driver, testPins(base)), timing)
	require.NoError(t, err)
	return a
}

func (r *rig) runUntilIdle(t *testing.T, limit int) {
	t.Helper()
	for i := 0; i < limit; i++ {
		r.sched.Tick()
		if r.sched.Idle() {
			return
		}
	}
	t.Fatalf("axes not idle after %d ticks", limit)
}

// pulses splits the edges of a step pin into (rise, fall) pairs.
func pulses(t *testing.T, edges []sim.Edge) [][2]uint32 {
	t.Helper()
	var out [][2]uint32
	for i := 0; i < len(edges); i += 2 {
		require.True(t, edges[i].Value, "edge %d should rise: %v", i, edges[i])
		require.Less(t, i+1, len(edges), "pulse left high")
		require.False(t, edges[i+1].Value)
		out = append(out, [2]uint32{edges[i].At, edges[i+1].At})
	}
	return out
}

func TestAddAxisValidation(t *testing.T) {
	r := newRig()
	r.addAxis(t, "x", 2, 1000, 500, DefaultPulseTiming)

	p := newTestProfile(t, 1000, 500)

	_, err := r.sched.AddAxis("x", p, core.NewGPIOStepper(r.driver, testPins(10)), DefaultPulseTiming)
	assert.Equal(t, ErrDuplicateAxis, pkgerrors.Cause(err))

	_, err = r.sched.AddAxis("y", nil, core.NewGPIOStepper(r.driver, testPins(10)), DefaultPulseTiming)
	assert.Error(t, err)

	_, err = r.sched.AddAxis("y", p, nil, DefaultPulseTiming)
	assert.Error(t, err)

	boom := pkgerrors.New("pin busy")
	r.driver.Fail[21] = boom
	_, err = r.sched.AddAxis("y", p, core.NewGPIOStepper(r.driver, testPins(20)), DefaultPulseTiming)
	require.Error(t, err)
	assert.Equal(t, boom, pkgerrors.Cause(err))
	assert.Contains(t, err.Error(), `"y"`)

	_, ok := r.sched.Axis("y")
	assert.False(t, ok)
	assert.Len(t, r.sched.Axes(), 1)
}

func TestPulseTiming(t *testing.T) {
	r := newRig()
	timing := PulseTiming{MinHigh: 3, MinLow: 2, DirSetup: 1}
	a := r.addAxis(t, "x", 2, 100000, 200000, timing)
	a.Profile().SetTarget(25)

	r.runUntilIdle(t, 1000000)

	assert.Equal(t, int64(25), a.Profile().Position())
	assert.Equal(t, uint64(25), a.Pulses())
	assert.Zero(t, a.Faults())
	assert.False(t, r.driver.Level(2), "step line idle after the move")

	ps := pulses(t, r.driver.EdgesFor(2))
	require.Len(t, ps, 25)
	for i, p := range ps {
		assert.GreaterOrEqual(t, p[1]-p[0], timing.MinHigh, "pulse %d high time", i)
		if i > 0 {
			assert.GreaterOrEqual(t, p[0]-ps[i-1][1], timing.MinLow, "pulse %d low time", i)
		}
	}
}

func TestDirectionSetupBeforeStep(t *testing.T) {
	r := newRig()
	timing := PulseTiming{MinHigh: 2, MinLow: 2, DirSetup: 5}
	a := r.addAxis(t, "x", 2, 2000, 20000, timing)
	a.Profile().SetTarget(-10)

	r.runUntilIdle(t, 1000000)
	assert.Equal(t, int64(-10), a.Profile().Position())

	dir := r.driver.EdgesFor(3)
	require.Len(t, dir, 1)
	assert.True(t, dir[0].Value, "reverse drives the direction line high")

	ps := pulses(t, r.driver.EdgesFor(2))
	require.Len(t, ps, 10)
	assert.GreaterOrEqual(t, ps[0][0]-dir[0].At, timing.DirSetup)
}

func TestReversalMidMove(t *testing.T) {
	r := newRig()
	a := r.addAxis(t, "x", 2, 5000, 50000, DefaultPulseTiming)
	p := a.Profile()
	p.SetTarget(400)

	for p.Position() < 150 {
		r.sched.Tick()
	}
	p.SetTarget(-50)
	r.runUntilIdle(t, 10000000)

	assert.Equal(t, int64(-50), p.Position())
	assert.Equal(t, 0.0, p.Speed())
	assert.Equal(t, p.StepCount(), a.Pulses())
	assert.Len(t, pulses(t, r.driver.EdgesFor(2)), int(p.StepCount()))

	// Forward, then one change to reverse.
	dir := r.driver.EdgesFor(3)
	require.Len(t, dir, 1)
	assert.True(t, dir[0].Value)
}

func TestAxesAreIndependent(t *testing.T) {
	r := newRig()
	x := r.addAxis(t, "x", 2, 100000, 50000, DefaultPulseTiming)
	y := r.addAxis(t, "y", 6, 800, 400, DefaultPulseTiming)
	z := r.addAxis(t, "z", 10, 20000, 100000, DefaultPulseTiming)

	x.Profile().SetTarget(300)
	y.Profile().SetTarget(-40)
	z.Profile().SetTarget(120)

	r.runUntilIdle(t, 10000000)

	for _, tc := range []struct {
		axis   *Axis
		target int64
		step   core.GPIOPin
	}{{x, 300, 2}, {y, -40, 6}, {z, 120, 10}} {
		assert.Equal(t, tc.target, tc.axis.Profile().Position(), tc.axis.Name())
		assert.Len(t, pulses(t, r.driver.EdgesFor(tc.step)), int(abs64(tc.target)), tc.axis.Name())
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestServiceOrderIsFixed(t *testing.T) {
	r := newRig()
	a := r.addAxis(t, "a", 2, 1000, 1000, DefaultPulseTiming)
	b := r.addAxis(t, "b", 6, 1000, 1000, DefaultPulseTiming)
	a.Profile().SetTarget(20)
	b.Profile().SetTarget(20)

	r.runUntilIdle(t, 10000000)

	names := []string{}
	for _, ax := range r.sched.Axes() {
		names = append(names, ax.Name())
	}
	assert.Equal(t, []string{"a", "b"}, names)

	// Identical axes step on the same tick; a is always written first.
	edges := r.driver.Edges()
	for i := 1; i < len(edges); i++ {
		if edges[i].At == edges[i-1].At && edges[i].Pin == 2 {
			assert.NotEqual(t, core.GPIOPin(6), edges[i-1].Pin, "axis b serviced before a at %d", edges[i].At)
		}
	}
}

func TestShutdownLeavesStepLow(t *testing.T) {
	r := newRig()
	a := r.addAxis(t, "x", 2, 1000, 1000, PulseTiming{MinHigh: 50, MinLow: 2})
	require.NoError(t, r.sched.EnableOutputs())
	assert.False(t, r.driver.Level(4), "active-low enable asserted")

	a.Profile().SetTarget(100)
	for i := 0; i < 1000000 && !a.StepActive(); i++ {
		r.sched.Tick()
	}
	require.True(t, a.StepActive())
	require.True(t, r.driver.Level(2))

	require.NoError(t, r.sched.Shutdown())
	assert.False(t, r.driver.Level(2), "step line released")
	assert.True(t, r.driver.Level(4), "driver disabled")
	assert.False(t, a.StepActive())
	require.NoError(t, r.sched.Shutdown(), "shutdown is idempotent")
}

func TestRunStopsOnCancel(t *testing.T) {
	r := newRig()
	a := r.addAxis(t, "x", 2, 5000, 5000, DefaultPulseTiming)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	target := int64(30)
	a.Profile().SetTarget(target)
	arrivals := 0
	err := r.sched.Run(ctx, func(now uint32) {
		if ctx.Err() != nil {
			return
		}
		if a.Profile().AtRest() {
			arrivals++
			if arrivals == 3 {
				cancel()
				return
			}
			target = -target
			a.Profile().SetTarget(target)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 3, arrivals)
	assert.Equal(t, int64(30), a.Profile().Position())
	assert.False(t, r.driver.Level(2))
	assert.True(t, r.driver.Level(4), "outputs disabled after run")
}

func TestRunUntilIdle(t *testing.T) {
	r := newRig()
	a := r.addAxis(t, "x", 2, 3000, 9000, DefaultPulseTiming)
	a.Profile().SetTarget(-75)

	require.NoError(t, r.sched.RunUntilIdle(context.Background()))
	assert.Equal(t, int64(-75), a.Profile().Position())
	assert.False(t, a.StepActive())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.Profile().SetTarget(0)
	assert.ErrorIs(t, r.sched.RunUntilIdle(ctx), context.Canceled)
}

func TestOutputFaultsAreCounted(t *testing.T) {
	core.ClearTimingRing()
	r := newRig()
	a := r.addAxis(t, "x", 2, 1000, 1000, DefaultPulseTiming)
	a.Profile().SetTarget(5)

	r.driver.Fail[2] = pkgerrors.New("line stuck")
	r.runUntilIdle(t, 10000000)

	assert.Equal(t, int64(5), a.Profile().Position(), "faults never stall the profile")
	assert.Equal(t, uint32(10), a.Faults(), "every rise and fall failed")

	faults := 0
	for _, evt := range core.TimingEvents() {
		if evt.EventType == core.EvtPinFault {
			faults++
		}
	}
	assert.Greater(t, faults, 0)
}

func TestSnapshot(t *testing.T) {
	r := newRig()
	a := r.addAxis(t, "x", 2, 1000, 1000, DefaultPulseTiming)
	r.addAxis(t, "y", 6, 1000, 1000, DefaultPulseTiming)
	a.Profile().SetTarget(3)
	r.runUntilIdle(t, 10000000)

	snap := r.sched.Snapshot()
	require.Len(t, snap.Axes, 2)
	assert.Equal(t, AxisState{Name: "x", Position: 3, Target: 3, Pulses: 3}, snap.Axes[0])
	assert.Equal(t, "y", snap.Axes[1].Name)
	assert.Equal(t, r.clock.Now(), snap.At)
}
