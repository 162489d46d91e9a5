// Package motion generates acceleration-limited step timing for independent
// stepper axes and drives their outputs from a single polling loop.
package motion

import (
	"math"

	"github.com/pkg/errors"

	"stepdrive/core"
)

// ErrInvalidLimits is returned when a speed or acceleration limit is not a
// positive finite number.
var ErrInvalidLimits = errors.New("motion: speed and acceleration limits must be positive")

// Direction of a step.
type Direction int8

const (
	DirNone    Direction = 0
	DirForward Direction = 1
	DirReverse Direction = -1
)

// Reverse reports whether d is the negative direction
func (d Direction) Reverse() bool {
	return d == DirReverse
}

func (d Direction) String() string {
	switch d {
	case DirForward:
		return "forward"
	case DirReverse:
		return "reverse"
	}
	return "none"
}

// step is the next step the profile will take once its interval elapses.
type step struct {
	dir      Direction
	n        float64 // braking distance after the step
	interval uint32  // µs from the previous step
}

// Profile is the motion state of one axis.
//
// Speed is kept at step boundaries as the braking distance n = v²/(2a),
// i.e. the number of steps needed to stop at the acceleration limit. One
// step is one unit of distance, so constant acceleration changes n by
// exactly one per step. Approaching the target, n is capped at the steps
// remaining minus one, which makes the axis arrive with n == 0.
type Profile struct {
	position int64
	target   int64

	maxSpeed float64
	maxAccel float64
	nMax     float64 // braking distance at maxSpeed

	dir Direction // direction of travel, DirNone when stopped
	n   float64

	lastStep     uint32
	lastDir      Direction
	lastInterval uint32
	lateness     uint32
	steps        uint64

	// idle is set while the axis rests on its target; the clock reference
	// is stale and gets re-armed by the first Poll that sees a new target.
	idle bool

	next    step
	planned bool
}

// NewProfile creates a profile at position zero, at rest.
// maxSpeed is in steps/s, maxAccel in steps/s².
func NewProfile(maxSpeed, maxAccel float64) (*Profile, error) {
	if !validLimit(maxSpeed) || !validLimit(maxAccel) {
		return nil, errors.Wrapf(ErrInvalidLimits, "max_speed=%g max_acceleration=%g", maxSpeed, maxAccel)
	}
	return &Profile{
		maxSpeed: maxSpeed,
		maxAccel: maxAccel,
		nMax:     maxSpeed * maxSpeed / (2 * maxAccel),
		idle:     true,
	}, nil
}

func validLimit(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// SetTarget sets a new absolute target position. The axis does not move
// until polled; a target behind the direction of travel is reached by
// decelerating to a stop first.
func (p *Profile) SetTarget(position int64) {
	p.target = position
	p.planned = false
}

// Move sets the target relative to the current position
func (p *Profile) Move(delta int64) {
	p.SetTarget(p.position + delta)
}

// SetCurrentPosition redefines the current position (and target) without
// motion. Speed is reset to zero.
func (p *Profile) SetCurrentPosition(position int64) {
	p.position = position
	p.target = position
	p.n = 0
	p.dir = DirNone
	p.idle = true
	p.planned = false
}

// Stop retargets the axis to the closest position it can stop at with full
// deceleration in its current direction.
func (p *Profile) Stop() {
	if p.dir == DirNone {
		p.SetTarget(p.position)
		return
	}
	stopSteps := int64(math.Ceil(p.n))
	p.SetTarget(p.position + int64(p.dir)*stopSteps)
}

// DistanceToGo returns target - position in steps
func (p *Profile) DistanceToGo() int64 {
	return p.target - p.position
}

// Position returns the current position in steps
func (p *Profile) Position() int64 {
	return p.position
}

// Target returns the target position in steps
func (p *Profile) Target() int64 {
	return p.target
}

// MaxSpeed returns the speed limit in steps/s
func (p *Profile) MaxSpeed() float64 {
	return p.maxSpeed
}

// MaxAcceleration returns the acceleration limit in steps/s²
func (p *Profile) MaxAcceleration() float64 {
	return p.maxAccel
}

// Speed returns the signed speed at the last step, in steps/s
func (p *Profile) Speed() float64 {
	return float64(p.dir) * p.speedAt(p.n)
}

// StepsToStop returns the braking distance at the current speed
func (p *Profile) StepsToStop() float64 {
	return p.n
}

// IsRunning reports whether the axis is moving or has distance to go
func (p *Profile) IsRunning() bool {
	return p.dir != DirNone || p.position != p.target
}

// AtRest reports whether the axis is stopped on its target. Unlike
// DistanceToGo() == 0 it stays false while the axis is still braking
// after being retargeted to its current position.
func (p *Profile) AtRest() bool {
	return !p.IsRunning()
}

// LastDirection returns the direction of the most recent step
func (p *Profile) LastDirection() Direction {
	return p.lastDir
}

// LastStepTime returns the timestamp of the most recent step (or of the
// poll that started the current move)
func (p *Profile) LastStepTime() uint32 {
	return p.lastStep
}

// LastInterval returns the planned interval of the most recent step, in µs
func (p *Profile) LastInterval() uint32 {
	return p.lastInterval
}

// Lateness returns how far past its due time the most recent step was polled
func (p *Profile) Lateness() uint32 {
	return p.lateness
}

// StepCount returns the number of steps taken since creation
func (p *Profile) StepCount() uint64 {
	return p.steps
}

// StepInterval returns the interval of the next step in µs, or 0 when the
// axis is at rest on its target.
func (p *Profile) StepInterval() uint32 {
	p.plan()
	if p.next.dir == DirNone {
		return 0
	}
	return p.next.interval
}

// Poll takes a step if one is due at now and reports whether it did.
// It never waits: when no step is due it returns false immediately.
func (p *Profile) Poll(now uint32) bool {
	p.plan()
	if p.next.dir == DirNone {
		return false
	}
	if p.idle {
		// First poll of a new move starts the clock for the initial step.
		p.idle = false
		p.lastStep = now
		return false
	}

	elapsed := core.Elapsed(now, p.lastStep)
	if elapsed < p.next.interval {
		return false
	}

	p.lateness = elapsed - p.next.interval
	p.position += int64(p.next.dir)
	p.lastDir = p.next.dir
	p.lastInterval = p.next.interval
	p.lastStep = now
	p.steps++

	p.n = p.next.n
	if p.n == 0 {
		p.dir = DirNone
		if p.position == p.target {
			p.idle = true
		}
	} else {
		p.dir = p.next.dir
	}
	p.planned = false
	return true
}

// plan computes the next step from the current state. The result only
// depends on position, target and speed, so it is cached until one of
// them changes.
func (p *Profile) plan() {
	if p.planned {
		return
	}
	p.planned = true

	togo := p.DistanceToGo()
	want := DirNone
	remaining := float64(togo)
	switch {
	case togo > 0:
		want = DirForward
	case togo < 0:
		want = DirReverse
		remaining = -remaining
	}

	var next step
	switch {
	case p.dir == DirNone && want == DirNone:
		p.next = step{}
		return

	case p.dir == DirNone:
		// Start from rest toward the target.
		next.dir = want
		next.n = math.Min(math.Min(1, p.nMax), remaining-1)

	case p.dir == want:
		// Approach: accelerate, cruise or brake so that n never exceeds
		// the steps left after this one.
		next.dir = p.dir
		n := math.Min(math.Min(p.n+1, p.nMax), remaining-1)
		if lo := math.Max(p.n-1, 0); n < lo {
			n = lo
		}
		next.n = n

	default:
		// Target behind us, or on the target while still moving: brake
		// in the current direction until stopped.
		next.dir = p.dir
		next.n = math.Max(p.n-1, 0)
	}

	next.interval = p.interval(p.n, next.n)
	p.next = next
}

// interval returns the time to cover one step while the speed changes
// from the speed at braking distance n0 to the one at n1.
func (p *Profile) interval(n0, n1 float64) uint32 {
	v0 := p.speedAt(n0)
	v1 := p.speedAt(n1)
	var seconds float64
	if v0+v1 == 0 {
		// A single step from rest to rest: accelerate over half a step,
		// brake over the other half.
		seconds = 2 / math.Sqrt(p.maxAccel)
	} else {
		seconds = 2 / (v0 + v1)
	}
	ticks := core.TimerFromSeconds(seconds)
	if ticks == 0 {
		ticks = 1
	}
	return ticks
}

func (p *Profile) speedAt(n float64) float64 {
	if n <= 0 {
		return 0
	}
	v := math.Sqrt(2 * p.maxAccel * n)
	if v > p.maxSpeed {
		v = p.maxSpeed
	}
	return v
}
