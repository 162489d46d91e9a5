package standalone

import "stepdrive/motion"

// Oscillator swings every axis between -amplitude and +amplitude. Each
// time an axis comes to rest on its target the target is negated, so the
// first move of an axis starting at zero goes to -amplitude.
type Oscillator struct {
	axes    []*motion.Axis
	targets []int64
	swings  []uint64
}

// NewOscillator creates an oscillator over axes
func NewOscillator(amplitude int64, axes []*motion.Axis) *Oscillator {
	o := &Oscillator{
		axes:    axes,
		targets: make([]int64, len(axes)),
		swings:  make([]uint64, len(axes)),
	}
	for i := range o.targets {
		o.targets[i] = amplitude
	}
	return o
}

// Update retargets every axis that is at rest and returns how many were
// retargeted. Call it between scheduler ticks, never from inside one.
func (o *Oscillator) Update() int {
	n := 0
	for i, a := range o.axes {
		if !a.Profile().AtRest() {
			continue
		}
		o.targets[i] = -o.targets[i]
		a.Profile().SetTarget(o.targets[i])
		o.swings[i]++
		n++
	}
	return n
}

// Swings returns how many times axis i has been retargeted
func (o *Oscillator) Swings(i int) uint64 {
	return o.swings[i]
}
