//go:build rp2040

package main

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"stepdrive/core"
)

// The PIO program emits one complete step per command word:
//
//	pull block          ; wait for a step
//	out pins, 1 [1]     ; direction from bit 0, then 2µs of setup
//	set pins, 1 [2]     ; step high for 3µs
//	set pins, 0 [1]     ; step low for at least 2µs
//
// With the state machine clocked at 1MHz one cycle is one microsecond, so
// the electrical timing does not depend on how often the loop polls.
func buildStepperProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),
		asm.Out(rp2pio.OutDestPins, 1).Delay(1).Encode(),
		asm.Set(rp2pio.SetDestPins, 1).Delay(2).Encode(),
		asm.Set(rp2pio.SetDestPins, 0).Delay(1).Encode(),
		// .wrap
	}
}

// pioCyclesPerStep is the length of one pass through the program
const pioCyclesPerStep = 2 + 3 + 2 + 1

var (
	errFIFOFull       = errors.New("pio: step fifo full")
	errInvertedStep   = errors.New("pio: inverted step polarity not supported")
	errNoStateMachine = errors.New("pio: state machine busy")

	// Program offset per PIO block; the program is shared by its four
	// state machines.
	programOffset = map[*rp2pio.PIO]uint8{}
)

// PIOStepperBackend implements core.StepperBackend on one PIO state
// machine. SetStep(true) queues a complete pulse; the matching
// SetStep(false) has nothing left to do.
type PIOStepperBackend struct {
	pio  *rp2pio.PIO
	sm   rp2pio.StateMachine
	pins core.StepperPins

	stepPin   machine.Pin
	dirPin    machine.Pin
	enablePin machine.Pin

	direction uint32
	pioNum    uint8
	smNum     uint8
}

// NewPIOStepperBackend creates a new PIO-based stepper backend
// pioNum: 0 for PIO0, 1 for PIO1
// smNum: 0-3 for state machine number
func NewPIOStepperBackend(pioNum, smNum uint8, pins core.StepperPins) *PIOStepperBackend {
	pioHW := rp2pio.PIO0
	if pioNum != 0 {
		pioHW = rp2pio.PIO1
	}
	return &PIOStepperBackend{
		pio:    pioHW,
		sm:     pioHW.StateMachine(smNum),
		pins:   pins,
		pioNum: pioNum,
		smNum:  smNum,
	}
}

// Init claims the state machine, loads the program and drives the lines
// to idle.
func (b *PIOStepperBackend) Init() error {
	if b.pins.InvertStep {
		return errInvertedStep
	}
	if !b.sm.TryClaim() {
		return errNoStateMachine
	}

	offset, ok := programOffset[b.pio]
	if !ok {
		var err error
		offset, err = b.pio.AddProgram(buildStepperProgram(), 0)
		if err != nil {
			return err
		}
		programOffset[b.pio] = offset
	}

	b.stepPin = machine.Pin(b.pins.Step)
	b.dirPin = machine.Pin(b.pins.Dir)
	b.stepPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})
	b.dirPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(b.stepPin, 1)
	cfg.SetOutPins(b.dirPin, 1)
	// Shift right, explicit pull, 32-bit threshold.
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(buildStepperProgram()))-1, offset)
	// 125MHz system clock / 125 = one cycle per µs.
	cfg.SetClkDivIntFrac(125, 0)

	// Pin directions must be set after Init.
	b.sm.Init(offset, cfg)
	b.sm.SetPindirsConsecutive(b.stepPin, 1, true)
	b.sm.SetPindirsConsecutive(b.dirPin, 1, true)
	b.sm.SetPinsConsecutive(b.stepPin, 1, false)
	b.sm.SetPinsConsecutive(b.dirPin, 1, b.pins.InvertDir)
	b.sm.SetEnabled(true)

	if b.pins.HasEnable {
		b.enablePin = machine.Pin(b.pins.Enable)
		b.enablePin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}
	return b.SetEnabled(false)
}

// SetDirection latches the direction sent with the next pulse
func (b *PIOStepperBackend) SetDirection(reverse bool) error {
	b.direction = 0
	if reverse != b.pins.InvertDir {
		b.direction = 1
	}
	return nil
}

// SetStep queues one pulse on the rising call. It fails instead of
// waiting when the FIFO is full.
func (b *PIOStepperBackend) SetStep(active bool) error {
	if !active {
		return nil
	}
	if b.sm.IsTxFIFOFull() {
		return errFIFOFull
	}
	b.sm.TxPut(b.direction)
	return nil
}

// SetEnabled drives the enable line if one is wired
func (b *PIOStepperBackend) SetEnabled(enabled bool) error {
	if b.pins.HasEnable {
		b.enablePin.Set(enabled != b.pins.InvertEnable)
	}
	return nil
}

// Stop drops queued pulses and restarts the program; the step line is
// left low.
func (b *PIOStepperBackend) Stop() error {
	b.sm.SetEnabled(false)
	b.sm.ClearFIFOs()
	b.sm.Restart()
	b.sm.SetPinsConsecutive(b.stepPin, 1, false)
	b.sm.SetEnabled(true)
	return nil
}

// GetName returns the backend name
func (b *PIOStepperBackend) GetName() string {
	return "PIO" + string(rune('0'+b.pioNum)) + "/SM" + string(rune('0'+b.smNum))
}

// GetInfo returns backend performance information
func (b *PIOStepperBackend) GetInfo() core.StepperBackendInfo {
	return core.StepperBackendInfo{
		Name:          b.GetName(),
		MaxStepRate:   1000000 / pioCyclesPerStep,
		MinPulseNs:    3000,
		TypicalJitter: 8, // one system clock cycle
	}
}
