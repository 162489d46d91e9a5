// Package serial opens the serial link used for telemetry output.
package serial

import (
	"io"
	"time"

	"github.com/cenkalti/backoff"
)

// Port represents a serial port interface. Tests substitute an in-memory
// implementation.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC ignores this)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns a default configuration for device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}

// Opener opens a port; Open is the native implementation.
type Opener func(*Config) (Port, error)

// RetryPolicy returns the backoff used by OpenWithRetry: USB serial
// adapters often re-enumerate for a moment after being plugged in.
func RetryPolicy() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock,
	}
}

// OpenWithRetry calls open until it succeeds or policy gives up, and
// returns the last error in that case.
func OpenWithRetry(cfg *Config, open Opener, policy backoff.BackOff) (Port, error) {
	var port Port
	op := func() error {
		p, err := open(cfg)
		if err != nil {
			return err
		}
		port = p
		return nil
	}
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return port, nil
}
