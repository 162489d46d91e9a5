package serial

import (
	"bytes"
	"testing"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufPort struct {
	bytes.Buffer
}

func (p *bufPort) Close() error { return nil }
func (p *bufPort) Flush() error { return nil }

func TestOpenWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	want := &bufPort{}
	open := func(cfg *Config) (Port, error) {
		calls++
		assert.Equal(t, "/dev/ttyACM0", cfg.Device)
		if calls < 3 {
			return nil, errors.New("device busy")
		}
		return want, nil
	}

	port, err := OpenWithRetry(DefaultConfig("/dev/ttyACM0"), open, backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 5))
	require.NoError(t, err)
	assert.Same(t, want, port)
	assert.Equal(t, 3, calls)
}

func TestOpenWithRetryGivesUp(t *testing.T) {
	calls := 0
	boom := errors.New("no such file or directory")
	open := func(*Config) (Port, error) {
		calls++
		return nil, boom
	}

	port, err := OpenWithRetry(DefaultConfig("/dev/null0"), open, backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2))
	assert.Nil(t, port)
	assert.Equal(t, boom, err)
	assert.Equal(t, 3, calls, "first attempt plus two retries")
}

func TestOpenRejectsNilConfig(t *testing.T) {
	_, err := Open(nil)
	assert.Error(t, err)
}

func TestRetryPolicyIsBounded(t *testing.T) {
	p, ok := RetryPolicy().(*backoff.ExponentialBackOff)
	require.True(t, ok)
	assert.NotZero(t, p.MaxElapsedTime)
}
