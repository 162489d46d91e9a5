// Package telemetry streams axis state snapshots as text lines, one line
// per axis:
//
//	axis=<name> pos=<position> target=<target> speed=<steps/s>
//
// The control loop hands snapshots over without blocking; a separate
// goroutine throttles and writes them.
package telemetry

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"stepdrive/core"
	"stepdrive/motion"
)

// DefaultBuffer is the number of snapshots queued between the control
// loop and the writer.
const DefaultBuffer = 16

// Reporter writes snapshots to an output at a bounded rate.
type Reporter struct {
	out     io.WriteCloser
	queue   chan motion.Snapshot
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewReporter starts a reporter writing at most perSecond snapshots per
// second to out. Close stops it and closes out.
func NewReporter(out io.WriteCloser, perSecond float64, buffer int) *Reporter {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Reporter{
		out:     out,
		queue:   make(chan motion.Snapshot, buffer),
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go r.writer()
	return r
}

// Offer queues snap for writing. It never blocks: when the queue is full
// or the reporter is closed the snapshot is dropped and false returned.
func (r *Reporter) Offer(snap motion.Snapshot) bool {
	if r.ctx.Err() != nil {
		return false
	}
	select {
	case r.queue <- snap:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

// Written returns the number of snapshots written
func (r *Reporter) Written() uint64 {
	return r.written.Load()
}

// Dropped returns the number of snapshots refused by Offer
func (r *Reporter) Dropped() uint64 {
	return r.dropped.Load()
}

// Failed returns the number of snapshots whose write failed
func (r *Reporter) Failed() uint64 {
	return r.failed.Load()
}

// Close stops the writer and closes the output. Queued snapshots that
// were not written yet are discarded.
func (r *Reporter) Close() error {
	var err error
	r.once.Do(func() {
		r.cancel()
		<-r.done
		err = r.out.Close()
	})
	return err
}

func (r *Reporter) writer() {
	defer close(r.done)
	var buf bytes.Buffer
	for {
		select {
		case <-r.ctx.Done():
			return
		case snap := <-r.queue:
			if err := r.limiter.Wait(r.ctx); err != nil {
				return
			}
			buf.Reset()
			AppendSnapshot(&buf, snap)
			if _, err := r.out.Write(buf.Bytes()); err != nil {
				if r.failed.Add(1) == 1 {
					core.DebugPrintln("[TELEMETRY] write failed: " + err.Error())
				}
				continue
			}
			r.written.Add(1)
		}
	}
}

// AppendSnapshot formats one line per axis of snap into buf
func AppendSnapshot(buf *bytes.Buffer, snap motion.Snapshot) {
	var num []byte
	for _, a := range snap.Axes {
		buf.WriteString("axis=")
		buf.WriteString(a.Name)
		buf.WriteString(" pos=")
		num = strconv.AppendInt(num[:0], a.Position, 10)
		buf.Write(num)
		buf.WriteString(" target=")
		num = strconv.AppendInt(num[:0], a.Target, 10)
		buf.Write(num)
		buf.WriteString(" speed=")
		num = strconv.AppendFloat(num[:0], a.Speed, 'f', -1, 64)
		buf.Write(num)
		buf.WriteByte('\n')
	}
}
