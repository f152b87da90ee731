// Package output implements the per-process triple output sink: a
// bounded ring buffer for fast snapshotting, a rotating on-disk log,
// and a best-effort broadcast fan-out for live subscribers. A single
// write path drives all three, in that order, under per-sink locks.
package output

import (
	"sync"

	"github.com/loykin/overseerd/internal/metrics"
)

// RingCapacity bounds the ring buffer: the most recent 64 KiB of output
// are retained per process.
const RingCapacity = 64 * 1024

// BroadcastDepth is the backlog depth of each subscriber's channel.
// Slow subscribers are allowed to lag; once full, the oldest queued
// message is dropped for that subscriber rather than blocking the
// producer.
const BroadcastDepth = 256

// Capture is a per-process output sink, shared by reference between the
// supervision loop that writes to it and any number of readers
// (snapshot callers, live subscribers).
type Capture struct {
	service string
	process string

	ringMu sync.Mutex
	ring   []byte // logical FIFO; ring[0] is the oldest byte retained

	rotator *Rotator

	subMu sync.Mutex
	subs  map[chan []byte]struct{}
}

// New builds a Capture that rotates its on-disk log under logDir using
// the naming and size-rollover rules in Rotator, and opens (or resumes)
// the current log file for service/process.
func New(service, process, logDir string, maxLogSize int64) *Capture {
	c := &Capture{
		service: service,
		process: process,
		ring:    make([]byte, 0, RingCapacity),
		subs:    make(map[chan []byte]struct{}),
	}
	c.rotator = NewRotator(logDir, process, maxLogSize)
	return c
}

// Write appends data to the ring (evicting the oldest bytes once at
// capacity), appends it to the rotating log file, and then pushes a
// copy to every live subscriber. Each stage is ordered and independent:
// a log I/O failure never prevents the ring or broadcast from
// succeeding, and a full subscriber channel never blocks the writer.
func (c *Capture) Write(data []byte) {
	if len(data) == 0 {
		return
	}
	c.appendRing(data)
	c.rotator.Write(data) // best-effort; I/O errors are swallowed, see DESIGN.md
	c.broadcast(data)
	metrics.AddOutputBytes(c.service, c.process, len(data))
}

func (c *Capture) appendRing(data []byte) {
	c.ringMu.Lock()
	defer c.ringMu.Unlock()

	if len(data) >= RingCapacity {
		c.ring = append(c.ring[:0], data[len(data)-RingCapacity:]...)
		return
	}
	overflow := len(c.ring) + len(data) - RingCapacity
	if overflow > 0 {
		c.ring = c.ring[overflow:]
	}
	c.ring = append(c.ring, data...)
}

// Snapshot returns a point-in-time copy of up to RingCapacity bytes of
// the most recently written output.
func (c *Capture) Snapshot() []byte {
	c.ringMu.Lock()
	defer c.ringMu.Unlock()
	out := make([]byte, len(c.ring))
	copy(out, c.ring)
	return out
}

// Subscribe returns a channel that observes every Write after this call.
// The caller must call Unsubscribe when done to release the channel.
func (c *Capture) Subscribe() chan []byte {
	ch := make(chan []byte, BroadcastDepth)
	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	c.subMu.Unlock()
	return ch
}

// Unsubscribe detaches a channel previously returned by Subscribe.
func (c *Capture) Unsubscribe(ch chan []byte) {
	c.subMu.Lock()
	delete(c.subs, ch)
	c.subMu.Unlock()
}

func (c *Capture) broadcast(data []byte) {
	msg := make([]byte, len(data))
	copy(msg, data)

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- msg:
		default:
			// Subscriber is lagging; drop the oldest queued message to make
			// room rather than blocking the writer (lag, never error).
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- msg:
			default:
			}
		}
	}
}

// Close releases the underlying log file handle. Ring contents and live
// subscribers are unaffected; Close is only meaningful once the owning
// process is being destroyed.
func (c *Capture) Close() {
	c.rotator.Close()
}
