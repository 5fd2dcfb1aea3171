// Package buffers provides the two transport primitives attached to flow
// graph edges: a single-producer byte ring with per-reader cursors for
// fixed-size sample streams, and a framed queue for structured objects.
//
// Both share one reader cursor discipline: each reader peeks committed data
// and advances past what it has consumed. The ring's writer reserves space,
// fills it and commits; the queue's writer appends whole frames with Write. Writes never overtake the slowest reader, which is what carries
// back-pressure between execution units. Closing the write end is the
// end-of-stream signal: readers drain what was committed and then observe
// ErrClosed.
package buffers

import (
	"sync"

	"github.com/sigflow/sigflow/pkg/core/flowerr"
)

// ErrClosed is returned once a closed buffer has been drained. The worker
// loop consumes it as end-of-stream; it never reaches the user.
var ErrClosed error = flowerr.Code(flowerr.BufferClosed)

// Ring is a single-producer byte ring for fixed-size samples. Fan-out shares
// the one ring across several readers, each with its own cursor; writable
// space is gated by the reader furthest behind.
//
// Cursors are absolute byte counts; buffer positions are cursor mod capacity.
// Reservations return contiguous regions, so ReserveWrite may yield fewer
// samples than asked for at the wrap point; callers loop. Peek returns at
// least the minimum asked for (unless the ring is closed), joining data that
// spans the wrap point.
type Ring struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf        []byte
	sampleSize int
	capacity   int64 // bytes

	head     int64 // bytes committed by the writer
	reserved int64 // bytes handed out by ReserveWrite, not yet committed
	readers  []*RingReader
	closed   bool
}

// RingReader is one consumer cursor on a Ring.
type RingReader struct {
	ring     *Ring
	tail     int64 // bytes advanced
	detached bool
	scratch  []byte // joins the two regions when a Peek spans the wrap
}

// NewRing creates a ring for samples of sampleSize bytes with room for
// capSamples samples.
func NewRing(sampleSize, capSamples int) *Ring {
	if sampleSize <= 0 || capSamples <= 0 {
		panic("buffers: ring needs positive sample size and capacity")
	}
	r := &Ring{
		buf:        make([]byte, sampleSize*capSamples),
		sampleSize: sampleSize,
		capacity:   int64(sampleSize * capSamples),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// SampleSize returns the bytes per sample.
func (r *Ring) SampleSize() int { return r.sampleSize }

// CapSamples returns the ring capacity in samples.
func (r *Ring) CapSamples() int { return int(r.capacity) / r.sampleSize }

// AddReader attaches a consumer cursor positioned at the current head.
// Readers are attached before the graph starts moving samples.
func (r *Ring) AddReader() *RingReader {
	r.mu.Lock()
	defer r.mu.Unlock()
	rd := &RingReader{ring: r, tail: r.head}
	r.readers = append(r.readers, rd)
	return rd
}

// minTail returns the slowest attached reader cursor. With no readers the
// writer is gated only by capacity.
func (r *Ring) minTail() int64 {
	min := r.head
	for _, rd := range r.readers {
		if !rd.detached && rd.tail < min {
			min = rd.tail
		}
	}
	return min
}

// ReserveWrite blocks until at least one sample of space is writable, then
// returns a contiguous region of up to n samples. The caller fills the slice
// and calls CommitWrite with the sample count actually produced.
// Returns ErrClosed once the ring is closed.
func (r *Ring) ReserveWrite(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if r.closed {
			return nil, ErrClosed
		}
		free := r.capacity - (r.head - r.minTail())
		if free >= int64(r.sampleSize) {
			pos := r.head % r.capacity
			// Contiguous region: bounded by free space and the wrap point.
			avail := free
			if untilWrap := r.capacity - pos; untilWrap < avail {
				avail = untilWrap
			}
			want := int64(n * r.sampleSize)
			if avail > want {
				avail = want
			}
			avail -= avail % int64(r.sampleSize)
			r.reserved = avail
			return r.buf[pos : pos+avail], nil
		}
		r.cond.Wait()
	}
}

// CommitWrite publishes n samples of the region returned by ReserveWrite.
// Committing more than was reserved is a programming error.
func (r *Ring) CommitWrite(n int) {
	if n == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	nb := int64(n * r.sampleSize)
	if nb < 0 || nb > r.reserved {
		panic("buffers: commit exceeds reservation")
	}
	r.head += nb
	r.reserved = 0
	r.cond.Broadcast()
}

// Close marks end-of-stream. Blocked writers and readers wake; readers drain
// committed samples first. Close is idempotent.
func (r *Ring) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.cond.Broadcast()
}

// Committed returns the total samples committed by the writer.
func (r *Ring) Committed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.head / int64(r.sampleSize)
}

// Peek blocks until at least min samples are readable (or the write end
// closes), then returns a readable region of at least min samples. The
// region stays valid until Advance. When the readable data spans the wrap
// point it is joined into a reader-private scratch buffer, so the common
// path stays copy-free. A closed, drained ring returns ErrClosed.
func (rd *RingReader) Peek(min int) ([]byte, error) {
	if min < 1 {
		min = 1
	}
	r := rd.ring
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		avail := r.head - rd.tail
		if avail >= int64(min*r.sampleSize) || (r.closed && avail > 0) {
			pos := rd.tail % r.capacity
			untilWrap := r.capacity - pos
			if untilWrap >= avail {
				return r.buf[pos : pos+avail], nil
			}
			if untilWrap >= int64(min*r.sampleSize) {
				return r.buf[pos : pos+untilWrap], nil
			}
			if int64(cap(rd.scratch)) < avail {
				rd.scratch = make([]byte, avail)
			}
			rd.scratch = rd.scratch[:avail]
			n := copy(rd.scratch, r.buf[pos:])
			copy(rd.scratch[n:], r.buf[:avail-int64(n)])
			return rd.scratch, nil
		}
		if r.closed {
			return nil, ErrClosed
		}
		r.cond.Wait()
	}
}

// Advance consumes n samples from the front of the last Peek.
func (rd *RingReader) Advance(n int) {
	if n == 0 {
		return
	}
	r := rd.ring
	r.mu.Lock()
	defer r.mu.Unlock()
	nb := int64(n * r.sampleSize)
	if nb < 0 || rd.tail+nb > r.head {
		panic("buffers: advance exceeds committed data")
	}
	rd.tail += nb
	r.cond.Broadcast()
}

// Buffered returns the samples committed but not yet advanced past.
func (rd *RingReader) Buffered() int {
	r := rd.ring
	r.mu.Lock()
	defer r.mu.Unlock()
	return int((r.head - rd.tail) / int64(r.sampleSize))
}

// Advanced returns the total samples this reader has consumed.
func (rd *RingReader) Advanced() int64 {
	r := rd.ring
	r.mu.Lock()
	defer r.mu.Unlock()
	return rd.tail / int64(r.sampleSize)
}

// Detach removes this reader from write gating. A consumer that exits early
// detaches so the producer is not blocked forever on its cursor.
func (rd *RingReader) Detach() {
	r := rd.ring
	r.mu.Lock()
	defer r.mu.Unlock()
	rd.detached = true
	r.cond.Broadcast()
}
