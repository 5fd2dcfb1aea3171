package runtime

import (
	"errors"
	"fmt"

	"github.com/sigflow/sigflow/pkg/common/logging"
	"github.com/sigflow/sigflow/pkg/core/flow"
	"github.com/sigflow/sigflow/pkg/core/flowerr"
)

// unit is one execution unit: a single block driven by its own worker
// goroutine. Within the unit everything is single-threaded; units coordinate
// only through the back-pressured buffers on their edges.
type unit struct {
	block flow.Block
	sig   flow.ResolvedSignature

	ins  []*inlet     // one per input port
	outs []*transport // one per output port

	chunkSamples int
	minRead      int
	capSamples   int

	log *logging.FieldLogger
}

// run is the worker loop: peek inputs, call Process, write outputs. It
// suspends only inside buffer operations and checks the shutdown flag at the
// top of each iteration. On exit it closes its output transports, which is
// the end-of-stream signal downstream, and reports on the control channel.
func (u *unit) run(rt *Runtime) {
	name := u.block.Name()
	rt.events <- newEvent(EventStarted, name, nil)
	u.log.Debug("worker started")

	var fatal error
	want := make([]int, len(u.ins))
	for i := range want {
		want[i] = u.minRead
	}

loop:
	for {
		if rt.stopping.Load() {
			break
		}

		// Gather one chunk per input port. A drained, closed upstream ends
		// this unit cleanly.
		chunks := make([]*flow.Chunk, len(u.ins))
		counts := make([]int, len(u.ins))
		for i, in := range u.ins {
			max := u.chunkSamples
			if want[i] > max {
				max = want[i]
			}
			c, n, err := in.read(want[i], max)
			if err != nil {
				if isClosed(err) {
					break loop
				}
				fatal = err
				break loop
			}
			chunks[i] = c
			counts[i] = n
		}
		alignFixed(chunks, counts)

		outs, err := u.block.Process(chunks)
		switch {
		case errors.Is(err, flow.ErrNeedMoreInput):
			if grown := u.growWants(want, counts); !grown {
				if shortClosed(want, counts) {
					// Upstream closed with a tail too short to process.
					break loop
				}
				fatal = flowerr.Block(flowerr.BlockRuntimeError, name,
					fmt.Errorf("input requirement exceeds buffer capacity (%d samples)", u.capSamples))
				break loop
			}
			continue
		case err != nil && !errors.Is(err, flow.ErrEndOfStream):
			fatal = flowerr.Block(flowerr.BlockRuntimeError, name, err)
			break loop
		}

		// Outputs may alias input buffer memory, so they are pushed
		// downstream before the input cursors move.
		if werr := u.writeOuts(outs); werr != nil {
			if !isClosed(werr) {
				fatal = werr
			}
			break loop
		}
		for i, in := range u.ins {
			in.advance(counts[i])
			want[i] = u.minRead
		}
		if errors.Is(err, flow.ErrEndOfStream) {
			u.log.Debug("end of stream")
			break loop
		}
	}

	// Flush is implicit: everything committed is already visible. Closing
	// the outputs lets consumers drain and then observe end-of-stream.
	for _, out := range u.outs {
		out.close()
	}
	for _, in := range u.ins {
		in.detach()
	}
	if fatal != nil {
		u.log.WithField("error", fatal.Error()).Error("worker failed")
		rt.events <- newEvent(EventFailed, name, fatal)
	}
	rt.events <- newEvent(EventStopped, name, nil)
	u.log.Debug("worker stopped")
}

// writeOuts validates the output vector and pushes each chunk downstream.
func (u *unit) writeOuts(outs []*flow.Chunk) error {
	if outs == nil {
		return nil
	}
	if len(outs) != len(u.outs) {
		return flowerr.Block(flowerr.BlockRuntimeError, u.block.Name(),
			fmt.Errorf("process returned %d outputs, block has %d output ports", len(outs), len(u.outs)))
	}
	for i, c := range outs {
		if err := u.outs[i].write(c); err != nil {
			return err
		}
	}
	return nil
}

// growWants doubles the per-input minimums after ErrNeedMoreInput, bounded
// by the ring capacity. Returns false when the block can never be satisfied.
func (u *unit) growWants(want, counts []int) bool {
	grown := false
	for i := range want {
		if counts[i] < want[i] {
			// Upstream closed mid-stream; nothing more will come.
			continue
		}
		next := want[i] * 2
		if next > u.capSamples {
			next = u.capSamples
		}
		if next > want[i] {
			want[i] = next
			grown = true
		}
	}
	return grown
}

// shortClosed reports whether some input delivered less than asked for,
// which only happens when its upstream has closed.
func shortClosed(want, counts []int) bool {
	for i := range want {
		if counts[i] < want[i] {
			return true
		}
	}
	return false
}

// alignFixed trims fixed-type chunks to a common sample count so blocks with
// several numeric inputs see element-aligned slices.
func alignFixed(chunks []*flow.Chunk, counts []int) {
	min := -1
	fixed := 0
	for i, c := range chunks {
		if c != nil && c.Type.Fixed() {
			fixed++
			if min < 0 || counts[i] < min {
				min = counts[i]
			}
		}
	}
	if fixed < 2 {
		return
	}
	for i, c := range chunks {
		if c != nil && c.Type.Fixed() && counts[i] > min {
			c.Bytes = c.Bytes[:min*c.Type.Size]
			counts[i] = min
		}
	}
}
