package runtime

import (
	"errors"

	"github.com/sigflow/sigflow/pkg/core/buffers"
	"github.com/sigflow/sigflow/pkg/core/flow"
	"github.com/sigflow/sigflow/pkg/core/flowerr"
	"github.com/sigflow/sigflow/pkg/core/sampletype"
)

// transport is the buffer behind one producer output port. A fan-out port
// has one transport shared by every consumer, each holding its own reader.
type transport struct {
	typ   *sampletype.T
	ring  *buffers.Ring  // fixed types
	queue *buffers.Queue // object types

	committed func() int64
}

func newTransport(typ *sampletype.T, bufferSamples, queueObjects int) *transport {
	t := &transport{typ: typ}
	if typ.Fixed() {
		t.ring = buffers.NewRing(typ.Size, bufferSamples)
		t.committed = t.ring.Committed
	} else {
		t.queue = buffers.NewQueue(queueObjects)
		t.committed = t.queue.Committed
	}
	return t
}

func (t *transport) close() {
	if t.ring != nil {
		t.ring.Close()
	} else {
		t.queue.Close()
	}
}

// write pushes a chunk through the transport, blocking on back-pressure.
// Returns ErrClosed once the transport is shut.
func (t *transport) write(c *flow.Chunk) error {
	if c == nil || c.Len() == 0 {
		return nil
	}
	if t.ring != nil {
		data := c.Bytes
		size := t.typ.Size
		for len(data) > 0 {
			dst, err := t.ring.ReserveWrite(len(data) / size)
			if err != nil {
				return err
			}
			n := copy(dst, data)
			t.ring.CommitWrite(n / size)
			data = data[n:]
		}
		return nil
	}
	for _, obj := range c.Objects {
		frame, err := t.typ.Encode(obj)
		if err != nil {
			return flowerr.New(flowerr.BlockRuntimeError, "encode %s: %v", t.typ.Name, err)
		}
		if err := t.queue.Write(frame); err != nil {
			return err
		}
	}
	return nil
}

// inlet is one consumer's view of an upstream transport.
type inlet struct {
	typ   *sampletype.T
	ring  *buffers.RingReader
	queue *buffers.QueueReader
}

func (t *transport) addReader() *inlet {
	in := &inlet{typ: t.typ}
	if t.ring != nil {
		in.ring = t.ring.AddReader()
	} else {
		in.queue = t.queue.AddReader()
	}
	return in
}

// read blocks until at least min units are available (or upstream closes)
// and returns them as a chunk of at most max units, without consuming.
// The returned count is what advance must later be called with.
func (in *inlet) read(min, max int) (*flow.Chunk, int, error) {
	if in.ring != nil {
		b, err := in.ring.Peek(min)
		if err != nil {
			return nil, 0, err
		}
		size := in.typ.Size
		n := len(b) / size
		if n > max {
			n = max
		}
		return &flow.Chunk{Type: in.typ, Bytes: b[:n*size]}, n, nil
	}
	frames, err := in.queue.Peek(min)
	if err != nil {
		return nil, 0, err
	}
	if len(frames) > max {
		frames = frames[:max]
	}
	objs := make([]interface{}, len(frames))
	for i, f := range frames {
		v, err := in.typ.Decode(f)
		if err != nil {
			return nil, 0, flowerr.New(flowerr.BlockRuntimeError, "decode %s: %v", in.typ.Name, err)
		}
		objs[i] = v
	}
	return &flow.Chunk{Type: in.typ, Objects: objs}, len(frames), nil
}

func (in *inlet) advance(n int) {
	if in.ring != nil {
		in.ring.Advance(n)
	} else {
		in.queue.Advance(n)
	}
}

func (in *inlet) advanced() int64 {
	if in.ring != nil {
		return in.ring.Advanced()
	}
	return in.queue.Advanced()
}

func (in *inlet) detach() {
	if in.ring != nil {
		in.ring.Detach()
	} else {
		in.queue.Detach()
	}
}

func isClosed(err error) bool {
	return errors.Is(err, buffers.ErrClosed)
}
