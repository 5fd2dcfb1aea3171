package blocks

import (
	"time"

	"github.com/sigflow/sigflow/pkg/core/flow"
	"github.com/sigflow/sigflow/pkg/core/sampletype"
)

// Throttle passes samples through while pacing them to the edge's sample
// rate in wall-clock time. Graphs fed by a free-running source use it to
// simulate real-time consumption.
type Throttle struct {
	typ  *sampletype.T
	rate float64
}

// NewThrottle returns a throttle block.
func NewThrottle() *Throttle { return &Throttle{} }

func (t *Throttle) Name() string         { return "throttle" }
func (t *Throttle) Inputs() []flow.Port  { return []flow.Port{{Name: "in"}} }
func (t *Throttle) Outputs() []flow.Port { return []flow.Port{{Name: "out"}} }

func (t *Throttle) Signatures() []flow.Signature {
	return []flow.Signature{
		{Inputs: []flow.TypeRef{flow.Type("real32")}, Outputs: []string{"real32"}},
		{Inputs: []flow.TypeRef{flow.Type("complex32")}, Outputs: []string{"complex32"}},
		{Inputs: []flow.TypeRef{flow.Type("byte")}, Outputs: []string{"byte"}},
	}
}

func (t *Throttle) Initialize(sig flow.ResolvedSignature, rate float64) error {
	t.typ = sig.Outputs[0]
	t.rate = rate
	return nil
}

func (t *Throttle) Process(in []*flow.Chunk) ([]*flow.Chunk, error) {
	src := in[0]
	n := src.Len()
	if t.rate > 0 && n > 0 {
		time.Sleep(time.Duration(float64(n) / t.rate * float64(time.Second)))
	}
	out := flow.NewChunk(t.typ, n)
	copy(out.Bytes, src.Bytes)
	return []*flow.Chunk{out}, nil
}
