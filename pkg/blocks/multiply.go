package blocks

import (
	"github.com/sigflow/sigflow/pkg/core/flow"
	"github.com/sigflow/sigflow/pkg/core/sampletype"
)

// Multiply emits the element-wise product of its two inputs. Candidate
// signatures cover the complex and real overloads; the resolver picks
// whichever the connected producers supply.
type Multiply struct {
	typ *sampletype.T
}

// NewMultiply returns a multiply block.
func NewMultiply() *Multiply { return &Multiply{} }

func (m *Multiply) Name() string { return "multiply" }
func (m *Multiply) Inputs() []flow.Port {
	return []flow.Port{{Name: "in1"}, {Name: "in2"}}
}
func (m *Multiply) Outputs() []flow.Port { return []flow.Port{{Name: "out"}} }

func (m *Multiply) Signatures() []flow.Signature {
	return []flow.Signature{
		{
			Inputs:  []flow.TypeRef{flow.Type("complex32"), flow.Type("complex32")},
			Outputs: []string{"complex32"},
		},
		{
			Inputs:  []flow.TypeRef{flow.Type("real32"), flow.Type("real32")},
			Outputs: []string{"real32"},
		},
	}
}

func (m *Multiply) Initialize(sig flow.ResolvedSignature, rate float64) error {
	m.typ = sig.Outputs[0]
	return nil
}

func (m *Multiply) Process(in []*flow.Chunk) ([]*flow.Chunk, error) {
	a, b := in[0], in[1]
	n := a.Len()
	if b.Len() < n {
		n = b.Len()
	}
	out := flow.NewChunk(m.typ, n)
	if m.typ.Name == "complex32" {
		for i := 0; i < n; i++ {
			out.SetComplex64(i, a.Complex64(i)*b.Complex64(i))
		}
	} else {
		for i := 0; i < n; i++ {
			out.SetFloat32(i, a.Float32(i)*b.Float32(i))
		}
	}
	return []*flow.Chunk{out}, nil
}
