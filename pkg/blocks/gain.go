package blocks

import (
	"github.com/sigflow/sigflow/pkg/core/flow"
	"github.com/sigflow/sigflow/pkg/core/sampletype"
)

// Gain multiplies every sample by a real constant. It overloads on the
// sample kind: real32 in, real32 out, or complex32 in, complex32 out.
type Gain struct {
	K float32

	typ *sampletype.T
}

// NewGain returns a gain block with factor k.
func NewGain(k float32) *Gain { return &Gain{K: k} }

func (g *Gain) Name() string         { return "gain" }
func (g *Gain) Inputs() []flow.Port  { return []flow.Port{{Name: "in"}} }
func (g *Gain) Outputs() []flow.Port { return []flow.Port{{Name: "out"}} }

func (g *Gain) Signatures() []flow.Signature {
	return []flow.Signature{
		{Inputs: []flow.TypeRef{flow.Type("real32")}, Outputs: []string{"real32"}},
		{Inputs: []flow.TypeRef{flow.Type("complex32")}, Outputs: []string{"complex32"}},
	}
}

func (g *Gain) Initialize(sig flow.ResolvedSignature, rate float64) error {
	g.typ = sig.Outputs[0]
	return nil
}

func (g *Gain) Process(in []*flow.Chunk) ([]*flow.Chunk, error) {
	src := in[0]
	n := src.Len()
	out := flow.NewChunk(g.typ, n)
	if g.typ.Name == "complex32" {
		for i := 0; i < n; i++ {
			out.SetComplex64(i, src.Complex64(i)*complex(g.K, 0))
		}
	} else {
		for i := 0; i < n; i++ {
			out.SetFloat32(i, src.Float32(i)*g.K)
		}
	}
	return []*flow.Chunk{out}, nil
}
