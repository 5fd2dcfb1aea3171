package flow_test

import (
	"encoding/json"

	"github.com/sigflow/sigflow/pkg/core/flow"
	"github.com/sigflow/sigflow/pkg/core/sampletype"
)

// testBlock is a configurable block for graph and resolver tests.
type testBlock struct {
	name string
	ins  []flow.Port
	outs []flow.Port
	sigs []flow.Signature

	rate float64 // nominal source rate, for blocks with no inputs

	initSig  *flow.ResolvedSignature
	initRate float64
	initErr  error

	proc func(in []*flow.Chunk) ([]*flow.Chunk, error)
}

func (b *testBlock) Name() string                 { return b.name }
func (b *testBlock) Inputs() []flow.Port          { return b.ins }
func (b *testBlock) Outputs() []flow.Port         { return b.outs }
func (b *testBlock) Signatures() []flow.Signature { return b.sigs }
func (b *testBlock) Rate() float64                { return b.rate }

func (b *testBlock) Initialize(sig flow.ResolvedSignature, rate float64) error {
	b.initSig = &sig
	b.initRate = rate
	return b.initErr
}

func (b *testBlock) Process(in []*flow.Chunk) ([]*flow.Chunk, error) {
	if b.proc != nil {
		return b.proc(in)
	}
	return nil, flow.ErrEndOfStream
}

func ports(names ...string) []flow.Port {
	out := make([]flow.Port, len(names))
	for i, n := range names {
		out[i] = flow.Port{Name: n}
	}
	return out
}

// source builds a single-output source block of the given concrete type.
func source(name, typ string, rate float64) *testBlock {
	return &testBlock{
		name: name,
		outs: ports("out"),
		rate: rate,
		sigs: []flow.Signature{{Outputs: []string{typ}}},
	}
}

// sink builds a single-input sink accepting exactly one concrete type.
func sink(name, typ string) *testBlock {
	return &testBlock{
		name: name,
		ins:  ports("in"),
		sigs: []flow.Signature{{Inputs: []flow.TypeRef{flow.Type(typ)}}},
	}
}

// passthrough builds a 1-in 1-out block with one signature per type name.
func passthrough(name string, typs ...string) *testBlock {
	sigs := make([]flow.Signature, len(typs))
	for i, typ := range typs {
		sigs[i] = flow.Signature{
			Inputs:  []flow.TypeRef{flow.Type(typ)},
			Outputs: []string{typ},
		}
	}
	return &testBlock{name: name, ins: ports("in"), outs: ports("out"), sigs: sigs}
}

// registerPacket adds a json-capable object type to reg.
func registerPacket(reg *sampletype.Registry) *sampletype.T {
	type packet struct {
		Seq int `json:"seq"`
	}
	typ, err := reg.RegisterObject("packet",
		func(v interface{}) ([]byte, error) { return json.Marshal(v) },
		func(d []byte) (interface{}, error) {
			var p packet
			err := json.Unmarshal(d, &p)
			return p, err
		},
		"json")
	if err != nil {
		panic(err)
	}
	return typ
}
