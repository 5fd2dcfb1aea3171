// Package flow holds the declarative side of the flow-graph runtime: the
// block contract, the graph of typed connections, signature resolution and
// sample-rate propagation. The scheduling and transport that move samples
// live in pkg/runtime.
package flow

import (
	"errors"

	"github.com/sigflow/sigflow/pkg/core/sampletype"
)

// ErrEndOfStream is returned by a source's Process when it has produced its
// last samples. Downstream blocks see their input buffers drain and close.
var ErrEndOfStream = errors.New("end of stream")

// ErrNeedMoreInput is returned by Process when the provided input chunks are
// too short to produce anything. The worker retries with more samples.
var ErrNeedMoreInput = errors.New("need more input")

// Port is a named endpoint on a block. Direction is given by which vector
// (Inputs or Outputs) the port appears in.
type Port struct {
	Name string
}

// TypeRef names the accepted type of one signature slot: either a concrete
// type name, or a capability predicate for inputs ("any type with a json
// encoder"). Output slots are always concrete.
type TypeRef struct {
	Name string
	Cap  string
}

// Type builds a concrete TypeRef.
func Type(name string) TypeRef { return TypeRef{Name: name} }

// Cap builds a capability-predicate TypeRef.
func Cap(capability string) TypeRef { return TypeRef{Cap: capability} }

// Predicate reports whether the ref is a capability predicate.
func (r TypeRef) Predicate() bool { return r.Cap != "" }

// Matches reports whether a concrete producer type satisfies the ref.
// Predicates check the producer's capability set and never constrain it.
func (r TypeRef) Matches(t *sampletype.T) bool {
	if t == nil {
		return false
	}
	if r.Predicate() {
		return t.Has(r.Cap)
	}
	return r.Name == t.Name
}

func (r TypeRef) String() string {
	if r.Predicate() {
		return "cap:" + r.Cap
	}
	return r.Name
}

// Signature is one candidate type assignment a block declares: a TypeRef per
// input port, a concrete type name per output port, and an optional rate
// scale per output (nil or missing entries mean 1.0).
type Signature struct {
	Inputs    []TypeRef
	Outputs   []string
	RateScale []float64
}

// Scale returns the rate-scaling factor of output port i.
func (s Signature) Scale(i int) float64 {
	if i < len(s.RateScale) && s.RateScale[i] > 0 {
		return s.RateScale[i]
	}
	return 1.0
}

// ResolvedSignature is the concrete assignment picked by the resolver: one
// type per port plus the scale factors of the winning candidate.
type ResolvedSignature struct {
	Inputs    []*sampletype.T
	Outputs   []*sampletype.T
	RateScale []float64
}

// Scale returns the rate-scaling factor of output port i.
func (s ResolvedSignature) Scale(i int) float64 {
	if i < len(s.RateScale) && s.RateScale[i] > 0 {
		return s.RateScale[i]
	}
	return 1.0
}

// Chunk carries one port's worth of samples through a Process call. Fixed
// types use Bytes (length a multiple of the sample size); object types use
// Objects. Input chunks are read-only: they may alias buffer memory shared
// with other consumers.
type Chunk struct {
	Type    *sampletype.T
	Bytes   []byte
	Objects []interface{}
}

// Len returns the chunk length in samples or objects.
func (c *Chunk) Len() int {
	if c == nil || c.Type == nil {
		return 0
	}
	if c.Type.Fixed() {
		return len(c.Bytes) / c.Type.Size
	}
	return len(c.Objects)
}

// Block is the contract a computational block presents to the runtime.
//
// A block declares its ports and 1..N candidate signatures at construction.
// After the resolver picks a signature and the propagator assigns a rate,
// Initialize runs once; the block may precompute rate-dependent state there
// and reject with an error (surfaced as BlockInitFailed). Process is then
// called repeatedly by a single worker: it consumes the given input chunks
// entirely and returns one output chunk per output port. Any block state is
// private to that worker; blocks share nothing.
type Block interface {
	Name() string
	Inputs() []Port
	Outputs() []Port
	Signatures() []Signature
	Initialize(sig ResolvedSignature, rate float64) error
	Process(in []*Chunk) ([]*Chunk, error)
}

// Source is implemented by blocks with no inputs; they declare the nominal
// sample rate that seeds propagation.
type Source interface {
	Block
	Rate() float64
}
