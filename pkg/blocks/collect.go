package blocks

import (
	"sync"

	"github.com/sigflow/sigflow/pkg/core/flow"
)

// Collect is a sink that accumulates every real32 sample it sees. Tests and
// the demo read the result back after the graph terminates.
type Collect struct {
	mu      sync.Mutex
	samples []float32
	rate    float64

	// Delay, when set, is slept once per Process call. Tests use it to
	// stand in for a slow consumer.
	Delay func()
}

// NewCollect returns an empty collector sink.
func NewCollect() *Collect { return &Collect{} }

func (c *Collect) Name() string         { return "collect" }
func (c *Collect) Inputs() []flow.Port  { return []flow.Port{{Name: "in"}} }
func (c *Collect) Outputs() []flow.Port { return nil }

func (c *Collect) Signatures() []flow.Signature {
	return []flow.Signature{
		{Inputs: []flow.TypeRef{flow.Type("real32")}},
	}
}

func (c *Collect) Initialize(sig flow.ResolvedSignature, rate float64) error {
	c.rate = rate
	return nil
}

func (c *Collect) Process(in []*flow.Chunk) ([]*flow.Chunk, error) {
	if c.Delay != nil {
		c.Delay()
	}
	src := in[0]
	c.mu.Lock()
	for i := 0; i < src.Len(); i++ {
		c.samples = append(c.samples, src.Float32(i))
	}
	c.mu.Unlock()
	return nil, nil
}

// Samples returns a copy of everything collected so far.
func (c *Collect) Samples() []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]float32, len(c.samples))
	copy(out, c.samples)
	return out
}

// InputRate returns the rate the propagator assigned to the sink's input.
func (c *Collect) InputRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}
