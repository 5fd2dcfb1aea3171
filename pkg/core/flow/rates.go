package flow

import (
	"github.com/sigflow/sigflow/pkg/core/flowerr"
)

// PropagateRates walks the resolved graph from its sources in topological
// order, stamping every edge with its sample rate and calling each block's
// Initialize immediately after its rate is known, so blocks can precompute
// rate-dependent coefficients.
//
// A source's output rates are its declared nominal rate times the per-output
// scale of its resolved signature. Every other block takes its input rate
// from the edge feeding its first input port; all of its inputs must carry
// exactly the same rate (RateMismatch otherwise), and its outputs carry
// input rate times scale. Rates are immutable after propagation.
func (g *Graph) PropagateRates(assign map[Block]ResolvedSignature) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, b := range g.topologicalLocked() {
		sig, ok := assign[b]
		if !ok {
			return flowerr.New(flowerr.Generic, "block %q has no resolved signature", b.Name())
		}
		var rate float64
		if len(b.Inputs()) == 0 {
			src, ok := b.(Source)
			if !ok || src.Rate() <= 0 {
				return flowerr.New(flowerr.Generic,
					"source %q declares no sample rate", b.Name())
			}
			rate = src.Rate()
		} else {
			ins := g.inEdgesLocked(b)
			rate = ins[0].Rate
			for _, e := range ins[1:] {
				if e.Rate != rate {
					return flowerr.Edge(flowerr.RateMismatch, e.Name(),
						"block %q sees %g samples/s here but %g on its first input",
						b.Name(), e.Rate, rate)
				}
			}
		}
		for _, e := range g.outEdgesLocked(b) {
			e.Rate = rate * sig.Scale(e.FromPort)
		}
		if err := b.Initialize(sig, rate); err != nil {
			return flowerr.Block(flowerr.BlockInitFailed, b.Name(), err)
		}
	}
	return nil
}
