package flow

import (
	"fmt"
	"sync"

	"github.com/sigflow/sigflow/pkg/core/flowerr"
	"github.com/sigflow/sigflow/pkg/core/sampletype"
)

// Edge is a directed connection from one output port to one input port.
// Type and Rate are filled in by resolution and rate propagation.
type Edge struct {
	From     Block
	FromPort int
	To       Block
	ToPort   int

	Type *sampletype.T
	Rate float64
}

// Name renders the edge for error messages and status output.
func (e *Edge) Name() string {
	return fmt.Sprintf("%s.%s -> %s.%s",
		e.From.Name(), e.From.Outputs()[e.FromPort].Name,
		e.To.Name(), e.To.Inputs()[e.ToPort].Name)
}

// Graph is a mutable set of blocks and edges. It is built by the user,
// validated at Connect time, and frozen by the runtime at Start.
type Graph struct {
	mu     sync.Mutex
	reg    *sampletype.Registry
	blocks []Block
	edges  []*Edge
	frozen bool
}

// NewGraph creates an empty graph resolving type names against reg
// (the process-wide registry if nil).
func NewGraph(reg *sampletype.Registry) *Graph {
	if reg == nil {
		reg = sampletype.Default()
	}
	return &Graph{reg: reg}
}

// Registry returns the type registry the graph resolves against.
func (g *Graph) Registry() *sampletype.Registry { return g.reg }

// Add inserts a block. Adding the same block twice is a no-op.
func (g *Graph) Add(b Block) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		return flowerr.New(flowerr.Generic, "graph is frozen")
	}
	for _, have := range g.blocks {
		if have == b {
			return nil
		}
	}
	g.blocks = append(g.blocks, b)
	return nil
}

// Connect wires src's output port outIdx to dst's input port inIdx. Both
// blocks are added implicitly. Connect rejects a second producer on an input
// port (FanInConflict) and any connection that would close a cycle.
func (g *Graph) Connect(src Block, outIdx int, dst Block, inIdx int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		return flowerr.New(flowerr.Generic, "graph is frozen")
	}
	if outIdx < 0 || outIdx >= len(src.Outputs()) {
		return flowerr.New(flowerr.Generic, "block %q has no output %d", src.Name(), outIdx)
	}
	if inIdx < 0 || inIdx >= len(dst.Inputs()) {
		return flowerr.New(flowerr.Generic, "block %q has no input %d", dst.Name(), inIdx)
	}
	for _, e := range g.edges {
		if e.To == dst && e.ToPort == inIdx {
			return flowerr.New(flowerr.FanInConflict,
				"input %s.%s already has a producer (%s)",
				dst.Name(), dst.Inputs()[inIdx].Name, e.From.Name())
		}
	}
	if g.reachableLocked(dst, src) {
		return flowerr.New(flowerr.Generic,
			"connecting %s to %s would create a cycle", src.Name(), dst.Name())
	}
	g.addLocked(src)
	g.addLocked(dst)
	g.edges = append(g.edges, &Edge{From: src, FromPort: outIdx, To: dst, ToPort: inIdx})
	return nil
}

// Remove deletes a block and every edge touching it.
func (g *Graph) Remove(b Block) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		return flowerr.New(flowerr.Generic, "graph is frozen")
	}
	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.From != b && e.To != b {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	for i, have := range g.blocks {
		if have == b {
			g.blocks = append(g.blocks[:i], g.blocks[i+1:]...)
			return nil
		}
	}
	return nil
}

// Freeze forbids further mutation. The runtime calls it at Start.
func (g *Graph) Freeze() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frozen = true
}

func (g *Graph) addLocked(b Block) {
	for _, have := range g.blocks {
		if have == b {
			return
		}
	}
	g.blocks = append(g.blocks, b)
}

// reachableLocked reports whether to is reachable from from along edges.
func (g *Graph) reachableLocked(from, to Block) bool {
	if from == to {
		return true
	}
	seen := map[Block]bool{from: true}
	stack := []Block{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.edges {
			if e.From != cur || seen[e.To] {
				continue
			}
			if e.To == to {
				return true
			}
			seen[e.To] = true
			stack = append(stack, e.To)
		}
	}
	return false
}

// Blocks returns the blocks in insertion order.
func (g *Graph) Blocks() []Block {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Block, len(g.blocks))
	copy(out, g.blocks)
	return out
}

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []*Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// InEdges returns the edges feeding b, ordered by input port index.
func (g *Graph) InEdges(b Block) []*Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inEdgesLocked(b)
}

func (g *Graph) inEdgesLocked(b Block) []*Edge {
	out := make([]*Edge, 0, len(b.Inputs()))
	for port := 0; port < len(b.Inputs()); port++ {
		for _, e := range g.edges {
			if e.To == b && e.ToPort == port {
				out = append(out, e)
			}
		}
	}
	return out
}

// OutEdges returns the edges leaving b in insertion order.
func (g *Graph) OutEdges(b Block) []*Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.outEdgesLocked(b)
}

func (g *Graph) outEdgesLocked(b Block) []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if e.From == b {
			out = append(out, e)
		}
	}
	return out
}

// Sources returns the blocks with no input ports.
func (g *Graph) Sources() []Block {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Block
	for _, b := range g.blocks {
		if len(b.Inputs()) == 0 {
			out = append(out, b)
		}
	}
	return out
}

// Sinks returns the blocks with no output ports.
func (g *Graph) Sinks() []Block {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Block
	for _, b := range g.blocks {
		if len(b.Outputs()) == 0 {
			out = append(out, b)
		}
	}
	return out
}

// Topological returns the blocks ordered producers-first. The graph is kept
// acyclic at Connect time, so this cannot fail on a built graph.
func (g *Graph) Topological() []Block {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.topologicalLocked()
}

func (g *Graph) topologicalLocked() []Block {
	indeg := make(map[Block]int, len(g.blocks))
	for _, b := range g.blocks {
		indeg[b] = 0
	}
	for _, e := range g.edges {
		indeg[e.To]++
	}
	// Kahn's algorithm over insertion order keeps the result deterministic.
	var order, ready []Block
	for _, b := range g.blocks {
		if indeg[b] == 0 {
			ready = append(ready, b)
		}
	}
	for len(ready) > 0 {
		b := ready[0]
		ready = ready[1:]
		order = append(order, b)
		for _, e := range g.edges {
			if e.From != b {
				continue
			}
			indeg[e.To]--
			if indeg[e.To] == 0 {
				ready = append(ready, e.To)
			}
		}
	}
	return order
}

// ReverseTopological returns the blocks ordered consumers-first.
func (g *Graph) ReverseTopological() []Block {
	order := g.Topological()
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Validate checks that every input port has exactly one inbound edge and
// that every referenced type name is registered.
func (g *Graph) Validate() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, b := range g.blocks {
		connected := make([]bool, len(b.Inputs()))
		for _, e := range g.edges {
			if e.To == b {
				connected[e.ToPort] = true
			}
		}
		for i, ok := range connected {
			if !ok {
				return flowerr.New(flowerr.Generic,
					"input %s.%s has no producer", b.Name(), b.Inputs()[i].Name)
			}
		}
		for _, sig := range b.Signatures() {
			for _, ref := range sig.Inputs {
				if !ref.Predicate() {
					if _, ok := g.reg.Lookup(ref.Name); !ok {
						return flowerr.New(flowerr.Generic,
							"block %q references unregistered type %q", b.Name(), ref.Name)
					}
				}
			}
			for _, name := range sig.Outputs {
				if _, ok := g.reg.Lookup(name); !ok {
					return flowerr.New(flowerr.Generic,
						"block %q references unregistered type %q", b.Name(), name)
				}
			}
		}
	}
	return nil
}
