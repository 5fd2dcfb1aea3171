package flow

import (
	"github.com/sigflow/sigflow/pkg/core/flowerr"
	"github.com/sigflow/sigflow/pkg/core/sampletype"
)

// Resolve assigns one candidate signature to every block such that on every
// edge the producer's output type equals (or satisfies the predicate of) the
// consumer's input type. It is a constraint propagator over the DAG:
//
//  1. Blocks declaring a single candidate are resolved immediately.
//  2. A reverse-topological pass and then a topological pass eliminate, for
//     each unresolved block, the candidates that conflict with the types of
//     already-resolved neighbors.
//  3. Still-unresolved blocks are tie-broken in topological order: prefer
//     the candidate agreeing with the most resolved neighbors, then the one
//     declared earliest. Resolution is deterministic and locally stable —
//     adding a downstream block cannot flip an upstream choice.
//
// A block stripped of every candidate fails with SignatureMismatch naming
// the edge that killed the last one. Candidates left indistinguishable by
// their port types fail with AmbiguousSignature. On success every edge's
// Type is set and the per-block resolved signatures are returned.
//
// Predicate-typed inputs are evaluated against concrete producer types only;
// they never back-constrain the producer.
func (g *Graph) Resolve() (map[Block]ResolvedSignature, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	alive := make(map[Block][]int, len(g.blocks))
	chosen := make(map[Block]int, len(g.blocks))
	for _, b := range g.blocks {
		sigs := b.Signatures()
		if len(sigs) == 0 {
			return nil, flowerr.New(flowerr.SignatureMismatch,
				"block %q declares no signatures", b.Name())
		}
		idx := make([]int, len(sigs))
		for i := range sigs {
			idx[i] = i
		}
		alive[b] = idx
		if len(sigs) == 1 {
			chosen[b] = 0
		}
	}

	topo := g.topologicalLocked()
	rev := make([]Block, len(topo))
	for i, b := range topo {
		rev[len(topo)-1-i] = b
	}

	for _, pass := range [][]Block{rev, topo} {
		for _, b := range pass {
			if _, done := chosen[b]; done {
				continue
			}
			kept := alive[b][:0]
			var killer *Edge
			for _, ci := range alive[b] {
				if e := g.conflictLocked(b, b.Signatures()[ci], chosen); e != nil {
					killer = e
					continue
				}
				kept = append(kept, ci)
			}
			alive[b] = kept
			switch len(kept) {
			case 0:
				return nil, flowerr.Edge(flowerr.SignatureMismatch, killer.Name(),
					"no signature of block %q agrees with its neighbors", b.Name())
			case 1:
				chosen[b] = kept[0]
			}
		}
	}

	// Tie-break survivors in topological order so upstream choices are fixed
	// before downstream ones read them. Each choice can newly constrain the
	// blocks after it, so candidates are re-eliminated first.
	for _, b := range topo {
		if _, done := chosen[b]; done {
			continue
		}
		kept := alive[b][:0]
		var killer *Edge
		for _, ci := range alive[b] {
			if e := g.conflictLocked(b, b.Signatures()[ci], chosen); e != nil {
				killer = e
				continue
			}
			kept = append(kept, ci)
		}
		alive[b] = kept
		switch len(kept) {
		case 0:
			return nil, flowerr.Edge(flowerr.SignatureMismatch, killer.Name(),
				"no signature of block %q agrees with its neighbors", b.Name())
		case 1:
			chosen[b] = kept[0]
		default:
			pick, err := g.tieBreakLocked(b, kept, chosen)
			if err != nil {
				return nil, err
			}
			chosen[b] = pick
		}
	}

	// Every block is assigned; verify each edge end-to-end and stamp types.
	out := make(map[Block]ResolvedSignature, len(g.blocks))
	for _, e := range g.edges {
		sig := e.From.Signatures()[chosen[e.From]]
		t, ok := g.reg.Lookup(sig.Outputs[e.FromPort])
		if !ok {
			return nil, flowerr.Edge(flowerr.SignatureMismatch, e.Name(),
				"producer type %q is not registered", sig.Outputs[e.FromPort])
		}
		ref := e.To.Signatures()[chosen[e.To]].Inputs[e.ToPort]
		if !ref.Matches(t) {
			return nil, flowerr.Edge(flowerr.SignatureMismatch, e.Name(),
				"producer type %q does not satisfy consumer input %s", t.Name, ref)
		}
		e.Type = t
	}
	for _, b := range g.blocks {
		rs, err := g.resolvedLocked(b, b.Signatures()[chosen[b]])
		if err != nil {
			return nil, err
		}
		out[b] = rs
	}
	return out, nil
}

// conflictLocked returns the first edge on which candidate sig of block b
// disagrees with a resolved neighbor, or nil if none does.
func (g *Graph) conflictLocked(b Block, sig Signature, chosen map[Block]int) *Edge {
	for _, e := range g.edges {
		switch {
		case e.From == b:
			ci, ok := chosen[e.To]
			if !ok {
				continue
			}
			ref := e.To.Signatures()[ci].Inputs[e.ToPort]
			if ref.Predicate() {
				// Predicates never back-constrain the producer.
				continue
			}
			if ref.Name != sig.Outputs[e.FromPort] {
				return e
			}
		case e.To == b:
			ci, ok := chosen[e.From]
			if !ok {
				continue
			}
			outName := e.From.Signatures()[ci].Outputs[e.FromPort]
			t, ok2 := g.reg.Lookup(outName)
			if !ok2 || !sig.Inputs[e.ToPort].Matches(t) {
				return e
			}
		}
	}
	return nil
}

// tieBreakLocked picks among surviving candidates: highest exact-type
// agreement with resolved neighbors first, declaration order second.
// Candidates whose port types are indistinguishable are ambiguous.
func (g *Graph) tieBreakLocked(b Block, candidates []int, chosen map[Block]int) (int, error) {
	sigs := b.Signatures()
	best, bestScore := -1, -1
	for _, ci := range candidates {
		score := 0
		for _, e := range g.edges {
			switch {
			case e.From == b:
				ni, ok := chosen[e.To]
				if !ok {
					continue
				}
				ref := e.To.Signatures()[ni].Inputs[e.ToPort]
				if !ref.Predicate() && ref.Name == sigs[ci].Outputs[e.FromPort] {
					score++
				}
			case e.To == b:
				ni, ok := chosen[e.From]
				if !ok {
					continue
				}
				ref := sigs[ci].Inputs[e.ToPort]
				if !ref.Predicate() && ref.Name == e.From.Signatures()[ni].Outputs[e.FromPort] {
					score++
				}
			}
		}
		if score > bestScore {
			best, bestScore = ci, score
		} else if score == bestScore && samePortTypes(sigs[ci], sigs[best]) {
			return 0, flowerr.New(flowerr.AmbiguousSignature,
				"block %q: candidates %d and %d are indistinguishable", b.Name(), best, ci)
		}
	}
	return best, nil
}

func samePortTypes(a, b Signature) bool {
	if len(a.Inputs) != len(b.Inputs) || len(a.Outputs) != len(b.Outputs) {
		return false
	}
	for i := range a.Inputs {
		if a.Inputs[i] != b.Inputs[i] {
			return false
		}
	}
	for i := range a.Outputs {
		if a.Outputs[i] != b.Outputs[i] {
			return false
		}
	}
	return true
}

// resolvedLocked concretizes the winning candidate. Predicate inputs take
// the type of the edge feeding them.
func (g *Graph) resolvedLocked(b Block, sig Signature) (ResolvedSignature, error) {
	rs := ResolvedSignature{
		Inputs:    make([]*sampletype.T, len(sig.Inputs)),
		Outputs:   make([]*sampletype.T, len(sig.Outputs)),
		RateScale: make([]float64, len(sig.Outputs)),
	}
	for i, ref := range sig.Inputs {
		if ref.Predicate() {
			for _, e := range g.edges {
				if e.To == b && e.ToPort == i {
					rs.Inputs[i] = e.Type
				}
			}
		} else {
			t, _ := g.reg.Lookup(ref.Name)
			rs.Inputs[i] = t
		}
		if rs.Inputs[i] == nil {
			return rs, flowerr.New(flowerr.SignatureMismatch,
				"block %q input %d has no concrete type", b.Name(), i)
		}
	}
	for i, name := range sig.Outputs {
		t, ok := g.reg.Lookup(name)
		if !ok {
			return rs, flowerr.New(flowerr.SignatureMismatch,
				"block %q output type %q is not registered", b.Name(), name)
		}
		rs.Outputs[i] = t
		rs.RateScale[i] = sig.Scale(i)
	}
	return rs, nil
}
