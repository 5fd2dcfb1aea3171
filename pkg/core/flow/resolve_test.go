package flow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigflow/sigflow/pkg/core/flow"
	"github.com/sigflow/sigflow/pkg/core/flowerr"
	"github.com/sigflow/sigflow/pkg/core/sampletype"
)

func TestResolveLinearChain(t *testing.T) {
	g := flow.NewGraph(sampletype.NewRegistry())
	src := source("src", "real32", 48000)
	mid := passthrough("mid", "real32", "complex32")
	dst := sink("dst", "real32")
	require.NoError(t, g.Connect(src, 0, mid, 0))
	require.NoError(t, g.Connect(mid, 0, dst, 0))

	assign, err := g.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "real32", assign[mid].Inputs[0].Name)
	assert.Equal(t, "real32", assign[mid].Outputs[0].Name)
	for _, e := range g.Edges() {
		assert.Equal(t, "real32", e.Type.Name)
	}
}

// A multiply-style block overloaded on (complex32,complex32) and
// (real32,real32): two real sources must select the real overload.
func TestResolveOverloadPicksMatchingVariant(t *testing.T) {
	g := flow.NewGraph(sampletype.NewRegistry())
	a := source("a", "real32", 1e6)
	b := source("b", "real32", 1e6)
	mul := &testBlock{
		name: "mul",
		ins:  ports("in1", "in2"),
		outs: ports("out"),
		sigs: []flow.Signature{
			{
				Inputs:  []flow.TypeRef{flow.Type("complex32"), flow.Type("complex32")},
				Outputs: []string{"complex32"},
			},
			{
				Inputs:  []flow.TypeRef{flow.Type("real32"), flow.Type("real32")},
				Outputs: []string{"real32"},
			},
		},
	}
	dst := sink("dst", "real32")
	require.NoError(t, g.Connect(a, 0, mul, 0))
	require.NoError(t, g.Connect(b, 0, mul, 1))
	require.NoError(t, g.Connect(mul, 0, dst, 0))

	assign, err := g.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "real32", assign[mul].Outputs[0].Name)
	assert.Equal(t, "real32", assign[mul].Inputs[0].Name)
}

func TestResolveMismatchNamesEdge(t *testing.T) {
	g := flow.NewGraph(sampletype.NewRegistry())
	src := source("src", "complex32", 48000)
	dst := sink("dst", "real32")
	require.NoError(t, g.Connect(src, 0, dst, 0))

	_, err := g.Resolve()
	require.Error(t, err)
	assert.Equal(t, flowerr.SignatureMismatch, flowerr.CodeOf(err))
	assert.Contains(t, err.Error(), "src.out -> dst.in")
}

func TestResolveMismatchThroughChain(t *testing.T) {
	g := flow.NewGraph(sampletype.NewRegistry())
	src := source("src", "complex32", 48000)
	mid := passthrough("mid", "real32", "complex32")
	dst := sink("dst", "real32")
	require.NoError(t, g.Connect(src, 0, mid, 0))
	require.NoError(t, g.Connect(mid, 0, dst, 0))

	_, err := g.Resolve()
	require.Error(t, err)
	assert.Equal(t, flowerr.SignatureMismatch, flowerr.CodeOf(err))
}

// Both candidates fit the neighbors; the one declared first wins, and
// swapping the declaration order flips the choice.
func TestResolveTieBreakDeclarationOrder(t *testing.T) {
	// The converter block takes real32 and may emit either real32 or
	// complex32; the sink downstream accepts both. Both candidates survive
	// elimination, so declaration order decides.
	build := func(first, second string) (*flow.Graph, *testBlock) {
		g := flow.NewGraph(sampletype.NewRegistry())
		src := source("src", "real32", 48000)
		conv := &testBlock{
			name: "conv",
			ins:  ports("in"),
			outs: ports("out"),
			sigs: []flow.Signature{
				{Inputs: []flow.TypeRef{flow.Type("real32")}, Outputs: []string{first}},
				{Inputs: []flow.TypeRef{flow.Type("real32")}, Outputs: []string{second}},
			},
		}
		dst := &testBlock{
			name: "dst",
			ins:  ports("in"),
			sigs: []flow.Signature{
				{Inputs: []flow.TypeRef{flow.Type("real32")}},
				{Inputs: []flow.TypeRef{flow.Type("complex32")}},
			},
		}
		require.NoError(t, g.Connect(src, 0, conv, 0))
		require.NoError(t, g.Connect(conv, 0, dst, 0))
		return g, conv
	}

	g, conv := build("real32", "complex32")
	assign, err := g.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "real32", assign[conv].Outputs[0].Name)

	g, conv = build("complex32", "real32")
	assign, err = g.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "complex32", assign[conv].Outputs[0].Name)
}

func TestResolveDeterministic(t *testing.T) {
	build := func() (*flow.Graph, *testBlock) {
		g := flow.NewGraph(sampletype.NewRegistry())
		src := source("src", "real32", 48000)
		mid := passthrough("mid", "real32", "complex32")
		dst := &testBlock{
			name: "dst",
			ins:  ports("in"),
			sigs: []flow.Signature{
				{Inputs: []flow.TypeRef{flow.Type("real32")}},
				{Inputs: []flow.TypeRef{flow.Type("complex32")}},
			},
		}
		require.NoError(t, g.Connect(src, 0, mid, 0))
		require.NoError(t, g.Connect(mid, 0, dst, 0))
		return g, mid
	}

	g1, mid1 := build()
	a1, err := g1.Resolve()
	require.NoError(t, err)
	g2, mid2 := build()
	a2, err := g2.Resolve()
	require.NoError(t, err)
	assert.Equal(t, a1[mid1].Outputs[0].Name, a2[mid2].Outputs[0].Name)
}

// A predicate-typed input takes the producer's concrete type without
// constraining it.
func TestResolvePredicateInput(t *testing.T) {
	reg := sampletype.NewRegistry()
	registerPacket(reg)
	g := flow.NewGraph(reg)
	src := source("decoder", "packet", 48000)
	dst := &testBlock{
		name: "json_sink",
		ins:  ports("in"),
		sigs: []flow.Signature{
			{Inputs: []flow.TypeRef{flow.Cap("json")}},
		},
	}
	require.NoError(t, g.Connect(src, 0, dst, 0))

	assign, err := g.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "packet", assign[dst].Inputs[0].Name)
}

func TestResolvePredicateUnsatisfied(t *testing.T) {
	g := flow.NewGraph(sampletype.NewRegistry())
	src := source("src", "real32", 48000)
	dst := &testBlock{
		name: "json_sink",
		ins:  ports("in"),
		sigs: []flow.Signature{
			{Inputs: []flow.TypeRef{flow.Cap("json")}},
		},
	}
	require.NoError(t, g.Connect(src, 0, dst, 0))

	_, err := g.Resolve()
	require.Error(t, err)
	assert.Equal(t, flowerr.SignatureMismatch, flowerr.CodeOf(err))
}

// Duplicate candidates cannot be told apart by types: ambiguous.
func TestResolveAmbiguousDuplicates(t *testing.T) {
	g := flow.NewGraph(sampletype.NewRegistry())
	src := source("src", "real32", 48000)
	amb := &testBlock{
		name: "amb",
		ins:  ports("in"),
		outs: ports("out"),
		sigs: []flow.Signature{
			{Inputs: []flow.TypeRef{flow.Type("real32")}, Outputs: []string{"real32"}, RateScale: []float64{1}},
			{Inputs: []flow.TypeRef{flow.Type("real32")}, Outputs: []string{"real32"}, RateScale: []float64{2}},
		},
	}
	dst := sink("dst", "real32")
	require.NoError(t, g.Connect(src, 0, amb, 0))
	require.NoError(t, g.Connect(amb, 0, dst, 0))

	_, err := g.Resolve()
	require.Error(t, err)
	assert.Equal(t, flowerr.AmbiguousSignature, flowerr.CodeOf(err))
}
